package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// testTarget mimics a writer-style configurable: one fallible setter, one
// infallible one.
type testTarget struct {
	limit int
	label string
}

func (c *testTarget) setLimit(v int) error {
	if v < 0 {
		return errors.New("limit cannot be negative")
	}
	c.limit = v

	return nil
}

func withLimit(v int) Option[*testTarget] {
	return New(func(c *testTarget) error {
		return c.setLimit(v)
	})
}

func withLabel(s string) Option[*testTarget] {
	return NoError(func(c *testTarget) {
		c.label = s
	})
}

func TestApply(t *testing.T) {
	t.Run("AllOptions", func(t *testing.T) {
		target := &testTarget{}
		require.NoError(t, Apply(target, withLimit(8), withLabel("tiles")))
		require.Equal(t, 8, target.limit)
		require.Equal(t, "tiles", target.label)
	})

	t.Run("NoOptions", func(t *testing.T) {
		target := &testTarget{limit: 3}
		require.NoError(t, Apply(target))
		require.Equal(t, 3, target.limit)
	})

	t.Run("StopsAtFirstError", func(t *testing.T) {
		target := &testTarget{}
		err := Apply(target, withLimit(-1), withLabel("never"))
		require.Error(t, err)
		require.Empty(t, target.label, "options after a failing one must not apply")
	})

	t.Run("OrderMatters", func(t *testing.T) {
		target := &testTarget{}
		require.NoError(t, Apply(target, withLabel("first"), withLabel("second")))
		require.Equal(t, "second", target.label)
	})
}
