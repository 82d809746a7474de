package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	// Known xxHash64 vectors pin the on-disk metadata footer format.
	tests := []struct {
		name string
		data []byte
		sum  uint64
	}{
		{"empty", nil, 0xef46db3751d8e999},
		{"short", []byte("test"), 0x4fdcca5ddb678139},
		{"longer", []byte("this is a longer test string to hash"), 0x69275f7f7ee59dbd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.sum, Checksum(tt.data))
		})
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := []byte("fragment metadata body")
	sum := Checksum(data)

	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0x01
	require.NotEqual(t, sum, Checksum(corrupted))
}

func TestIDMatchesChecksum(t *testing.T) {
	require.Equal(t, Checksum([]byte("field_a")), ID("field_a"))
	require.NotEqual(t, ID("field_a"), ID("field_b"))
}
