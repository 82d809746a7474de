// Package fragment implements the atomic persistence unit of the write
// path: fragment naming, the binary fragment metadata, the committing
// writer that drives the filter pipeline, and a minimal read-back surface
// used to verify round-trips.
package fragment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vincentschut/tiledb/errs"
)

// FormatVersion is the on-disk format version stamped into fragment names
// and metadata.
const FormatVersion uint32 = 10

// Well-known names inside an array directory and a fragment directory.
const (
	FragmentsDirName = "__fragments"
	MetadataFileName = "__fragment_metadata.tdb"
	CommitMarkerName = "__commit"

	FileSuffix         = ".tdb"
	VarFileSuffix      = "_var.tdb"
	ValidityFileSuffix = "_validity.tdb"
)

// NewName generates a fragment name of the form
// __<t_start>_<t_end>_<uuid>_<version>, with both timestamps equal. A zero
// timestamp selects the current UTC epoch milliseconds. The UUID component
// is 32 lowercase hex digits without separators.
func NewName(timestampMs uint64, version uint32) string {
	return NewNameRange(timestampMs, timestampMs, version)
}

// NewNameRange generates a fragment name spanning the submission window
// [tStart, tEnd] of a global-order write.
func NewNameRange(tStart, tEnd uint64, version uint32) string {
	if tStart == 0 {
		tStart = uint64(time.Now().UTC().UnixMilli()) //nolint:gosec
	}
	if tEnd == 0 || tEnd < tStart {
		tEnd = tStart
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("__%d_%d_%s_%d", tStart, tEnd, id, version)
}

// NameInfo is the decomposed form of a fragment name.
type NameInfo struct {
	TimestampStart uint64
	TimestampEnd   uint64
	UUID           string
	Version        uint32
}

// ParseName decomposes a fragment directory name, rejecting anything that
// does not follow the __<t_start>_<t_end>_<uuid>_<version> grammar.
func ParseName(name string) (NameInfo, error) {
	var info NameInfo
	rest, ok := strings.CutPrefix(name, "__")
	if !ok {
		return info, fmt.Errorf("%w: %q lacks the __ prefix", errs.ErrInvalidFragmentName, name)
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 4 {
		return info, fmt.Errorf("%w: %q has %d parts, want 4", errs.ErrInvalidFragmentName, name, len(parts))
	}
	var err error
	if info.TimestampStart, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return info, fmt.Errorf("%w: %q: bad start timestamp", errs.ErrInvalidFragmentName, name)
	}
	if info.TimestampEnd, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return info, fmt.Errorf("%w: %q: bad end timestamp", errs.ErrInvalidFragmentName, name)
	}
	if len(parts[2]) != 32 {
		return info, fmt.Errorf("%w: %q: UUID must be 32 hex digits", errs.ErrInvalidFragmentName, name)
	}
	for _, c := range parts[2] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return info, fmt.Errorf("%w: %q: UUID must be lowercase hex", errs.ErrInvalidFragmentName, name)
		}
	}
	info.UUID = parts[2]
	v, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return info, fmt.Errorf("%w: %q: bad format version", errs.ErrInvalidFragmentName, name)
	}
	info.Version = uint32(v)
	return info, nil
}
