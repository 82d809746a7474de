// Package hash provides the checksum used to protect fragment metadata.
package hash

import "github.com/cespare/xxhash/v2"

// Checksum computes the xxHash64 of the given bytes. It is appended as the
// footer of the fragment metadata file and verified on parse.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ID computes the xxHash64 of the given string. Field names are hashed to
// stable identifiers in diagnostics and log fields.
func ID(name string) uint64 {
	return xxhash.Sum64String(name)
}
