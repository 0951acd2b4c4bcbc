package utils

import "github.com/cespare/xxhash/v2"

// BucketHash maps id into a stable [0, mod) bucket using a fixed,
// non-cryptographic hash, so the bucketing stays identical across
// processes and for the life of a deployed artifact.
func BucketHash(id string, mod uint64) int {
	if mod == 0 {
		return 0
	}
	return int(xxhash.Sum64String(id) % mod)
}
