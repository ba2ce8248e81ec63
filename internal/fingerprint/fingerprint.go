// Package fingerprint computes fast non-cryptographic content hashes used as
// cache keys and for change detection.
package fingerprint

import (
	"github.com/minio/highwayhash"
)

var key = []byte("hakai-fingerprint-key-0123456789")

// Sum hashes the concatenation of parts. Each part is length-prefixed so
// ("ab","c") and ("a","bc") differ.
func Sum(parts ...string) uint64 {
	hash, err := highwayhash.New64(key)
	if err != nil {
		// key is a fixed 32 bytes
		panic(err)
	}
	var size [8]byte
	for _, part := range parts {
		n := uint64(len(part))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		_, _ = hash.Write(size[:])
		_, _ = hash.Write([]byte(part))
	}
	return hash.Sum64()
}
