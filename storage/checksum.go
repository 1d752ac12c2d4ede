package storage

import "github.com/minio/highwayhash"

// checksumKey is fixed and private to this package: block checksums are
// an integrity check against a corrupted backing file, not a security
// boundary, so a well-known key is correct here.
var checksumKey = make([]byte, 32)

// checksum returns the HighwayHash-256 of a block payload (spec
// SUPPLEMENTED FEATURES: every written block is hashed and the checksum
// verified on read).
func checksum(block []byte) []byte {
	h, err := highwayhash.New(checksumKey)
	if err != nil {
		panic("storage: highwayhash key must be exactly 32 bytes")
	}
	h.Write(block)
	return h.Sum(nil)
}

func checksumEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
