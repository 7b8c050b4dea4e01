// Package fastrand generates random payload bytes fast enough to keep a
// socket busy. The output is not cryptographically secure, which is fine:
// the payload content is never interpreted, only its length matters.
package fastrand

import (
	"math/rand/v2"
	"unsafe"
)

// Reader fills byte slices with output from a PCG generator.
// It is not safe for concurrent use; give each loop its own Reader.
type Reader struct {
	pcg *rand.PCG
}

// New creates a new Reader seeded from the global generator.
func New() *Reader {
	return &Reader{
		pcg: rand.NewPCG(rand.Uint64(), rand.Uint64()),
	}
}

// Fill fills the byte slice with random bytes.
func (r *Reader) Fill(b []byte) {
	for len(b) >= 8 {
		*(*uint64)(unsafe.Pointer(&b[0])) = r.pcg.Uint64()
		b = b[8:]
	}

	if len(b) > 0 {
		v := r.pcg.Uint64()

		if len(b) >= 4 {
			*(*uint32)(unsafe.Pointer(&b[0])) = uint32(v)
			b = b[4:]
			v >>= 32
		}

		if len(b) >= 2 {
			*(*uint16)(unsafe.Pointer(&b[0])) = uint16(v)
			b = b[2:]
			v >>= 16
		}

		if len(b) > 0 {
			b[0] = uint8(v)
		}
	}
}
