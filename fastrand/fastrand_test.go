package fastrand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillAllLengths(t *testing.T) {
	r := New()
	for _, size := range []int{0, 1, 2, 3, 4, 5, 7, 8, 9, 15, 16, 17, 31, 64, 1024, 1452} {
		b := make([]byte, size)
		r.Fill(b)
	}
}

func TestFillProducesFreshBytes(t *testing.T) {
	r := New()
	a := make([]byte, 64)
	b := make([]byte, 64)
	r.Fill(a)
	r.Fill(b)
	require.NotEqual(t, a, b)
}

func TestFillOverwritesWholeBuffer(t *testing.T) {
	r := New()
	b := make([]byte, 257)
	for i := range b {
		b[i] = 0xAA
	}
	r.Fill(b)

	// 257 bytes all landing on 0xAA again is beyond unlucky.
	unchanged := 0
	for _, v := range b {
		if v == 0xAA {
			unchanged++
		}
	}
	require.Less(t, unchanged, len(b)/2)
}
