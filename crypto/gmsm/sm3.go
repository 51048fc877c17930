package gmsm

import (
	"hash"

	"github.com/tjfoc/gmsm/sm3"
)

const SM3Size = sm3Size

// NewSM3 returns an SM3 hash whose Sum appends to its argument and leaves
// the running state untouched, as hash.Hash requires.
func NewSM3() hash.Hash {
	h := sm3.New()
	if s, ok := h.(*sm3.SM3); ok {
		return &sm3Digest{s}
	}
	return h
}

type sm3Digest struct {
	*sm3.SM3
}

func (d *sm3Digest) Sum(in []byte) []byte {
	c := *d.SM3
	return append(in, c.Sum(nil)...)
}

// Sm3 returns the SM3 digest of buf.
func Sm3(buf []byte) []byte {
	return sm3.Sm3Sum(buf)
}
