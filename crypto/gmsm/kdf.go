package gmsm

import (
	"encoding/binary"
)

// maxKDFBlocks bounds the 32-bit counter to a single octet of blocks.
const maxKDFBlocks = 255

// KDF derives keyLen bytes from z as SM3(z ‖ ct) for ct = 1, 2, ... with ct
// a 32-bit big-endian counter, GB/T 32918.4-2016 5.4.3.
func KDF(z []byte, keyLen int) ([]byte, error) {
	if keyLen < 0 {
		return nil, ErrKDFTooLong
	}
	blocks := (keyLen + sm3Size - 1) / sm3Size
	if blocks > maxKDFBlocks {
		return nil, ErrKDFTooLong
	}
	md := NewSM3()
	var ct [4]byte
	out := make([]byte, 0, blocks*sm3Size)
	for i := 1; i <= blocks; i++ {
		binary.BigEndian.PutUint32(ct[:], uint32(i))
		md.Reset()
		md.Write(z)
		md.Write(ct[:])
		out = append(out, md.Sum(nil)...)
	}
	return out[:keyLen], nil
}

// KDFBits is KDF for a bit length; bits past bitLen in the last byte are zero.
func KDFBits(z []byte, bitLen int) ([]byte, error) {
	if bitLen < 0 {
		return nil, ErrKDFTooLong
	}
	out, err := KDF(z, (bitLen+7)/8)
	if err != nil {
		return nil, err
	}
	if rem := bitLen % 8; rem != 0 {
		out[len(out)-1] &= byte(0xff << (8 - rem))
	}
	return out, nil
}
