package gmsm

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"

	"github.com/opentoys/smcrypto/crypto/der"
)

// CiphertextMode selects the ciphertext wire form.
type CiphertextMode int

const (
	// ModeC1C3C2 is 04‖x1‖y1‖C3‖C2.
	ModeC1C3C2 CiphertextMode = iota
	// ModeCipherASN1 is SEQUENCE { INTEGER x1, INTEGER y1, OCTET STRING C3, OCTET STRING C2 }.
	ModeCipherASN1
)

// MaxPlaintextSize is the longest message the KDF can mask.
const MaxPlaintextSize = maxKDFBlocks * sm3Size

type ciphertext struct {
	x1, y1 *big.Int
	c3, c2 []byte
}

// Encrypt encrypts msg to pub, GB/T 32918.4-2016 6.1.
func Encrypt(random io.Reader, pub *ecdsa.PublicKey, msg []byte, mode CiphertextMode) ([]byte, error) {
	if err := checkPublicKey(pub); err != nil {
		return nil, err
	}
	if len(msg) == 0 {
		return nil, ErrEmptyPlaintext
	}
	if len(msg) > MaxPlaintextSize {
		return nil, ErrKDFTooLong
	}
	ct, err := retry("encrypt", func() (*ciphertext, error) {
		//A1, generate random k
		k, err := randomScalar(random, false)
		if err != nil {
			return nil, err
		}
		//A2, C1 = k * G
		x1, y1 := sm2Curve.ScalarBaseMult(toBytes(k))
		//A4, (x2, y2) = k * P
		x2, y2 := sm2Curve.ScalarMult(pub.X, pub.Y, toBytes(k))
		//A5, t = KDF(x2‖y2, klen)
		t, err := KDF(append(toBytes(x2), toBytes(y2)...), len(msg))
		if err != nil {
			return nil, err
		}
		if allZero(t) {
			return nil, errEncryptRetry
		}
		//A6, C2 = M ⊕ t
		subtle.XORBytes(t, msg, t)
		//A7, C3 = SM3(x2‖M‖y2)
		return &ciphertext{x1, y1, calculateC3(x2, y2, msg), t}, nil
	})
	if err != nil {
		return nil, err
	}
	return ct.marshal(mode)
}

func allZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

func calculateC3(x2, y2 *big.Int, msg []byte) []byte {
	md := NewSM3()
	md.Write(toBytes(x2))
	md.Write(msg)
	md.Write(toBytes(y2))
	return md.Sum(nil)
}

func (ct *ciphertext) marshal(mode CiphertextMode) ([]byte, error) {
	switch mode {
	case ModeC1C3C2:
		out := make([]byte, 0, 1+2*byteLen+len(ct.c3)+len(ct.c2))
		out = append(out, 4)
		out = append(out, toBytes(ct.x1)...)
		out = append(out, toBytes(ct.y1)...)
		out = append(out, ct.c3...)
		return append(out, ct.c2...), nil
	case ModeCipherASN1:
		var b der.Builder
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1BigInt(ct.x1)
			b.AddASN1BigInt(ct.y1)
			b.AddASN1OctetString(ct.c3)
			b.AddASN1OctetString(ct.c2)
		})
		return b.Bytes()
	}
	return nil, fmt.Errorf("sm2: unknown ciphertext mode %d", mode)
}

// parseCiphertext reads either wire form, chosen by the leading byte, and
// checks that C1 lies on the curve.
func parseCiphertext(data []byte) (*ciphertext, error) {
	if len(data) == 0 {
		return nil, ErrCorruptCiphertext
	}
	var ct ciphertext
	switch data[0] {
	case 0x04:
		if len(data) <= 1+2*byteLen+sm3Size {
			return nil, ErrCorruptCiphertext
		}
		ct.x1 = new(big.Int).SetBytes(data[1 : 1+byteLen])
		ct.y1 = new(big.Int).SetBytes(data[1+byteLen : 1+2*byteLen])
		ct.c3 = data[1+2*byteLen : 1+2*byteLen+sm3Size]
		ct.c2 = data[1+2*byteLen+sm3Size:]
	case byte(der.SEQUENCE):
		input := der.Parser(data)
		inner, ok := input.ReadASN1Sequence()
		if !ok || !input.Empty() {
			return nil, ErrCorruptCiphertext
		}
		if ct.x1, ok = inner.ReadASN1BigInt(); !ok {
			return nil, ErrCorruptCiphertext
		}
		if ct.y1, ok = inner.ReadASN1BigInt(); !ok {
			return nil, ErrCorruptCiphertext
		}
		if ct.c3, ok = inner.ReadASN1OctetString(); !ok || len(ct.c3) != sm3Size {
			return nil, ErrCorruptCiphertext
		}
		if ct.c2, ok = inner.ReadASN1OctetString(); !ok || len(ct.c2) == 0 || !inner.Empty() {
			return nil, ErrCorruptCiphertext
		}
	default:
		return nil, ErrCorruptCiphertext
	}
	if !onCurve(ct.x1, ct.y1) {
		return nil, ErrCorruptCiphertext
	}
	return &ct, nil
}

// Decrypt recovers the message from either ciphertext form,
// GB/T 32918.4-2016 7.1. No plaintext is returned unless C3 matches.
func Decrypt(priv *PrivateKey, data []byte) ([]byte, error) {
	if priv == nil || !isSM2Curve(priv.Curve) {
		return nil, ErrUnsupportedCurve
	}
	ct, err := parseCiphertext(data)
	if err != nil {
		log().Debug("sm2 decrypt", "err", err, "len", len(data))
		return nil, err
	}
	//B3, (x2, y2) = d * C1
	x2, y2 := sm2Curve.ScalarMult(ct.x1, ct.y1, toBytes(priv.D))
	//B4, t = KDF(x2‖y2, klen)
	msg, err := KDF(append(toBytes(x2), toBytes(y2)...), len(ct.c2))
	if err != nil || allZero(msg) {
		log().Debug("sm2 decrypt", "err", ErrDecryption, "len", len(data))
		return nil, ErrDecryption
	}
	//B5, M = C2 ⊕ t
	subtle.XORBytes(msg, ct.c2, msg)
	//B6, u = SM3(x2‖M‖y2)
	if subtle.ConstantTimeCompare(calculateC3(x2, y2, msg), ct.c3) != 1 {
		log().Debug("sm2 decrypt", "err", ErrDecryption, "len", len(data))
		return nil, ErrDecryption
	}
	return msg, nil
}

// ConvertCiphertext rewrites a ciphertext in the other wire form. C1 is
// checked to lie on the curve; C3 is not verified.
func ConvertCiphertext(data []byte, to CiphertextMode) ([]byte, error) {
	ct, err := parseCiphertext(data)
	if err != nil {
		return nil, err
	}
	return ct.marshal(to)
}
