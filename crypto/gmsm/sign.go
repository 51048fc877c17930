package gmsm

import (
	"crypto/ecdsa"
	"io"
	"math/big"

	"github.com/opentoys/smcrypto/crypto/der"
)

// SignatureMode selects the signature wire form.
type SignatureMode int

const (
	// ModeASN1 is SEQUENCE { INTEGER r, INTEGER s }.
	ModeASN1 SignatureMode = iota
	// ModeRS is r‖s, 32 bytes each.
	ModeRS
)

var defaultUID = []byte{0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38}

// CalculateZA ZA = SM3(ENTLA ‖ IDA ‖ a ‖ b ‖ xG ‖ yG ‖ xA ‖ yA), GB/T 32918.2-2016 5.5.
//
// uid is used as given; an empty uid is not replaced by the default.
func CalculateZA(pub *ecdsa.PublicKey, uid []byte) ([]byte, error) {
	if err := checkPublicKey(pub); err != nil {
		return nil, err
	}
	uidLen := len(uid)
	if uidLen >= 0x2000 {
		return nil, ErrUIDTooLong
	}
	entla := uint16(uidLen) << 3
	md := NewSM3()
	md.Write([]byte{byte(entla >> 8), byte(entla)})
	md.Write(uid)
	params := sm2Curve.Params()
	md.Write(toBytes(sm2A))
	md.Write(toBytes(params.B))
	md.Write(toBytes(params.Gx))
	md.Write(toBytes(params.Gy))
	md.Write(toBytes(pub.X))
	md.Write(toBytes(pub.Y))
	return md.Sum(nil), nil
}

// CalculateHash returns SM3(ZA ‖ msg). An empty uid means 1234567812345678.
func CalculateHash(pub *ecdsa.PublicKey, msg, uid []byte) ([]byte, error) {
	if len(uid) == 0 {
		uid = defaultUID
	}
	za, err := CalculateZA(pub, uid)
	if err != nil {
		return nil, err
	}
	md := NewSM3()
	md.Write(za)
	md.Write(msg)
	return md.Sum(nil), nil
}

// SignHash signs hash, normally the output of CalculateHash. A hash longer
// than the curve order is truncated to its bit length.
func SignHash(rand io.Reader, priv *PrivateKey, hash []byte, mode SignatureMode) ([]byte, error) {
	if priv == nil || !isSM2Curve(priv.Curve) {
		return nil, ErrUnsupportedCurve
	}
	dp1Inv, err := priv.inverseOfPrivateKeyPlus1()
	if err != nil {
		return nil, err
	}
	e := hashToInt(hash)

	type rs struct{ r, s *big.Int }
	sig, err := retry("sign", func() (rs, error) {
		k, err := randomScalar(rand, false)
		if err != nil {
			return rs{}, err
		}
		// r = (e + x1) mod n
		r, _ := sm2Curve.ScalarBaseMult(toBytes(k))
		r.Add(r, e)
		r.Mod(r, sm2N)
		if r.Sign() == 0 || new(big.Int).Add(r, k).Cmp(sm2N) == 0 {
			return rs{}, errSignRetry
		}
		// s = (1+d)⁻¹ (k - r·d) mod n
		s := new(big.Int).Mul(priv.D, r)
		s.Sub(k, s)
		s.Mul(s, dp1Inv)
		s.Mod(s, sm2N)
		if s.Sign() == 0 {
			return rs{}, errSignRetry
		}
		return rs{r, s}, nil
	})
	if err != nil {
		return nil, err
	}
	return encodeSignature(sig.r, sig.s, mode)
}

// Sign signs msg on behalf of the identity uid.
func Sign(rand io.Reader, priv *PrivateKey, msg, uid []byte, mode SignatureMode) ([]byte, error) {
	if priv == nil {
		return nil, ErrInvalidPrivateKey
	}
	hash, err := CalculateHash(&priv.PublicKey, msg, uid)
	if err != nil {
		return nil, err
	}
	return SignHash(rand, priv, hash, mode)
}

// VerifyHash reports whether sig is a valid signature of hash. Malformed
// input yields false.
func VerifyHash(pub *ecdsa.PublicKey, hash, sig []byte, mode SignatureMode) bool {
	if checkPublicKey(pub) != nil {
		return false
	}
	r, s, err := parseSignature(sig, mode)
	if err != nil {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(sm2N) >= 0 || s.Cmp(sm2N) >= 0 {
		return false
	}
	t := new(big.Int).Add(r, s)
	t.Mod(t, sm2N)
	if t.Sign() == 0 {
		return false
	}

	x1, y1 := sm2Curve.ScalarBaseMult(toBytes(s))
	x2, y2 := sm2Curve.ScalarMult(pub.X, pub.Y, toBytes(t))
	x, y := addPoints(x1, y1, x2, y2)
	if x.Sign() == 0 && y.Sign() == 0 {
		return false
	}

	e := hashToInt(hash)
	x.Add(x, e)
	x.Mod(x, sm2N)
	return x.Cmp(r) == 0
}

// Verify checks sig over msg for the identity uid.
func Verify(pub *ecdsa.PublicKey, msg, uid, sig []byte, mode SignatureMode) bool {
	hash, err := CalculateHash(pub, msg, uid)
	if err != nil {
		return false
	}
	return VerifyHash(pub, hash, sig, mode)
}

func encodeSignature(r, s *big.Int, mode SignatureMode) ([]byte, error) {
	if mode == ModeRS {
		return append(toBytes(r), toBytes(s)...), nil
	}
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}

func parseSignature(sig []byte, mode SignatureMode) (r, s *big.Int, err error) {
	switch mode {
	case ModeRS:
		if len(sig) != 2*byteLen {
			return nil, nil, ErrInvalidSignatureFormat
		}
		return new(big.Int).SetBytes(sig[:byteLen]), new(big.Int).SetBytes(sig[byteLen:]), nil
	case ModeASN1:
		input := der.Parser(sig)
		inner, ok := input.ReadASN1Sequence()
		if !ok || !input.Empty() {
			return nil, nil, ErrInvalidSignatureFormat
		}
		if r, ok = inner.ReadASN1BigInt(); !ok {
			return nil, nil, ErrInvalidSignatureFormat
		}
		if s, ok = inner.ReadASN1BigInt(); !ok || !inner.Empty() {
			return nil, nil, ErrInvalidSignatureFormat
		}
		return r, s, nil
	}
	return nil, nil, ErrInvalidSignatureFormat
}

// DecodeSignature splits a signature in either form into r and s.
func DecodeSignature(sig []byte, mode SignatureMode) (r, s *big.Int, err error) {
	return parseSignature(sig, mode)
}

// EncodeSignature is the inverse of DecodeSignature.
func EncodeSignature(r, s *big.Int, mode SignatureMode) ([]byte, error) {
	if r == nil || s == nil || r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > 8*byteLen || s.BitLen() > 8*byteLen {
		return nil, ErrInvalidSignatureFormat
	}
	return encodeSignature(r, s, mode)
}
