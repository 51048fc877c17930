package gmsm

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	"github.com/opentoys/smcrypto/crypto/der"
	tjsm2 "github.com/tjfoc/gmsm/sm2"
)

// CurveID names a curve that keys in this module may live on. Only
// SM2P256V1 supports the SM2 operations; the NIST curves exist so that key
// containers holding them can be read and written.
type CurveID int

const (
	SM2P256V1 CurveID = iota + 1
	P224
	P256
	P384
	P521
)

var curves = []struct {
	id    CurveID
	name  string
	oid   der.ObjectIdentifier
	curve func() elliptic.Curve
}{
	{SM2P256V1, "sm2p256v1", der.ObjectIdentifier{1, 2, 156, 10197, 1, 301}, tjsm2.P256Sm2},
	{P224, "P-224", der.ObjectIdentifier{1, 3, 132, 0, 33}, elliptic.P224},
	{P256, "P-256", der.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}, elliptic.P256},
	{P384, "P-384", der.ObjectIdentifier{1, 3, 132, 0, 34}, elliptic.P384},
	{P521, "P-521", der.ObjectIdentifier{1, 3, 132, 0, 35}, elliptic.P521},
}

func (id CurveID) valid() bool {
	return id >= SM2P256V1 && id <= P521
}

// OID returns the named-curve object identifier.
func (id CurveID) OID() der.ObjectIdentifier {
	if !id.valid() {
		return nil
	}
	return curves[id-1].oid
}

// Curve returns the point engine.
func (id CurveID) Curve() elliptic.Curve {
	if !id.valid() {
		return nil
	}
	return curves[id-1].curve()
}

func (id CurveID) String() string {
	if !id.valid() {
		return "unknown"
	}
	return curves[id-1].name
}

// CurveByOID maps a named-curve OID to its CurveID.
func CurveByOID(oid der.ObjectIdentifier) (CurveID, bool) {
	for _, v := range curves {
		if v.oid.Equal(oid) {
			return v.id, true
		}
	}
	return 0, false
}

// CurveOf identifies the curve behind an engine.
func CurveOf(c elliptic.Curve) (CurveID, bool) {
	if c == nil {
		return 0, false
	}
	if isSM2Curve(c) {
		return SM2P256V1, true
	}
	name := c.Params().Name
	for _, v := range curves[1:] {
		if v.name == name {
			return v.id, true
		}
	}
	return 0, false
}

var (
	one      = big.NewInt(1)
	sm2Curve = tjsm2.P256Sm2()
	sm2N     = sm2Curve.Params().N
	nMinus1  = new(big.Int).Sub(sm2N, one)
	// the curve equation is y² = x³ + ax + b with a = p - 3
	sm2A = new(big.Int).Sub(sm2Curve.Params().P, big.NewInt(3))
)

const (
	// byteLen is the size of a field element or scalar.
	byteLen = 32
	sm3Size = 32
)

func isSM2Curve(c elliptic.Curve) bool {
	if c == nil {
		return false
	}
	p, q := c.Params(), sm2Curve.Params()
	if p == q {
		return true
	}
	return p.P.Cmp(q.P) == 0 && p.N.Cmp(q.N) == 0 && p.B.Cmp(q.B) == 0 &&
		p.Gx.Cmp(q.Gx) == 0 && p.Gy.Cmp(q.Gy) == 0
}

// IsSM2PublicKey reports whether pub is a public key on the SM2 curve.
func IsSM2PublicKey(pub any) bool {
	k, ok := pub.(*ecdsa.PublicKey)
	return ok && k != nil && isSM2Curve(k.Curve)
}

// addPoints returns P1 + P2 with (0, 0) standing for the point at
// infinity. The curve engine's Add only covers distinct, non-opposite inputs.
func addPoints(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	switch {
	case x1.Sign() == 0 && y1.Sign() == 0:
		return new(big.Int).Set(x2), new(big.Int).Set(y2)
	case x2.Sign() == 0 && y2.Sign() == 0:
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	case x1.Cmp(x2) != 0:
		return sm2Curve.Add(x1, y1, x2, y2)
	case y1.Cmp(y2) == 0:
		return sm2Curve.Double(x1, y1)
	}
	return new(big.Int), new(big.Int)
}

func toBytes(value *big.Int) []byte {
	return value.FillBytes(make([]byte, byteLen))
}

// hashToInt uses the left-most bits of hash up to the order bit length.
func hashToInt(hash []byte) *big.Int {
	orderBits := sm2N.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(hash) > orderBytes {
		hash = hash[:orderBytes]
	}
	ret := new(big.Int).SetBytes(hash)
	excess := len(hash)*8 - orderBits
	if excess > 0 {
		ret.Rsh(ret, uint(excess))
	}
	return ret
}
