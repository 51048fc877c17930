package pkcs

import (
	"crypto"
	"crypto/ecdsa"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/pkg/errors"
)

// MarshalPKIXPublicKey encodes an EC public key as a SubjectPublicKeyInfo.
func MarshalPKIXPublicKey(pub crypto.PublicKey) ([]byte, error) {
	k, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "key type %T", pub)
	}
	if k == nil || k.X == nil || k.Y == nil {
		return nil, ErrInvalidKey
	}
	id, ok := gmsm.CurveOf(k.Curve)
	if !ok {
		return nil, ErrUnsupportedCurve
	}
	if !k.Curve.IsOnCurve(k.X, k.Y) {
		return nil, gmsm.ErrInvalidPublicKey
	}
	b := der.NewBuilder(nil)
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(id.OID())
		})
		b.AddASN1BitString(marshalPoint(id, k.X, k.Y))
	})
	return b.Bytes()
}

// ParsePKIXPublicKey decodes a SubjectPublicKeyInfo holding an EC key with
// a named curve. The point must be uncompressed and on the curve.
func ParsePKIXPublicKey(in []byte) (*ecdsa.PublicKey, error) {
	input := der.Parser(in)
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		return nil, ErrInvalidPKIX
	}
	alg, ok := inner.ReadASN1Sequence()
	if !ok {
		return nil, ErrInvalidPKIX
	}
	bits, ok := inner.ReadASN1BitString()
	if !ok || !inner.Empty() || bits.BitLength%8 != 0 {
		return nil, ErrInvalidPKIX
	}
	algOID, ok := alg.ReadASN1ObjectIdentifier()
	if !ok {
		return nil, ErrInvalidPKIX
	}
	if !algOID.Equal(oidPublicKeyECDSA) {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pkix: <%s>", algOID)
	}
	curveOID, ok := alg.ReadASN1ObjectIdentifier()
	if !ok || !alg.Empty() {
		return nil, ErrInvalidPKIX
	}
	id, ok := gmsm.CurveByOID(curveOID)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCurve, "pkix: <%s>", curveOID)
	}
	return unmarshalPoint(id, bits.Bytes)
}
