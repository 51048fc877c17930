package pkcs

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"math/big"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/pkg/errors"
)

const ecPrivKeyVersion = 1

// MarshalECPrivateKey encodes key as an RFC 5915 ECPrivateKey. The curve
// OID is always written; the public key only when includePublicKey is set.
func MarshalECPrivateKey(key crypto.PrivateKey, includePublicKey bool) ([]byte, error) {
	k, id, err := ecKey(key)
	if err != nil {
		return nil, err
	}
	return marshalECPrivateKey(k, id, includePublicKey)
}

func marshalECPrivateKey(k *ecdsa.PrivateKey, id gmsm.CurveID, includePublicKey bool) ([]byte, error) {
	size := (id.Curve().Params().N.BitLen() + 7) / 8
	if k.D.Sign() <= 0 || k.D.BitLen() > size*8 {
		return nil, ErrInvalidKey
	}
	b := der.NewBuilder(nil)
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1Unsigned(ecPrivKeyVersion)
		b.AddASN1OctetString(k.D.FillBytes(make([]byte, size)))
		b.AddASN1ExplicitTag(0, func(b *der.Builder) {
			b.AddASN1ObjectIdentifier(id.OID())
		})
		if includePublicKey {
			b.AddASN1ExplicitTag(1, func(b *der.Builder) {
				b.AddASN1BitString(marshalPoint(id, k.X, k.Y))
			})
		}
	})
	return b.Bytes()
}

// ParseECPrivateKey decodes an RFC 5915 ECPrivateKey. The structure must
// name its curve.
func ParseECPrivateKey(in []byte) (crypto.PrivateKey, error) {
	return parseECPrivateKey(in, nil)
}

// parseECPrivateKey decodes an ECPrivateKey. A non-nil namedCurve, taken
// from an enclosing PKCS#8 structure, wins over the inner OID.
func parseECPrivateKey(in []byte, namedCurve der.ObjectIdentifier) (crypto.PrivateKey, error) {
	input := der.Parser(in)
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		return nil, ErrInvalidSEC1
	}
	version, ok := inner.ReadASN1Signed()
	if !ok {
		return nil, ErrInvalidSEC1
	}
	d, ok := inner.ReadASN1OctetString()
	if !ok {
		return nil, ErrInvalidSEC1
	}
	oid, ok := inner.ReadOptionalASN1ObjectIdentifier(der.ExplicitTag(0))
	if !ok {
		return nil, ErrInvalidSEC1
	}
	pub, ok := inner.ReadOptionalASN1BitString(der.ExplicitTag(1))
	if !ok || !inner.Empty() {
		return nil, ErrInvalidSEC1
	}
	if version != ecPrivKeyVersion {
		return nil, errors.Wrapf(ErrInvalidSEC1, "unknown version %d", version)
	}

	curveOID := namedCurve
	if curveOID == nil {
		if !oid.Present {
			return nil, errors.Wrap(ErrInvalidSEC1, "missing curve oid")
		}
		curveOID = oid.Value
	}
	id, ok := gmsm.CurveByOID(curveOID)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCurve, "sec1: <%s>", curveOID)
	}

	size := (id.Curve().Params().N.BitLen() + 7) / 8
	// Leading zeros beyond the scalar size are tolerated, and so are
	// stripped ones.
	for len(d) > size {
		if d[0] != 0 {
			return nil, errors.Wrap(ErrInvalidSEC1, "invalid private key length")
		}
		d = d[1:]
	}
	scalar := make([]byte, size)
	copy(scalar[size-len(d):], d)

	var (
		key  crypto.PrivateKey
		ecdk *ecdsa.PrivateKey
	)
	if id == gmsm.SM2P256V1 {
		k, err := gmsm.NewPrivateKey(scalar)
		if err != nil {
			return nil, errors.Wrap(err, "sec1")
		}
		key, ecdk = k, &k.PrivateKey
	} else {
		curve := id.Curve()
		k := new(big.Int).SetBytes(scalar)
		if k.Sign() == 0 || k.Cmp(curve.Params().N) >= 0 {
			return nil, errors.Wrap(ErrInvalidKey, "sec1: scalar out of range")
		}
		ecdk = &ecdsa.PrivateKey{D: k}
		ecdk.Curve = curve
		ecdk.X, ecdk.Y = curve.ScalarBaseMult(scalar)
		key = ecdk
	}

	if pub.Present && !bytes.Equal(pub.Value.Bytes, marshalPoint(id, ecdk.X, ecdk.Y)) {
		return nil, errors.Wrap(ErrInvalidSEC1, "public key does not match private key")
	}
	return key, nil
}
