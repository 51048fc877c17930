package pkcs

import (
	"crypto"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/pkg/errors"
)

// MarshalPKCS8PrivateKey encodes key as an unencrypted PKCS#8
// PrivateKeyInfo wrapping an ECPrivateKey.
func MarshalPKCS8PrivateKey(key crypto.PrivateKey, includePublicKey bool) ([]byte, error) {
	k, id, err := ecKey(key)
	if err != nil {
		return nil, err
	}
	sec1, err := marshalECPrivateKey(k, id, includePublicKey)
	if err != nil {
		return nil, err
	}
	b := der.NewBuilder(nil)
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1Unsigned(0)
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(id.OID())
		})
		b.AddASN1OctetString(sec1)
	})
	return b.Bytes()
}

// ParsePKCS8PrivateKey decodes an unencrypted PKCS#8 PrivateKeyInfo. Only
// id-ecPublicKey with a named curve parameter is accepted.
func ParsePKCS8PrivateKey(in []byte) (crypto.PrivateKey, error) {
	input := der.Parser(in)
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		return nil, ErrInvalidPKCS8
	}
	version, ok := inner.ReadASN1Unsigned()
	if !ok || version > 1 {
		return nil, ErrInvalidPKCS8
	}
	alg, ok := inner.ReadASN1Sequence()
	if !ok {
		return nil, ErrInvalidPKCS8
	}
	algOID, ok := alg.ReadASN1ObjectIdentifier()
	if !ok {
		return nil, ErrInvalidPKCS8
	}
	curveOID, ok := alg.ReadASN1ObjectIdentifier()
	if !ok || !alg.Empty() {
		return nil, ErrInvalidPKCS8
	}
	key, ok := inner.ReadASN1OctetString()
	if !ok {
		return nil, ErrInvalidPKCS8
	}
	// attributes [0] and, in version 2, the public key [1]
	if !inner.SkipOptionalASN1(der.Tag(0).Constructed().ContextSpecific()) ||
		!inner.SkipOptionalASN1(der.Tag(1).ContextSpecific()) ||
		!inner.Empty() {
		return nil, ErrInvalidPKCS8
	}
	if !algOID.Equal(oidPublicKeyECDSA) {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pkcs8: <%s>", algOID)
	}
	return parseECPrivateKey(key, curveOID)
}
