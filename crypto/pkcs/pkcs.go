// Package pkcs reads and writes elliptic curve keys in the PKIX, SEC1 and
// PKCS#8 containers, including password protected PKCS#8 (PBES2).
//
// SM2 private keys come back as *gmsm.PrivateKey, keys on the NIST curves
// as *ecdsa.PrivateKey. Public keys are always *ecdsa.PublicKey.
package pkcs

import (
	"crypto"
	"crypto/ecdsa"
	"math/big"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/pkg/errors"
)

var (
	ErrInvalidPKIX          = errors.New("pkix: invalid public key asn1")
	ErrInvalidSEC1          = errors.New("sec1: invalid EC private key asn1")
	ErrInvalidPKCS8         = errors.New("pkcs8: invalid private key asn1")
	ErrUnsupportedAlgorithm = errors.New("pkcs: unsupported algorithm")
	ErrUnsupportedCurve     = gmsm.ErrUnsupportedCurve
	ErrInvalidKey           = errors.New("pkcs: invalid key")
	ErrIncorrectPassword    = errors.New("pkcs8: incorrect password")
)

var oidPublicKeyECDSA = der.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// ecKey unwraps the supported private key types.
func ecKey(key crypto.PrivateKey) (*ecdsa.PrivateKey, gmsm.CurveID, error) {
	var k *ecdsa.PrivateKey
	switch v := key.(type) {
	case *gmsm.PrivateKey:
		if v != nil {
			k = &v.PrivateKey
		}
	case *ecdsa.PrivateKey:
		k = v
	default:
		return nil, 0, errors.Wrapf(ErrUnsupportedAlgorithm, "key type %T", key)
	}
	if k == nil || k.D == nil || k.X == nil || k.Y == nil {
		return nil, 0, ErrInvalidKey
	}
	id, ok := gmsm.CurveOf(k.Curve)
	if !ok {
		return nil, 0, ErrUnsupportedCurve
	}
	return k, id, nil
}

func coordSize(id gmsm.CurveID) int {
	return (id.Curve().Params().BitSize + 7) / 8
}

// marshalPoint encodes the uncompressed form 04‖x‖y.
func marshalPoint(id gmsm.CurveID, x, y *big.Int) []byte {
	size := coordSize(id)
	out := make([]byte, 1+2*size)
	out[0] = 4
	x.FillBytes(out[1 : 1+size])
	y.FillBytes(out[1+size:])
	return out
}

func unmarshalPoint(id gmsm.CurveID, data []byte) (*ecdsa.PublicKey, error) {
	if id == gmsm.SM2P256V1 {
		pub, err := gmsm.NewPublicKey(data)
		return pub, errors.Wrap(err, "pkix")
	}
	size := coordSize(id)
	if len(data) != 1+2*size || data[0] != 4 {
		return nil, errors.Wrap(gmsm.ErrInvalidPublicKey, "pkix: unsupported point format")
	}
	curve := id.Curve()
	x := new(big.Int).SetBytes(data[1 : 1+size])
	y := new(big.Int).SetBytes(data[1+size:])
	if x.Cmp(curve.Params().P) >= 0 || y.Cmp(curve.Params().P) >= 0 || !curve.IsOnCurve(x, y) {
		return nil, errors.Wrap(gmsm.ErrInvalidPublicKey, "pkix: point not on curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
