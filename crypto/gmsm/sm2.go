// Package gmsm implements the SM2 public key cryptosystem of GB/T 32918 on
// top of the sm2p256v1 curve: key generation, signatures bound to a signer
// identity, public key encryption and the three pass key exchange.
package gmsm

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
)

var (
	ErrUnsupportedCurve       = errors.New("sm2: unsupported curve")
	ErrInvalidPrivateKey      = errors.New("sm2: invalid private key")
	ErrInvalidPublicKey       = errors.New("sm2: invalid public key")
	ErrUIDTooLong             = errors.New("sm2: the uid is too long")
	ErrInvalidSignatureFormat = errors.New("sm2: invalid signature format")
	// ErrDecryption is deliberately vague to avoid adaptive attacks.
	ErrDecryption        = errors.New("sm2: decryption error")
	ErrCorruptCiphertext = fmt.Errorf("%w: corrupt ciphertext", ErrDecryption)
	ErrEmptyPlaintext    = errors.New("sm2: empty plaintext")
	ErrKDFTooLong        = errors.New("sm2: kdf output too long")
	ErrKeyExchange       = errors.New("sm2: key exchange failed")
	ErrRetryExhausted    = errors.New("sm2: retries exhausted")
)

// PrivateKey represents an SM2 private key.
// It implements both crypto.Decrypter and crypto.Signer.
type PrivateKey struct {
	ecdsa.PrivateKey
	// inverseOfKeyPlus1 is set under inverseOfKeyPlus1Once
	inverseOfKeyPlus1     *big.Int
	inverseOfKeyPlus1Once sync.Once
}

// GenerateKey generates a key with d in [1, n-2].
func GenerateKey(rand io.Reader) (*PrivateKey, error) {
	return GenerateKeyWithOptions(rand, true)
}

// GenerateKeyWithOptions generates a key with d in [1, n-2], or in
// [1, n-1] when checkOrderMinus1 is false. A key with d = n-1 can
// decrypt and take part in key exchange but cannot sign.
func GenerateKeyWithOptions(rand io.Reader, checkOrderMinus1 bool) (*PrivateKey, error) {
	d, err := randomScalar(rand, checkOrderMinus1)
	if err != nil {
		return nil, err
	}
	return newPrivateKey(d), nil
}

func newPrivateKey(d *big.Int) *PrivateKey {
	priv := new(PrivateKey)
	priv.PublicKey.Curve = sm2Curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = sm2Curve.ScalarBaseMult(toBytes(d))
	return priv
}

// NewPrivateKey checks that key is a 32 byte scalar in [1, n-2] and returns
// the key pair.
func NewPrivateKey(key []byte) (*PrivateKey, error) {
	if len(key) != byteLen {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidPrivateKey, len(key))
	}
	return NewPrivateKeyFromInt(new(big.Int).SetBytes(key))
}

// NewPrivateKeyFromInt is like NewPrivateKey for an integer scalar.
func NewPrivateKeyFromInt(key *big.Int) (*PrivateKey, error) {
	if key == nil || key.Sign() <= 0 || key.Cmp(nMinus1) >= 0 {
		return nil, ErrInvalidPrivateKey
	}
	return newPrivateKey(new(big.Int).Set(key)), nil
}

// NewPublicKey parses an uncompressed point 04‖x‖y and checks that it lies
// on the curve.
func NewPublicKey(key []byte) (*ecdsa.PublicKey, error) {
	if len(key) != 1+2*byteLen || key[0] != 4 {
		return nil, ErrInvalidPublicKey
	}
	x := new(big.Int).SetBytes(key[1 : 1+byteLen])
	y := new(big.Int).SetBytes(key[1+byteLen:])
	if !onCurve(x, y) {
		return nil, ErrInvalidPublicKey
	}
	return &ecdsa.PublicKey{Curve: sm2Curve, X: x, Y: y}, nil
}

func onCurve(x, y *big.Int) bool {
	p := sm2Curve.Params().P
	if x.Sign() < 0 || x.Cmp(p) >= 0 || y.Sign() < 0 || y.Cmp(p) >= 0 {
		return false
	}
	return sm2Curve.IsOnCurve(x, y)
}

// MarshalPublicKey encodes pub as 04‖x‖y with 32 byte coordinates.
func MarshalPublicKey(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 1, 1+2*byteLen)
	out[0] = 4
	out = append(out, toBytes(pub.X)...)
	return append(out, toBytes(pub.Y)...)
}

func checkPublicKey(pub *ecdsa.PublicKey) error {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return ErrInvalidPublicKey
	}
	if !isSM2Curve(pub.Curve) {
		return ErrUnsupportedCurve
	}
	if !onCurve(pub.X, pub.Y) {
		return ErrInvalidPublicKey
	}
	return nil
}

// Bytes returns d as 32 bytes.
func (priv *PrivateKey) Bytes() []byte {
	return toBytes(priv.D)
}

func (priv *PrivateKey) Equal(x crypto.PrivateKey) bool {
	xx, ok := x.(*PrivateKey)
	if !ok {
		return false
	}
	return priv.PublicKey.Equal(&xx.PublicKey) &&
		subtle.ConstantTimeCompare(priv.Bytes(), xx.Bytes()) == 1
}

// inverseOfPrivateKeyPlus1 returns (1+d)⁻¹ mod n, computed on first use.
func (priv *PrivateKey) inverseOfPrivateKeyPlus1() (*big.Int, error) {
	priv.inverseOfKeyPlus1Once.Do(func() {
		dp1 := new(big.Int).Add(priv.D, one)
		if dp1.Cmp(sm2N) >= 0 {
			return
		}
		priv.inverseOfKeyPlus1 = new(big.Int).ModInverse(dp1, sm2N)
	})
	if priv.inverseOfKeyPlus1 == nil {
		return nil, ErrInvalidPrivateKey
	}
	return priv.inverseOfKeyPlus1, nil
}

// SignerOpts selects SM2 message signing for PrivateKey.Sign: the digest
// argument is then the raw message and is hashed together with ZA of UID.
type SignerOpts struct {
	UID         []byte
	ForceGMSign bool
	Mode        SignatureMode
}

// DefaultSignerOpts signs raw messages with the default UID in ASN.1 form.
var DefaultSignerOpts = &SignerOpts{ForceGMSign: true}

func (*SignerOpts) HashFunc() crypto.Hash {
	return crypto.Hash(0)
}

// Sign implements crypto.Signer. Without *SignerOpts the digest is signed
// as given and the signature is ASN.1 encoded.
func (priv *PrivateKey) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if o, ok := opts.(*SignerOpts); ok {
		if o.ForceGMSign {
			return Sign(rand, priv, digest, o.UID, o.Mode)
		}
		return SignHash(rand, priv, digest, o.Mode)
	}
	return SignHash(rand, priv, digest, ModeASN1)
}

// Decrypt implements crypto.Decrypter. Both ciphertext forms are detected
// from the input, so opts is ignored.
func (priv *PrivateKey) Decrypt(rand io.Reader, msg []byte, opts crypto.DecrypterOpts) ([]byte, error) {
	return Decrypt(priv, msg)
}

// randomScalar draws k in [1, n-1], or [1, n-2] when checkOrderMinus1 is set.
func randomScalar(rand io.Reader, checkOrderMinus1 bool) (*big.Int, error) {
	bound := sm2N
	if checkOrderMinus1 {
		bound = nMinus1
	}
	return retry("scalar", func() (*big.Int, error) {
		b := make([]byte, byteLen)
		if _, err := io.ReadFull(rand, b); err != nil {
			return nil, err
		}
		k := new(big.Int).SetBytes(b)
		if k.Sign() == 0 || k.Cmp(bound) >= 0 {
			return nil, errScalarRetry
		}
		return k, nil
	})
}
