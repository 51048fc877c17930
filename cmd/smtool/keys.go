package main

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/opentoys/smcrypto/crypto/pkcs"
)

const (
	pemPrivateKey          = "PRIVATE KEY"
	pemEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemECPrivateKey        = "EC PRIVATE KEY"
	pemPublicKey           = "PUBLIC KEY"
)

// encodePrivateKey writes PKCS#8, encrypted with PBES2 (SM4-CBC keyed by
// HMAC-SM3) when a password is given.
func encodePrivateKey(key *gmsm.PrivateKey, password []byte) ([]byte, error) {
	if len(password) == 0 {
		der, e := pkcs.MarshalPKCS8PrivateKey(key, true)
		if e != nil {
			return nil, e
		}
		return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
	}
	opts := &pkcs.PBES2Opts{
		Cipher: pkcs.SM4CBC,
		KDF:    pkcs.PBKDF2Opts{SaltLen: 16, Iterations: 10000, PRF: pkcs.SM3},
	}
	der, e := pkcs.MarshalEncryptedPKCS8PrivateKey(rand.Reader, key, true, password, opts)
	if e != nil {
		return nil, e
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemEncryptedPrivateKey, Bytes: der}), nil
}

func encodePublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	der, e := pkcs.MarshalPKIXPublicKey(pub)
	if e != nil {
		return nil, e
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der}), nil
}

func readPEM(path string) (*pem.Block, error) {
	if path == "" {
		return nil, fmt.Errorf("smtool: missing key file")
	}
	buf, e := os.ReadFile(path)
	if e != nil {
		return nil, e
	}
	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, fmt.Errorf("smtool: %s holds no PEM block", path)
	}
	return block, nil
}

func loadPrivateKey(path string, password []byte) (*gmsm.PrivateKey, error) {
	block, e := readPEM(path)
	if e != nil {
		return nil, e
	}
	var key interface{}
	switch block.Type {
	case pemPrivateKey:
		key, e = pkcs.ParsePKCS8PrivateKey(block.Bytes)
	case pemEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, fmt.Errorf("smtool: %s is encrypted, use -password", path)
		}
		key, e = pkcs.ParseEncryptedPKCS8PrivateKey(block.Bytes, password)
	case pemECPrivateKey:
		key, e = pkcs.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("smtool: unexpected PEM type %q", block.Type)
	}
	if e != nil {
		return nil, e
	}
	sk, ok := key.(*gmsm.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("smtool: %s is not an SM2 key", path)
	}
	return sk, nil
}

func loadPublicKey(path string) (*ecdsa.PublicKey, error) {
	block, e := readPEM(path)
	if e != nil {
		return nil, e
	}
	if block.Type != pemPublicKey {
		return nil, fmt.Errorf("smtool: unexpected PEM type %q", block.Type)
	}
	pub, e := pkcs.ParsePKIXPublicKey(block.Bytes)
	if e != nil {
		return nil, e
	}
	if !gmsm.IsSM2PublicKey(pub) {
		return nil, fmt.Errorf("smtool: %s is not an SM2 key", path)
	}
	return pub, nil
}
