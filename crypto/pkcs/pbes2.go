package pkcs

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/pkg/errors"
	"github.com/tjfoc/gmsm/sm4"
	"golang.org/x/crypto/pbkdf2"
)

var (
	oidPBES2  = der.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2 = der.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
)

// HashID names the HMAC PRF used by PBKDF2.
type HashID int

const (
	SHA1 HashID = iota
	SHA256
	SHA512
	SM3
)

var prfs = []struct {
	id   HashID
	oid  der.ObjectIdentifier
	hash func() hash.Hash
}{
	{SHA1, der.ObjectIdentifier{1, 2, 840, 113549, 2, 7}, sha1.New},
	{SHA256, der.ObjectIdentifier{1, 2, 840, 113549, 2, 9}, sha256.New},
	{SHA512, der.ObjectIdentifier{1, 2, 840, 113549, 2, 11}, sha512.New},
	{SM3, der.ObjectIdentifier{1, 2, 156, 10197, 1, 401, 2}, gmsm.NewSM3},
}

// CipherID names a PBES2 encryption scheme.
type CipherID int

const (
	AES128CBC CipherID = iota
	AES192CBC
	AES256CBC
	SM4CBC
	AES128GCM
	AES192GCM
	AES256GCM
	SM4GCM
)

type scheme struct {
	id       CipherID
	oid      der.ObjectIdentifier
	keySize  int
	mode     Mode
	newBlock func([]byte) (cipher.Block, error)
}

var schemes = []scheme{
	{AES128CBC, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}, 16, CBC, aes.NewCipher},
	{AES192CBC, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}, 24, CBC, aes.NewCipher},
	{AES256CBC, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}, 32, CBC, aes.NewCipher},
	{SM4CBC, der.ObjectIdentifier{1, 2, 156, 10197, 1, 104, 2}, 16, CBC, sm4.NewCipher},
	{AES128GCM, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 6}, 16, GCM, aes.NewCipher},
	{AES192GCM, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 26}, 24, GCM, aes.NewCipher},
	{AES256GCM, der.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 46}, 32, GCM, aes.NewCipher},
	{SM4GCM, der.ObjectIdentifier{1, 2, 156, 10197, 1, 104, 8}, 16, GCM, sm4.NewCipher},
}

func schemeByOID(oid der.ObjectIdentifier) (scheme, bool) {
	for _, v := range schemes {
		if v.oid.Equal(oid) {
			return v, true
		}
	}
	return scheme{}, false
}

// PBKDF2Opts controls key derivation. Zero fields take the defaults.
type PBKDF2Opts struct {
	SaltLen    int
	Iterations int
	PRF        HashID
}

// PBES2Opts controls password based encryption. The zero value means
// AES-128-CBC keyed by PBKDF2 with HMAC-SHA1, 1000 iterations and an 8 byte
// salt. GCM schemes use a 12 byte nonce and a 12 byte tag by default.
type PBES2Opts struct {
	Cipher      CipherID
	KDF         PBKDF2Opts
	GCMNonceLen int
	GCMTagLen   int
}

var DefaultPBES2Opts = &PBES2Opts{
	Cipher:      AES128CBC,
	KDF:         PBKDF2Opts{SaltLen: 8, Iterations: 1000, PRF: SHA1},
	GCMNonceLen: 12,
	GCMTagLen:   12,
}

func (o *PBES2Opts) withDefaults() (PBES2Opts, error) {
	var v PBES2Opts
	if o != nil {
		v = *o
	}
	if v.KDF.SaltLen == 0 {
		v.KDF.SaltLen = DefaultPBES2Opts.KDF.SaltLen
	}
	if v.KDF.Iterations == 0 {
		v.KDF.Iterations = DefaultPBES2Opts.KDF.Iterations
	}
	if v.GCMNonceLen == 0 {
		v.GCMNonceLen = DefaultPBES2Opts.GCMNonceLen
	}
	if v.GCMTagLen == 0 {
		v.GCMTagLen = DefaultPBES2Opts.GCMTagLen
	}
	switch {
	case v.Cipher < AES128CBC || v.Cipher > SM4GCM:
		return v, errors.Wrapf(ErrUnsupportedAlgorithm, "pbes2: cipher %d", v.Cipher)
	case v.KDF.PRF < SHA1 || v.KDF.PRF > SM3:
		return v, errors.Wrapf(ErrUnsupportedAlgorithm, "pbes2: prf %d", v.KDF.PRF)
	case v.KDF.SaltLen < 0 || v.KDF.Iterations < 0 || v.GCMNonceLen < 0:
		return v, errors.New("pbes2: negative parameter")
	case v.GCMTagLen < 12 || v.GCMTagLen > 16:
		return v, errors.New("pbes2: gcm tag length should be in [12,16]")
	}
	return v, nil
}

// MarshalEncryptedPKCS8PrivateKey encodes key as a PKCS#8
// EncryptedPrivateKeyInfo protected with PBES2. An empty password yields
// the unencrypted form. opts may be nil.
func MarshalEncryptedPKCS8PrivateKey(rand io.Reader, key crypto.PrivateKey, includePublicKey bool, password []byte, opts *PBES2Opts) ([]byte, error) {
	if len(password) == 0 {
		return MarshalPKCS8PrivateKey(key, includePublicKey)
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	plain, err := MarshalPKCS8PrivateKey(key, includePublicKey)
	if err != nil {
		return nil, err
	}

	s, prf := schemes[o.Cipher], prfs[o.KDF.PRF]
	salt := make([]byte, o.KDF.SaltLen)
	if _, err = io.ReadFull(rand, salt); err != nil {
		return nil, errors.Wrap(err, "pbes2: reading salt")
	}
	ivLen := aes.BlockSize
	if s.mode == GCM {
		ivLen = o.GCMNonceLen
	}
	iv := make([]byte, ivLen)
	if _, err = io.ReadFull(rand, iv); err != nil {
		return nil, errors.Wrap(err, "pbes2: reading iv")
	}
	dk := pbkdf2.Key(password, salt, o.KDF.Iterations, s.keySize, prf.hash)

	c := NewCipherWithPool(dk, WithBlock(s.newBlock), WithMode(s.mode), WithIV(iv), WithTagSize(o.GCMTagLen)).Encrypt(plain)
	defer c.Release()
	if c.Error != nil {
		return nil, errors.Wrap(c.Error, "pbes2")
	}

	b := der.NewBuilder(nil)
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1ObjectIdentifier(oidPBES2)
			b.AddASN1Sequence(func(b *der.Builder) {
				b.AddASN1Sequence(func(b *der.Builder) {
					b.AddASN1ObjectIdentifier(oidPBKDF2)
					b.AddASN1Sequence(func(b *der.Builder) {
						b.AddASN1OctetString(salt)
						b.AddASN1Unsigned(uint64(o.KDF.Iterations))
						b.AddASN1Unsigned(uint64(s.keySize))
						b.AddASN1Sequence(func(b *der.Builder) {
							b.AddASN1ObjectIdentifier(prf.oid)
							b.AddASN1NULL()
						})
					})
				})
				b.AddASN1Sequence(func(b *der.Builder) {
					b.AddASN1ObjectIdentifier(s.oid)
					if s.mode == GCM {
						b.AddASN1Sequence(func(b *der.Builder) {
							b.AddASN1OctetString(iv)
							b.AddASN1Unsigned(uint64(o.GCMTagLen))
						})
						return
					}
					b.AddASN1OctetString(iv)
				})
			})
		})
		b.AddASN1OctetString(c.Bytes())
	})
	return b.Bytes()
}

type pbkdf2Params struct {
	salt       []byte
	iterations int
	keySize    int
	prf        func() hash.Hash
}

type encryptionParams struct {
	scheme
	iv      []byte
	tagSize int
}

// ParseEncryptedPKCS8PrivateKey decrypts and decodes a PBES2 protected
// EncryptedPrivateKeyInfo. A bad password surfaces as ErrIncorrectPassword.
func ParseEncryptedPKCS8PrivateKey(in []byte, password []byte) (crypto.PrivateKey, error) {
	input := der.Parser(in)
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
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
	params, ok := alg.ReadASN1Sequence()
	if !ok || !alg.Empty() {
		return nil, ErrInvalidPKCS8
	}
	encrypted, ok := inner.ReadASN1OctetString()
	if !ok || !inner.Empty() {
		return nil, ErrInvalidPKCS8
	}
	if !algOID.Equal(oidPBES2) {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pkcs8: only PBES2 is supported, got <%s>", algOID)
	}

	kdf, ok := params.ReadASN1Sequence()
	if !ok {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: key derivation func")
	}
	enc, ok := params.ReadASN1Sequence()
	if !ok || !params.Empty() {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: encryption scheme")
	}
	kp, err := parsePBKDF2Params(kdf)
	if err != nil {
		return nil, err
	}
	ep, err := parseEncryptionScheme(enc)
	if err != nil {
		return nil, err
	}
	if kp.keySize != 0 && kp.keySize != ep.keySize {
		return nil, errors.Wrapf(ErrInvalidPKCS8, "pbes2: key length %d", kp.keySize)
	}

	dk := pbkdf2.Key(password, kp.salt, kp.iterations, ep.keySize, kp.prf)
	c := NewCipherWithPool(dk, WithBlock(ep.newBlock), WithMode(ep.mode), WithIV(ep.iv), WithTagSize(ep.tagSize)).Decrypt(encrypted)
	defer c.Release()
	switch c.Error {
	case nil:
	case errPadding, errAuth:
		return nil, ErrIncorrectPassword
	default:
		return nil, errors.Wrap(c.Error, "pbes2")
	}
	key, err := ParsePKCS8PrivateKey(c.Bytes())
	if err != nil {
		// CBC padding can come out valid by chance under a wrong key.
		return nil, errors.Wrap(ErrIncorrectPassword, err.Error())
	}
	return key, nil
}

// ParsePKCS8PrivateKeyWithPassword decodes an encrypted PKCS#8 key, or the
// unencrypted form when password is empty.
func ParsePKCS8PrivateKeyWithPassword(in []byte, password []byte) (crypto.PrivateKey, error) {
	if len(password) == 0 {
		return ParsePKCS8PrivateKey(in)
	}
	return ParseEncryptedPKCS8PrivateKey(in, password)
}

func parsePBKDF2Params(kdf der.Parser) (*pbkdf2Params, error) {
	oid, ok := kdf.ReadASN1ObjectIdentifier()
	if !ok {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: key derivation func")
	}
	if !oid.Equal(oidPBKDF2) {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pbes2: kdf <%s>", oid)
	}
	params, ok := kdf.ReadASN1Sequence()
	if !ok || !kdf.Empty() {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: params")
	}
	var p pbkdf2Params
	salt, ok := params.ReadASN1OctetString()
	if !ok {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: salt")
	}
	iter, ok := params.ReadASN1Unsigned()
	if !ok || iter == 0 || iter > 1<<24 {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: iteration count")
	}
	p.salt, p.iterations = salt, int(iter)
	if params.PeekASN1Tag(der.INTEGER) {
		n, ok := params.ReadASN1Unsigned()
		if !ok || n > 64 {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: key length")
		}
		p.keySize = int(n)
	}
	p.prf = prfs[SHA1].hash
	if params.PeekASN1Tag(der.SEQUENCE) {
		prf, _ := params.ReadASN1Sequence()
		prfOID, ok := prf.ReadASN1ObjectIdentifier()
		if !ok || !(prf.Empty() || prf.SkipASN1NULL() && prf.Empty()) {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: prf")
		}
		p.prf = nil
		for _, v := range prfs {
			if v.oid.Equal(prfOID) {
				p.prf = v.hash
			}
		}
		if p.prf == nil {
			return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pbkdf2: prf <%s>", prfOID)
		}
	}
	if !params.Empty() {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbkdf2: params")
	}
	return &p, nil
}

func parseEncryptionScheme(enc der.Parser) (*encryptionParams, error) {
	oid, ok := enc.ReadASN1ObjectIdentifier()
	if !ok {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: encryption scheme")
	}
	s, ok := schemeByOID(oid)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "pbes2: encryption scheme <%s>", oid)
	}
	p := &encryptionParams{scheme: s}
	switch s.mode {
	case GCM:
		params, ok := enc.ReadASN1Sequence()
		if !ok {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: gcm parameters")
		}
		nonce, ok := params.ReadASN1OctetString()
		if !ok || len(nonce) == 0 {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: gcm nonce")
		}
		p.iv, p.tagSize = nonce, 12
		if params.PeekASN1Tag(der.INTEGER) {
			n, ok := params.ReadASN1Unsigned()
			if !ok || n < 12 || n > 16 {
				return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: gcm icv length")
			}
			p.tagSize = int(n)
		}
		if !params.Empty() {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: gcm parameters")
		}
	case CBC:
		iv, ok := enc.ReadASN1OctetString()
		if !ok || len(iv) == 0 {
			return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: cbc mode requires iv")
		}
		p.iv = iv
	}
	if !enc.Empty() {
		return nil, errors.Wrap(ErrInvalidPKCS8, "pbes2: encryption scheme")
	}
	return p, nil
}
