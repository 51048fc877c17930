package pkcs

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/pkg/errors"
)

var cipherpool = &sync.Pool{
	New: func() interface{} {
		return new(Cipher)
	},
}

var (
	errPadding  = errors.New("pkcs: invalid padding")
	errAuth     = errors.New("pkcs: message authentication failed")
	errBlocks   = errors.New("pkcs: invalid src, the src is not full blocks")
	errIVLength = errors.New("pkcs: invalid iv length")
)

// ========
//
// ========

type Mode uint8

const (
	CBC Mode = iota
	GCM
)

type opt struct {
	iv       []byte
	mode     Mode
	tagSize  int
	newBlock func([]byte) (cipher.Block, error)
}

type Option func(*opt)

// WithIV sets the CBC iv or the GCM nonce.
func WithIV(iv []byte) Option {
	return func(o *opt) {
		o.iv = iv
	}
}

func WithMode(mode Mode) Option {
	return func(o *opt) {
		o.mode = mode
	}
}

// WithTagSize sets the GCM tag length in bytes, 12 to 16.
func WithTagSize(n int) Option {
	return func(o *opt) {
		o.tagSize = n
	}
}

// WithBlock selects the block cipher, AES when unset.
func WithBlock(fn func([]byte) (cipher.Block, error)) Option {
	return func(o *opt) {
		o.newBlock = fn
	}
}

type Cipher struct {
	key    []byte
	option *opt
	dst    []byte
	Error  error
}

// NewCipher returns a CBC/Pkcs7 cipher over AES unless options say otherwise.
//
//	NewCipher(key, WithIV(iv)).Encrypt(msg).Bytes()
//	NewCipher(key, WithBlock(sm4.NewCipher), WithMode(GCM), WithIV(nonce)).Decrypt(msg).Error
func NewCipher(key []byte, opts ...Option) *Cipher {
	var c Cipher
	c.reset(key, opts)
	return &c
}

// NewCipherWithPool is NewCipher backed by a shared pool. Call Release
// when the result has been copied out.
func NewCipherWithPool(key []byte, opts ...Option) *Cipher {
	var c = cipherpool.Get().(*Cipher)
	c.reset(key, opts)
	return c
}

func (s *Cipher) reset(key []byte, opts []Option) {
	s.key = key
	s.option = &opt{tagSize: 16, newBlock: aes.NewCipher}
	for i := range opts {
		opts[i](s.option)
	}
	s.dst = s.dst[:0]
	s.Error = nil
}

// Release wipes the output and returns s to the pool. Slices obtained from
// Bytes are zeroed too.
func (s *Cipher) Release() {
	s.key = nil
	clear(s.dst[:cap(s.dst)])
	s.dst = s.dst[:0]
	s.Error = nil
	cipherpool.Put(s)
}

func (s *Cipher) Bytes() []byte {
	return s.dst
}

func (s *Cipher) pkcs7Padding(src []byte, blockSize int) []byte {
	paddingSize := blockSize - len(src)%blockSize
	paddingText := bytes.Repeat([]byte{byte(paddingSize)}, paddingSize)
	return append(src[:len(src):len(src)], paddingText...)
}

// pkcs7UnPadding rejects anything but a well formed padding block.
func (s *Cipher) pkcs7UnPadding(src []byte, blockSize int) ([]byte, error) {
	if len(src) == 0 {
		return nil, errPadding
	}
	n := int(src[len(src)-1])
	if n == 0 || n > blockSize || n > len(src) {
		return nil, errPadding
	}
	for _, v := range src[len(src)-n:] {
		if int(v) != n {
			return nil, errPadding
		}
	}
	return src[:len(src)-n], nil
}

func (s *Cipher) newGCM(block cipher.Block) (cipher.AEAD, error) {
	switch {
	case len(s.option.iv) == 0:
		return nil, errIVLength
	case len(s.option.iv) == 12:
		return cipher.NewGCMWithTagSize(block, s.option.tagSize)
	case s.option.tagSize == 16:
		return cipher.NewGCMWithNonceSize(block, len(s.option.iv))
	}
	return nil, errors.New("pkcs: gcm with a non-standard nonce needs a 16 byte tag")
}

// Encrypt encrypts with the configured mode. CBC pads with Pkcs7.
func (s *Cipher) Encrypt(src []byte) *Cipher {
	block, e := s.option.newBlock(s.key)
	if e != nil {
		s.Error = e
		return s
	}

	switch s.option.mode {
	case GCM:
		aead, e := s.newGCM(block)
		if e != nil {
			s.Error = e
			return s
		}
		s.dst = aead.Seal(s.dst[:0], s.option.iv, src, nil)
	case CBC:
		if len(s.option.iv) != block.BlockSize() {
			s.Error = errIVLength
			return s
		}
		src = s.pkcs7Padding(src, block.BlockSize())
		s.dst = append(s.dst[:0], make([]byte, len(src))...)
		cipher.NewCBCEncrypter(block, s.option.iv).CryptBlocks(s.dst, src)
	}
	return s
}

// Decrypt decrypts with the configured mode. A CBC padding error and a GCM
// tag mismatch are both reported through Error.
func (s *Cipher) Decrypt(src []byte) *Cipher {
	block, e := s.option.newBlock(s.key)
	if e != nil {
		s.Error = e
		return s
	}

	switch s.option.mode {
	case GCM:
		aead, e := s.newGCM(block)
		if e != nil {
			s.Error = e
			return s
		}
		if s.dst, e = aead.Open(s.dst[:0], s.option.iv, src, nil); e != nil {
			s.Error = errAuth
		}
	case CBC:
		size := block.BlockSize()
		if len(s.option.iv) != size {
			s.Error = errIVLength
			return s
		}
		if len(src) == 0 || len(src)%size != 0 {
			s.Error = errBlocks
			return s
		}
		buf := make([]byte, len(src))
		cipher.NewCBCDecrypter(block, s.option.iv).CryptBlocks(buf, src)
		s.dst, s.Error = s.pkcs7UnPadding(buf, size)
	}
	return s
}
