package gmsm

import (
	"crypto/rand"
	"io"
	"log/slog"
)

type sm2 struct {
	priv       *PrivateKey
	signMode   SignatureMode
	cipherMode CiphertextMode
	uid        []byte
	random     io.Reader
	logger     *slog.Logger
}

type Sm2Option func(*sm2)

func WithSM2SignMode(mode SignatureMode) Sm2Option {
	return func(s *sm2) {
		s.signMode = mode
	}
}

func WithSM2CipherMode(mode CiphertextMode) Sm2Option {
	return func(s *sm2) {
		s.cipherMode = mode
	}
}

func WithSM2UID(uid []byte) Sm2Option {
	return func(s *sm2) {
		s.uid = uid
	}
}

func WithSM2Random(r io.Reader) Sm2Option {
	return func(s *sm2) {
		s.random = r
	}
}

func WithSM2Logger(l *slog.Logger) Sm2Option {
	return func(s *sm2) {
		s.logger = l
	}
}

// GenerateSM2Key returns a fresh key pair as 32 byte d and 04‖x‖y.
func GenerateSM2Key() (priv []byte, pub []byte, e error) {
	key, e := GenerateKey(rand.Reader)
	if e != nil {
		return
	}
	priv = key.Bytes()
	pub = MarshalPublicKey(&key.PublicKey)
	return
}

func NewSM2(priv *PrivateKey, opts ...Sm2Option) *sm2 {
	s := &sm2{priv: priv, random: rand.Reader, logger: log()}
	for _, v := range opts {
		v(s)
	}
	return s
}

func (s *sm2) Encrypt(buf []byte) (dst []byte, e error) {
	dst, e = Encrypt(s.random, &s.priv.PublicKey, buf, s.cipherMode)
	if e != nil {
		s.logger.Debug("sm2 encrypt", "err", e)
	}
	return
}

func (s *sm2) Decrypt(buf []byte) (dst []byte, e error) {
	dst, e = Decrypt(s.priv, buf)
	if e != nil {
		s.logger.Debug("sm2 decrypt", "err", e)
	}
	return
}

func (s *sm2) Verify(buf, signed []byte) bool {
	return Verify(&s.priv.PublicKey, buf, s.uid, signed, s.signMode)
}

func (s *sm2) Signature(buf []byte) (sig []byte, e error) {
	sig, e = Sign(s.random, s.priv, buf, s.uid, s.signMode)
	if e != nil {
		s.logger.Debug("sm2 sign", "err", e)
	}
	return
}
