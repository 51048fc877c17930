package gmsm

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
)

var (
	// w = ceil(log2(n)/2) - 1 = 127
	avfW        = (sm2N.BitLen()+1)/2 - 1
	avfW2       = new(big.Int).Lsh(one, uint(avfW))
	avfW2Minus1 = new(big.Int).Sub(avfW2, one)
)

// avf is the associative value function x̄ = 2^w + (x & (2^w - 1)).
func avf(x *big.Int) *big.Int {
	t := new(big.Int).And(avfW2Minus1, x)
	return t.Add(avfW2, t)
}

// ImplicitSig returns t = (d + x̄·r) mod n where d is the static key, r the
// ephemeral key and x̄ = avf of the ephemeral public x.
func ImplicitSig(static, ephemeral *PrivateKey) (*big.Int, error) {
	if static == nil || ephemeral == nil || !isSM2Curve(static.Curve) || !isSM2Curve(ephemeral.Curve) {
		return nil, ErrUnsupportedCurve
	}
	t := avf(ephemeral.X)
	t.Mul(t, ephemeral.D)
	t.Add(t, static.D)
	return t.Mod(t, sm2N), nil
}

// SharedSecretKey returns V = [t](P + [x̄]R) for the peer's static key P
// and ephemeral key R.
func SharedSecretKey(peerStatic, peerEphemeral *ecdsa.PublicKey, t *big.Int) (*ecdsa.PublicKey, error) {
	if err := checkPublicKey(peerStatic); err != nil {
		return nil, err
	}
	if err := checkPublicKey(peerEphemeral); err != nil {
		return nil, fmt.Errorf("%w: invalid ephemeral public key", ErrKeyExchange)
	}
	x, y := sm2Curve.ScalarMult(peerEphemeral.X, peerEphemeral.Y, toBytes(avf(peerEphemeral.X)))
	x, y = addPoints(peerStatic.X, peerStatic.Y, x, y)
	x, y = sm2Curve.ScalarMult(x, y, toBytes(new(big.Int).Mod(t, sm2N)))
	if x.Sign() == 0 && y.Sign() == 0 {
		return nil, fmt.Errorf("%w: V is the point at infinity", ErrKeyExchange)
	}
	return &ecdsa.PublicKey{Curve: sm2Curve, X: x, Y: y}, nil
}

// AgreedKey returns KDF(xV ‖ yV ‖ ZA ‖ ZB, keyLen) with ZA the initiator's
// and ZB the responder's identity hash.
func AgreedKey(v *ecdsa.PublicKey, zInitiator, zResponder []byte, keyLen int) ([]byte, error) {
	z := make([]byte, 0, 2*byteLen+len(zInitiator)+len(zResponder))
	z = append(z, toBytes(v.X)...)
	z = append(z, toBytes(v.Y)...)
	z = append(z, zInitiator...)
	z = append(z, zResponder...)
	return KDF(z, keyLen)
}

// KeyExchange holds one side of a key exchange.
//
// Initiator: NewKeyExchange -> InitKeyExchange -> ConfirmResponder.
// Responder: NewKeyExchange -> RespondKeyExchange -> ConfirmInitiator.
type KeyExchange struct {
	genSignature bool             // produce the optional confirmation values
	keyLength    int              // agreed key length in bytes
	privateKey   *PrivateKey      // static key
	z            []byte           // own ZA
	peerPub      *ecdsa.PublicKey // peer static key
	peerZ        []byte           // peer ZA
	ephemeral    *PrivateKey      // own ephemeral key r, R
	peerSecret   *ecdsa.PublicKey // peer ephemeral key
	v            *ecdsa.PublicKey // shared point U or V
}

// NewKeyExchange prepares one side of an exchange. peerPub may be nil and
// supplied later through SetPeerParameters. Empty uids mean the default.
func NewKeyExchange(priv *PrivateKey, peerPub *ecdsa.PublicKey, uid, peerUID []byte, keyLen int, genSignature bool) (ke *KeyExchange, err error) {
	if priv == nil || !isSM2Curve(priv.Curve) {
		return nil, ErrUnsupportedCurve
	}
	if keyLen <= 0 || keyLen > MaxPlaintextSize {
		return nil, ErrKDFTooLong
	}
	ke = &KeyExchange{genSignature: genSignature, keyLength: keyLen, privateKey: priv}
	if len(uid) == 0 {
		uid = defaultUID
	}
	if ke.z, err = CalculateZA(&priv.PublicKey, uid); err != nil {
		return nil, err
	}
	if err = ke.SetPeerParameters(peerPub, peerUID); err != nil {
		return nil, err
	}
	return ke, nil
}

// SetPeerParameters sets the peer static key once, for flows where it is
// learned after NewKeyExchange.
func (ke *KeyExchange) SetPeerParameters(peerPub *ecdsa.PublicKey, peerUID []byte) (err error) {
	if peerPub == nil {
		return nil
	}
	if ke.peerPub != nil {
		return fmt.Errorf("%w: peer public key already set", ErrKeyExchange)
	}
	if len(peerUID) == 0 {
		peerUID = defaultUID
	}
	if ke.peerZ, err = CalculateZA(peerPub, peerUID); err != nil {
		return err
	}
	ke.peerPub = peerPub
	return nil
}

// Destroy zeroes the ephemeral key and the shared point.
func (ke *KeyExchange) Destroy() {
	if ke.ephemeral != nil {
		ke.ephemeral.D.SetInt64(0)
	}
	if ke.v != nil {
		ke.v.X.SetInt64(0)
		ke.v.Y.SetInt64(0)
	}
}

// InitKeyExchange is the initiator's A1-A3 and returns R_A for the responder.
func (ke *KeyExchange) InitKeyExchange(rand io.Reader) (*ecdsa.PublicKey, error) {
	r, err := randomScalar(rand, false)
	if err != nil {
		return nil, err
	}
	ke.ephemeral = newPrivateKey(r)
	return &ke.ephemeral.PublicKey, nil
}

// RespondKeyExchange is the responder's B1-B8. It returns R_B and, with
// genSignature, the confirmation S_B.
func (ke *KeyExchange) RespondKeyExchange(rand io.Reader, rA *ecdsa.PublicKey) (*ecdsa.PublicKey, []byte, error) {
	if ke.peerPub == nil {
		return nil, nil, fmt.Errorf("%w: no peer public key given", ErrKeyExchange)
	}
	r, err := randomScalar(rand, false)
	if err != nil {
		return nil, nil, err
	}
	ke.ephemeral = newPrivateKey(r)
	if err = ke.mqv(rA); err != nil {
		return nil, nil, err
	}
	if !ke.genSignature {
		return &ke.ephemeral.PublicKey, nil, nil
	}
	return &ke.ephemeral.PublicKey, ke.sign(true, 0x02), nil
}

// ConfirmResponder is the initiator's A4-A10. A non-empty sB is checked.
// It returns the agreed key and, with genSignature, S_A.
func (ke *KeyExchange) ConfirmResponder(rB *ecdsa.PublicKey, sB []byte) ([]byte, []byte, error) {
	if ke.peerPub == nil {
		return nil, nil, fmt.Errorf("%w: no peer public key given", ErrKeyExchange)
	}
	if ke.ephemeral == nil {
		return nil, nil, fmt.Errorf("%w: exchange not initiated", ErrKeyExchange)
	}
	if err := ke.mqv(rB); err != nil {
		return nil, nil, err
	}
	if len(sB) > 0 && subtle.ConstantTimeCompare(ke.sign(false, 0x02), sB) != 1 {
		return nil, nil, fmt.Errorf("%w: invalid responder confirmation", ErrKeyExchange)
	}
	key, err := AgreedKey(ke.v, ke.z, ke.peerZ, ke.keyLength)
	if err != nil {
		return nil, nil, err
	}
	if !ke.genSignature {
		return key, nil, nil
	}
	return key, ke.sign(false, 0x03), nil
}

// ConfirmInitiator is the responder's B10. A non-nil sA is checked.
func (ke *KeyExchange) ConfirmInitiator(sA []byte) ([]byte, error) {
	if ke.v == nil {
		return nil, fmt.Errorf("%w: exchange not responded", ErrKeyExchange)
	}
	if sA != nil && subtle.ConstantTimeCompare(ke.sign(true, 0x03), sA) != 1 {
		return nil, fmt.Errorf("%w: invalid initiator confirmation", ErrKeyExchange)
	}
	return AgreedKey(ke.v, ke.peerZ, ke.z, ke.keyLength)
}

// mqv computes the shared point from the peer's ephemeral key.
func (ke *KeyExchange) mqv(peerSecret *ecdsa.PublicKey) error {
	if checkPublicKey(peerSecret) != nil {
		return fmt.Errorf("%w: invalid peer ephemeral public key", ErrKeyExchange)
	}
	t, err := ImplicitSig(ke.privateKey, ke.ephemeral)
	if err != nil {
		return err
	}
	v, err := SharedSecretKey(ke.peerPub, peerSecret, t)
	if err != nil {
		return err
	}
	ke.peerSecret, ke.v = peerSecret, v
	return nil
}

// sign computes SM3(prefix ‖ yV ‖ SM3(xV ‖ ZA ‖ ZB ‖ x1 ‖ y1 ‖ x2 ‖ y2)),
// where A is the initiator and B the responder.
func (ke *KeyExchange) sign(isResponder bool, prefix byte) []byte {
	zA, zB := ke.z, ke.peerZ
	rA, rB := &ke.ephemeral.PublicKey, ke.peerSecret
	if isResponder {
		zA, zB = zB, zA
		rA, rB = rB, rA
	}
	md := NewSM3()
	md.Write(toBytes(ke.v.X))
	md.Write(zA)
	md.Write(zB)
	md.Write(toBytes(rA.X))
	md.Write(toBytes(rA.Y))
	md.Write(toBytes(rB.X))
	md.Write(toBytes(rB.Y))
	inner := md.Sum(nil)

	md.Reset()
	md.Write([]byte{prefix})
	md.Write(toBytes(ke.v.Y))
	md.Write(inner)
	return md.Sum(nil)
}
