package gmsm_test

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/opentoys/smcrypto/crypto/der"
	"github.com/opentoys/smcrypto/crypto/gmsm"
)

const decryptVector = "04BD31001CE8D39A4A0119FF96D71334CD12D8B75BBC780F5BFC6E1EFAB535E85A1839C075FF8BF761DCBE185C9750816410517001D6A130F6AB97FB23337CCE15EA82BD58D6A5394EB468A769AB48B6A26870CA075377EB06663780C920EA5EE0E22ABCF48E56AE9D29AC770D9DE0D6B7094A874A2F8D26C26E0B1DAAF4FF50A484B88163D04785B04585BB"

func TestDecryptVector(t *testing.T) {
	priv := testKey(t)
	msg, e := gmsm.Decrypt(priv, mustHex(decryptVector))
	if e != nil {
		t.Fatal(e)
	}
	if string(msg) != "send reinforcements, we're going to advance" {
		t.Fatal(string(msg))
	}

	asn1, e := gmsm.ConvertCiphertext(mustHex(decryptVector), gmsm.ModeCipherASN1)
	if e != nil {
		t.Fatal(e)
	}
	fmt.Println(hex.EncodeToString(asn1))
	if msg2, e := gmsm.Decrypt(priv, asn1); e != nil || !bytes.Equal(msg, msg2) {
		t.Fatal("asn1 form", e)
	}
	back, e := gmsm.ConvertCiphertext(asn1, gmsm.ModeC1C3C2)
	if e != nil || !bytes.Equal(back, mustHex(decryptVector)) {
		t.Fatal("convert back", e)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	priv, e := gmsm.GenerateKey(rand.Reader)
	if e != nil {
		t.Fatal(e)
	}
	for _, mode := range []gmsm.CiphertextMode{gmsm.ModeC1C3C2, gmsm.ModeCipherASN1} {
		for _, size := range []int{1, 31, 32, 33, 100, gmsm.MaxPlaintextSize} {
			msg := make([]byte, size)
			rand.Read(msg)
			ct, e := gmsm.Encrypt(rand.Reader, &priv.PublicKey, msg, mode)
			if e != nil {
				t.Fatal(e)
			}
			if mode == gmsm.ModeC1C3C2 && (ct[0] != 4 || len(ct) != 1+64+32+size) {
				t.Fatal("c1c3c2 layout", size)
			}
			if mode == gmsm.ModeCipherASN1 && ct[0] != 0x30 {
				t.Fatal("asn1 layout", size)
			}
			got, e := gmsm.Decrypt(priv, ct)
			if e != nil || !bytes.Equal(got, msg) {
				t.Fatal("round trip", mode, size, e)
			}
		}
	}
}

func TestEncryptLimits(t *testing.T) {
	priv := testKey(t)
	if _, e := gmsm.Encrypt(rand.Reader, &priv.PublicKey, nil, gmsm.ModeC1C3C2); !errors.Is(e, gmsm.ErrEmptyPlaintext) {
		t.Fatal(e)
	}
	big := make([]byte, gmsm.MaxPlaintextSize+1)
	if _, e := gmsm.Encrypt(rand.Reader, &priv.PublicKey, big, gmsm.ModeC1C3C2); !errors.Is(e, gmsm.ErrKDFTooLong) {
		t.Fatal(e)
	}
	if _, e := gmsm.Encrypt(rand.Reader, nil, []byte("x"), gmsm.ModeC1C3C2); e == nil {
		t.Fatal("nil key accepted")
	}
}

func TestDecryptFailures(t *testing.T) {
	priv := testKey(t)
	ct := mustHex(decryptVector)

	// C3 and C2 tampering fail integrity, not parsing
	for _, i := range []int{65, 96, len(ct) - 1} {
		bad := bytes.Clone(ct)
		bad[i] ^= 0x80
		msg, e := gmsm.Decrypt(priv, bad)
		if !errors.Is(e, gmsm.ErrDecryption) || errors.Is(e, gmsm.ErrCorruptCiphertext) || msg != nil {
			t.Fatal("tampered byte", i, e)
		}
	}

	offCurve := bytes.Clone(ct)
	offCurve[64] ^= 1
	for _, bad := range [][]byte{
		nil,
		offCurve,
		ct[:97],
		append([]byte{0x05}, ct[1:]...),
		{0x30, 0x00},
	} {
		msg, e := gmsm.Decrypt(priv, bad)
		if !errors.Is(e, gmsm.ErrCorruptCiphertext) || !errors.Is(e, gmsm.ErrDecryption) || msg != nil {
			t.Fatalf("corrupt %x: %v", bad, e)
		}
	}

	other, _ := gmsm.GenerateKey(rand.Reader)
	if _, e := gmsm.Decrypt(other, ct); !errors.Is(e, gmsm.ErrDecryption) {
		t.Fatal("wrong key", e)
	}
}

func TestDecryptASN1Strict(t *testing.T) {
	priv := testKey(t)
	asn1, _ := gmsm.ConvertCiphertext(mustHex(decryptVector), gmsm.ModeCipherASN1)

	// trailing data after the SEQUENCE
	if _, e := gmsm.Decrypt(priv, append(bytes.Clone(asn1), 0)); !errors.Is(e, gmsm.ErrCorruptCiphertext) {
		t.Fatal(e)
	}

	// C3 of the wrong size
	raw := mustHex(decryptVector)
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1IntBytes(raw[1:33])
		b.AddASN1IntBytes(raw[33:65])
		b.AddASN1OctetString(raw[65:96])
		b.AddASN1OctetString(raw[96:])
	})
	if _, e := gmsm.Decrypt(priv, b.BytesOrPanic()); !errors.Is(e, gmsm.ErrCorruptCiphertext) {
		t.Fatal(e)
	}
}

func TestDecrypterInterface(t *testing.T) {
	priv := testKey(t)
	var dec crypto.Decrypter = priv
	msg, e := dec.Decrypt(rand.Reader, mustHex(decryptVector), nil)
	if e != nil || len(msg) == 0 {
		t.Fatal(e)
	}
}
