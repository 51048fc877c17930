package gmsm_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/opentoys/smcrypto/crypto/gmsm"
)

func TestKDF(t *testing.T) {
	long := "708993ef1388a0ae4245a19bb6c02554c632633e356ddb989beb804fda96cfd47eba4fa460e7b277bc6b4ce4d07ed493708993ef1388a0ae4245a19bb6c02554c632633e356ddb989beb804fda96cfd47eba4fa460e7b277bc6b4ce4d07ed493"
	cases := []struct {
		z    string
		n    int
		want string
	}{
		{"emmansun", 16, "708993ef1388a0ae4245a19bb6c02554"},
		{"emmansun", 32, "708993ef1388a0ae4245a19bb6c02554c632633e356ddb989beb804fda96cfd4"},
		{"emmansun", 48, "708993ef1388a0ae4245a19bb6c02554c632633e356ddb989beb804fda96cfd47eba4fa460e7b277bc6b4ce4d07ed493"},
		{long, 48, "49cf14649f324a07e0d5bb2a00f7f05d5f5bdd6d14dff028e071327ec031104590eddb18f98b763e18bf382ff7c3875f"},
		{long, 128, "49cf14649f324a07e0d5bb2a00f7f05d5f5bdd6d14dff028e071327ec031104590eddb18f98b763e18bf382ff7c3875f30277f3179baebd795e7853fa643fdf280d8d7b81a2ab7829f615e132ab376d32194cd315908d27090e1180ce442d9be99322523db5bfac40ac5acb03550f5c93e5b01b1d71f2630868909a6a1250edb"},
	}
	for _, c := range cases {
		out, e := gmsm.KDF([]byte(c.z), c.n)
		if e != nil {
			t.Fatal(e)
		}
		if hex.EncodeToString(out) != c.want {
			t.Fatalf("KDF(%q, %d) = %x", c.z, c.n, out)
		}
	}
}

func TestKDFLimits(t *testing.T) {
	z := []byte("emmansun")
	out, e := gmsm.KDF(z, 255*32)
	if e != nil || len(out) != 255*32 {
		t.Fatal(e)
	}
	if _, e = gmsm.KDF(z, 255*32+1); !errors.Is(e, gmsm.ErrKDFTooLong) {
		t.Fatal(e)
	}
	if out, e = gmsm.KDF(z, 0); e != nil || len(out) != 0 {
		t.Fatal(e)
	}
}

func TestKDFBits(t *testing.T) {
	z := []byte("emmansun")
	full, _ := gmsm.KDF(z, 2)
	out, e := gmsm.KDFBits(z, 12)
	if e != nil || len(out) != 2 {
		t.Fatal(e)
	}
	if out[0] != full[0] || out[1] != full[1]&0xf0 {
		t.Fatalf("%x vs %x", out, full)
	}
	out, _ = gmsm.KDFBits(z, 16)
	if !bytes.Equal(out, full) {
		t.Fatal("whole bytes")
	}
	if _, e = gmsm.KDFBits(z, 255*256+1); !errors.Is(e, gmsm.ErrKDFTooLong) {
		t.Fatal(e)
	}
}
