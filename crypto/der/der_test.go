package der_test

import (
	"bytes"
	encasn1 "encoding/asn1"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"
	"testing"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/opentoys/smcrypto/crypto/der"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, e := hex.DecodeString(s)
	if e != nil {
		t.Fatal(e)
	}
	return b
}

const basicHex = "303c040301020304030405060206010203040506020700f102030405060304000708090101ff010100050030110206010203040506020700f10203040506"

func TestBuilderBasic(t *testing.T) {
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1OctetString([]byte{1, 2, 3})
		b.AddASN1OctetString([]byte{4, 5, 6})
		b.AddASN1IntBytes([]byte{0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
		b.AddASN1IntBytes([]byte{0x00, 0xf1, 0x02, 0x03, 0x04, 0x05, 0x06})
		b.AddASN1BitString([]byte{7, 8, 9})
		b.AddASN1Boolean(true)
		b.AddASN1Boolean(false)
		b.AddASN1NULL()
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1IntBytes([]byte{0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
			b.AddASN1IntBytes([]byte{0x00, 0xf1, 0x02, 0x03, 0x04, 0x05, 0x06})
		})
	})
	out, e := b.Bytes()
	if e != nil {
		t.Fatal(e)
	}
	fmt.Printf("%x\n", out)
	if hex.EncodeToString(out) != basicHex {
		t.Fatalf("got %x", out)
	}
}

func TestBuilderExplicitTagAndOID(t *testing.T) {
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1ExplicitTag(0, func(b *der.Builder) {
			b.AddASN1OctetString([]byte{1, 2, 3})
		})
		b.AddASN1ExplicitTag(1, func(b *der.Builder) {
			b.AddASN1BitString([]byte{7, 8, 9})
		})
		b.AddASN1ExplicitTag(2, func(b *der.Builder) {
			b.AddASN1ObjectIdentifier(der.MustParseObjectIdentifier("2.5.4.6"))
		})
	})
	if got := hex.EncodeToString(b.BytesOrPanic()); got != "3016a0050403010203a106030400070809a2050603550406" {
		t.Fatal(got)
	}

	b = der.Builder{}
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1ObjectIdentifier(der.MustParseObjectIdentifier("2.5.4.6"))
		b.AddASN1ObjectIdentifier(der.MustParseObjectIdentifier("1.2.840.10045.3.1.7"))
	})
	if got := hex.EncodeToString(b.BytesOrPanic()); got != "300f060355040606082a8648ce3d030107" {
		t.Fatal(got)
	}
}

func TestBuilderLengthBoundaries(t *testing.T) {
	cases := []struct {
		n      int
		header string
	}{
		{0, "0400"},
		{127, "047f"},
		{128, "048180"},
		{255, "0481ff"},
		{256, "04820100"},
		{65535, "0482ffff"},
		{65536, "0483010000"},
	}
	for _, c := range cases {
		var b der.Builder
		content := bytes.Repeat([]byte{0xab}, c.n)
		b.AddASN1OctetString(content)
		out := b.BytesOrPanic()
		h := mustHex(t, c.header)
		if !bytes.HasPrefix(out, h) || len(out) != len(h)+c.n {
			t.Fatalf("length %d: header %x", c.n, out[:len(h)])
		}
		p := der.Parser(out)
		v, ok := p.ReadASN1OctetString()
		if !ok || !p.Empty() || !bytes.Equal(v, content) {
			t.Fatalf("length %d: round trip failed", c.n)
		}
	}
}

func TestBuilderMatchesCryptobyte(t *testing.T) {
	big1 := new(big.Int).Lsh(big.NewInt(1), 255)
	neg := big.NewInt(-129)
	long := bytes.Repeat([]byte{0x5a}, 300)

	var ours der.Builder
	ours.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1BigInt(big1)
		b.AddASN1BigInt(neg)
		b.AddASN1BigInt(new(big.Int))
		b.AddASN1Signed(-129)
		b.AddASN1Signed(math.MinInt64)
		b.AddASN1Unsigned(math.MaxUint64)
		b.AddASN1Unsigned(128)
		b.AddASN1OctetString(long)
		b.AddASN1BitString([]byte{0x80})
		b.AddASN1Boolean(true)
		b.AddASN1NULL()
		b.AddASN1ObjectIdentifier(der.MustParseObjectIdentifier("1.2.156.10197.1.301"))
		b.AddASN1ExplicitTag(3, func(b *der.Builder) {
			b.AddASN1Unsigned(0)
		})
	})

	var theirs cryptobyte.Builder
	theirs.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(big1)
		b.AddASN1BigInt(neg)
		b.AddASN1BigInt(new(big.Int))
		b.AddASN1Int64(-129)
		b.AddASN1Int64(math.MinInt64)
		b.AddASN1Uint64(math.MaxUint64)
		b.AddASN1Uint64(128)
		b.AddASN1OctetString(long)
		b.AddASN1BitString([]byte{0x80})
		b.AddASN1Boolean(true)
		b.AddASN1NULL()
		b.AddASN1ObjectIdentifier(encasn1.ObjectIdentifier{1, 2, 156, 10197, 1, 301})
		b.AddASN1(cbasn1.Tag(3).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1Uint64(0)
		})
	})
	want, e := theirs.Bytes()
	if e != nil {
		t.Fatal(e)
	}
	got, e := ours.Bytes()
	if e != nil {
		t.Fatal(e)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("mismatch\n got %x\nwant %x", got, want)
	}
}

func TestBuilderDeterministic(t *testing.T) {
	build := func() []byte {
		var b der.Builder
		b.AddASN1Sequence(func(b *der.Builder) {
			b.AddASN1Unsigned(1000)
			b.AddASN1OctetString(bytes.Repeat([]byte{1}, 200))
		})
		return b.BytesOrPanic()
	}
	if !bytes.Equal(build(), build()) {
		t.Fatal("encoding is not deterministic")
	}
}

func expectPanic(t *testing.T, contains string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if !strings.Contains(fmt.Sprint(r), contains) {
			t.Fatalf("unexpected panic %v", r)
		}
	}()
	f()
}

func TestBuilderContractViolations(t *testing.T) {
	expectPanic(t, "child is pending", func() {
		var b der.Builder
		b.AddASN1Sequence(func(child *der.Builder) {
			b.AddUint8(1)
		})
	})
	expectPanic(t, "high-tag", func() {
		var b der.Builder
		b.AddASN1(der.Tag(0x1f), func(*der.Builder) {})
	})
	expectPanic(t, "invalid OID", func() {
		var b der.Builder
		b.AddASN1ObjectIdentifier(der.ObjectIdentifier{1, 40})
	})
	expectPanic(t, "invalid OID", func() {
		var b der.Builder
		b.AddASN1ObjectIdentifier(der.ObjectIdentifier{3, 1})
	})
}

func TestBuilderBuildError(t *testing.T) {
	want := fmt.Errorf("boom")
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1Sequence(func(b *der.Builder) {
			panic(der.BuildError{Err: want})
		})
	})
	if _, e := b.Bytes(); e != want {
		t.Fatalf("got %v", e)
	}
	// The builder stays usable for the sticky error only.
	b.AddASN1NULL()
	if _, e := b.Bytes(); e != want {
		t.Fatalf("got %v", e)
	}
}

func TestParseObjectIdentifier(t *testing.T) {
	for _, s := range []string{"", "1", "1.", "a.b", "3.1", "1.40", "0.39.-1", "1..2"} {
		if _, e := der.ParseObjectIdentifier(s); e == nil {
			t.Fatalf("%q accepted", s)
		}
	}
	oid, e := der.ParseObjectIdentifier("2.999.3")
	if e != nil {
		t.Fatal(e)
	}
	if oid.String() != "2.999.3" || !oid.Equal(der.ObjectIdentifier{2, 999, 3}) {
		t.Fatal(oid)
	}
}

func TestParserBasic(t *testing.T) {
	input := der.Parser(mustHex(t, basicHex))
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		t.Fatal("sequence")
	}
	c1, ok1 := inner.ReadASN1OctetString()
	c2, ok2 := inner.ReadASN1OctetString()
	c3, ok3 := inner.ReadASN1IntBytes()
	c4, ok4 := inner.ReadASN1IntBytes()
	c5, ok5 := inner.ReadASN1BitString()
	c6, ok6 := inner.ReadASN1Boolean()
	c7, ok7 := inner.ReadASN1Boolean()
	ok8 := inner.SkipASN1NULL()
	nested, ok9 := inner.ReadASN1Sequence()
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9) || !inner.Empty() {
		t.Fatal("inner reads")
	}
	if !bytes.Equal(c1, []byte{1, 2, 3}) || !bytes.Equal(c2, []byte{4, 5, 6}) {
		t.Fatal("octet strings")
	}
	if !bytes.Equal(c3, []byte{1, 2, 3, 4, 5, 6}) || !bytes.Equal(c4, []byte{0xf1, 2, 3, 4, 5, 6}) {
		t.Fatalf("integers %x %x", c3, c4)
	}
	if !bytes.Equal(c5.Bytes, []byte{7, 8, 9}) || c5.BitLength != 24 {
		t.Fatal("bit string")
	}
	if !c6 || c7 {
		t.Fatal("booleans")
	}
	c8, ok := nested.ReadASN1IntBytes()
	c9, ok10 := nested.ReadASN1IntBytes()
	if !ok || !ok10 || !nested.Empty() || !bytes.Equal(c8, c3) || !bytes.Equal(c9, c4) {
		t.Fatal("nested sequence")
	}
}

func TestParserOID(t *testing.T) {
	input := der.Parser(mustHex(t, "300f060355040606082a8648ce3d030107"))
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		t.Fatal("sequence")
	}
	c1, ok1 := inner.ReadASN1ObjectIdentifier()
	c2, ok2 := inner.ReadASN1ObjectIdentifier()
	if !ok1 || !ok2 || !inner.Empty() {
		t.Fatal("oids")
	}
	if c1.String() != "2.5.4.6" || c2.String() != "1.2.840.10045.3.1.7" {
		t.Fatal(c1, c2)
	}

	// leading 0x80 octet
	p := der.Parser{6, 3, 85, 0x80, 0x02}
	if _, ok := p.ReadASN1ObjectIdentifier(); ok {
		t.Fatal("leading 0x80 accepted")
	}
	// 2**31
	p = der.Parser{6, 7, 0x55, 0x02, 0x88, 0x80, 0x80, 0x80, 0x00}
	if _, ok := p.ReadASN1ObjectIdentifier(); ok {
		t.Fatal("2**31 accepted")
	}
	// 2**31-1
	p = der.Parser{6, 7, 0x55, 0x02, 0x87, 0xff, 0xff, 0xff, 0x7f}
	oid, ok := p.ReadASN1ObjectIdentifier()
	if !ok || oid.String() != "2.5.2.2147483647" {
		t.Fatal(oid)
	}
	// six octet sub-identifier
	p = der.Parser{6, 7, 0x55, 0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, ok := p.ReadASN1ObjectIdentifier(); ok {
		t.Fatal("over-long arc accepted")
	}
	// truncated arc
	p = der.Parser{6, 2, 0x55, 0x81}
	if _, ok := p.ReadASN1ObjectIdentifier(); ok {
		t.Fatal("truncated arc accepted")
	}
}

func TestParserExplicitTags(t *testing.T) {
	input := der.Parser(mustHex(t, "3016a0050403010203a106030400070809a2050603550406"))
	inner, ok := input.ReadASN1Sequence()
	if !ok || !input.Empty() {
		t.Fatal("sequence")
	}
	c1, ok1 := inner.ReadOptionalASN1OctetString(der.ExplicitTag(0))
	c2, ok2 := inner.ReadOptionalASN1BitString(der.ExplicitTag(1))
	c3, ok3 := inner.ReadOptionalASN1ObjectIdentifier(der.ExplicitTag(2))
	if !ok1 || !ok2 || !ok3 || !inner.Empty() {
		t.Fatal("optional reads")
	}
	if !c1.Present || !bytes.Equal(c1.Value, []byte{1, 2, 3}) {
		t.Fatal("c1")
	}
	if !c2.Present || !bytes.Equal(c2.Value.Bytes, []byte{7, 8, 9}) {
		t.Fatal("c2")
	}
	if !c3.Present || c3.Value.String() != "2.5.4.6" {
		t.Fatal("c3")
	}
}

func TestParserOptionalPresence(t *testing.T) {
	// empty
	var p der.Parser
	if v, ok := p.ReadOptionalASN1OctetString(der.ExplicitTag(0)); !ok || v.Present {
		t.Fatal("empty input")
	}
	// present but malformed
	p = der.Parser{0xa1, 3, 0x4, 2, 1}
	if v, ok := p.ReadOptionalASN1OctetString(der.ExplicitTag(1)); ok || !v.Present {
		t.Fatal("malformed field")
	}
	// another tag follows
	p = der.Parser{0xa1, 3, 0x4, 1, 1}
	if v, ok := p.ReadOptionalASN1OctetString(der.ExplicitTag(0)); !ok || v.Present || p.Len() != 5 {
		t.Fatal("absent field")
	}
	// present
	if v, ok := p.ReadOptionalASN1OctetString(der.ExplicitTag(1)); !ok || !v.Present || !bytes.Equal(v.Value, []byte{1}) {
		t.Fatal("present field")
	}
	// boolean default
	p = der.Parser{}
	if v, ok := p.ReadOptionalASN1Boolean(der.ExplicitTag(0), true); !ok || !v {
		t.Fatal("boolean default")
	}
	p = der.Parser{0xa0, 5, 0x02, 0x03, 0x01, 0x00, 0x01}
	if v, ok := p.ReadOptionalASN1BigInt(der.ExplicitTag(0)); !ok || !v.Present || v.Value.Int64() != 65537 {
		t.Fatal("optional integer")
	}
}

func TestParserRejectsNonCanonical(t *testing.T) {
	cases := []struct {
		name  string
		input string
		read  func(p *der.Parser) bool
	}{
		{"int leading 00", "0202007f", func(p *der.Parser) bool { _, ok := p.ReadASN1BigInt(); return ok }},
		{"int leading ff", "0202ff80", func(p *der.Parser) bool { _, ok := p.ReadASN1BigInt(); return ok }},
		{"int empty", "0200", func(p *der.Parser) bool { _, ok := p.ReadASN1BigInt(); return ok }},
		{"intbytes negative", "020180", func(p *der.Parser) bool { _, ok := p.ReadASN1IntBytes(); return ok }},
		{"unsigned negative", "0201ff", func(p *der.Parser) bool { _, ok := p.ReadASN1Unsigned(); return ok }},
		{"signed too large", "0209010000000000000000", func(p *der.Parser) bool { _, ok := p.ReadASN1Signed(); return ok }},
		{"bitstring padding set", "03020101", func(p *der.Parser) bool { _, ok := p.ReadASN1BitString(); return ok }},
		{"bitstring padding > 7", "03020800", func(p *der.Parser) bool { _, ok := p.ReadASN1BitString(); return ok }},
		{"bitstring padding no data", "030101", func(p *der.Parser) bool { _, ok := p.ReadASN1BitString(); return ok }},
		{"bitstring empty", "0300", func(p *der.Parser) bool { _, ok := p.ReadASN1BitString(); return ok }},
		{"boolean 01", "010101", func(p *der.Parser) bool { _, ok := p.ReadASN1Boolean(); return ok }},
		{"long form below 128", "04810501020304ff", func(p *der.Parser) bool { _, ok := p.ReadASN1OctetString(); return ok }},
		{"long form leading zero", "0482008001", func(p *der.Parser) bool { _, ok := p.ReadASN1OctetString(); return ok }},
		{"length of length 5", "04850000000080", func(p *der.Parser) bool { _, ok := p.ReadASN1OctetString(); return ok }},
		{"indefinite length", "048000", func(p *der.Parser) bool { _, ok := p.ReadASN1OctetString(); return ok }},
		{"high tag", "1f0100", func(p *der.Parser) bool { _, _, ok := p.ReadAnyASN1(); return ok }},
		{"truncated", "0405010203", func(p *der.Parser) bool { _, ok := p.ReadASN1OctetString(); return ok }},
		{"wrong tag", "0401ff", func(p *der.Parser) bool { _, ok := p.ReadASN1Sequence(); return ok }},
		{"null with content", "050100", func(p *der.Parser) bool { return p.SkipASN1NULL() }},
	}
	for _, c := range cases {
		p := der.Parser(mustHex(t, c.input))
		if c.read(&p) {
			t.Fatalf("%s: accepted %s", c.name, c.input)
		}
	}
}

func TestParserIntegers(t *testing.T) {
	cases := []struct {
		input string
		value int64
	}{
		{"020100", 0},
		{"02017f", 127},
		{"02020080", 128},
		{"020180", -128},
		{"0202ff7f", -129},
		{"02088000000000000000", math.MinInt64},
	}
	for _, c := range cases {
		p := der.Parser(mustHex(t, c.input))
		q := p
		v, ok := p.ReadASN1Signed()
		if !ok || v != c.value {
			t.Fatalf("%s: %d %v", c.input, v, ok)
		}
		b, ok := q.ReadASN1BigInt()
		if !ok || b.Int64() != c.value {
			t.Fatalf("%s: big %v", c.input, b)
		}
	}
	p := der.Parser(mustHex(t, "020900ffffffffffffffff"))
	if v, ok := p.ReadASN1Unsigned(); !ok || v != math.MaxUint64 {
		t.Fatal(v)
	}
}

func TestParserElementKeepsHeader(t *testing.T) {
	p := der.Parser(mustHex(t, "3003020101ff"))
	elem, tag, ok := p.ReadAnyASN1Element()
	if !ok || tag != der.SEQUENCE || hex.EncodeToString(elem) != "3003020101" {
		t.Fatal("element")
	}
	if p.Len() != 1 || !p.PeekASN1Tag(der.Tag(0xff)) {
		t.Fatal("cursor")
	}
}

func TestParserAgainstCryptobyte(t *testing.T) {
	var b der.Builder
	b.AddASN1Sequence(func(b *der.Builder) {
		b.AddASN1ObjectIdentifier(der.MustParseObjectIdentifier("1.2.840.113549.1.5.13"))
		b.AddASN1OctetString(bytes.Repeat([]byte{7}, 1000))
	})
	s := cryptobyte.String(b.BytesOrPanic())
	var inner, oct cryptobyte.String
	var oid encasn1.ObjectIdentifier
	if !s.ReadASN1(&inner, cbasn1.SEQUENCE) || !inner.ReadASN1ObjectIdentifier(&oid) ||
		!inner.ReadASN1(&oct, cbasn1.OCTET_STRING) || !inner.Empty() {
		t.Fatal("cryptobyte could not read our output")
	}
	if oid.String() != "1.2.840.113549.1.5.13" || len(oct) != 1000 {
		t.Fatal(oid, len(oct))
	}
}
