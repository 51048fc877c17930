package der

import (
	"math/big"
)

var bigOne = big.NewInt(1)

// Parser is a read cursor over DER input. Every Read method either consumes
// one complete element and reports true, or reports false. After a failed
// read the cursor position is unspecified; copy the Parser first when a
// speculative read must be undone.
type Parser []byte

func (p *Parser) read(n int) []byte {
	if len(*p) < n || n < 0 {
		return nil
	}
	v := (*p)[:n]
	*p = (*p)[n:]
	return v
}

// Skip advances the cursor by n bytes.
func (p *Parser) Skip(n int) bool {
	return p.read(n) != nil
}

// ReadUint8 reads a single octet.
func (p *Parser) ReadUint8() (uint8, bool) {
	v := p.read(1)
	if v == nil {
		return 0, false
	}
	return v[0], true
}

// ReadBytes reads n bytes. The result shares memory with the input.
func (p *Parser) ReadBytes(n int) ([]byte, bool) {
	v := p.read(n)
	if v == nil {
		return nil, false
	}
	return v, true
}

// Empty reports whether every byte has been consumed.
func (p Parser) Empty() bool {
	return len(p) == 0
}

// Len returns the number of unread bytes.
func (p Parser) Len() int {
	return len(p)
}

// PeekASN1Tag reports whether the next element has the given tag.
func (p Parser) PeekASN1Tag(tag Tag) bool {
	return len(p) > 0 && Tag(p[0]) == tag
}

// ReadAnyASN1 reads the next element and returns its content and tag.
func (p *Parser) ReadAnyASN1() (Parser, Tag, bool) {
	return p.readASN1(true)
}

// ReadAnyASN1Element reads the next element and returns it with its header.
func (p *Parser) ReadAnyASN1Element() (Parser, Tag, bool) {
	return p.readASN1(false)
}

// ReadASN1 reads the content of the next element, which must carry tag.
func (p *Parser) ReadASN1(tag Tag) (Parser, bool) {
	out, t, ok := p.ReadAnyASN1()
	if !ok || t != tag {
		return nil, false
	}
	return out, true
}

// ReadASN1Element reads the next element, header included, which must
// carry tag.
func (p *Parser) ReadASN1Element(tag Tag) (Parser, bool) {
	out, t, ok := p.ReadAnyASN1Element()
	if !ok || t != tag {
		return nil, false
	}
	return out, true
}

// ReadASN1Sequence reads the content of a SEQUENCE.
func (p *Parser) ReadASN1Sequence() (Parser, bool) {
	return p.ReadASN1(SEQUENCE)
}

// SkipASN1 consumes an element with the given tag.
func (p *Parser) SkipASN1(tag Tag) bool {
	_, ok := p.ReadASN1(tag)
	return ok
}

// SkipASN1NULL consumes a NULL.
func (p *Parser) SkipASN1NULL() bool {
	v, ok := p.ReadASN1(NULL)
	return ok && v.Empty()
}

// SkipOptionalASN1 consumes an element with the given tag if one is next.
func (p *Parser) SkipOptionalASN1(tag Tag) bool {
	if !p.PeekASN1Tag(tag) {
		return true
	}
	return p.SkipASN1(tag)
}

// ReadOptionalASN1 reads the content of the next element if it carries
// tag. present reports whether it did; ok is false only when a matching
// element was found but could not be read.
func (p *Parser) ReadOptionalASN1(tag Tag) (out Parser, present bool, ok bool) {
	if !p.PeekASN1Tag(tag) {
		return nil, false, true
	}
	out, ok = p.ReadASN1(tag)
	return out, true, ok
}

// ReadASN1OctetString reads an OCTET STRING.
func (p *Parser) ReadASN1OctetString() ([]byte, bool) {
	v, ok := p.ReadASN1(OCTET_STRING)
	return v, ok
}

// ReadASN1Boolean reads a BOOLEAN. Only 0x00 and 0xff are accepted.
func (p *Parser) ReadASN1Boolean() (bool, bool) {
	v, ok := p.ReadASN1(BOOLEAN)
	if !ok || len(v) != 1 {
		return false, false
	}
	switch v[0] {
	case 0:
		return false, true
	case 0xff:
		return true, true
	}
	return false, false
}

func checkInteger(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	if len(v) == 1 {
		return true
	}
	// X.690 8.3.2: the first nine bits must not all be equal.
	if v[0] == 0 && v[1]&0x80 == 0 || v[0] == 0xff && v[1]&0x80 == 0x80 {
		return false
	}
	return true
}

// ReadASN1IntBytes reads a non-negative INTEGER as big-endian bytes with
// the sign octet removed. Zero is returned as a single zero byte.
func (p *Parser) ReadASN1IntBytes() ([]byte, bool) {
	v, ok := p.ReadASN1(INTEGER)
	if !ok || !checkInteger(v) || v[0]&0x80 != 0 {
		return nil, false
	}
	if len(v) > 1 && v[0] == 0 {
		v = v[1:]
	}
	return v, true
}

// ReadASN1BigInt reads an INTEGER of any size and sign.
func (p *Parser) ReadASN1BigInt() (*big.Int, bool) {
	v, ok := p.ReadASN1(INTEGER)
	if !ok || !checkInteger(v) {
		return nil, false
	}
	out := new(big.Int)
	if v[0]&0x80 != 0 {
		neg := make([]byte, len(v))
		for i, b := range v {
			neg[i] = ^b
		}
		out.SetBytes(neg)
		out.Add(out, bigOne)
		out.Neg(out)
		return out, true
	}
	return out.SetBytes(v), true
}

// ReadASN1Signed reads an INTEGER that fits in an int64.
func (p *Parser) ReadASN1Signed() (int64, bool) {
	v, ok := p.ReadASN1(INTEGER)
	if !ok || !checkInteger(v) || len(v) > 8 {
		return 0, false
	}
	var out int64
	for _, b := range v {
		out = out<<8 | int64(b)
	}
	shift := 64 - uint(len(v))*8
	return out << shift >> shift, true
}

// ReadASN1Unsigned reads a non-negative INTEGER that fits in a uint64.
func (p *Parser) ReadASN1Unsigned() (uint64, bool) {
	v, ok := p.ReadASN1(INTEGER)
	if !ok || !checkInteger(v) || v[0]&0x80 != 0 {
		return 0, false
	}
	if len(v) > 9 || len(v) == 9 && v[0] != 0 {
		return 0, false
	}
	var out uint64
	for _, b := range v {
		out = out<<8 | uint64(b)
	}
	return out, true
}

// ReadASN1BitString reads a BIT STRING.
func (p *Parser) ReadASN1BitString() (BitString, bool) {
	v, ok := p.ReadASN1(BIT_STRING)
	if !ok || len(v) == 0 {
		return BitString{}, false
	}
	padding := v[0]
	data := v[1:]
	if padding > 7 ||
		len(data) == 0 && padding != 0 ||
		len(data) > 0 && data[len(data)-1]&(1<<padding-1) != 0 {
		return BitString{}, false
	}
	return BitString{Bytes: data, BitLength: len(data)*8 - int(padding)}, true
}

func (p *Parser) readBase128Int() (int, bool) {
	ret := 0
	for i := 0; len(*p) > 0; i++ {
		if i == 5 {
			return 0, false
		}
		// Keep the result within 31 bits on every platform.
		if ret >= 1<<(31-7) {
			return 0, false
		}
		ret <<= 7
		b := p.read(1)[0]
		// X.690 8.19.2: no leading 0x80 octet.
		if i == 0 && b == 0x80 {
			return 0, false
		}
		ret |= int(b & 0x7f)
		if b&0x80 == 0 {
			return ret, true
		}
	}
	return 0, false
}

// ReadASN1ObjectIdentifier reads an OBJECT IDENTIFIER.
func (p *Parser) ReadASN1ObjectIdentifier() (ObjectIdentifier, bool) {
	v, ok := p.ReadASN1(OBJECT_IDENTIFIER)
	if !ok || len(v) == 0 {
		return nil, false
	}
	first, ok := v.readBase128Int()
	if !ok {
		return nil, false
	}
	oid := make(ObjectIdentifier, 2, len(v)+1)
	if first < 80 {
		oid[0], oid[1] = first/40, first%40
	} else {
		oid[0], oid[1] = 2, first-80
	}
	for !v.Empty() {
		arc, ok := v.readBase128Int()
		if !ok {
			return nil, false
		}
		oid = append(oid, arc)
	}
	return oid, true
}

// ReadOptionalASN1OctetString reads an OCTET STRING wrapped in tag, if present.
func (p *Parser) ReadOptionalASN1OctetString(tag Tag) (Optional[[]byte], bool) {
	child, present, ok := p.ReadOptionalASN1(tag)
	if !ok || !present {
		return Optional[[]byte]{Present: present}, ok
	}
	v, ok := child.ReadASN1OctetString()
	if !ok || !child.Empty() {
		return Optional[[]byte]{Present: true}, false
	}
	return Optional[[]byte]{Value: v, Present: true}, true
}

// ReadOptionalASN1BitString reads a BIT STRING wrapped in tag, if present.
func (p *Parser) ReadOptionalASN1BitString(tag Tag) (Optional[BitString], bool) {
	child, present, ok := p.ReadOptionalASN1(tag)
	if !ok || !present {
		return Optional[BitString]{Present: present}, ok
	}
	v, ok := child.ReadASN1BitString()
	if !ok || !child.Empty() {
		return Optional[BitString]{Present: true}, false
	}
	return Optional[BitString]{Value: v, Present: true}, true
}

// ReadOptionalASN1ObjectIdentifier reads an OBJECT IDENTIFIER wrapped in
// tag, if present.
func (p *Parser) ReadOptionalASN1ObjectIdentifier(tag Tag) (Optional[ObjectIdentifier], bool) {
	child, present, ok := p.ReadOptionalASN1(tag)
	if !ok || !present {
		return Optional[ObjectIdentifier]{Present: present}, ok
	}
	v, ok := child.ReadASN1ObjectIdentifier()
	if !ok || !child.Empty() {
		return Optional[ObjectIdentifier]{Present: true}, false
	}
	return Optional[ObjectIdentifier]{Value: v, Present: true}, true
}

// ReadOptionalASN1BigInt reads an INTEGER wrapped in tag, if present.
func (p *Parser) ReadOptionalASN1BigInt(tag Tag) (Optional[*big.Int], bool) {
	child, present, ok := p.ReadOptionalASN1(tag)
	if !ok || !present {
		return Optional[*big.Int]{Present: present}, ok
	}
	v, ok := child.ReadASN1BigInt()
	if !ok || !child.Empty() {
		return Optional[*big.Int]{Present: true}, false
	}
	return Optional[*big.Int]{Value: v, Present: true}, true
}

// ReadOptionalASN1Boolean reads a BOOLEAN wrapped in tag, or returns
// defaultValue when the field is absent.
func (p *Parser) ReadOptionalASN1Boolean(tag Tag, defaultValue bool) (bool, bool) {
	child, present, ok := p.ReadOptionalASN1(tag)
	if !ok {
		return false, false
	}
	if !present {
		return defaultValue, true
	}
	v, ok := child.ReadASN1Boolean()
	return v, ok && child.Empty()
}

// readASN1 validates one DER header and splits the element off p.
func (p *Parser) readASN1(skipHeader bool) (Parser, Tag, bool) {
	if len(*p) < 2 {
		return nil, 0, false
	}
	tag, lenByte := (*p)[0], (*p)[1]

	// X.690 8.1.2: tag number 31 announces the multi-octet form.
	if tag&0x1f == 0x1f {
		return nil, 0, false
	}

	var length, headerLen uint32
	if lenByte&0x80 == 0 {
		length = uint32(lenByte) + 2
		headerLen = 2
	} else {
		lenLen := uint32(lenByte & 0x7f)
		if lenLen == 0 || lenLen > 4 || uint32(len(*p)) < 2+lenLen {
			return nil, 0, false
		}
		var len32 uint32
		for _, b := range (*p)[2 : 2+lenLen] {
			len32 = len32<<8 | uint32(b)
		}
		// X.690 10.1: minimal length octets.
		if len32 < 128 {
			return nil, 0, false
		}
		if len32>>((lenLen-1)*8) == 0 {
			return nil, 0, false
		}
		headerLen = 2 + lenLen
		if headerLen+len32 < len32 {
			return nil, 0, false
		}
		length = headerLen + len32
	}

	if int(length) < 0 {
		return nil, 0, false
	}
	v, ok := p.ReadBytes(int(length))
	if !ok {
		return nil, 0, false
	}
	out := Parser(v)
	if skipHeader {
		out = out[headerLen:]
	}
	return out, Tag(tag), true
}
