package der

import (
	"errors"
	"fmt"
	"math/big"
)

var errTooLong = errors.New("der: element content exceeds 4 length octets")

// A Builder accumulates a DER byte string.
//
// Nested elements are produced by a BuilderContinuation that writes the
// element content into a fresh child Builder. Once the continuation
// returns, the content length is known and the parent appends the tag, the
// minimal length header and the content. The parent must not be written to
// while one of its continuations is running.
//
// The zero value is ready to use.
type Builder struct {
	err     error
	result  []byte
	pending bool
}

// BuilderContinuation writes the content of a nested element into child.
//
// A continuation may abort the whole build by panicking with a BuildError;
// the wrapped error is then returned from Bytes. Any other panic propagates.
type BuilderContinuation func(child *Builder)

// BuildError carries a data error out of a BuilderContinuation.
type BuildError struct {
	Err error
}

// NewBuilder returns a Builder that appends to buffer.
func NewBuilder(buffer []byte) *Builder {
	return &Builder{result: buffer}
}

// SetError records err as the result of Bytes. Later writes are ignored.
func (b *Builder) SetError(err error) {
	b.err = err
}

// Bytes returns the encoded bytes, or the first error met while building.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

// BytesOrPanic is like Bytes but panics on a build error.
func (b *Builder) BytesOrPanic() []byte {
	if b.err != nil {
		panic(b.err)
	}
	return b.result
}

// AddUint8 appends a single octet.
func (b *Builder) AddUint8(v uint8) {
	b.add(v)
}

// AddBytes appends raw, already encoded bytes.
func (b *Builder) AddBytes(v []byte) {
	b.add(v...)
}

func (b *Builder) add(bytes ...byte) {
	if b.pending {
		panic("der: attempted write while child is pending")
	}
	if b.err != nil {
		return
	}
	b.result = append(b.result, bytes...)
}

func (b *Builder) callContinuation(f BuilderContinuation, child *Builder) {
	b.pending = true
	defer func() {
		b.pending = false
		if r := recover(); r != nil {
			if be, ok := r.(BuildError); ok {
				child.err = be.Err
				return
			}
			panic(r)
		}
	}()
	f(child)
}

// addLength writes the DER length header for n content octets.
func (b *Builder) addLength(n int) {
	switch {
	case n < 0x80:
		b.add(byte(n))
	case n <= 0xff:
		b.add(0x81, byte(n))
	case n <= 0xffff:
		b.add(0x82, byte(n>>8), byte(n))
	case n <= 0xffffff:
		b.add(0x83, byte(n>>16), byte(n>>8), byte(n))
	case uint64(n) <= 0xffffffff:
		b.add(0x84, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		b.err = errTooLong
	}
}

// AddASN1 appends an element with the given tag whose content is written
// by f. High-tag-number identifiers panic.
func (b *Builder) AddASN1(tag Tag, f BuilderContinuation) {
	if tag&0x1f == 0x1f {
		panic(fmt.Sprintf("der: high-tag number identifier octets not supported: 0x%x", uint8(tag)))
	}
	if b.err != nil {
		return
	}
	child := &Builder{}
	b.callContinuation(f, child)
	if child.err != nil {
		b.err = child.err
		return
	}
	b.add(byte(tag))
	b.addLength(len(child.result))
	b.add(child.result...)
}

// AddASN1Sequence appends a SEQUENCE.
func (b *Builder) AddASN1Sequence(f BuilderContinuation) {
	b.AddASN1(SEQUENCE, f)
}

// AddASN1ExplicitTag appends an explicitly tagged [n] field.
func (b *Builder) AddASN1ExplicitTag(n uint8, f BuilderContinuation) {
	b.AddASN1(ExplicitTag(n), f)
}

// AddASN1OctetString appends an OCTET STRING.
func (b *Builder) AddASN1OctetString(bytes []byte) {
	b.AddASN1(OCTET_STRING, func(c *Builder) {
		c.AddBytes(bytes)
	})
}

// AddASN1BitString appends a BIT STRING made of whole octets.
func (b *Builder) AddASN1BitString(data []byte) {
	b.AddASN1(BIT_STRING, func(c *Builder) {
		c.AddUint8(0)
		c.AddBytes(data)
	})
}

// AddASN1Boolean appends a BOOLEAN.
func (b *Builder) AddASN1Boolean(v bool) {
	b.AddASN1(BOOLEAN, func(c *Builder) {
		if v {
			c.AddUint8(0xff)
		} else {
			c.AddUint8(0)
		}
	})
}

// AddASN1NULL appends a NULL.
func (b *Builder) AddASN1NULL() {
	b.add(uint8(NULL), 0)
}

// AddASN1IntBytes appends a non-negative INTEGER given as big-endian bytes
// that may carry leading zeros.
func (b *Builder) AddASN1IntBytes(bytes []byte) {
	for len(bytes) > 0 && bytes[0] == 0 {
		bytes = bytes[1:]
	}
	b.AddASN1(INTEGER, func(c *Builder) {
		if len(bytes) == 0 || bytes[0]&0x80 != 0 {
			c.AddUint8(0)
		}
		c.AddBytes(bytes)
	})
}

// AddASN1Unsigned appends v as an INTEGER.
func (b *Builder) AddASN1Unsigned(v uint64) {
	b.AddASN1(INTEGER, func(c *Builder) {
		n := 1
		for i := v; i >= 0x80; i >>= 8 {
			n++
		}
		for ; n > 0; n-- {
			if n > 8 {
				c.AddUint8(0)
				continue
			}
			c.AddUint8(byte(v >> ((n - 1) * 8)))
		}
	})
}

// AddASN1Signed appends v as a two's complement INTEGER.
func (b *Builder) AddASN1Signed(v int64) {
	b.AddASN1(INTEGER, func(c *Builder) {
		n := 1
		for i := v; i >= 0x80 || i < -0x80; i >>= 8 {
			n++
		}
		for ; n > 0; n-- {
			c.AddUint8(byte(v >> ((n - 1) * 8)))
		}
	})
}

// AddASN1BigInt appends n as a two's complement INTEGER.
func (b *Builder) AddASN1BigInt(n *big.Int) {
	if b.err != nil {
		return
	}
	b.AddASN1(INTEGER, func(c *Builder) {
		if n.Sign() < 0 {
			// -n-1 has the same bits as n, inverted.
			nMinus1 := new(big.Int).Neg(n)
			nMinus1.Sub(nMinus1, bigOne)
			bytes := nMinus1.Bytes()
			for i := range bytes {
				bytes[i] ^= 0xff
			}
			if len(bytes) == 0 || bytes[0]&0x80 == 0 {
				c.AddUint8(0xff)
			}
			c.AddBytes(bytes)
			return
		}
		if n.Sign() == 0 {
			c.AddUint8(0)
			return
		}
		bytes := n.Bytes()
		if bytes[0]&0x80 != 0 {
			c.AddUint8(0)
		}
		c.AddBytes(bytes)
	})
}

func (b *Builder) addBase128Int(n int64) {
	var length int
	if n == 0 {
		length = 1
	} else {
		for i := n; i > 0; i >>= 7 {
			length++
		}
	}
	for i := length - 1; i >= 0; i-- {
		o := byte(n>>uint(i*7)) & 0x7f
		if i != 0 {
			o |= 0x80
		}
		b.add(o)
	}
}

// AddASN1ObjectIdentifier appends an OBJECT IDENTIFIER. An invalid oid
// panics.
func (b *Builder) AddASN1ObjectIdentifier(oid ObjectIdentifier) {
	if !oid.valid() {
		panic(fmt.Sprintf("der: invalid OID: %v", []int(oid)))
	}
	b.AddASN1(OBJECT_IDENTIFIER, func(c *Builder) {
		c.addBase128Int(int64(oid[0])*40 + int64(oid[1]))
		for _, v := range oid[2:] {
			c.addBase128Int(int64(v))
		}
	})
}
