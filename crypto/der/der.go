// Package der builds and parses ASN.1 DER byte strings.
//
// Only the low-tag-number form is supported: a single identifier octet
// with the class in bits 7-8, the constructed flag in bit 6 and the tag
// number in bits 1-5.
package der

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Tag is an ASN.1 identifier octet.
type Tag uint8

const (
	classConstructed     = 0x20
	classContextSpecific = 0x80
)

// Constructed returns t with the constructed bit set.
func (t Tag) Constructed() Tag { return t | classConstructed }

// ContextSpecific returns t with the context-specific class bit set.
func (t Tag) ContextSpecific() Tag { return t | classContextSpecific }

// ExplicitTag returns the identifier of an explicitly tagged [n] field.
func ExplicitTag(n uint8) Tag { return Tag(n).Constructed().ContextSpecific() }

const (
	BOOLEAN           = Tag(1)
	INTEGER           = Tag(2)
	BIT_STRING        = Tag(3)
	OCTET_STRING      = Tag(4)
	NULL              = Tag(5)
	OBJECT_IDENTIFIER = Tag(6)
	UTF8String        = Tag(12)
	SEQUENCE          = Tag(16 | classConstructed)
	SET               = Tag(17 | classConstructed)
)

// BitString is a decoded BIT STRING. BitLength may be smaller than
// 8*len(Bytes) when the last octet carries padding.
type BitString struct {
	Bytes     []byte
	BitLength int
}

// Optional is the result of reading an explicitly tagged field that may be
// absent from the input.
type Optional[T any] struct {
	Value   T
	Present bool
}

// ObjectIdentifier is a sequence of non-negative arcs.
type ObjectIdentifier []int

var ErrInvalidOID = errors.New("der: invalid object identifier")

// ParseObjectIdentifier parses the dotted-decimal form, e.g. "1.2.156.10197.1.301".
func ParseObjectIdentifier(s string) (ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(ObjectIdentifier, len(parts))
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return nil, ErrInvalidOID
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, ErrInvalidOID
		}
		oid[i] = v
	}
	if !oid.valid() {
		return nil, ErrInvalidOID
	}
	return oid, nil
}

// MustParseObjectIdentifier is like ParseObjectIdentifier but panics on error.
func MustParseObjectIdentifier(s string) ObjectIdentifier {
	oid, err := ParseObjectIdentifier(s)
	if err != nil {
		panic(err.Error() + ": " + s)
	}
	return oid
}

// valid also bounds every encoded sub-identifier to 31 bits so that anything
// the Builder writes can be read back.
func (oid ObjectIdentifier) valid() bool {
	if len(oid) < 2 || oid[0] < 0 || oid[0] > 2 || oid[1] < 0 {
		return false
	}
	if oid[0] < 2 && oid[1] >= 40 {
		return false
	}
	if oid[0]*40+oid[1] > math.MaxInt32 {
		return false
	}
	for _, v := range oid[2:] {
		if v < 0 || v > math.MaxInt32 {
			return false
		}
	}
	return true
}

// Equal reports whether oid and other hold the same arcs.
func (oid ObjectIdentifier) Equal(other ObjectIdentifier) bool {
	if len(oid) != len(other) {
		return false
	}
	for i := range oid {
		if oid[i] != other[i] {
			return false
		}
	}
	return true
}

func (oid ObjectIdentifier) String() string {
	var sb strings.Builder
	for i, v := range oid {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}
