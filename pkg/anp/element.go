package anp

import "fmt"

// Tag identifies the wire type of an Element.
type Tag uint8

const (
	TagU32    Tag = 1
	TagU64    Tag = 2
	TagString Tag = 3
	TagBin    Tag = 4
)

func (t Tag) String() string {
	switch t {
	case TagU32:
		return "U32"
	case TagU64:
		return "U64"
	case TagString:
		return "String"
	case TagBin:
		return "Bin"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Element is a single tagged value carried in an ANP message payload.
//
// String and Bin hold raw bytes: the wire format treats the payload as
// opaque (historically Latin-1) bytes, and Element never interprets or
// normalizes them. An empty string/bin substitutes for "no value" — there
// is no null representation.
type Element struct {
	tag Tag
	u32 uint32
	u64 uint64
	str []byte // used for both TagString and TagBin
}

// U32 constructs a U32 element.
func U32(v uint32) Element { return Element{tag: TagU32, u32: v} }

// U64 constructs a U64 element.
func U64(v uint64) Element { return Element{tag: TagU64, u64: v} }

// String constructs a String element from raw bytes (no encoding applied).
func String(v string) Element { return Element{tag: TagString, str: []byte(v)} }

// Bin constructs a Bin element.
func Bin(v []byte) Element {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Element{tag: TagBin, str: cp}
}

// Tag reports which variant this element holds.
func (e Element) Tag() Tag { return e.tag }

// mismatchErr is returned by accessors when called against the wrong variant.
type mismatchErr struct {
	requested Tag
	actual    Tag
}

func (e *mismatchErr) Error() string {
	return fmt.Sprintf("anp: element type mismatch: requested %s, actual %s", e.requested, e.actual)
}

// AsU32 returns the element's value if it holds a U32, else a type-mismatch error.
func (e Element) AsU32() (uint32, error) {
	if e.tag != TagU32 {
		return 0, &mismatchErr{requested: TagU32, actual: e.tag}
	}
	return e.u32, nil
}

// AsU64 returns the element's value if it holds a U64, else a type-mismatch error.
func (e Element) AsU64() (uint64, error) {
	if e.tag != TagU64 {
		return 0, &mismatchErr{requested: TagU64, actual: e.tag}
	}
	return e.u64, nil
}

// AsString returns the element's raw bytes if it holds a String, else a
// type-mismatch error. The bytes are returned as-is; no charset decoding
// is performed.
func (e Element) AsString() (string, error) {
	if e.tag != TagString {
		return "", &mismatchErr{requested: TagString, actual: e.tag}
	}
	return string(e.str), nil
}

// AsBin returns the element's raw bytes if it holds a Bin, else a
// type-mismatch error.
func (e Element) AsBin() ([]byte, error) {
	if e.tag != TagBin {
		return nil, &mismatchErr{requested: TagBin, actual: e.tag}
	}
	cp := make([]byte, len(e.str))
	copy(cp, e.str)
	return cp, nil
}

// Size returns the number of bytes this element occupies on the wire,
// including its 1-byte tag.
func (e Element) Size() int {
	switch e.tag {
	case TagU32:
		return 5
	case TagU64:
		return 9
	case TagString, TagBin:
		return 5 + len(e.str)
	default:
		return 1
	}
}

// Equal reports whether two elements hold the same tag and value.
func (e Element) Equal(o Element) bool {
	if e.tag != o.tag {
		return false
	}
	switch e.tag {
	case TagU32:
		return e.u32 == o.u32
	case TagU64:
		return e.u64 == o.u64
	case TagString, TagBin:
		if len(e.str) != len(o.str) {
			return false
		}
		for i := range e.str {
			if e.str[i] != o.str[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
