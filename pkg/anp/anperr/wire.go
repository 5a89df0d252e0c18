package anperr

import "fmt"

// wireElement is the minimal surface anperr needs from the codec's Element
// type, satisfied by anp.Element without anperr importing the anp package
// (which would create a cycle: anp -> anperr for close reasons).
type wireElement interface {
	AsU32() (uint32, error)
	AsString() (string, error)
	AsBin() ([]byte, error)
}

// Elements describes how to build the three wire elements an Error encodes
// to: kind (U32), message (String), trailer (Bin, kind-specific — only the
// QuotaExceeded sub-kind uses it, as a single byte).
type Elements struct {
	Kind    uint32
	Message string
	Trailer []byte
}

// ToElements converts e into the three-element wire shape described in the
// spec: u32 kind, string message, bin trailer.
func (e *Error) ToElements() Elements {
	var trailer []byte
	if e.Code == QuotaExceeded {
		trailer = []byte{byte(e.Sub)}
	}
	return Elements{Kind: uint32(e.Code), Message: e.Message, Trailer: trailer}
}

// FromElements reconstructs an *Error from its wire elements.
func FromElements(el Elements) *Error {
	out := &Error{Code: Code(el.Kind), Message: el.Message}
	if out.Code == QuotaExceeded && len(el.Trailer) > 0 {
		out.Sub = QuotaSub(el.Trailer[0])
	}
	return out
}

// DecodeFrom extracts kind/message/trailer from three decoded elements in
// the order the wire format specifies them, returning a type-mismatch error
// if any element is of the wrong kind.
func DecodeFrom(kind, message, trailer wireElement) (*Error, error) {
	k, err := kind.AsU32()
	if err != nil {
		return nil, fmt.Errorf("anperr: decode kind: %w", err)
	}
	msg, err := message.AsString()
	if err != nil {
		return nil, fmt.Errorf("anperr: decode message: %w", err)
	}
	var tb []byte
	if trailer != nil {
		tb, err = trailer.AsBin()
		if err != nil {
			return nil, fmt.Errorf("anperr: decode trailer: %w", err)
		}
	}
	return FromElements(Elements{Kind: k, Message: msg, Trailer: tb}), nil
}
