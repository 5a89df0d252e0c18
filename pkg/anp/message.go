package anp

// HeaderSize is the fixed size in bytes of an ANP message header.
const HeaderSize = 24

// MaxPayloadSize is the hard cap on payload_size; a header claiming more is
// a fatal framing error.
const MaxPayloadSize = 100 * 1024 * 1024 // 100 MiB

// Protocol family and role bit layout for the Type field:
//
//	bits 31..28: family (4 bits) — 3 identifies this protocol
//	bits 27..26: role (2 bits)   — 0=command 1=response 2=event
//	bits 25..0:  namespace (26 bits)
const (
	FamilyANP = 3

	RoleCommand  = 0
	RoleResponse = 1
	RoleEvent    = 2

	familyShift    = 28
	roleShift      = 26
	namespaceMask  = 0x03FFFFFF
	roleMask       = 0x3
	familyMaskBits = 0xF
)

// MakeType packs a family/role/namespace triple into a Type field value.
func MakeType(family, role uint32, namespace uint32) uint32 {
	return (family&familyMaskBits)<<familyShift | (role&roleMask)<<roleShift | (namespace & namespaceMask)
}

// Family extracts the protocol family from a Type field value.
func Family(t uint32) uint32 { return (t >> familyShift) & familyMaskBits }

// Role extracts the role bits from a Type field value.
func Role(t uint32) uint32 { return (t >> roleShift) & roleMask }

// Namespace extracts the namespace id from a Type field value.
func Namespace(t uint32) uint32 { return t & namespaceMask }

// IsCmd reports whether t carries the command role.
func IsCmd(t uint32) bool { return Role(t) == RoleCommand }

// IsRes reports whether t carries the response role.
func IsRes(t uint32) bool { return Role(t) == RoleResponse }

// IsEvt reports whether t carries the event role.
func IsEvt(t uint32) bool { return Role(t) == RoleEvent }

// Reserved namespace ids the core itself interprets.
const (
	NamespaceCancelCmd uint32 = 1
	NamespacePing      uint32 = 2
)

// Header holds the fixed fields common to every ANP message.
type Header struct {
	Major       uint32
	Minor       uint32
	Type        uint32
	ID          uint64
	PayloadSize uint32
}

// Message is an ANP header plus an ordered list of elements.
type Message struct {
	Header
	Elements []Element
}

// NewCommand builds a command-role message for the given namespace.
func NewCommand(major, minor uint32, namespace uint32, id uint64, elements ...Element) *Message {
	return &Message{
		Header:   Header{Major: major, Minor: minor, Type: MakeType(FamilyANP, RoleCommand, namespace), ID: id},
		Elements: elements,
	}
}

// NewResponse builds a response-role message correlated to id.
func NewResponse(major, minor uint32, namespace uint32, id uint64, elements ...Element) *Message {
	return &Message{
		Header:   Header{Major: major, Minor: minor, Type: MakeType(FamilyANP, RoleResponse, namespace), ID: id},
		Elements: elements,
	}
}

// NewEvent builds an event-role message. Events with ID 0 are transient:
// delivered immediately, never persisted or correlated.
func NewEvent(major, minor uint32, namespace uint32, id uint64, elements ...Element) *Message {
	return &Message{
		Header:   Header{Major: major, Minor: minor, Type: MakeType(FamilyANP, RoleEvent, namespace), ID: id},
		Elements: elements,
	}
}

// PayloadSizeComputed computes the sum of element sizes, matching the invariant
// that a header's payload_size field must equal this value.
func (m *Message) PayloadSizeComputed() uint32 {
	var total uint32
	for _, e := range m.Elements {
		total += uint32(e.Size())
	}
	return total
}
