package wire

import "strings"

// TypeTag identifies the element type of one field slot on the wire.
//
// The values are fixed for all time and deliberately decoupled from any
// host-side type numbering (EPICS renumbered menuFtype between base 3.15
// and 7.0; the wire must not care). New tags may only be appended.
type TypeTag int16

const (
	TypeNone   TypeTag = -1
	TypeString TypeTag = 0
	TypeChar   TypeTag = 1
	TypeUChar  TypeTag = 2
	TypeShort  TypeTag = 3
	TypeUShort TypeTag = 4
	TypeLong   TypeTag = 5
	TypeULong  TypeTag = 6
	TypeFloat  TypeTag = 7
	TypeDouble TypeTag = 8
	TypeEnum   TypeTag = 9
	TypeInt64  TypeTag = 10
	TypeUint64 TypeTag = 11
)

// StringSize is the fixed on-wire size of one STRING element.
const StringSize = 40

var typeNames = map[TypeTag]string{
	TypeNone:   "NONE",
	TypeString: "STRING",
	TypeChar:   "CHAR",
	TypeUChar:  "UCHAR",
	TypeShort:  "SHORT",
	TypeUShort: "USHORT",
	TypeLong:   "LONG",
	TypeULong:  "ULONG",
	TypeFloat:  "FLOAT",
	TypeDouble: "DOUBLE",
	TypeEnum:   "ENUM",
	TypeInt64:  "INT64",
	TypeUint64: "UINT64",
}

var elementSizes = map[TypeTag]int{
	TypeString: StringSize,
	TypeChar:   1,
	TypeUChar:  1,
	TypeShort:  2,
	TypeUShort: 2,
	TypeLong:   4,
	TypeULong:  4,
	TypeFloat:  4,
	TypeDouble: 8,
	TypeEnum:   2,
	TypeInt64:  8,
	TypeUint64: 8,
}

// ParseTag resolves a symbolic type name ("DOUBLE", "STRING", ...) to its
// tag. Matching is case-insensitive; NONE is not accepted since it cannot
// carry data.
func ParseTag(name string) (TypeTag, bool) {
	upper := strings.ToUpper(name)
	for tag, n := range typeNames {
		if n == upper && tag != TypeNone {
			return tag, true
		}
	}
	return TypeNone, false
}

// ElementSize returns the on-wire byte size of one element of t.
// ok is false for TypeNone and any tag this codec does not know.
func ElementSize(t TypeTag) (size int, ok bool) {
	size, ok = elementSizes[t]
	return size, ok
}

// String returns the symbolic name of the tag, for logs and errors.
func (t TypeTag) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "INVALID"
}

// Valid reports whether t is a known data-carrying tag.
func (t TypeTag) Valid() bool {
	_, ok := elementSizes[t]
	return ok
}

// Slot is one typed, counted unit of data in a frame.
//
// On the request side an input slot carries Count*ElementSize bytes in
// Data, while an output slot describes only the expected shape (Data may
// be nil). On the response side Data is the destination buffer the decoder
// copies into; it must hold at least Count*ElementSize bytes.
type Slot struct {
	Type  TypeTag
	Count uint32
	Data  []byte
}

// WarningKind classifies a per-slot shape mismatch found during decode.
type WarningKind int

const (
	// WarnTypeMismatch: the received tag differs from the expected one.
	// The whole payload was discarded; the destination is untouched.
	WarnTypeMismatch WarningKind = iota
	// WarnCountMismatch: tags match but element counts differ. The lesser
	// count was copied and any excess received elements were discarded.
	WarnCountMismatch
)

// Warning records one non-fatal shape mismatch. Shape problems never abort
// a frame; callers decide whether and how to report them.
type Warning struct {
	Kind          WarningKind
	Slot          int // 0-based slot index (slot 0 is field "A")
	Expected      TypeTag
	Received      TypeTag
	ExpectedCount uint32
	ReceivedCount uint32
}

// Key returns the host-style field letter for the slot ("A".."U").
func (w Warning) Key() string {
	if w.Slot < 0 || w.Slot >= NumSlots {
		return "?"
	}
	return string(rune('A' + w.Slot))
}
