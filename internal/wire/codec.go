// Package wire implements the binary frame exchanged with a child process:
// a magic marker, a protocol version, 21 typed field slots, and an end
// marker. The codec is a pure transform over io.Reader/io.Writer; deadline
// and cancellation concerns live in the transport (see internal/pipeio).
//
// The format is bit-compatible with the asubExec v1.2 wire protocol.
// Scalars are little-endian.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic opens every frame. Compared without a trailing NUL.
	Magic = "asubExec"
	// Trailer closes every frame.
	Trailer = "eod\n"

	// Version is 0x00MMmmpp (major, minor, patch). The patch byte is
	// ignored when checking compatibility.
	Version uint32 = 0x00010202

	// NumSlots is the number of field slots in each direction (A..U).
	NumSlots = 21
)

// versionMask strips the patch byte for the compatibility check.
const versionMask = 0xFFFFFF00

// discardChunk bounds the scratch buffer used to drain mismatched slot
// payloads. Larger payloads are drained in chunks; nothing is ever read
// past the end of the offending field.
const discardChunk = 512 * 1024

var (
	ErrBadMagic        = errors.New("wire: bad magic")
	ErrVersionMismatch = errors.New("wire: protocol version mismatch")
	ErrBadTypeTag      = errors.New("wire: invalid type tag")
	ErrBadTrailer      = errors.New("wire: bad end marker")
	ErrSlotCount       = errors.New("wire: slot list must have exactly 21 entries")
)

// Request is the decoded view of a request frame, as seen by a child
// program: the input data plus the shape the parent expects back.
type Request struct {
	Inputs  []Slot // 21 slots with data
	Outputs []Slot // 21 expected shapes, Data nil
}

// EncodeRequest writes a request frame: the 21 input slots with their data
// followed by the 21 expected output shapes (type and count only).
func EncodeRequest(w io.Writer, inputs, outputs []Slot) error {
	if len(inputs) != NumSlots || len(outputs) != NumSlots {
		return ErrSlotCount
	}

	if err := writeHeader(w); err != nil {
		return err
	}
	for i, s := range inputs {
		if err := writeSlot(w, s, true); err != nil {
			return fmt.Errorf("input slot %d: %w", i, err)
		}
	}
	for i, s := range outputs {
		if err := writeSlot(w, s, false); err != nil {
			return fmt.Errorf("output slot %d: %w", i, err)
		}
	}
	return writeTrailer(w)
}

// EncodeResponse writes a response frame: 21 slots, each with data.
func EncodeResponse(w io.Writer, slots []Slot) error {
	if len(slots) != NumSlots {
		return ErrSlotCount
	}

	if err := writeHeader(w); err != nil {
		return err
	}
	for i, s := range slots {
		if err := writeSlot(w, s, true); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return writeTrailer(w)
}

// DecodeRequest reads a full request frame. It is the child-side half of
// the protocol, used by Go child programs the way the original's Python
// helper class was used by scripts.
func DecodeRequest(r io.Reader) (*Request, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}

	req := &Request{
		Inputs:  make([]Slot, NumSlots),
		Outputs: make([]Slot, NumSlots),
	}
	for i := range req.Inputs {
		tag, count, err := readSlotHeader(r)
		if err != nil {
			return nil, fmt.Errorf("input slot %d: %w", i, err)
		}
		size, _ := ElementSize(tag)
		data := make([]byte, int(count)*size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("input slot %d data: %w", i, err)
		}
		req.Inputs[i] = Slot{Type: tag, Count: count, Data: data}
	}
	for i := range req.Outputs {
		tag, count, err := readSlotHeader(r)
		if err != nil {
			return nil, fmt.Errorf("output slot %d: %w", i, err)
		}
		req.Outputs[i] = Slot{Type: tag, Count: count}
	}

	return req, readTrailer(r)
}

// DecodeResponse reads a response frame into the destination slots.
//
// Per-slot policy: a type mismatch discards the entire received payload
// (sized by the *received* tag, which is what keeps the stream aligned)
// and leaves the destination untouched; a count mismatch copies the lesser
// count and discards the excess. Both produce a Warning, never an error.
// Framing problems (magic, version, unknown tag, trailer, short reads)
// abort the decode.
func DecodeResponse(r io.Reader, outputs []Slot) ([]Warning, error) {
	if len(outputs) != NumSlots {
		return nil, ErrSlotCount
	}

	if err := readHeader(r); err != nil {
		return nil, err
	}

	var warnings []Warning
	scratch := make([]byte, discardChunk)

	for i := range outputs {
		tag, count, err := readSlotHeader(r)
		if err != nil {
			return warnings, fmt.Errorf("slot %d: %w", i, err)
		}
		size, _ := ElementSize(tag)

		if tag != outputs[i].Type {
			// Discard the whole payload; no coercion.
			if err := discard(r, int64(count)*int64(size), scratch); err != nil {
				return warnings, fmt.Errorf("slot %d discard: %w", i, err)
			}
			warnings = append(warnings, Warning{
				Kind:          WarnTypeMismatch,
				Slot:          i,
				Expected:      outputs[i].Type,
				Received:      tag,
				ExpectedCount: outputs[i].Count,
				ReceivedCount: count,
			})
			continue
		}

		less := count
		if outputs[i].Count < less {
			less = outputs[i].Count
		}
		if _, err := io.ReadFull(r, outputs[i].Data[:int(less)*size]); err != nil {
			return warnings, fmt.Errorf("slot %d data: %w", i, err)
		}
		if skip := int64(count-less) * int64(size); skip > 0 {
			if err := discard(r, skip, scratch); err != nil {
				return warnings, fmt.Errorf("slot %d excess: %w", i, err)
			}
		}
		if count != outputs[i].Count {
			warnings = append(warnings, Warning{
				Kind:          WarnCountMismatch,
				Slot:          i,
				Expected:      outputs[i].Type,
				Received:      tag,
				ExpectedCount: outputs[i].Count,
				ReceivedCount: count,
			})
		}
	}

	return warnings, readTrailer(r)
}

func writeHeader(w io.Writer) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, Version); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

func writeTrailer(w io.Writer) error {
	if _, err := io.WriteString(w, Trailer); err != nil {
		return fmt.Errorf("write end marker: %w", err)
	}
	return nil
}

// writeSlot writes one slot header and, when withData is set, its payload.
func writeSlot(w io.Writer, s Slot, withData bool) error {
	size, ok := ElementSize(s.Type)
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadTypeTag, int16(s.Type))
	}
	if err := binary.Write(w, binary.LittleEndian, int16(s.Type)); err != nil {
		return fmt.Errorf("write type tag: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, s.Count); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	if !withData {
		return nil
	}
	want := int(s.Count) * size
	if len(s.Data) < want {
		return fmt.Errorf("slot data short: have %d bytes, need %d", len(s.Data), want)
	}
	if _, err := w.Write(s.Data[:want]); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) error {
	var magic [len(Magic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic[:], []byte(Magic)) {
		return fmt.Errorf("%w: %q", ErrBadMagic, magic[:])
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version&versionMask != Version&versionMask {
		return fmt.Errorf("%w: theirs 0x%08x, ours 0x%08x", ErrVersionMismatch, version, Version)
	}
	return nil
}

func readTrailer(r io.Reader) error {
	var end [len(Trailer)]byte
	if _, err := io.ReadFull(r, end[:]); err != nil {
		return fmt.Errorf("read end marker: %w", err)
	}
	if !bytes.Equal(end[:], []byte(Trailer)) {
		return fmt.Errorf("%w: %q", ErrBadTrailer, end[:])
	}
	return nil
}

// readSlotHeader reads and validates one slot's type tag and count.
func readSlotHeader(r io.Reader) (TypeTag, uint32, error) {
	var rawTag int16
	if err := binary.Read(r, binary.LittleEndian, &rawTag); err != nil {
		return 0, 0, fmt.Errorf("read type tag: %w", err)
	}
	tag := TypeTag(rawTag)
	if !tag.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrBadTypeTag, rawTag)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, 0, fmt.Errorf("read count: %w", err)
	}
	return tag, count, nil
}

// discard drains exactly n bytes from r using scratch, chunking as needed
// so a single oversized field cannot overrun the buffer.
func discard(r io.Reader, n int64, scratch []byte) error {
	for n > 0 {
		c := int64(len(scratch))
		if n < c {
			c = n
		}
		if _, err := io.ReadFull(r, scratch[:c]); err != nil {
			return err
		}
		n -= c
	}
	return nil
}
