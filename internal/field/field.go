// Package field binds a job's YAML field configuration to the 21 typed
// slots exchanged with the child. Fields are named by letter, "A" through
// "U"; letters not mentioned in the config default to DOUBLE with a single
// zero element, which is what an unconfigured field looks like upstream.
package field

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/mattjoyce/asubexec/internal/wire"
)

// Spec is one field's declaration in job config.
//
// For inputs, Value lists the elements to send and Count may be omitted
// (it defaults to len(Value)). For outputs, Count declares how many
// elements the child is expected to return and Value is ignored.
type Spec struct {
	Type  string   `yaml:"type"`
	Count uint32   `yaml:"count"`
	Value []string `yaml:"value"`
}

// Set holds the fully built slots for one job. It satisfies the field
// source the job coordinator consumes.
type Set struct {
	inputs  []wire.Slot
	outputs []wire.Slot
}

// Inputs returns the 21 request slots. The backing arrays are shared;
// callers must treat them as read-only between triggers.
func (s *Set) Inputs() []wire.Slot { return s.inputs }

// Outputs returns the 21 response destination slots.
func (s *Set) Outputs() []wire.Slot { return s.outputs }

// Build constructs a Set from the per-letter input and output specs.
func Build(inputs, outputs map[string]Spec) (*Set, error) {
	in, err := buildSlots(inputs, true)
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	out, err := buildSlots(outputs, false)
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	return &Set{inputs: in, outputs: out}, nil
}

func buildSlots(specs map[string]Spec, withValues bool) ([]wire.Slot, error) {
	slots := make([]wire.Slot, wire.NumSlots)
	for i := range slots {
		slots[i] = defaultSlot()
	}

	for key, spec := range specs {
		idx, err := slotIndex(key)
		if err != nil {
			return nil, err
		}
		slot, err := buildSlot(spec, withValues)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		slots[idx] = slot
	}
	return slots, nil
}

// defaultSlot is what an unconfigured field carries: one DOUBLE zero.
func defaultSlot() wire.Slot {
	return wire.Slot{Type: wire.TypeDouble, Count: 1, Data: make([]byte, 8)}
}

func slotIndex(key string) (int, error) {
	if len(key) != 1 || key[0] < 'A' || key[0] > 'U' {
		return 0, fmt.Errorf("field name %q: must be a letter A..U", key)
	}
	return int(key[0] - 'A'), nil
}

func buildSlot(spec Spec, withValues bool) (wire.Slot, error) {
	tag, ok := wire.ParseTag(spec.Type)
	if !ok {
		return wire.Slot{}, fmt.Errorf("unknown type %q", spec.Type)
	}
	size, _ := wire.ElementSize(tag)

	count := spec.Count
	if count == 0 {
		if withValues && len(spec.Value) > 0 {
			count = uint32(len(spec.Value))
		} else {
			count = 1
		}
	}
	if withValues && uint32(len(spec.Value)) > count {
		return wire.Slot{}, fmt.Errorf("%d values exceed count %d", len(spec.Value), count)
	}

	data := make([]byte, int(count)*size)
	if withValues {
		for i, v := range spec.Value {
			if err := encodeElement(data[i*size:(i+1)*size], tag, v); err != nil {
				return wire.Slot{}, fmt.Errorf("value %d: %w", i, err)
			}
		}
	}
	return wire.Slot{Type: tag, Count: count, Data: data}, nil
}

// encodeElement renders one configured value into its on-wire form.
func encodeElement(dst []byte, tag wire.TypeTag, v string) error {
	switch tag {
	case wire.TypeString:
		if len(v) >= wire.StringSize {
			return fmt.Errorf("string %q longer than %d bytes", v, wire.StringSize-1)
		}
		copy(dst, v) // dst is zeroed, so the NUL terminator is free
		return nil

	case wire.TypeChar, wire.TypeShort, wire.TypeLong, wire.TypeInt64:
		n, err := strconv.ParseInt(v, 0, bitSize(len(dst)))
		if err != nil {
			return err
		}
		putUint(dst, uint64(n))
		return nil

	case wire.TypeUChar, wire.TypeUShort, wire.TypeULong, wire.TypeEnum, wire.TypeUint64:
		n, err := strconv.ParseUint(v, 0, bitSize(len(dst)))
		if err != nil {
			return err
		}
		putUint(dst, n)
		return nil

	case wire.TypeFloat:
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
		return nil

	case wire.TypeDouble:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
		return nil
	}
	return fmt.Errorf("type %v cannot carry configured values", tag)
}

func bitSize(byteLen int) int { return byteLen * 8 }

func putUint(dst []byte, n uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(dst, n)
	}
}
