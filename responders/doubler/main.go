// Command doubler is a reference responder: a program asubexec can run as a
// job. It reads one request frame from stdin, doubles every DOUBLE and FLOAT
// input, echoes other matching inputs through, and writes the response frame
// to stdout.
//
// Configure it like any other job:
//
//	jobs:
//	  doubler:
//	    exec: ./bin/doubler
//	    inputs:
//	      A: {type: DOUBLE, value: ["21"]}
//	    outputs:
//	      A: {type: DOUBLE}
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/mattjoyce/asubexec/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doubler: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	req, err := wire.DecodeRequest(bufio.NewReader(os.Stdin))
	if err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	out := bufio.NewWriter(os.Stdout)
	if err := wire.EncodeResponse(out, respond(req)); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return out.Flush()
}

// respond builds the 21 response slots in the shapes the caller asked for.
// Inputs whose type differs from the requested output shape are ignored and
// the slot stays zeroed.
func respond(req *wire.Request) []wire.Slot {
	slots := make([]wire.Slot, wire.NumSlots)
	for i := range slots {
		shape := req.Outputs[i]
		size, ok := wire.ElementSize(shape.Type)
		if !ok {
			shape.Type = wire.TypeDouble
			shape.Count = 1
			size = 8
		}
		slots[i] = wire.Slot{
			Type:  shape.Type,
			Count: shape.Count,
			Data:  make([]byte, int(shape.Count)*size),
		}

		in := req.Inputs[i]
		if in.Type != shape.Type {
			continue
		}
		copy(slots[i].Data, in.Data)

		switch shape.Type {
		case wire.TypeDouble:
			for off := 0; off+8 <= len(slots[i].Data); off += 8 {
				bits := binary.LittleEndian.Uint64(slots[i].Data[off:])
				doubled := 2 * math.Float64frombits(bits)
				binary.LittleEndian.PutUint64(slots[i].Data[off:], math.Float64bits(doubled))
			}
		case wire.TypeFloat:
			for off := 0; off+4 <= len(slots[i].Data); off += 4 {
				bits := binary.LittleEndian.Uint32(slots[i].Data[off:])
				doubled := 2 * math.Float32frombits(bits)
				binary.LittleEndian.PutUint32(slots[i].Data[off:], math.Float32bits(doubled))
			}
		}
	}
	return slots
}
