package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

func frameFor(payload []byte) []byte {
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	return frame
}

func collectPayloads(r *[][]byte) func([]byte) error {
	return func(payload []byte) error {
		*r = append(*r, payload)
		return nil
	}
}

func TestReassemblerChunkBoundaryIndependence(t *testing.T) {
	var stream []byte
	var want [][]byte
	for i := 0; i < 5; i++ {
		payload := bytes.Repeat([]byte{byte(i + 1)}, 10*i+1)
		want = append(want, payload)
		stream = append(stream, frameFor(payload)...)
	}

	// Feeding the whole stream at once and feeding it split at every
	// possible chunk size must produce the same ordered payload sequence.
	for _, chunkSize := range []int{len(stream), 1, 2, 3, 4, 5, 7, 13, 64} {
		var got [][]byte
		r := NewReassembler(collectPayloads(&got))
		for off := 0; off < len(stream); off += chunkSize {
			end := off + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			if err := r.Feed(stream[off:end]); err != nil {
				t.Fatalf("chunk size %d: Feed failed: %v", chunkSize, err)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d payloads, got %d", chunkSize, len(want), len(got))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Errorf("chunk size %d: payload %d mismatch", chunkSize, i)
			}
		}
		if r.Buffered() != 0 {
			t.Errorf("chunk size %d: %d bytes left in buffer", chunkSize, r.Buffered())
		}
	}
}

func TestReassemblerRetainsPartialTail(t *testing.T) {
	var got [][]byte
	r := NewReassembler(collectPayloads(&got))

	payload := []byte("hello worker")
	frame := frameFor(payload)

	if err := r.Feed(frame[:7]); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatal("incomplete frame must not be delivered")
	}
	if r.Buffered() != 7 {
		t.Errorf("expected 7 buffered bytes, got %d", r.Buffered())
	}

	if err := r.Feed(frame[7:]); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("expected one payload %q, got %v", payload, got)
	}
}

func TestReassemblerGrowsBuffer(t *testing.T) {
	var got [][]byte
	r := NewReassembler(collectPayloads(&got))

	// Larger than the initial buffer, fed in one call.
	payload := bytes.Repeat([]byte{0xab}, initialBufferSize*3)
	if err := r.Feed(frameFor(payload)); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatal("oversized payload not reassembled correctly")
	}
}

func TestReassemblerHardLimit(t *testing.T) {
	r := NewReassembler(func([]byte) error { return nil })

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(MaxFrameHardLimit+1))
	if err := r.Feed(header[:]); err == nil {
		t.Fatal("expected error for frame beyond hard limit")
	}
}

func TestReassemblerEmitErrorStopsDelivery(t *testing.T) {
	calls := 0
	r := NewReassembler(func([]byte) error {
		calls++
		return fmt.Errorf("boom")
	})

	stream := append(frameFor([]byte("a")), frameFor([]byte("b"))...)
	if err := r.Feed(stream); err == nil {
		t.Fatal("expected emit error to propagate")
	}
	if calls != 1 {
		t.Errorf("expected delivery to stop after first emit error, got %d calls", calls)
	}
}
