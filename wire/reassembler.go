package wire

import (
	"encoding/binary"
	"fmt"
)

const initialBufferSize = 4096

// Reassembler turns arbitrary-sized chunks from the inbound byte stream
// back into complete frame payloads. A partial frame at the tail of the
// buffer is retained across calls; each complete payload is delivered to
// the emit callback exactly once, in the order its final byte arrived,
// with the length prefix stripped.
type Reassembler struct {
	emit func(payload []byte) error
	buf  []byte
	used int
}

// NewReassembler creates a reassembler delivering payloads to emit.
func NewReassembler(emit func(payload []byte) error) *Reassembler {
	return &Reassembler{
		emit: emit,
		buf:  make([]byte, initialBufferSize),
	}
}

// Buffered returns the number of bytes held for a not-yet-complete frame.
func (r *Reassembler) Buffered() int {
	return r.used
}

// Feed appends chunk to the buffer and delivers every frame the chunk
// completes. An emit error, an oversized frame, or a declared length
// beyond the hard limit stops delivery and is returned to the caller;
// framing state is not recoverable after that.
func (r *Reassembler) Feed(chunk []byte) error {
	// Grow by doubling so repeated small feeds stay amortized O(n).
	need := r.used + len(chunk)
	if need > len(r.buf) {
		size := len(r.buf) * 2
		for size < need {
			size *= 2
		}
		grown := make([]byte, size)
		copy(grown, r.buf[:r.used])
		r.buf = grown
	}
	copy(r.buf[r.used:], chunk)
	r.used += len(chunk)

	off := 0
	var emitErr error
	for r.used-off >= 4 {
		length := int(binary.LittleEndian.Uint32(r.buf[off:]))
		if length > MaxFrameHardLimit {
			emitErr = fmt.Errorf("frame size %d exceeds hard limit %d", length, MaxFrameHardLimit)
			break
		}
		if r.used-off-4 < length {
			break
		}
		// Copy out: the buffer is compacted and reused, so the payload
		// must not alias it.
		payload := make([]byte, length)
		copy(payload, r.buf[off+4:off+4+length])
		off += 4 + length
		if err := r.emit(payload); err != nil {
			emitErr = err
			break
		}
	}

	if off > 0 {
		copy(r.buf, r.buf[off:r.used])
		r.used -= off
	}
	return emitErr
}
