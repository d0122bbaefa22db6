package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR map keys for the packet envelope. Integer keys keep the envelope
// compact and match the worker's decoder exactly.
const (
	keyID        = 0 // id (u32)
	keyIsRequest = 1 // is_request (bool)
	keyValue     = 2 // value (map, optional - absent means empty)
)

// EncodePacket encodes a packet into a complete wire frame: a 4-byte
// little-endian payload length followed by the CBOR payload.
func EncodePacket(p Packet) ([]byte, error) {
	m := map[int]interface{}{
		keyID:        p.ID,
		keyIsRequest: p.IsRequest,
	}
	if len(p.Value) > 0 {
		m[keyValue] = p.Value
	}

	payload, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode packet %d: %w", p.ID, err)
	}
	if len(payload) > MaxFrameHardLimit {
		return nil, fmt.Errorf("encoded packet %d is %d bytes, exceeds hard limit %d", p.ID, len(payload), MaxFrameHardLimit)
	}

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

// DecodePacket decodes one complete frame payload (length prefix already
// stripped by the reassembler). A decode failure is fatal to the stream:
// framing state cannot be recovered once a payload is malformed.
func DecodePacket(payload []byte) (Packet, error) {
	var m map[int]interface{}
	if err := cbor.Unmarshal(payload, &m); err != nil {
		return Packet{}, fmt.Errorf("decode packet: %w", err)
	}

	p := Packet{Value: map[string]interface{}{}}

	idVal, ok := m[keyID]
	if !ok {
		return Packet{}, errors.New("decode packet: missing id (key 0)")
	}
	switch id := idVal.(type) {
	case uint64:
		p.ID = uint32(id)
	case int64:
		if id < 0 {
			return Packet{}, errors.New("decode packet: id must be non-negative")
		}
		p.ID = uint32(id)
	default:
		return Packet{}, errors.New("decode packet: id must be uint")
	}

	reqVal, ok := m[keyIsRequest]
	if !ok {
		return Packet{}, errors.New("decode packet: missing is_request (key 1)")
	}
	isRequest, ok := reqVal.(bool)
	if !ok {
		return Packet{}, errors.New("decode packet: is_request must be bool")
	}
	p.IsRequest = isRequest

	if valueVal, ok := m[keyValue]; ok {
		value, ok := normalizeValue(valueVal).(map[string]interface{})
		if !ok {
			return Packet{}, errors.New("decode packet: value must be a map")
		}
		p.Value = value
	}

	return p, nil
}
