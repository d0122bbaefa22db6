package wire

import (
	"errors"
)

var (
	// ErrClosed is reported for requests issued after the channel closed.
	ErrClosed = errors.New("the channel is closed")

	// ErrStopped is reported to every request still pending when the
	// channel closes.
	ErrStopped = errors.New("the service was stopped")
)

// ResponseFunc receives the outcome of one request. It fires exactly once:
// with the decoded response value, or with an error when the response
// carries an error field, the write fails, or the channel closes first.
type ResponseFunc func(value map[string]interface{}, err error)

// Handler services an inbound request from the worker. A returned error is
// written back as an {error} response, never propagated: the worker must
// receive a response for every request it sends or its own correlation
// table leaks an entry.
type Handler func(value map[string]interface{}) (map[string]interface{}, error)

// Channel correlates outbound requests with inbound responses over a
// framed byte stream. It owns the outbound write function, the
// reassembler, and the pending-request table, and knows nothing about the
// transport underneath.
//
// The channel performs no locking of its own: Send, Ingress and Close
// must be serialized by the caller (single-writer discipline). All
// completion is delivered through callbacks; nothing here blocks.
type Channel struct {
	write   func(frame []byte) error
	handler Handler
	rs      *Reassembler
	nextID  uint32
	pending map[uint32]ResponseFunc
	closed  bool
}

// NewChannel creates a channel writing outbound frames through write and
// dispatching inbound requests to handler.
func NewChannel(write func(frame []byte) error, handler Handler) *Channel {
	c := &Channel{
		write:   write,
		handler: handler,
		pending: make(map[uint32]ResponseFunc),
	}
	c.rs = NewReassembler(c.dispatch)
	return c
}

// Pending returns the number of outstanding requests.
func (c *Channel) Pending() int {
	return len(c.pending)
}

// Send issues one request. The identifier is assigned here, monotonically
// increasing per channel, and stays unique among outstanding requests
// because an entry leaves the table before its callback runs. After Close,
// the callback fires synchronously with ErrClosed instead of writing.
func (c *Channel) Send(value map[string]interface{}, callback ResponseFunc) {
	if c.closed {
		callback(nil, ErrClosed)
		return
	}

	id := c.nextID
	c.nextID++

	frame, err := EncodePacket(Packet{ID: id, IsRequest: true, Value: value})
	if err != nil {
		callback(nil, err)
		return
	}

	c.pending[id] = callback
	if err := c.write(frame); err != nil {
		delete(c.pending, id)
		callback(nil, err)
	}
}

// Ingress feeds a chunk of inbound bytes. Completed frames are decoded and
// dispatched before Ingress returns. A framing or decode failure is fatal
// and returned to the caller; the stream cannot be resynchronized.
func (c *Channel) Ingress(chunk []byte) error {
	return c.rs.Feed(chunk)
}

func (c *Channel) dispatch(payload []byte) error {
	p, err := DecodePacket(payload)
	if err != nil {
		return err
	}

	if p.IsRequest {
		return c.handleRequest(p)
	}

	callback, ok := c.pending[p.ID]
	if !ok {
		// Response for an unknown or already-torn-down request. Drop it:
		// closure already failed the callback.
		return nil
	}
	delete(c.pending, p.ID)

	if msg, ok := StringField(p.Value, "error"); ok && msg != "" {
		callback(nil, errors.New(msg))
	} else {
		callback(p.Value, nil)
	}
	return nil
}

// handleRequest runs the inbound handler and always writes a response
// back under the request's identifier, converting a handler error into an
// in-band {error} value.
func (c *Channel) handleRequest(p Packet) error {
	var value map[string]interface{}
	if c.handler == nil {
		value = map[string]interface{}{"error": "no inbound request handler"}
	} else {
		result, err := c.handler(p.Value)
		if err != nil {
			value = map[string]interface{}{"error": err.Error()}
		} else if result == nil {
			value = map[string]interface{}{}
		} else {
			value = result
		}
	}

	frame, err := EncodePacket(Packet{ID: p.ID, IsRequest: false, Value: value})
	if err != nil {
		// The handler produced an unencodable value. Still answer.
		frame, err = EncodePacket(Packet{ID: p.ID, IsRequest: false, Value: map[string]interface{}{
			"error": err.Error(),
		}})
		if err != nil {
			return err
		}
	}
	return c.write(frame)
}

// Close marks the channel closed and fails every still-pending request
// exactly once with ErrStopped. A second Close is a no-op.
func (c *Channel) Close() {
	if c.closed {
		return
	}
	c.closed = true

	for id, callback := range c.pending {
		delete(c.pending, id)
		callback(nil, ErrStopped)
	}
}
