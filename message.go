package buildwire

import (
	"github.com/buildwire/buildwire-go/wire"
)

// Location identifies where in a source file a diagnostic applies.
type Location struct {
	File     string
	Line     int32 // 1-based
	Column   int32 // 0-based, in bytes
	Length   int32 // in bytes
	LineText string
}

// Message is a single diagnostic produced by the worker or by a plugin
// callback.
type Message struct {
	Text     string
	Location *Location
}

// sanitizeMessages deep-clones messages so a caller or a misbehaving
// plugin callback cannot mutate a diagnostic after it entered the
// protocol payload. A nil location stays nil.
func sanitizeMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Text: m.Text}
		if m.Location != nil {
			loc := *m.Location
			out[i].Location = &loc
		}
	}
	return out
}

// encodeMessages converts messages to their wire form: a sequence of maps
// with an optional nested location map. Nil locations are carried as nil,
// not as empty maps.
func encodeMessages(msgs []Message) []interface{} {
	out := make([]interface{}, len(msgs))
	for i, m := range msgs {
		entry := map[string]interface{}{"text": m.Text}
		if m.Location != nil {
			entry["location"] = map[string]interface{}{
				"file":     m.Location.File,
				"line":     int(m.Location.Line),
				"column":   int(m.Location.Column),
				"length":   int(m.Location.Length),
				"lineText": m.Location.LineText,
			}
		}
		out[i] = entry
	}
	return out
}

// decodeMessages rebuilds messages from their wire form, coercing every
// field to its expected type. Numeric fields are truncated to 32 bits so
// loosely-typed data from the other side of the boundary cannot smuggle
// unexpected shapes into the diagnostic model.
func decodeMessages(raw []interface{}) []Message {
	msgs := make([]Message, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := wire.StringField(m, "text")
		msg := Message{Text: text}
		if loc, ok := wire.MapField(m, "location"); ok {
			file, _ := wire.StringField(loc, "file")
			lineText, _ := wire.StringField(loc, "lineText")
			line, _ := wire.IntField(loc, "line")
			column, _ := wire.IntField(loc, "column")
			length, _ := wire.IntField(loc, "length")
			msg.Location = &Location{
				File:     file,
				Line:     int32(line),
				Column:   int32(column),
				Length:   int32(length),
				LineText: lineText,
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
