package bus

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// encodeMessage serializes a Message to a single buntdb value string using
// a simple pipe-delimited format: the payload, being arbitrary binary, is
// the only field that needs escaping, so it is base64-encoded.
func encodeMessage(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%d|", m.Type, m.SourceZone, m.Sequence)
	b.WriteString(base64.StdEncoding.EncodeToString(m.Payload))
	return b.String()
}

func decodeMessage(s string) (Message, error) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return Message{}, fmt.Errorf("bus: malformed record")
	}
	typ, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Message{}, fmt.Errorf("bus: malformed type: %w", err)
	}
	zone, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Message{}, fmt.Errorf("bus: malformed zone: %w", err)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("bus: malformed sequence: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return Message{}, fmt.Errorf("bus: malformed payload: %w", err)
	}
	return Message{
		Type:       MessageType(typ),
		SourceZone: uint32(zone),
		Sequence:   seq,
		Payload:    payload,
	}, nil
}
