package control

import (
	"context"
	"strings"
)

// Delimiter separates the command from its parameters in a raw control
// payload. There is no escaping: payloads carrying the delimiter inside a
// parameter are not supported.
const Delimiter = "::"

// Message is a decoded control command with its ordered parameters.
// An empty payload decodes to Command == "" and no parameters.
type Message struct {
	Command string
	Params  []string
}

// Parse decodes a raw UTF-8 control payload. The payload is trimmed of
// surrounding whitespace and split on the "::" delimiter; the first field
// becomes the command and the remaining fields become the parameters, in
// order.
func Parse(payload []byte) Message {
	fields := strings.Split(strings.TrimSpace(string(payload)), Delimiter)
	return Message{
		Command: fields[0],
		Params:  fields[1:],
	}
}

// MessageKind distinguishes data messages from transport control messages
// such as subscription acknowledgements.
type MessageKind int

const (
	// KindData is a payload-carrying message published on a topic
	KindData MessageKind = iota
	// KindControl is a transport-level message (subscribe/unsubscribe
	// acknowledgements and similar); these carry no command payload
	KindControl
)

// String returns the string representation of MessageKind
func (k MessageKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// BusMessage is one raw message fetched from the publish/subscribe bus.
type BusMessage struct {
	Kind    MessageKind
	Topic   string
	Payload []byte
}

// Bus is the publish/subscribe capability the control channel is built on.
// Implementations bind to exactly one topic and expose a non-blocking fetch
// of the next pending message.
type Bus interface {
	// Subscribe binds the bus to a single topic
	Subscribe(ctx context.Context, topic string) error
	// NextPending returns the next pending message without blocking, or
	// (nil, nil) when no message is waiting
	NextPending(ctx context.Context) (*BusMessage, error)
}
