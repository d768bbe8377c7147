// Package message implements the WAMP v1 message model: a nine-variant
// tagged union with a bidirectional JSON-array codec.
//
// Every message is a Message value whose Type discriminant selects which
// fields are meaningful. Variant constructors enforce the constructor
// contracts (defaulted WELCOME fields, the PUBLISH exclude-me shorthand,
// optional CALLERROR details); Marshal and Unmarshal convert between Message
// values and the JSON array wire form.
package message

import "fmt"

type (
	// Message is the tagged union of the nine WAMP v1 message variants. Only
	// the fields of the variant selected by Type are meaningful; the rest
	// hold zero values.
	Message struct {
		// Type discriminates the variant.
		Type Type

		// SessionID is the WELCOME session identifier.
		SessionID string
		// ProtocolVersion is the WELCOME protocol version (1 for WAMP v1).
		ProtocolVersion int
		// ServerIdent identifies the server in WELCOME.
		ServerIdent any

		// Prefix and URI carry the PREFIX declaration.
		Prefix string
		URI    string

		// CallID correlates CALL, CALLRESULT, and CALLERROR.
		CallID string
		// ProcURI is the CALL procedure URI or CURIE.
		ProcURI string
		// Args are the CALL arguments; may be empty.
		Args []any
		// Result is the CALLRESULT payload.
		Result any
		// ErrorURI, ErrorDesc, and ErrorDetails carry the CALLERROR triple.
		// ErrorDetails is omitted from the wire form when nil.
		ErrorURI     string
		ErrorDesc    string
		ErrorDetails any

		// TopicURI names the SUBSCRIBE/UNSUBSCRIBE/PUBLISH/EVENT topic.
		TopicURI string
		// Event is the PUBLISH or EVENT payload.
		Event any
		// ExcludeMe is the PUBLISH exclude-me shorthand. It is mutually
		// exclusive with Exclude and Eligible.
		ExcludeMe bool
		// Exclude lists subscriber keys that must not receive the event.
		Exclude []string
		// Eligible, when non-empty, restricts delivery to the listed keys.
		Eligible []string
	}
)

// NewWelcome constructs a WELCOME message announcing the given session id
// with protocol version 1 and server ident 1.
func NewWelcome(sessionID string) Message {
	return Message{
		Type:            Welcome,
		SessionID:       sessionID,
		ProtocolVersion: 1,
		ServerIdent:     1,
	}
}

// NewPrefix constructs a PREFIX message declaring prefix as shorthand for
// uri.
func NewPrefix(prefix, uri string) Message {
	return Message{Type: Prefix, Prefix: prefix, URI: uri}
}

// NewCall constructs a CALL message invoking procURI with the given
// arguments.
func NewCall(callID, procURI string, args ...any) Message {
	return Message{Type: Call, CallID: callID, ProcURI: procURI, Args: args}
}

// NewCallResult constructs a CALLRESULT message answering callID.
func NewCallResult(callID string, result any) Message {
	return Message{Type: CallResult, CallID: callID, Result: result}
}

// NewCallError constructs a CALLERROR message answering callID. A nil
// details value is omitted from the wire form.
func NewCallError(callID, errorURI, errorDesc string, details any) Message {
	return Message{
		Type:         CallError,
		CallID:       callID,
		ErrorURI:     errorURI,
		ErrorDesc:    errorDesc,
		ErrorDetails: details,
	}
}

// NewSubscribe constructs a SUBSCRIBE message for the given topic.
func NewSubscribe(topicURI string) Message {
	return Message{Type: Subscribe, TopicURI: topicURI}
}

// NewUnsubscribe constructs an UNSUBSCRIBE message for the given topic.
func NewUnsubscribe(topicURI string) Message {
	return Message{Type: Unsubscribe, TopicURI: topicURI}
}

// NewPublish constructs a PUBLISH message with explicit exclude and eligible
// key lists. Either list may be nil. The exclude-me shorthand is a separate
// constructor because the two forms are mutually exclusive on the wire.
func NewPublish(topicURI string, event any, exclude, eligible []string) Message {
	return Message{
		Type:     Publish,
		TopicURI: topicURI,
		Event:    event,
		Exclude:  exclude,
		Eligible: eligible,
	}
}

// NewPublishExcludeMe constructs a PUBLISH message with the exclude-me
// shorthand: the publisher asks not to receive its own event.
func NewPublishExcludeMe(topicURI string, event any) Message {
	return Message{Type: Publish, TopicURI: topicURI, Event: event, ExcludeMe: true}
}

// NewEvent constructs an EVENT message delivering event on topicURI.
func NewEvent(topicURI string, event any) Message {
	return Message{Type: Event, TopicURI: topicURI, Event: event}
}

// Wire returns the message payload as the positional argument list that
// follows the type code on the wire. Optional trailing slots are omitted per
// the minimal-form rules: CALLERROR drops a nil details slot, PUBLISH drops
// empty filter arrays and emits only exclude when eligible is empty.
func (m Message) Wire() []any {
	switch m.Type {
	case Welcome:
		return []any{m.SessionID, m.ProtocolVersion, m.ServerIdent}
	case Prefix:
		return []any{m.Prefix, m.URI}
	case Call:
		args := []any{m.CallID, m.ProcURI}
		return append(args, m.Args...)
	case CallResult:
		return []any{m.CallID, m.Result}
	case CallError:
		args := []any{m.CallID, m.ErrorURI, m.ErrorDesc}
		if m.ErrorDetails != nil {
			args = append(args, m.ErrorDetails)
		}
		return args
	case Subscribe, Unsubscribe:
		return []any{m.TopicURI}
	case Publish:
		args := []any{m.TopicURI, m.Event}
		switch {
		case m.ExcludeMe:
			args = append(args, true)
		case len(m.Exclude) > 0 || len(m.Eligible) > 0:
			args = append(args, stringsToWire(m.Exclude))
			if len(m.Eligible) > 0 {
				args = append(args, stringsToWire(m.Eligible))
			}
		}
		return args
	case Event:
		return []any{m.TopicURI, m.Event}
	}
	return nil
}

// Equal reports structural equality: both messages have the same type code
// and element-wise equal JSON-array encodings.
func (m Message) Equal(o Message) bool {
	if m.Type != o.Type {
		return false
	}
	a, erra := Marshal(m)
	b, errb := Marshal(o)
	if erra != nil || errb != nil {
		return false
	}
	return string(a) == string(b)
}

// String returns the compact JSON wire form, or a diagnostic string when the
// message does not encode.
func (m Message) String() string {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Sprintf("%s(unencodable: %v)", m.Type, err)
	}
	return string(data)
}

// stringsToWire widens a key list so nil encodes as the empty JSON array.
func stringsToWire(keys []string) []any {
	wire := make([]any, len(keys))
	for i, k := range keys {
		wire[i] = k
	}
	return wire
}
