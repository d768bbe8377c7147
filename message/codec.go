package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed reports a JSON payload the codec rejects: not an array, an
// unknown type code, a variant arity violation, or mutually exclusive
// PUBLISH filter forms.
var ErrMalformed = errors.New("malformed message")

// Marshal encodes the message as its JSON array wire form,
// [type_code, variant_args...].
func Marshal(m Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, m.Type)
	}
	return json.Marshal(append([]any{int(m.Type)}, m.Wire()...))
}

// Unmarshal decodes a JSON array wire form into a Message. The first element
// selects the variant; the remaining elements are applied positionally per
// the variant's constructor contract. CALL absorbs extra elements into Args
// and PUBLISH absorbs up to two filter slots; any other arity violation
// fails with ErrMalformed.
func Unmarshal(data []byte) (Message, error) {
	var wire []any
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(wire) == 0 {
		return Message{}, fmt.Errorf("%w: empty array", ErrMalformed)
	}
	code, ok := wireInt(wire[0])
	if !ok {
		return Message{}, fmt.Errorf("%w: non-integer type code %v", ErrMalformed, wire[0])
	}
	typ, err := TypeOf(code)
	if err != nil {
		return Message{}, fmt.Errorf("%w: unknown type code %d", ErrMalformed, code)
	}
	return fromWire(typ, wire[1:])
}

// fromWire applies the positional wire arguments to the variant constructor.
func fromWire(typ Type, args []any) (Message, error) {
	switch typ {
	case Welcome:
		if len(args) < 1 || len(args) > 3 {
			return Message{}, arityError(typ, len(args))
		}
		sessionID, ok := args[0].(string)
		if !ok {
			return Message{}, fieldError(typ, "session_id", args[0])
		}
		m := NewWelcome(sessionID)
		if len(args) > 1 {
			version, ok := wireInt(args[1])
			if !ok {
				return Message{}, fieldError(typ, "protocol_version", args[1])
			}
			m.ProtocolVersion = version
		}
		if len(args) > 2 {
			m.ServerIdent = args[2]
		}
		return m, nil

	case Prefix:
		if len(args) != 2 {
			return Message{}, arityError(typ, len(args))
		}
		prefix, pok := args[0].(string)
		uri, uok := args[1].(string)
		if !pok || !uok {
			return Message{}, fieldError(typ, "prefix/uri", args)
		}
		return NewPrefix(prefix, uri), nil

	case Call:
		if len(args) < 2 {
			return Message{}, arityError(typ, len(args))
		}
		callID, cok := args[0].(string)
		procURI, pok := args[1].(string)
		if !cok || !pok {
			return Message{}, fieldError(typ, "call_id/proc_uri", args)
		}
		return NewCall(callID, procURI, args[2:]...), nil

	case CallResult:
		if len(args) != 2 {
			return Message{}, arityError(typ, len(args))
		}
		callID, ok := args[0].(string)
		if !ok {
			return Message{}, fieldError(typ, "call_id", args[0])
		}
		return NewCallResult(callID, args[1]), nil

	case CallError:
		if len(args) < 3 || len(args) > 4 {
			return Message{}, arityError(typ, len(args))
		}
		callID, cok := args[0].(string)
		errorURI, uok := args[1].(string)
		errorDesc, dok := args[2].(string)
		if !cok || !uok || !dok {
			return Message{}, fieldError(typ, "call_id/error_uri/error_desc", args)
		}
		var details any
		if len(args) == 4 {
			details = args[3]
		}
		return NewCallError(callID, errorURI, errorDesc, details), nil

	case Subscribe, Unsubscribe:
		if len(args) != 1 {
			return Message{}, arityError(typ, len(args))
		}
		topic, ok := args[0].(string)
		if !ok {
			return Message{}, fieldError(typ, "topic_uri", args[0])
		}
		if typ == Subscribe {
			return NewSubscribe(topic), nil
		}
		return NewUnsubscribe(topic), nil

	case Publish:
		if len(args) < 2 || len(args) > 4 {
			return Message{}, arityError(typ, len(args))
		}
		topic, ok := args[0].(string)
		if !ok {
			return Message{}, fieldError(typ, "topic_uri", args[0])
		}
		if len(args) == 2 {
			return NewPublish(topic, args[1], nil, nil), nil
		}
		if excludeMe, isBool := args[2].(bool); isBool {
			if len(args) > 3 {
				return Message{}, fmt.Errorf("%w: PUBLISH eligible list requires an exclude list", ErrMalformed)
			}
			if !excludeMe {
				return Message{}, fmt.Errorf("%w: PUBLISH exclude flag must be true", ErrMalformed)
			}
			return NewPublishExcludeMe(topic, args[1]), nil
		}
		exclude, err := wireKeys(typ, "exclude", args[2])
		if err != nil {
			return Message{}, err
		}
		var eligible []string
		if len(args) == 4 {
			if eligible, err = wireKeys(typ, "eligible", args[3]); err != nil {
				return Message{}, err
			}
		}
		return NewPublish(topic, args[1], exclude, eligible), nil

	case Event:
		if len(args) != 2 {
			return Message{}, arityError(typ, len(args))
		}
		topic, ok := args[0].(string)
		if !ok {
			return Message{}, fieldError(typ, "topic_uri", args[0])
		}
		return NewEvent(topic, args[1]), nil
	}
	return Message{}, fmt.Errorf("%w: %v", ErrMalformed, typ)
}

// wireInt narrows a decoded JSON number to an int, rejecting fractional
// values.
func wireInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// wireKeys narrows a decoded JSON array to a list of subscriber keys.
func wireKeys(typ Type, field string, v any) ([]string, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, fieldError(typ, field, v)
	}
	keys := make([]string, len(elems))
	for i, e := range elems {
		s, ok := e.(string)
		if !ok {
			return nil, fieldError(typ, field, e)
		}
		keys[i] = s
	}
	return keys, nil
}

func arityError(typ Type, n int) error {
	return fmt.Errorf("%w: %s does not accept %d arguments", ErrMalformed, typ, n)
}

func fieldError(typ Type, field string, v any) error {
	return fmt.Errorf("%w: %s %s: unexpected value %v", ErrMalformed, typ, field, v)
}
