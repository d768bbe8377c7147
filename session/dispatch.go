package session

import (
	"context"
	"errors"
	"fmt"

	"goa.design/wamp"
	"goa.design/wamp/callable"
	"goa.design/wamp/message"
	"goa.design/wamp/pubsub"
)

// Responder overrides the send hook for a single CALL response.
type Responder = func(message.Message) error

// Handle dispatches one incoming message.
//
// WELCOME overwrites the session id, PREFIX mutates the prefix table, CALL
// invokes a procedure and answers through the send hook, SUBSCRIBE /
// UNSUBSCRIBE / PUBLISH route through the session's bus, and CALLRESULT /
// CALLERROR / EVENT deliver to the corresponding typed hook.
//
// Procedure failures never escape: every CALL is answered with a CALLRESULT
// or CALLERROR. When an inbound message requires a hook that is not
// installed, Handle drops the message and returns an error wrapping
// wamp.ErrHookMissing; a hook whose weak receiver has been collected is
// inert and the message is dropped silently.
//
// Handle is safe to invoke concurrently for different sessions. Concurrent
// calls on one session require the caller to serialize mutations to the
// session's registries.
func (s *Session) Handle(ctx context.Context, m message.Message) error {
	return s.handle(ctx, m, nil)
}

// HandleWithResponder is Handle with a per-call response override: when m is
// a CALL, its CALLRESULT or CALLERROR is delivered to respond instead of the
// send hook. Other message types dispatch as in Handle.
func (s *Session) HandleWithResponder(ctx context.Context, m message.Message, respond Responder) error {
	return s.handle(ctx, m, respond)
}

func (s *Session) handle(ctx context.Context, m message.Message, respond Responder) error {
	s.metrics.IncCounter("wamp_messages_handled", 1, "type", m.Type.String())
	switch m.Type {
	case message.Welcome:
		s.logger.Debug(ctx, "session: welcome", "session", m.SessionID)
		s.id = m.SessionID
		return nil

	case message.Prefix:
		s.prefixes[m.Prefix] = m.URI
		return nil

	case message.Call:
		return s.handleCall(ctx, m, respond)

	case message.CallResult:
		return s.deliver(ctx, s.callResult, "callresult", m)

	case message.CallError:
		return s.deliver(ctx, s.callError, "callerror", m)

	case message.Subscribe:
		pubsub.Subscribe(s.bus, s, s.id, m.TopicURI, s.pubsubCB)
		return nil

	case message.Unsubscribe:
		key, topic := s.id, m.TopicURI
		cb := s.pubsubCB
		s.bus.Unsubscribe(pubsub.Filter{
			Subscriber: s,
			Key:        &key,
			Topic:      &topic,
			Callback:   &cb,
		})
		return nil

	case message.Publish:
		exclude, eligible := m.Exclude, m.Eligible
		if m.ExcludeMe {
			exclude, eligible = []string{s.id}, nil
		}
		s.bus.Publish(ctx, m.TopicURI, m.Event, exclude, eligible)
		return nil

	case message.Event:
		return s.deliver(ctx, s.event, "event", m)
	}
	return fmt.Errorf("%w: %v", message.ErrInvalidType, m.Type)
}

// handleCall resolves and invokes the procedure (or forwards the message)
// and delivers the response through the per-call responder when supplied,
// the send hook otherwise.
func (s *Session) handleCall(ctx context.Context, m message.Message, respond Responder) error {
	result, answered, err := s.invokeCall(ctx, m)
	if err == nil && !answered {
		return nil
	}
	var response message.Message
	var werr *wamp.Error
	switch {
	case err == nil:
		response = message.NewCallResult(m.CallID, result)
	case errors.As(err, &werr):
		response = message.NewCallError(m.CallID, werr.URI, werr.Desc, werr.Details)
	default:
		response = message.NewCallError(m.CallID, wamp.UnknownErrorURI, "unknown error", err.Error())
	}
	if response.Type == message.CallError {
		s.logger.Debug(ctx, "session: call failed",
			"call", m.CallID, "proc", m.ProcURI, "error_uri", response.ErrorURI)
	}
	if respond != nil {
		return respond(response)
	}
	return s.sendMessage(ctx, response)
}

// invokeCall runs the CALL body. The answered result reports whether a
// response message should be produced: a forward hook that returns nil
// without error answers the call elsewhere, so no response is emitted.
func (s *Session) invokeCall(ctx context.Context, m message.Message) (result any, answered bool, err error) {
	if !s.forward.IsZero() {
		expanded, err := s.ExpandURI(m.ProcURI)
		if err != nil {
			return nil, true, err
		}
		forwarded := m
		forwarded.ProcURI = expanded
		res, err := s.forward.Call(forwarded)
		if errors.Is(err, callable.ErrReceiverCollected) {
			s.logger.Debug(ctx, "session: forward hook receiver collected", "call", m.CallID)
			return nil, false, nil
		}
		if err != nil {
			return nil, true, err
		}
		if res == nil {
			return nil, false, nil
		}
		return res, true, nil
	}

	proc, err := s.ProcForURI(m.ProcURI)
	if err != nil {
		return nil, true, err
	}
	res, err := proc.Call(m.Args...)
	if err != nil {
		return nil, true, err
	}
	return res, true, nil
}

// deliver hands an inbound message to a typed hook. A missing hook drops
// the message and reports wamp.ErrHookMissing; a collected hook receiver is
// inert and drops silently.
func (s *Session) deliver(ctx context.Context, hook callable.Ref, name string, m message.Message) error {
	if hook.IsZero() {
		s.logger.Debug(ctx, "session: dropping message, hook not installed",
			"hook", name, "type", m.Type.String())
		return fmt.Errorf("%s: %w", name, wamp.ErrHookMissing)
	}
	_, err := hook.Call(m)
	if errors.Is(err, callable.ErrReceiverCollected) {
		s.logger.Debug(ctx, "session: dropping message, hook receiver collected",
			"hook", name, "type", m.Type.String())
		return nil
	}
	return err
}

// sendMessage pushes an outbound message through the send hook.
func (s *Session) sendMessage(ctx context.Context, m message.Message) error {
	return s.deliver(ctx, s.send, "send", m)
}

// pubsubEvent bridges the bus to the wire: a published event on a
// subscribed topic is wrapped in an EVENT message and pushed through the
// send hook. Registered on the bus as the session's subscription callback.
func (s *Session) pubsubEvent(args ...any) (any, error) {
	topic, _ := args[0].(string)
	var event any
	if len(args) > 1 {
		event = args[1]
	}
	return nil, s.sendMessage(context.Background(), message.NewEvent(topic, event))
}
