package session

import (
	"goa.design/wamp/callable"
	"goa.design/wamp/message"
)

// Hook is the shape of a session message hook: a single-message callback.
// The send hook receives every outbound message; the typed hooks receive
// inbound CALLRESULT, CALLERROR, and EVENT messages respectively.
type Hook = func(message.Message) error

// HookFunc adapts a free-function hook to a callable reference. The
// function is held strongly.
func HookFunc(h Hook) callable.Ref {
	if h == nil {
		return callable.Ref{}
	}
	return callable.New(func(args ...any) (any, error) {
		m, _ := args[0].(message.Message)
		return nil, h(m)
	})
}

// BindHook adapts a method hook to a callable reference with the receiver
// held weakly: installing the hook does not keep recv alive, and the hook
// goes inert once recv is collected. Pass the method expression:
//
//	s.SetSendHook(session.BindHook(peer, (*Peer).Send))
func BindHook[T any](recv *T, h func(*T, message.Message) error) callable.Ref {
	if recv == nil || h == nil {
		return callable.Ref{}
	}
	return callable.Bind(recv, func(r *T, args ...any) (any, error) {
		m, _ := args[0].(message.Message)
		return nil, h(r, m)
	})
}

// SetSendHook installs the outbound sink invoked with every message the
// session emits.
func (s *Session) SetSendHook(ref callable.Ref) {
	s.send = ref
}

// SetCallResultHook installs the hook invoked with inbound CALLRESULT
// messages.
func (s *Session) SetCallResultHook(ref callable.Ref) {
	s.callResult = ref
}

// SetCallErrorHook installs the hook invoked with inbound CALLERROR
// messages.
func (s *Session) SetCallErrorHook(ref callable.Ref) {
	s.callError = ref
}

// SetEventHook installs the hook invoked with inbound EVENT messages.
func (s *Session) SetEventHook(ref callable.Ref) {
	s.event = ref
}
