package session

import (
	"goa.design/wamp/callable"
	"goa.design/wamp/message"
)

// Forward receives a CALL message whose procURI has already been expanded
// against the session's prefix table. A non-nil result is wrapped in a
// CALLRESULT; a *wamp.Error return controls the CALLERROR triple; any other
// error maps to the unknown error URI. Returning (nil, nil) answers the
// call nowhere: the forward target is expected to respond through another
// channel.
type Forward = func(message.Message) (any, error)

// SetForwardHook switches the session from local procedure execution to
// call forwarding: CALL messages skip the procedure registry and are handed
// to the hook after CURIE expansion. All other dispatch behavior is
// unchanged. Install a zero Ref to restore local execution.
func (s *Session) SetForwardHook(ref callable.Ref) {
	s.forward = ref
}

// ForwardFunc adapts a free forwarding function to a callable reference.
func ForwardFunc(f Forward) callable.Ref {
	if f == nil {
		return callable.Ref{}
	}
	return callable.New(func(args ...any) (any, error) {
		m, _ := args[0].(message.Message)
		return f(m)
	})
}

// BindForward adapts a forwarding method to a callable reference with the
// receiver held weakly. A collected receiver leaves the hook inert: CALL
// messages are dropped without a response.
func BindForward[T any](recv *T, f func(*T, message.Message) (any, error)) callable.Ref {
	if recv == nil || f == nil {
		return callable.Ref{}
	}
	return callable.Bind(recv, func(r *T, args ...any) (any, error) {
		m, _ := args[0].(message.Message)
		return f(r, m)
	})
}
