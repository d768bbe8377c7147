package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/wamp"
	"goa.design/wamp/message"
	"goa.design/wamp/pubsub"
)

// recipient plays the external call target a forwarding session hands CALL
// messages to.
type recipient struct{}

func (r *recipient) handleCall(m message.Message) (any, error) {
	switch m.ProcURI {
	case "procedure1", "procedure2":
		return map[string]any{"proc": m.ProcURI, "args": m.Args}, nil
	case "procedure3":
		// Answered elsewhere: no response from the session.
		return nil, nil
	case "wamp_error":
		return nil, wamp.NewError("some_uri", "expected error", map[string]any{"key": "value"})
	case "unknown_exception":
		return nil, errors.New("spam & eggs")
	}
	return nil, errors.New("unexpected procURI " + m.ProcURI)
}

func newForwardingSession(t *testing.T) (*Session, *recipient, *sink) {
	t.Helper()
	sess := New(WithBus(pubsub.NewRegistry().Named(t.Name())))
	out := &sink{}
	sess.SetSendHook(BindHook(out, (*sink).send))
	rec := &recipient{}
	sess.SetForwardHook(BindForward(rec, (*recipient).handleCall))
	return sess, rec, out
}

func TestForwardCall(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newForwardingSession(t)

	// Local registrations are bypassed while forwarding is installed.
	sess.RegisterProcedure("procedure2", func(args ...any) (any, error) {
		return "never", nil
	})

	require.NoError(t, sess.Handle(ctx, message.NewPrefix("proc", "procedure")))
	require.NoError(t, sess.Handle(ctx, message.NewCall("call1", "procedure1", "arg1")))
	require.NoError(t, sess.Handle(ctx, message.NewCall("call2", "proc:1", "arg2")))
	require.NoError(t, sess.Handle(ctx, message.NewCall("call3", "procedure2", "arg3")))
	require.NoError(t, sess.Handle(ctx, message.NewCall("call4", "procedure3", "arg4")))

	log := out.log()
	require.Len(t, log, 3, "a nil forward result emits no response")
	require.True(t, log[0].Equal(message.NewCallResult("call1",
		map[string]any{"proc": "procedure1", "args": []any{"arg1"}})))
	require.True(t, log[1].Equal(message.NewCallResult("call2",
		map[string]any{"proc": "procedure1", "args": []any{"arg2"}})))
	require.True(t, log[2].Equal(message.NewCallResult("call3",
		map[string]any{"proc": "procedure2", "args": []any{"arg3"}})))
}

func TestForwardWAMPError(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newForwardingSession(t)

	require.NoError(t, sess.Handle(ctx, message.NewCall("c", "wamp_error")))
	log := out.log()
	require.Len(t, log, 1)
	want := message.NewCallError("c", "some_uri", "expected error", map[string]any{"key": "value"})
	require.True(t, log[0].Equal(want), "got %s", log[0])
}

func TestForwardUnknownError(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newForwardingSession(t)

	require.NoError(t, sess.Handle(ctx, message.NewCall("c", "unknown_exception")))
	log := out.log()
	require.Len(t, log, 1)
	require.Equal(t, message.CallError, log[0].Type)
	require.Equal(t, wamp.UnknownErrorURI, log[0].ErrorURI)
	require.Equal(t, "unknown error", log[0].ErrorDesc)
	require.Contains(t, log[0].ErrorDetails.(string), "spam & eggs")
}

func TestForwardUnknownPrefix(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newForwardingSession(t)

	require.NoError(t, sess.Handle(ctx, message.NewCall("c", "not_a_prefix:x")))
	log := out.log()
	require.Len(t, log, 1)
	require.Equal(t, message.CallError, log[0].Type)
	require.Equal(t, wamp.BadPrefixURI, log[0].ErrorURI)
	require.Contains(t, log[0].ErrorDesc, "not_a_prefix")
}

func TestForwardRestoreLocalExecution(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newForwardingSession(t)
	sess.RegisterProcedure("local", func(args ...any) (any, error) { return "local", nil })

	sess.SetForwardHook(ForwardFunc(nil))
	require.NoError(t, sess.Handle(ctx, message.NewCall("c", "local")))
	log := out.log()
	require.Len(t, log, 1)
	require.True(t, log[0].Equal(message.NewCallResult("c", "local")))
}
