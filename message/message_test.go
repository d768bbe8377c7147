package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWelcomeWire(t *testing.T) {
	m := NewWelcome("session-1")
	require.Equal(t, Welcome, m.Type)
	data, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[0,"session-1",1,1]`, string(data))
}

func TestPrefixWire(t *testing.T) {
	m := NewPrefix("calc", "http://example.com/simple/calc#")
	data, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[1,"calc","http://example.com/simple/calc#"]`, string(data))
}

func TestCallWire(t *testing.T) {
	m := NewCall("7DK6TdN4wLiUJgNM", "http://example.com/api#howdy")
	data, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[2,"7DK6TdN4wLiUJgNM","http://example.com/api#howdy"]`, string(data))

	m = NewCall("Yp9EFZt9DFkuKndg", "api:add2", 23, 99)
	data, err = Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[2,"Yp9EFZt9DFkuKndg","api:add2",23,99]`, string(data))
}

func TestCallResultWire(t *testing.T) {
	m := NewCallResult("CcDnuI2bl2oLGBzO", nil)
	data, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[3,"CcDnuI2bl2oLGBzO",null]`, string(data))

	m = NewCallResult("otZom9UsJhrnzvLa", map[string]any{"value1": "23", "value2": "singsing"})
	data, err = Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[3,"otZom9UsJhrnzvLa",{"value1":"23","value2":"singsing"}]`, string(data))
}

func TestCallErrorWire(t *testing.T) {
	m := NewCallError("gwbN3EDtFv6JvNV5", "http://autobahn.tavendo.de/error#generic", "math domain error", nil)
	data, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[4,"gwbN3EDtFv6JvNV5","http://autobahn.tavendo.de/error#generic","math domain error"]`, string(data))

	m = NewCallError("7bVW5pv8r60ZeL6u", "http://example.com/error#number_too_big", "1001 too big", []any{1001})
	data, err = Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `[4,"7bVW5pv8r60ZeL6u","http://example.com/error#number_too_big","1001 too big",[1001]]`, string(data))
}

func TestSubscribeUnsubscribeWire(t *testing.T) {
	data, err := Marshal(NewSubscribe("http://example.com/simple"))
	require.NoError(t, err)
	require.JSONEq(t, `[5,"http://example.com/simple"]`, string(data))

	data, err = Marshal(NewUnsubscribe("http://example.com/simple"))
	require.NoError(t, err)
	require.JSONEq(t, `[6,"http://example.com/simple"]`, string(data))
}

func TestPublishWire(t *testing.T) {
	// No filters: the trailing slots are omitted.
	data, err := Marshal(NewPublish("topic", "hello", nil, nil))
	require.NoError(t, err)
	require.JSONEq(t, `[7,"topic","hello"]`, string(data))

	// Exclude only.
	data, err = Marshal(NewPublish("topic", "hello", []string{"a", "b"}, nil))
	require.NoError(t, err)
	require.JSONEq(t, `[7,"topic","hello",["a","b"]]`, string(data))

	// Eligible without exclude still emits the (empty) exclude slot.
	data, err = Marshal(NewPublish("topic", "hello", nil, []string{"c"}))
	require.NoError(t, err)
	require.JSONEq(t, `[7,"topic","hello",[],["c"]]`, string(data))

	// Both lists.
	data, err = Marshal(NewPublish("topic", "hello", []string{"a"}, []string{"c"}))
	require.NoError(t, err)
	require.JSONEq(t, `[7,"topic","hello",["a"],["c"]]`, string(data))
}

func TestPublishExcludeMeWire(t *testing.T) {
	data, err := Marshal(NewPublishExcludeMe("t", "e"))
	require.NoError(t, err)
	require.Equal(t, `[7,"t","e",true]`, string(data))

	m, err := Unmarshal([]byte(`[7,"t","e",true]`))
	require.NoError(t, err)
	require.True(t, m.ExcludeMe)
	require.Empty(t, m.Exclude)
	require.Empty(t, m.Eligible)
}

func TestEventWire(t *testing.T) {
	data, err := Marshal(NewEvent("http://example.com/simple", "Hello, world!"))
	require.NoError(t, err)
	require.JSONEq(t, `[8,"http://example.com/simple","Hello, world!"]`, string(data))

	data, err = Marshal(NewEvent("http://example.com/simple", nil))
	require.NoError(t, err)
	require.JSONEq(t, `[8,"http://example.com/simple",null]`, string(data))
}

func TestWireLeadsWithTypeCode(t *testing.T) {
	msgs := []Message{
		NewWelcome("s"),
		NewPrefix("p", "u"),
		NewCall("c", "p", 1),
		NewCallResult("c", "r"),
		NewCallError("c", "u", "d", nil),
		NewSubscribe("t"),
		NewUnsubscribe("t"),
		NewPublish("t", "e", nil, nil),
		NewEvent("t", "e"),
	}
	for _, m := range msgs {
		wire := append([]any{int(m.Type)}, m.Wire()...)
		require.Equal(t, int(m.Type), wire[0], m.Type.String())
	}
}

func TestEqual(t *testing.T) {
	a := NewCall("c1", "proc", "arg")
	b := NewCall("c1", "proc", "arg")
	c := NewCall("c2", "proc", "arg")
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))

	// Same wire args under different types are not equal.
	sub := NewSubscribe("t")
	unsub := NewUnsubscribe("t")
	require.False(t, sub.Equal(unsub))
}

func TestEqualAfterRoundTrip(t *testing.T) {
	m := NewCallResult("id", map[string]any{"k": "v", "n": float64(2)})
	data, err := Marshal(m)
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
}
