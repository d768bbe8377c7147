// Package callable provides weak-receiver callbacks for the session and
// pub/sub registries.
//
// A Ref wraps a callback in the module's canonical shape, func(args ...any)
// (any, error). When the callback is a method, the receiver is held through
// a weak pointer so that storing the Ref in a registry never extends the
// receiver's lifetime. Once the receiver is collected the Ref becomes inert:
// Call returns ErrReceiverCollected so owning registries can prune it.
//
// Refs compare on identity, not behavior: two Refs are equal when they wrap
// the same function, have the same bind state, and reference the same live
// receiver. The hash is captured at construction and is stable for the life
// of the Ref, so it can key registry entries even after the receiver dies.
package callable

import (
	"errors"
	"reflect"
	"weak"
)

// Func is the canonical callback shape stored by the module's registries.
type Func func(args ...any) (any, error)

// ErrReceiverCollected reports a call on a bound Ref whose receiver has been
// garbage collected.
var ErrReceiverCollected = errors.New("callable: receiver collected")

type (
	// Ref is a callback reference with an optionally weak-bound receiver.
	// The zero value is the absent callback; IsZero reports it.
	Ref struct {
		fn     Func
		fnID   uintptr
		recv   receiverRef
		recvID uintptr
		bound  bool
		hash   uint64
	}

	// receiverRef erases the receiver type of a weak pointer so Refs with
	// different receiver types can live in one registry.
	receiverRef interface {
		deref() (any, bool)
	}

	weakReceiver[T any] struct {
		p weak.Pointer[T]
	}
)

func (w weakReceiver[T]) deref() (any, bool) {
	v := w.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// New wraps a free function. The Ref holds fn strongly; there is no receiver
// to collect, so the Ref is always alive.
func New(fn Func) Ref {
	if fn == nil {
		return Ref{}
	}
	id := funcID(fn)
	return Ref{fn: fn, fnID: id, hash: uint64(id)}
}

// Bind wraps a method with its receiver held weakly. Pass the method
// expression, not a method value: the method value closes over the receiver
// and would defeat the weak reference.
//
//	ref := callable.Bind(obj, (*Obj).Handle)
//
// Two Bind calls with the same method expression and receiver produce equal
// Refs, which is what lets a registry match a later unsubscribe against an
// earlier subscribe.
func Bind[T any](recv *T, fn func(*T, ...any) (any, error)) Ref {
	if recv == nil || fn == nil {
		return Ref{}
	}
	w := weakReceiver[T]{p: weak.Make(recv)}
	fnID := funcID(fn)
	recvID := reflect.ValueOf(recv).Pointer()
	call := func(args ...any) (any, error) {
		r := w.p.Value()
		if r == nil {
			return nil, ErrReceiverCollected
		}
		return fn(r, args...)
	}
	return Ref{
		fn:     call,
		fnID:   fnID,
		recv:   w,
		recvID: recvID,
		bound:  true,
		hash:   uint64(fnID ^ recvID),
	}
}

// IsZero reports whether the Ref is the absent callback.
func (r Ref) IsZero() bool {
	return r.fn == nil
}

// Bound reports whether the Ref wraps a method with a weak receiver.
func (r Ref) Bound() bool {
	return r.bound
}

// Alive reports whether a call would reach the wrapped function: true for
// unbound Refs, and for bound Refs whose receiver is still live.
func (r Ref) Alive() bool {
	if r.fn == nil {
		return false
	}
	if !r.bound {
		return true
	}
	_, ok := r.recv.deref()
	return ok
}

// Receiver reverts the Ref to its receiver. It reports false for unbound
// Refs and for bound Refs whose receiver has been collected.
func (r Ref) Receiver() (any, bool) {
	if !r.bound {
		return nil, false
	}
	return r.recv.deref()
}

// Call invokes the wrapped function. A bound Ref whose receiver has been
// collected is inert and returns ErrReceiverCollected.
func (r Ref) Call(args ...any) (any, error) {
	if r.fn == nil {
		return nil, ErrReceiverCollected
	}
	return r.fn(args...)
}

// Equal reports identity equality: same wrapped function, same bind state,
// and the same dereferenced receiver. Two bound Refs whose receivers have
// both been collected compare equal when the rest of their identity matches.
func (r Ref) Equal(o Ref) bool {
	if r.fnID != o.fnID || r.bound != o.bound || r.hash != o.hash {
		return false
	}
	if !r.bound {
		return true
	}
	a, aok := r.recv.deref()
	b, bok := o.recv.deref()
	if aok != bok {
		return false
	}
	if !aok {
		return r.recvID == o.recvID
	}
	return a == b
}

// Hash returns the identity hash captured at construction. It is stable for
// the life of the Ref, including after the receiver is collected.
func (r Ref) Hash() uint64 {
	return r.hash
}

// ID returns the identity tuple used by registries for set semantics.
func (r Ref) ID() (fnID, recvID uintptr, bound bool) {
	return r.fnID, r.recvID, r.bound
}

// funcID captures the identity of a function value. Named functions and
// method expressions have one identity per function; closures created from
// the same literal share one, which is why registries combine it with the
// receiver identity.
func funcID(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
