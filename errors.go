package wamp

import (
	"errors"
	"fmt"
)

// Well-known error URIs carried by CALLERROR responses.
const (
	// BadPrefixURI reports a CURIE whose prefix has no PREFIX declaration.
	BadPrefixURI = "http://wamp.ws/spec/#prefix_message"
	// UnknownProcURI reports a CALL whose expanded procURI has no registered
	// procedure.
	UnknownProcURI = "http://wamp.ws/spec/#call_message"
	// UnknownErrorURI reports a procedure body failure that did not signal a
	// deliberate WAMP error.
	UnknownErrorURI = "errors/unknown"
)

// ErrHookMissing reports an inbound message that requires a hook which is not
// installed on the session. Session.Handle wraps it with the hook name.
var ErrHookMissing = errors.New("hook not installed")

type (
	// Error is a domain-level WAMP failure. Procedures raise it to control
	// the URI, description, and details of the CALLERROR sent to the peer;
	// URI expansion and procedure lookup raise it with 404 details.
	Error struct {
		// URI identifies the error class to the remote peer.
		URI string
		// Desc is a human-readable description.
		Desc string
		// Details optionally carries application-defined error data.
		Details any
	}
)

// NewError constructs a WAMP error with the given URI, description, and
// optional details.
func NewError(uri, desc string, details any) *Error {
	return &Error{URI: uri, Desc: desc, Details: details}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.URI, e.Desc)
}
