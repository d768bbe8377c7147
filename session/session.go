// Package session implements the per-peer WAMP v1 protocol engine.
//
// A Session owns the peer's CURIE prefix table, its RPC procedure registry,
// and four message hooks, and dispatches incoming messages into procedure
// invocations, subscription mutations on a shared pubsub bus, and hook
// deliveries. Outbound messages leave through the send hook; the session
// never touches a transport directly.
//
// Sessions are created with a fresh UUID session id and join the
// process-wide "WAMPSessions" bus unless another bus is injected. The
// session's own tables are not synchronized: callers that handle messages
// for one session from multiple goroutines must serialize mutations to the
// prefix table, the procedure registry, and the hook slots.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"goa.design/wamp"
	"goa.design/wamp/callable"
	"goa.design/wamp/pubsub"
	"goa.design/wamp/telemetry"
)

// DefaultBusName is the process-wide bus sessions join unless WithBus
// overrides it.
const DefaultBusName = "WAMPSessions"

type (
	// Session is the per-peer protocol state container.
	Session struct {
		id         string
		prefixes   map[string]string
		procedures map[string]callable.Ref

		send       callable.Ref
		callResult callable.Ref
		callError  callable.Ref
		event      callable.Ref
		forward    callable.Ref

		bus      *pubsub.Bus
		pubsubCB callable.Ref

		logger  telemetry.Logger
		metrics telemetry.Metrics
	}

	// Procedure is the shape of a locally registered RPC procedure. The
	// returned value becomes the CALLRESULT payload; a *wamp.Error return
	// controls the CALLERROR triple, any other error maps to the unknown
	// error URI.
	Procedure = func(args ...any) (any, error)

	// Option configures a Session at construction.
	Option func(*Session)
)

// WithBus joins the session to the given bus instead of the default
// process-wide bus.
func WithBus(bus *pubsub.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the logger used by message dispatch. Defaults to a no-op.
func WithLogger(logger telemetry.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the metrics recorder used by message dispatch. Defaults
// to a no-op.
func WithMetrics(metrics telemetry.Metrics) Option {
	return func(s *Session) { s.metrics = metrics }
}

// New constructs a session with a fresh UUID session id, empty prefix and
// procedure tables, and no installed hooks.
func New(opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		prefixes:   make(map[string]string),
		procedures: make(map[string]callable.Ref),
		logger:     telemetry.NewNoopLogger(),
		metrics:    telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = pubsub.Named(DefaultBusName)
	}
	s.pubsubCB = callable.Bind(s, (*Session).pubsubEvent)
	return s
}

// ID returns the session id: a generated UUID until a WELCOME message
// overwrites it.
func (s *Session) ID() string {
	return s.id
}

// Bus returns the pubsub bus the session routes SUBSCRIBE, UNSUBSCRIBE, and
// PUBLISH messages through.
func (s *Session) Bus() *pubsub.Bus {
	return s.bus
}

// RegisterProcedure stores procedure at uri, silently overwriting any
// previous registration. The procedure is held strongly; use
// RegisterBoundProcedure for method procedures that must not pin their
// receiver.
func (s *Session) RegisterProcedure(uri string, procedure Procedure) {
	s.procedures[uri] = callable.New(procedure)
}

// RegisterProcedureRef stores a prebuilt callable reference at uri.
func (s *Session) RegisterProcedureRef(uri string, ref callable.Ref) {
	s.procedures[uri] = ref
}

// RegisterBoundProcedure stores a method procedure at uri with its receiver
// held weakly: the registration does not keep recv alive, and calls after
// recv is collected answer with an unknown-error CALLERROR.
func RegisterBoundProcedure[T any](s *Session, uri string, recv *T, procedure func(*T, ...any) (any, error)) {
	s.procedures[uri] = callable.Bind(recv, procedure)
}

// ExpandURI resolves a CURIE of the form "prefix:iri" against the session's
// prefix table. URIs without a colon, or with more than one, are opaque and
// returned unchanged. An unknown prefix fails with a *wamp.Error carrying
// the bad-prefix URI and 404 details.
func (s *Session) ExpandURI(uri string) (string, error) {
	parts := strings.Split(uri, ":")
	if len(parts) != 2 {
		return uri, nil
	}
	base, ok := s.prefixes[parts[0]]
	if !ok {
		return "", wamp.NewError(
			wamp.BadPrefixURI,
			fmt.Sprintf("unrecognized prefix: %q", parts[0]),
			map[string]any{"code": 404},
		)
	}
	return base + parts[1], nil
}

// ProcForURI expands uri and returns the registered procedure reference. A
// missing registration fails with a *wamp.Error carrying the unknown-proc
// URI and 404 details.
func (s *Session) ProcForURI(uri string) (callable.Ref, error) {
	expanded, err := s.ExpandURI(uri)
	if err != nil {
		return callable.Ref{}, err
	}
	ref, ok := s.procedures[expanded]
	if !ok {
		return callable.Ref{}, wamp.NewError(
			wamp.UnknownProcURI,
			fmt.Sprintf("unrecognized procURI: %q", expanded),
			map[string]any{"code": 404},
		)
	}
	return ref, nil
}
