// Package pubsub provides named in-process publish/subscribe buses with
// WAMP v1 delivery semantics.
//
// A Bus maps topics to subscription sets. Each subscription records a
// subscriber key and a weak callback; the subscriber itself is held through
// a weak pointer, so a bus never keeps a subscriber alive. Entries whose
// subscriber has been collected are skipped and pruned when enumeration,
// removal, or publishing encounters them, and a runtime cleanup sweeps them
// shortly after collection.
//
// Buses are obtained by name from a Registry. Named buses are created on
// first lookup with first-write-wins semantics, so any two packages asking
// for the same name share one bus.
package pubsub

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"sync"
	"weak"

	"goa.design/wamp/callable"
	"goa.design/wamp/telemetry"
)

type (
	// Bus fans events out to subscriptions registered per topic. All methods
	// are safe for concurrent use.
	Bus struct {
		name    string
		logger  telemetry.Logger
		metrics telemetry.Metrics

		mu     sync.Mutex
		topics map[string]map[subKey]*entry
	}

	// Filter selects subscriptions for enumeration and removal. A nil field
	// matches every subscription; a non-nil field must match exactly.
	// Subscriber matches on object identity.
	Filter struct {
		Subscriber any
		Key        *string
		Topic      *string
		Callback   *callable.Ref
	}

	// Record describes one live subscription returned by Subscriptions.
	Record struct {
		// Subscriber is the live subscriber object.
		Subscriber any
		// Key is the subscriber key the subscription was registered under.
		Key string
		// Callback is the subscription callback.
		Callback callable.Ref
	}

	// subKey identifies a subscription within a topic: same key and same
	// callback identity collapse to one entry (set semantics).
	subKey struct {
		key    string
		fnID   uintptr
		recvID uintptr
		bound  bool
	}

	// entry is one stored subscription. The subscriber is held weakly.
	entry struct {
		sub   subscriberRef
		subID uintptr
		key   string
		cb    callable.Ref
	}

	// subscriberRef erases the subscriber type of a weak pointer.
	subscriberRef interface {
		deref() (any, bool)
	}

	weakSubscriber[T any] struct {
		p weak.Pointer[T]
	}
)

func (w weakSubscriber[T]) deref() (any, bool) {
	v := w.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

func newBus(name string, logger telemetry.Logger, metrics telemetry.Metrics) *Bus {
	return &Bus{
		name:    name,
		logger:  logger,
		metrics: metrics,
		topics:  make(map[string]map[subKey]*entry),
	}
}

// Name returns the name the bus was registered under.
func (b *Bus) Name() string {
	return b.name
}

// Subscribe registers cb under (key, topic) for the given subscriber. The
// subscriber is held weakly: once it becomes unreachable its subscriptions
// vanish without an explicit Unsubscribe. Registering the same (key,
// callback) pair on a topic twice collapses to one subscription.
//
// Subscribe is a free function rather than a method so the subscriber's
// concrete type can seed the weak pointer and the collection cleanup.
func Subscribe[T any](b *Bus, subscriber *T, key, topic string, cb callable.Ref) {
	if subscriber == nil || cb.IsZero() {
		return
	}
	fnID, recvID, bound := cb.ID()
	e := &entry{
		sub:   weakSubscriber[T]{p: weak.Make(subscriber)},
		subID: reflect.ValueOf(subscriber).Pointer(),
		key:   key,
		cb:    cb,
	}
	b.mu.Lock()
	subs := b.topics[topic]
	if subs == nil {
		subs = make(map[subKey]*entry)
		b.topics[topic] = subs
	}
	subs[subKey{key: key, fnID: fnID, recvID: recvID, bound: bound}] = e
	b.mu.Unlock()
	runtime.AddCleanup(subscriber, func(bus *Bus) { bus.prune() }, b)
}

// Subscriptions enumerates live subscriptions matching the filter, grouped
// by topic. Topics with no matching live subscription are omitted. Dead
// entries encountered during enumeration are pruned.
func (b *Bus) Subscriptions(f Filter) map[string][]Record {
	report := make(map[string][]Record)
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		if f.Topic != nil && *f.Topic != topic {
			continue
		}
		for k, e := range subs {
			sub, alive := e.sub.deref()
			if !alive {
				delete(subs, k)
				continue
			}
			if !f.match(sub, e) {
				continue
			}
			report[topic] = append(report[topic], Record{Subscriber: sub, Key: e.key, Callback: e.cb})
		}
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	return report
}

// Unsubscribe removes subscriptions matching the filter. A topic whose
// subscription set becomes empty is removed from the bus.
func (b *Bus) Unsubscribe(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		if f.Topic != nil && *f.Topic != topic {
			continue
		}
		for k, e := range subs {
			sub, alive := e.sub.deref()
			if !alive {
				delete(subs, k)
				continue
			}
			if f.match(sub, e) {
				delete(subs, k)
			}
		}
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}

// Publish delivers event to every subscription on topic whose key is not in
// exclude and, when eligible is non-empty, is in eligible. Callbacks run in
// the publishing goroutine: a blocking subscriber blocks Publish. The
// subscription set is snapshotted before delivery so callbacks may mutate
// the bus.
func (b *Bus) Publish(ctx context.Context, topic string, event any, exclude, eligible []string) {
	b.mu.Lock()
	subs := b.topics[topic]
	matched := make([]*entry, 0, len(subs))
	for k, e := range subs {
		if _, alive := e.sub.deref(); !alive {
			delete(subs, k)
			continue
		}
		if keyIn(e.key, exclude) {
			continue
		}
		if len(eligible) > 0 && !keyIn(e.key, eligible) {
			continue
		}
		matched = append(matched, e)
	}
	if subs != nil && len(subs) == 0 {
		delete(b.topics, topic)
	}
	b.mu.Unlock()

	delivered := 0
	for _, e := range matched {
		if _, err := e.cb.Call(topic, event); err != nil {
			if errors.Is(err, callable.ErrReceiverCollected) {
				b.dropCallback(topic, e)
				continue
			}
			b.logger.Warn(ctx, "pubsub: subscriber callback failed",
				"bus", b.name, "topic", topic, "key", e.key, "err", err.Error())
			continue
		}
		delivered++
	}
	b.logger.Debug(ctx, "pubsub: published",
		"bus", b.name, "topic", topic, "delivered", delivered)
	b.metrics.IncCounter("wamp_events_published", 1, "bus", b.name, "topic", topic)
}

// match reports whether a live subscription passes the filter. The caller
// holds the bus lock.
func (f Filter) match(sub any, e *entry) bool {
	if f.Subscriber != nil && f.Subscriber != sub {
		return false
	}
	if f.Key != nil && *f.Key != e.key {
		return false
	}
	if f.Callback != nil && !f.Callback.Equal(e.cb) {
		return false
	}
	return true
}

// prune removes entries whose subscriber has been collected. Invoked from
// the runtime cleanup attached by Subscribe.
func (b *Bus) prune() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		for k, e := range subs {
			if _, alive := e.sub.deref(); !alive {
				delete(subs, k)
			}
		}
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}

// dropCallback removes a single entry whose callback went inert between
// snapshot and delivery.
func (b *Bus) dropCallback(topic string, e *entry) {
	fnID, recvID, bound := e.cb.ID()
	b.mu.Lock()
	if subs := b.topics[topic]; subs != nil {
		delete(subs, subKey{key: e.key, fnID: fnID, recvID: recvID, bound: bound})
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	b.mu.Unlock()
}

func keyIn(key string, keys []string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
