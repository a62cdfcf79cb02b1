// Package eventbus implements the C9 event bus & WS fan-out (spec §4.8):
// synchronous publish with no goroutine per topic, per-topic FIFO delivery,
// bounded per-subscriber buffers, and a drop-the-slowest-subscriber policy
// on overflow rather than dropping individual events silently. No teacher
// repo in the corpus has a pub/sub analogue, so this is built from scratch
// in the engine's own concurrency idiom (spec §5: bounded channels as the
// only back-pressure primitive, with one bus-wide mutex serializing
// publishes and subscription changes).
package eventbus

import (
	"sync"
	"time"

	"github.com/traderterminal/core/internal/ids"
)

// Event is the envelope delivered to every subscriber (spec §4.8 topics:
// quotes/<symbol>, orders/<account>, fills/<account>, strategies/<id>,
// accounts/<id>, alerts).
type Event struct {
	ID    string
	Topic string
	Type  string
	Data  any
	Ts    time.Time
}

const subscriberBuffer = 256

type subscriber struct {
	id  string
	ch  chan Event
}

// Bus fans out events to per-topic subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[string][]*subscriber
	clock ids.Clock

	// OnLagged fires when a subscriber is dropped for falling behind (spec
	// §4.8: "the slowest is dropped with a subscriber_lagged diagnostic").
	OnLagged func(topic, subscriberID string)
}

// New creates an empty Bus.
func New(clock ids.Clock) *Bus {
	if clock == nil {
		clock = ids.RealClock{}
	}
	return &Bus{subs: make(map[string][]*subscriber), clock: clock}
}

// Subscribe registers a new subscriber to topic and returns its event
// channel plus an unsubscribe function that releases the buffer promptly
// (spec §4.8).
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{id: ids.NewID(), ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.remove(topic, sub)
	}
	return sub.ch, unsubscribe
}

func (b *Bus) remove(topic string, target *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s == target {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers an event to every subscriber of topic, in the order
// Publish is called (per-topic FIFO, guaranteed since every publish holds
// b.mu for its whole delivery loop). A subscriber whose buffer is full is
// dropped rather than blocking the publisher or the other subscribers.
// OnLagged is called with b.mu held.
func (b *Bus) Publish(topic, eventType string, data any) Event {
	ev := Event{ID: ids.NewID(), Topic: topic, Type: eventType, Data: data, Ts: b.clock.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := append([]*subscriber{}, b.subs[topic]...)

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			cur := b.subs[topic]
			for i, s := range cur {
				if s == sub {
					b.subs[topic] = append(cur[:i], cur[i+1:]...)
					break
				}
			}
			close(sub.ch)
			if b.OnLagged != nil {
				b.OnLagged(topic, sub.id)
			}
		}
	}
	return ev
}
