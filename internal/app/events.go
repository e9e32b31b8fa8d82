package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is published to status subscribers (the preferences pane).
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Action string    `json:"action,omitempty"`
	Keys   []string  `json:"keys,omitempty"`
	Time   time.Time `json:"time"`
}

const (
	EventTrayClick   = "tray_click"
	EventPreferences = "preferences"
	EventShutdown    = "shutdown"
)

const subscriberBuffer = 16

// broker fans events out to subscribers. Slow subscribers miss events
// rather than blocking the event loop.
type broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan Event]struct{})}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broker) publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
