package session

import (
	"sync"

	"github.com/xaenox/edu-assistant/internal/models"
)

type EventKind string

const (
	EventMessageAdded        EventKind = "message_added"
	EventTypeChanged         EventKind = "type_changed"
	EventLoadingChanged      EventKind = "loading_changed"
	EventCleared             EventKind = "cleared"
	EventConversationCreated EventKind = "conversation_created"
	EventConversationLoaded  EventKind = "conversation_loaded"
)

// Event describes a state change. Only the fields relevant to Kind are set.
type Event struct {
	Kind         EventKind
	Message      models.Message
	Type         models.MessageType
	Loading      bool
	Conversation *models.Conversation
}

type subscriber struct {
	id int
	fn func(Event)
}

// broker fans events out to every subscriber in subscription order.
// Handlers run on the publishing goroutine, outside the store lock.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

func newBroker() *broker {
	return &broker{}
}

func (b *broker) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
