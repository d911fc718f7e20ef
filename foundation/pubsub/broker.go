// Package pubsub is a small in-process broker decoupling the conversation
// orchestrator from the background workers interested in its events.
package pubsub

import (
	"sync"
)

const (
	// TurnCommittedTopic carries every turn appended to a transcript.
	TurnCommittedTopic = "turnCommitted"

	// CatalogUpdatedTopic fires after the add-item flow replaces the
	// catalog file.
	CatalogUpdatedTopic = "catalogUpdated"
)

type Broker struct {
	topics map[string][]*Subscriber
	sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string][]*Subscriber),
	}
}

// Publish delivers data to every current subscriber of the topic. Events
// are fire-and-forget: a topic nobody listens on drops the event.
func (b *Broker) Publish(topic string, data any) {
	b.RLock()
	subs := b.topics[topic]
	b.RUnlock()

	for _, sub := range subs {
		sub.Signal(data)
	}
}

func (b *Broker) Subscribe(topic string, s *Subscriber) {
	b.Lock()
	defer b.Unlock()
	{
		_, exists := b.topics[topic]
		if !exists {
			b.topics[topic] = make([]*Subscriber, 0)
		}

		b.topics[topic] = append(b.topics[topic], s)
	}
}

func (b *Broker) UnSubscribe(topic string, s *Subscriber) {
	b.Lock()
	defer b.Unlock()
	{
		subs, exists := b.topics[topic]
		if !exists {
			return
		}

		b.topics[topic] = removeFromSlice(subs, s)
		s.CloseChannel()
	}
}

// =====================================================================================================================

func removeFromSlice[T comparable](s []T, d T) []T {
	for i := range s {
		if s[i] == d {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}
