package pubsub

import (
	"sync"
)

type Subscriber struct {
	payload chan any

	mu     sync.RWMutex
	closed bool
}

func NewSubscriber(channelCapacity int) *Subscriber {
	if channelCapacity > 0 {
		return &Subscriber{
			payload: make(chan any, channelCapacity),
		}
	}
	return &Subscriber{
		payload: make(chan any),
	}
}

// Signal delivers data to the subscriber. A closed subscriber drops the
// event, as does a full channel: publishers are fire-and-forget and must
// never stall or panic on a consumer that is gone or lagging.
func (s *Subscriber) Signal(data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.payload <- data:
	default:
	}
}

func (s *Subscriber) GetChannel() <-chan any {
	return s.payload
}

// CloseChannel waits out in-flight Signal calls before closing, so a
// publish racing an unsubscribe can never send on a closed channel.
func (s *Subscriber) CloseChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.payload)
}
