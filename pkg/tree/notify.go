package tree

import (
	"sync"

	"github.com/vanderheijden86/modeltree/pkg/debug"
)

// Subscription is a registered change callback.
type Subscription struct {
	m        *Model
	fn       func()
	disposed bool
}

// Subscribe registers fn to run after every coalesced change: once per
// document delivery and once per state-changing command. Callbacks run on
// the Model's goroutine and may issue commands; the resulting notification
// runs after the current round finishes.
func (m *Model) Subscribe(fn func()) *Subscription {
	s := &Subscription{m: m, fn: fn}
	m.subs = append(m.subs, s)
	return s
}

// Dispose stops delivery to s, including the remainder of a round in
// progress. Disposing twice is harmless.
func (s *Subscription) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	subs := s.m.subs
	for i, cur := range subs {
		if cur == s {
			s.m.subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (m *Model) notify() {
	if m.notifying {
		m.renotify = true
		return
	}
	m.notifying = true
	defer func() { m.notifying = false }()
	for {
		m.renotify = false
		for _, s := range append([]*Subscription(nil), m.subs...) {
			if s.disposed {
				continue
			}
			callSubscriber(s)
		}
		if !m.renotify {
			return
		}
	}
}

func callSubscriber(s *Subscription) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("tree: subscriber panicked: %v", r)
		}
	}()
	s.fn()
}

// Stream delivers change signals over a channel. Signals coalesce: a
// consumer that falls behind sees one pending signal, not a backlog.
type Stream struct {
	mu     sync.Mutex
	c      chan struct{}
	closed bool
}

// Events returns a Stream fed by a subscription on m.
func (m *Model) Events() *Stream {
	s := &Stream{c: make(chan struct{}, 1)}
	var sub *Subscription
	sub = m.Subscribe(func() {
		if !s.send() {
			sub.Dispose()
		}
	})
	return s
}

// C returns the signal channel. It is closed by Close.
func (s *Stream) C() <-chan struct{} { return s.c }

func (s *Stream) send() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.c <- struct{}{}:
	default:
	}
	return true
}

// Close stops the stream and closes its channel. It may be called from any
// goroutine; the underlying subscription is dropped on the next change.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.c)
}
