// Package bus fans progress and error messages out to observers.
//
// Every subscriber owns a mailbox and a delivery goroutine, so a handler is
// never called on the publisher's goroutine and a slow handler only delays
// its own mailbox. Messages are delivered to each subscriber in publish
// order and none are dropped.
package bus

import (
	"sync"

	"github.com/zipfx/zipfx/internal/model"
)

type Publisher interface {
	Publish(msg model.Message)
}

// Listener is a registered callback. Listeners are compared by pointer, so
// subscribing the same listener twice is a no-op.
type Listener struct {
	fn        func(model.Message)
	sessionID string
}

// Listen wraps fn into a listener that receives every message.
func Listen(fn func(model.Message)) *Listener {
	return &Listener{fn: fn}
}

// ListenSession wraps fn into a listener that only receives messages
// published for sessionID.
func ListenSession(sessionID string, fn func(model.Message)) *Listener {
	return &Listener{fn: fn, sessionID: sessionID}
}

func (l *Listener) accepts(msg model.Message) bool {
	return l.sessionID == "" || l.sessionID == msg.GetSessionID()
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[*Listener]*mailbox
	closed bool
	// running counts delivery goroutines, unsubscribed ones included
	running sync.WaitGroup
}

func New() *Bus {
	return &Bus{subs: make(map[*Listener]*mailbox)}
}

func (b *Bus) Subscribe(l *Listener) {
	if l == nil || l.fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.subs[l]; ok {
		return
	}
	mb := newMailbox(l.fn)
	b.subs[l] = mb
	b.running.Add(1)
	go func() {
		defer b.running.Done()
		mb.run()
	}()
}

// Unsubscribe stops delivery to l. Messages already queued for l are still
// delivered. Unknown listeners are ignored.
func (b *Bus) Unsubscribe(l *Listener) {
	b.mu.Lock()
	mb, ok := b.subs[l]
	delete(b.subs, l)
	b.mu.Unlock()
	if ok {
		mb.close()
	}
}

// OnSession subscribes fn for the messages of one session and returns the
// function that unsubscribes it.
func (b *Bus) OnSession(sessionID string, fn func(model.Message)) func() {
	l := ListenSession(sessionID, fn)
	b.Subscribe(l)
	return func() { b.Unsubscribe(l) }
}

func (b *Bus) Publish(msg model.Message) {
	if msg == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l, mb := range b.subs {
		if l.accepts(msg) {
			mb.push(msg)
		}
	}
}

func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everybody and waits until queued messages are handled,
// including those of listeners unsubscribed earlier.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Listener]*mailbox)
	b.mu.Unlock()
	for _, mb := range subs {
		mb.close()
	}
	b.running.Wait()
}
