package bus

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/model"
)

// mailbox is an unbounded FIFO drained by a single goroutine.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []model.Message
	closed  bool
	handler func(model.Message)
}

func newMailbox(handler func(model.Message)) *mailbox {
	mb := &mailbox{handler: handler}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (m *mailbox) push(msg model.Message) {
	m.mu.Lock()
	if !m.closed {
		m.queue = append(m.queue, msg)
		m.cond.Signal()
	}
	m.mu.Unlock()
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Signal()
	m.mu.Unlock()
}

func (m *mailbox) run() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.mu.Unlock()
			return
		}
		msg := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.deliver(msg)
	}
}

func (m *mailbox) deliver(msg model.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("bus: listener panicked on %s message of session %s: %v", msg.GetType(), msg.GetSessionID(), r)
		}
	}()
	m.handler(msg)
}
