package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/model"
)

type recorder struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (r *recorder) handle(msg model.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Message(nil), r.msgs...)
}

func progress(session string, i int) model.Message {
	return model.NewProgressMessage(session, model.MsgProgress, fmt.Sprint(i), float64(i), 100)
}

func TestPublishOrderPerSubscriber(t *testing.T) {
	b := New()
	a, c := &recorder{}, &recorder{}
	b.Subscribe(Listen(a.handle))
	b.Subscribe(Listen(c.handle))
	for i := 0; i < 200; i++ {
		b.Publish(progress("s", i))
	}
	b.Close()

	for _, r := range []*recorder{a, c} {
		msgs := r.messages()
		require.Len(t, msgs, 200)
		for i, m := range msgs {
			assert.Equal(t, fmt.Sprint(i), m.GetMessage())
		}
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	b := New()
	r := &recorder{}
	l := Listen(r.handle)
	b.Subscribe(l)
	b.Subscribe(l)
	assert.Equal(t, 1, b.Count())
	b.Publish(progress("s", 1))
	b.Close()
	assert.Len(t, r.messages(), 1)
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	b := New()
	b.Unsubscribe(Listen(func(model.Message) {}))
	b.Unsubscribe(nil)
	assert.Equal(t, 0, b.Count())
}

func TestSessionListenerFilters(t *testing.T) {
	b := New()
	r := &recorder{}
	stop := b.OnSession("one", r.handle)
	b.Publish(progress("one", 1))
	b.Publish(progress("two", 2))
	b.Publish(progress("one", 3))
	stop()
	b.Publish(progress("one", 4))
	b.Close()

	msgs := r.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].GetMessage())
	assert.Equal(t, "3", msgs[1].GetMessage())
}

func TestCloseDrainsUnsubscribedListener(t *testing.T) {
	b := New()
	r := &recorder{}
	stop := b.OnSession("one", func(msg model.Message) {
		time.Sleep(10 * time.Millisecond)
		r.handle(msg)
	})
	for i := 0; i < 5; i++ {
		b.Publish(progress("one", i))
	}
	stop()
	assert.Equal(t, 0, b.Count())
	b.Close()
	assert.Len(t, r.messages(), 5)
}

func TestDeliveryIsOffPublisherGoroutine(t *testing.T) {
	b := New()
	release := make(chan struct{})
	got := make(chan struct{})
	b.Subscribe(Listen(func(model.Message) {
		<-release
		close(got)
	}))
	done := make(chan struct{})
	go func() {
		b.Publish(progress("s", 1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow listener")
	}
	close(release)
	<-got
	b.Close()
}

func TestPanickingListenerDoesNotStopDelivery(t *testing.T) {
	b := New()
	r := &recorder{}
	b.Subscribe(Listen(func(msg model.Message) {
		if msg.GetMessage() == "0" {
			panic("boom")
		}
		r.handle(msg)
	}))
	b.Publish(progress("s", 0))
	b.Publish(progress("s", 1))
	b.Close()
	assert.Len(t, r.messages(), 1)
}
