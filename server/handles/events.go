package handles

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/model"
)

var events *bus.Bus

// InitEvents sets the bus streamed by Events.
func InitEvents(b *bus.Bus) {
	events = b
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventResp struct {
	SessionID string            `json:"session_id"`
	Type      model.MessageType `json:"type"`
	Message   string            `json:"message"`
	Time      time.Time         `json:"time"`
	Percent   *float64          `json:"percent,omitempty"`
	Title     string            `json:"title,omitempty"`
	Header    string            `json:"header,omitempty"`
	Archive   string            `json:"archive,omitempty"`
}

func toEventResp(msg model.Message) EventResp {
	ret := EventResp{
		SessionID: msg.GetSessionID(),
		Type:      msg.GetType(),
		Message:   msg.GetMessage(),
		Time:      msg.GetTime(),
	}
	switch m := msg.(type) {
	case model.ProgressMessage:
		p := m.Percent()
		ret.Percent = &p
	case model.ErrorMessage:
		ret.Title = m.Title()
		ret.Header = m.Header()
		if a := m.Archive(); a != nil {
			ret.Archive = a.Path
		}
	}
	return ret
}

// Events streams bus messages over a websocket, limited to one session
// when session_id is given.
func Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	out := make(chan EventResp, 64)
	done := make(chan struct{})
	handle := func(msg model.Message) {
		ev := toEventResp(msg)
		if msg.GetType() == model.MsgProgress {
			// a slow client only misses progress
			select {
			case out <- ev:
			default:
			}
			return
		}
		select {
		case out <- ev:
		case <-done:
		}
	}
	var cancel func()
	if id := c.Query("session_id"); id != "" {
		cancel = events.OnSession(id, handle)
	} else {
		l := bus.Listen(handle)
		events.Subscribe(l)
		cancel = func() { events.Unsubscribe(l) }
	}
	defer cancel()
	defer close(done)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-closed:
			return
		case ev := <-out:
			if err := conn.WriteJSON(ev); err != nil {
				log.Debugf("websocket write: %v", err)
				return
			}
		}
	}
}
