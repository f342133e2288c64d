package op

import (
	"time"

	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/model"
	"golang.org/x/time/rate"
)

// progress publishes the progress of a multi step operation, at most a few
// times per second. The last step is always published.
type progress struct {
	publisher bus.Publisher
	sessionID string
	sometimes rate.Sometimes
}

func newProgress(publisher bus.Publisher, sessionID string) *progress {
	return &progress{
		publisher: publisher,
		sessionID: sessionID,
		sometimes: rate.Sometimes{First: 1, Interval: 200 * time.Millisecond},
	}
}

func (p *progress) update(message string, completed, total float64) {
	if p.publisher == nil {
		return
	}
	publish := func() {
		p.publisher.Publish(model.NewProgressMessage(p.sessionID, model.MsgProgress, message, completed, total))
	}
	if total > 0 && completed >= total {
		publish()
		return
	}
	p.sometimes.Do(publish)
}
