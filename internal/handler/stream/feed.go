package stream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

// feed buffers a panel's updates for one consumer. Updates past the buffer
// are dropped, but closed is always signalled once the panel closes.
type feed struct {
	updates     chan panel.Update
	closed      chan struct{}
	once        sync.Once
	unsubscribe func()
}

func newFeed(p *panel.Controller, size int, logger *zap.Logger) *feed {
	f := &feed{
		updates: make(chan panel.Update, size),
		closed:  make(chan struct{}),
	}
	f.unsubscribe = p.Subscribe(func(u panel.Update) {
		select {
		case f.updates <- u:
		default:
			logger.Warn("stream consumer lagging, update dropped", zap.Uint64("version", u.Snapshot.Version))
		}
		if u.Snapshot.Closed {
			f.once.Do(func() { close(f.closed) })
		}
	})
	if p.Closed() {
		f.once.Do(func() { close(f.closed) })
	}
	return f
}
