package engine

import (
	"context"
	"time"

	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

const publishTimeout = 5 * time.Second

// mirror hands snapshots to a Publisher on its own goroutine. Only the latest
// snapshot is kept; older ones still waiting are replaced.
type mirror struct {
	pub    Publisher
	latest chan taskstate.Store
	done   chan struct{}
}

func startMirror(pub Publisher) *mirror {
	m := &mirror{
		pub:    pub,
		latest: make(chan taskstate.Store, 1),
		done:   make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *mirror) loop() {
	defer close(m.done)
	for snap := range m.latest {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.pub.Publish(ctx, snap); err != nil {
			logger.Op.Warnf("Snapshot not published: %s", errors.DisplayErrorSummary(err))
		}
		cancel()
	}
}

// offer never blocks. It must only be called from the session goroutine.
func (m *mirror) offer(snap taskstate.Store) {
	select {
	case m.latest <- snap:
	default:
		select {
		case <-m.latest:
		default:
		}
		m.latest <- snap
	}
}

// stop publishes whatever is still pending and waits for the loop to exit.
func (m *mirror) stop() {
	close(m.latest)
	<-m.done
}
