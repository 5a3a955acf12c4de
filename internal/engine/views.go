package engine

import (
	"context"
	"sync"
	"time"

	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/progress"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// View is a periodic activity bound to something being displayed. Close
// stops it and returns once its timer is released.
type View struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startView(ctx context.Context, interval time.Duration, tick func() bool) *View {
	vctx, cancel := context.WithCancel(ctx)
	v := &View{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(v.done)
		if !tick() {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-vctx.Done():
				return
			case <-ticker.C:
				if !tick() {
					return
				}
			}
		}
	}()
	return v
}

// Close stops the view. Safe to call more than once.
func (v *View) Close() {
	v.once.Do(v.cancel)
	<-v.done
}

// Done is closed when the view has stopped, either through Close, the
// session context, or because there is nothing left to show.
func (v *View) Done() <-chan struct{} {
	return v.done
}

// OpenTaskView reports the progress of key to onTick immediately and then
// every progress tick until the task reaches a terminal state, is dismissed,
// or the view is closed. The store is only read.
func (s *Session) OpenTaskView(ctx context.Context, key taskstate.TaskKey, onTick func(progress.Info)) *View {
	return startView(ctx, s.opts.ProgressTick, s.taskTick(key, onTick, false))
}

// FollowTask is OpenTaskView for a task that may not have started yet. Ticks
// while key is absent are skipped instead of closing the view.
func (s *Session) FollowTask(ctx context.Context, key taskstate.TaskKey, onTick func(progress.Info)) *View {
	return startView(ctx, s.opts.ProgressTick, s.taskTick(key, onTick, true))
}

func (s *Session) taskTick(key taskstate.TaskKey, onTick func(progress.Info), waitForKey bool) func() bool {
	return func() bool {
		st, ok := s.Snapshot().Get(key)
		if !ok {
			return waitForKey
		}
		onTick(progress.Compute(key, st, s.Averages(), s.opts.Now()))
		return !st.IsTerminal()
	}
}

// OpenDebugView requests the host log buffer immediately and then every poll
// interval until closed. Buffers arrive as logBuffer messages and are read
// with Logs.
func (s *Session) OpenDebugView(ctx context.Context) *View {
	return startView(ctx, s.opts.LogPollInterval, func() bool {
		if err := s.commands.GetLogs(); err != nil {
			logger.Op.Debugf("Log poll failed: %v", err)
		}
		return true
	})
}

// OpenRunningView reports every running task to onTick immediately and then
// every progress tick until closed. Ticks with nothing running are skipped.
func (s *Session) OpenRunningView(ctx context.Context, onTick func([]progress.Info)) *View {
	return startView(ctx, s.opts.ProgressTick, func() bool {
		if running := s.Running(); len(running) > 0 {
			onTick(running)
		}
		return true
	})
}
