package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/tasklens/internal/progress"
	"github.com/maxkimambo/tasklens/internal/protocol"
)

type tickRecorder struct {
	mu    sync.Mutex
	infos []progress.Info
}

func (r *tickRecorder) record(info progress.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}

func (r *tickRecorder) last() progress.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infos[len(r.infos)-1]
}

func viewSession() *Session {
	return NewSession(new(mockSender), Options{
		Now:             fixedClock,
		ProgressTick:    5 * time.Millisecond,
		LogPollInterval: 5 * time.Millisecond,
	})
}

func stopped(v *View) bool {
	select {
	case <-v.Done():
		return true
	default:
		return false
	}
}

func TestOpenTaskView_StopsWhenTaskFinishes(t *testing.T) {
	s := viewSession()
	ctx := context.Background()
	s.Handle(protocol.TaskStartedMsg{TaskRef: protocol.TaskRef{TaskID: "build"}})

	rec := &tickRecorder{}
	v := s.OpenTaskView(ctx, "build", rec.record)
	defer v.Close()

	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)
	assert.False(t, stopped(v))
	assert.True(t, rec.last().Running)

	s.Handle(protocol.TaskCompletedMsg{TaskRef: protocol.TaskRef{TaskID: "build"}})

	require.Eventually(t, func() bool { return stopped(v) }, time.Second, time.Millisecond)
	assert.Equal(t, 100.0, rec.last().Percent, "final tick reports the terminal state")
}

func TestOpenTaskView_MissingTask(t *testing.T) {
	s := viewSession()
	rec := &tickRecorder{}

	v := s.OpenTaskView(context.Background(), "nope", rec.record)

	require.Eventually(t, func() bool { return stopped(v) }, time.Second, time.Millisecond)
	assert.Zero(t, rec.count())
	v.Close()
}

func TestOpenTaskView_Close(t *testing.T) {
	s := viewSession()
	ctx := context.Background()
	s.Handle(protocol.TaskStartedMsg{TaskRef: protocol.TaskRef{TaskID: "build"}})

	rec := &tickRecorder{}
	v := s.OpenTaskView(ctx, "build", rec.record)
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)

	v.Close()
	v.Close()
	assert.True(t, stopped(v))

	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.count(), "no ticks after close")
}

func TestOpenTaskView_ContextCancel(t *testing.T) {
	s := viewSession()
	ctx, cancel := context.WithCancel(context.Background())
	s.Handle(protocol.TaskStartedMsg{TaskRef: protocol.TaskRef{TaskID: "build"}})

	v := s.OpenTaskView(ctx, "build", func(progress.Info) {})
	cancel()

	require.Eventually(t, func() bool { return stopped(v) }, time.Second, time.Millisecond)
}

type countingSender struct {
	mu    sync.Mutex
	types []string
}

func (c *countingSender) Send(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, cmd.Type)
	return nil
}

func (c *countingSender) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.types...)
}

func TestOpenDebugView_PollsLogs(t *testing.T) {
	sender := &countingSender{}
	s := NewSession(sender, Options{Now: fixedClock, LogPollInterval: 5 * time.Millisecond})
	v := s.OpenDebugView(context.Background())

	require.Eventually(t, func() bool { return len(sender.sent()) >= 3 }, time.Second, time.Millisecond)
	v.Close()

	n := len(sender.sent())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(sender.sent()), "polling stops on close")
	for _, cmdType := range sender.sent() {
		assert.Equal(t, protocol.CmdGetLogs, cmdType)
	}
}

func TestOpenRunningView(t *testing.T) {
	s := viewSession()
	ctx := context.Background()

	var mu sync.Mutex
	var batches [][]progress.Info
	v := s.OpenRunningView(ctx, func(infos []progress.Info) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, infos)
	})
	defer v.Close()

	time.Sleep(15 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, batches, "idle ticks are skipped")
	mu.Unlock()

	s.Handle(protocol.TaskStartedMsg{TaskRef: protocol.TaskRef{TaskID: "build"}})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches[0], 1)
	assert.Equal(t, "build", string(batches[0][0].Key))
}

func TestFollowTask_WaitsForStart(t *testing.T) {
	s := viewSession()
	ctx := context.Background()

	rec := &tickRecorder{}
	v := s.FollowTask(ctx, "deploy", rec.record)
	defer v.Close()

	time.Sleep(15 * time.Millisecond)
	assert.False(t, stopped(v), "absent task keeps the view open")
	assert.Zero(t, rec.count())

	s.Handle(protocol.TaskStartedMsg{TaskRef: protocol.TaskRef{TaskID: "deploy"}})
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)

	s.Handle(protocol.TaskCompletedMsg{TaskRef: protocol.TaskRef{TaskID: "deploy"}, Failed: true})
	require.Eventually(t, func() bool { return stopped(v) }, time.Second, time.Millisecond)
	assert.Equal(t, "failed", string(rec.last().State))
}
