// Package engine runs a tracking session: it reads host messages one at a
// time, folds task events into store snapshots, mirrors the host's lists and
// preferences, and issues fire-and-forget commands back to the host.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/history"
	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/metrics"
	"github.com/maxkimambo/tasklens/internal/progress"
	"github.com/maxkimambo/tasklens/internal/protocol"
	"github.com/maxkimambo/tasklens/internal/reducer"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// Options tune a session. Zero values fall back to the defaults.
type Options struct {
	HistoryWindow   int
	ProgressTick    time.Duration
	LogPollInterval time.Duration
	Bootstrap       bool
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = history.DefaultWindow
	}
	if o.ProgressTick <= 0 {
		o.ProgressTick = time.Second
	}
	if o.LogPollInterval <= 0 {
		o.LogPollInterval = 2 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Publisher receives every new store snapshot.
type Publisher interface {
	Publish(ctx context.Context, s taskstate.Store) error
}

// Session owns the task store. Messages are applied on the goroutine that
// calls Run or Handle; readers on other goroutines see immutable snapshots.
type Session struct {
	opts      Options
	reducer   *reducer.Reducer
	norm      *protocol.Normalizer
	commands  *Commands
	mirror    *mirror

	store atomic.Pointer[taskstate.Store]

	mu      sync.RWMutex
	catalog []*dag.TaskDefinition
	graph   *dag.Graph
	starred []taskstate.TaskKey
	recent  []taskstate.TaskKey
	panel   protocol.PanelState
	logs    []string
	history *history.Log
}

// NewSession creates a session that talks to the host through sender.
func NewSession(sender Sender, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		opts:     opts,
		reducer:  &reducer.Reducer{Now: opts.Now},
		norm:     protocol.NewNormalizer(),
		commands: NewCommands(sender),
		graph:    dag.NewGraph(),
		history:  history.NewLog(opts.HistoryWindow),
	}
	empty := taskstate.NewStore()
	s.store.Store(&empty)
	return s
}

// SetPublisher mirrors new snapshots to p from a background goroutine. Call
// before Run, and Close when done.
func (s *Session) SetPublisher(p Publisher) {
	if s.mirror != nil {
		s.mirror.stop()
	}
	s.mirror = startMirror(p)
}

// Close flushes the latest snapshot to the publisher and stops mirroring.
func (s *Session) Close() {
	if s.mirror != nil {
		s.mirror.stop()
		s.mirror = nil
	}
}

// Commands returns the outbound command issuer.
func (s *Session) Commands() *Commands {
	return s.commands
}

type decoded struct {
	msg protocol.Message
	err error
}

// Run sends the bootstrap requests when enabled, then applies messages from r
// in arrival order until r is exhausted or ctx is cancelled. Malformed lines
// are logged and skipped.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	if s.opts.Bootstrap {
		if err := s.commands.Bootstrap(); err != nil {
			logger.Op.Warnf("Bootstrap request failed: %s", errors.DisplayErrorSummary(err))
		}
	}

	dec := protocol.NewDecoder(r)
	results := make(chan decoded)
	go func() {
		defer close(results)
		for {
			msg, err := dec.Decode()
			select {
			case results <- decoded{msg: msg, err: err}:
			case <-ctx.Done():
				return
			}
			if err == io.EOF {
				return
			}
			if _, ok := errors.AsTrackerError(err); err != nil && !ok {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-results:
			if !ok || res.err == io.EOF {
				logger.Op.Debugf("Host stream closed after %d lines", dec.Line())
				return nil
			}
			if res.err != nil {
				if _, isProtocol := errors.AsTrackerError(res.err); !isProtocol {
					return fmt.Errorf("reading host stream: %w", res.err)
				}
				metrics.RecordMessageIgnored(metrics.ReasonMalformed)
				logger.Op.Warnf("Skipping host message: %s", errors.DisplayErrorSummary(res.err))
				continue
			}
			s.Handle(res.msg)
		}
	}
}

// Handle applies one decoded message.
func (s *Session) Handle(msg protocol.Message) {
	ev, isEvent, err := s.norm.Event(msg)
	if isEvent {
		if err != nil {
			metrics.RecordMessageIgnored(metrics.ReasonMissingKey)
			logger.EventSkipped(msg.MessageType(), errors.DisplayErrorSummary(err))
			return
		}
		s.apply(ev)
		return
	}

	switch m := msg.(type) {
	case protocol.UpdateTasksMsg:
		defs := s.norm.Catalog(m.Tasks)
		g := dag.NewGraph(defs...)
		for _, e := range g.FindCycles() {
			logger.Op.Warn(errors.DisplayErrorSummary(errors.NewDependencyCycleError(string(e.From), string(e.To))))
		}
		s.mu.Lock()
		s.catalog, s.graph = defs, g
		s.mu.Unlock()
		logger.Op.Debugf("Task catalog updated: %d tasks", g.Size())

	case protocol.UpdateStarredMsg:
		keys := s.norm.Keys(m.Tasks)
		s.mu.Lock()
		s.starred = keys
		s.mu.Unlock()

	case protocol.UpdateRecentlyUsedMsg:
		keys := s.norm.Keys(m.Tasks)
		s.mu.Lock()
		s.recent = keys
		s.mu.Unlock()

	case protocol.ExecutionHistoryMsg:
		records := s.norm.Records(m.History)
		s.mu.Lock()
		s.history.Replace(records)
		s.mu.Unlock()
		metrics.UpdateHistorySize(len(records))
		logger.Op.Debugf("Execution history replaced: %d records", len(records))

	case protocol.PanelStateMsg:
		s.mu.Lock()
		if m.State.RunningTasksCollapsed != nil {
			s.panel.RunningTasksCollapsed = m.State.RunningTasksCollapsed
		}
		if m.State.StarredTasksCollapsed != nil {
			s.panel.StarredTasksCollapsed = m.State.StarredTasksCollapsed
		}
		s.mu.Unlock()

	case protocol.LogBufferMsg:
		s.mu.Lock()
		s.logs = append([]string(nil), m.Logs...)
		s.mu.Unlock()

	default:
		metrics.RecordMessageIgnored(metrics.ReasonUnknown)
		logger.Op.Debugf("Ignoring host message of type %q", msg.MessageType())
	}
}

func (s *Session) apply(ev reducer.Event) {
	prev := s.Snapshot()
	next := s.reducer.Apply(prev, ev)
	s.store.Store(&next)

	kind := string(ev.Kind())
	metrics.RecordEventApplied(kind)
	switch e := ev.(type) {
	case reducer.DismissTaskGroup:
		metrics.RecordDismissed(prev.Len() - next.Len())
	case reducer.TaskCompleted:
		if st, ok := next.Get(e.Key); ok && st.Duration != nil {
			metrics.RecordTaskFinished(st.Failed, *st.Duration)
		}
	}
	metrics.UpdateStateGauges(next)
	logger.EventApplied(kind, string(reducer.SubjectKey(ev)))

	if s.mirror != nil {
		s.mirror.offer(next)
	}
}

// Snapshot returns the current store.
func (s *Session) Snapshot() taskstate.Store {
	return *s.store.Load()
}

// Graph returns the dependency graph of the current catalog.
func (s *Session) Graph() *dag.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Catalog returns the current task definitions.
func (s *Session) Catalog() []*dag.TaskDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*dag.TaskDefinition(nil), s.catalog...)
}

// Derive computes aggregate states of the catalog against the current store.
func (s *Session) Derive() *dag.Result {
	return dag.Derive(s.Graph(), dag.StoreLookup(s.Snapshot()))
}

// Averages returns the historical duration averages.
func (s *Session) Averages() map[taskstate.TaskKey]time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Averages()
}

// History returns the execution records last received.
func (s *Session) History() []history.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Records()
}

// Progress derives the progress of key at the session clock.
func (s *Session) Progress(key taskstate.TaskKey) (progress.Info, bool) {
	st, ok := s.Snapshot().Get(key)
	if !ok {
		return progress.Info{}, false
	}
	return progress.Compute(key, st, s.Averages(), s.opts.Now()), true
}

// Running returns the progress of every running task in store order.
func (s *Session) Running() []progress.Info {
	snap := s.Snapshot()
	averages := s.Averages()
	now := s.opts.Now()

	var out []progress.Info
	for _, e := range snap.Entries() {
		if e.State.Running {
			out = append(out, progress.Compute(e.Key, e.State, averages, now))
		}
	}
	return out
}

// Starred returns the host's starred task list.
func (s *Session) Starred() []taskstate.TaskKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]taskstate.TaskKey(nil), s.starred...)
}

// RecentlyUsed returns the host's recently used task list.
func (s *Session) RecentlyUsed() []taskstate.TaskKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]taskstate.TaskKey(nil), s.recent...)
}

// Panel returns the mirrored panel preferences.
func (s *Session) Panel() protocol.PanelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panel
}

// Logs returns the last log buffer received for the debug view.
func (s *Session) Logs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logs...)
}
