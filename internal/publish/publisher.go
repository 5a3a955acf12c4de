// Package publish mirrors store snapshots to Redis for external dashboards.
// The mirror is write-only; the session never reads it back.
package publish

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// TaskView is the published form of one store entry.
type TaskView struct {
	Key            string   `json:"key"`
	State          string   `json:"state"`
	Running        bool     `json:"running"`
	Completed      bool     `json:"completed"`
	Failed         bool     `json:"failed"`
	StartTime      int64    `json:"startTime"`
	DurationMs     *int64   `json:"durationMs,omitempty"`
	AvgDurationMs  *int64   `json:"avgDurationMs,omitempty"`
	ExitCode       *int     `json:"exitCode,omitempty"`
	FailureReason  string   `json:"failureReason,omitempty"`
	ParentTask     string   `json:"parentTask,omitempty"`
	Subtasks       []string `json:"subtasks,omitempty"`
	FailedSubtasks []string `json:"failedSubtasks,omitempty"`
}

// Snapshot is the document stored under the snapshot key.
type Snapshot struct {
	UpdatedAt int64      `json:"updatedAt"`
	Tasks     []TaskView `json:"tasks"`
}

// NewSnapshot converts a store into its published form, in store order.
func NewSnapshot(s taskstate.Store, at time.Time) Snapshot {
	snap := Snapshot{UpdatedAt: at.UnixMilli(), Tasks: make([]TaskView, 0, s.Len())}
	for _, e := range s.Entries() {
		st := e.State
		v := TaskView{
			Key:           string(e.Key),
			State:         string(st.State),
			Running:       st.Running,
			Completed:     st.Completed,
			Failed:        st.Failed,
			StartTime:     st.StartTime.UnixMilli(),
			DurationMs:    millis(st.Duration),
			AvgDurationMs: millis(st.AvgDuration),
			ExitCode:      st.ExitCode,
			FailureReason: st.FailureReason,
			ParentTask:    string(st.ParentTask),
		}
		for _, k := range st.Subtasks {
			v.Subtasks = append(v.Subtasks, string(k))
		}
		for _, f := range st.FailedSubtasks {
			v.FailedSubtasks = append(v.FailedSubtasks, string(f.Key))
		}
		snap.Tasks = append(snap.Tasks, v)
	}
	return snap
}

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// Publisher writes snapshots to a Redis key and announces them on a channel.
type Publisher struct {
	client  *redis.Client
	addr    string
	key     string
	channel string
	now     func() time.Time
}

// NewPublisher connects to Redis at addr. Snapshots are stored under key and
// announced on key + ":updates".
func NewPublisher(ctx context.Context, addr, key string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewPublishFailedError(addr, err)
	}

	return &Publisher{
		client:  client,
		addr:    addr,
		key:     key,
		channel: key + ":updates",
		now:     time.Now,
	}, nil
}

// Key returns the snapshot key.
func (p *Publisher) Key() string {
	return p.key
}

// Channel returns the channel snapshots are announced on.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish stores the snapshot and notifies subscribers in one round trip.
func (p *Publisher) Publish(ctx context.Context, s taskstate.Store) error {
	data, err := sonic.Marshal(NewSnapshot(s, p.now()))
	if err != nil {
		return errors.NewPublishFailedError(p.addr, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, data, 0)
		pipe.Publish(ctx, p.channel, data)
		return nil
	})
	if err != nil {
		return errors.NewPublishFailedError(p.addr, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
