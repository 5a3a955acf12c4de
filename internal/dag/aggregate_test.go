package dag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

type states map[taskstate.TaskKey]DirectState

func (s states) lookup(key taskstate.TaskKey) DirectState { return s[key] }

var (
	running   = DirectState{Running: true}
	failed    = DirectState{Failed: true}
	succeeded = DirectState{Succeeded: true}
	idle      = DirectState{}
)

func TestDirectState_Own(t *testing.T) {
	assert.Equal(t, AggregateIdle, idle.Own())
	assert.Equal(t, AggregateRunning, running.Own())
	assert.Equal(t, AggregateSuccess, succeeded.Own())
	assert.Equal(t, AggregateError, failed.Own())
	assert.Equal(t, AggregateError, DirectState{Running: true, Failed: true}.Own())
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		states states
		want   map[taskstate.TaskKey]AggregateState
	}{
		{
			name:   "all idle",
			states: states{},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateIdle, "a": AggregateIdle, "b": AggregateIdle, "c": AggregateIdle},
		},
		{
			name:   "error anywhere wins over running",
			states: states{"a": running, "c": failed},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateError, "a": AggregateRunning, "b": AggregateError, "c": AggregateError},
		},
		{
			name:   "running descendant",
			states: states{"c": running, "a": succeeded},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateDescendantRunning, "a": AggregateSuccess, "b": AggregateDescendantRunning, "c": AggregateRunning},
		},
		{
			name:   "composite running itself",
			states: states{"root": running},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateDescendantRunning, "a": AggregateIdle},
		},
		{
			name:   "all descendants succeeded",
			states: states{"a": succeeded, "b": succeeded, "c": succeeded},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateSuccess, "b": AggregateSuccess},
		},
		{
			name:   "partial success falls back to own state",
			states: states{"a": succeeded},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateIdle, "a": AggregateSuccess, "b": AggregateIdle},
		},
		{
			name:   "derived success counts for the parent",
			states: states{"a": succeeded, "c": succeeded},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateSuccess, "b": AggregateSuccess},
		},
		{
			name:   "own failure beats successful children",
			states: states{"root": failed, "a": succeeded, "b": succeeded, "c": succeeded},
			want:   map[taskstate.TaskKey]AggregateState{"root": AggregateError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := def("root", def("a"), def("b", def("c")))
			res := Derive(NewGraph(root), tt.states.lookup)
			assert.Empty(t, res.Cycles)
			for k, want := range tt.want {
				assert.Equal(t, want, res.State(k), "state of %s", k)
			}
		})
	}
}

func TestDerive_LeafShowsOwnState(t *testing.T) {
	res := DeriveTree(def("solo"), states{"solo": running}.lookup)
	assert.Equal(t, AggregateRunning, res.State("solo"))
}

func TestDerive_SharedDependency(t *testing.T) {
	shared := def("gen")
	root := def("all", def("api", shared), def("web", shared))

	res := Derive(NewGraph(root), states{"gen": failed}.lookup)
	assert.Equal(t, AggregateError, res.State("api"))
	assert.Equal(t, AggregateError, res.State("web"))
	assert.Equal(t, AggregateError, res.State("all"))
}

func TestDerive_CycleGuard(t *testing.T) {
	a := def("a")
	b := def("b", a)
	c := def("c")
	a.DependsOn = []*TaskDefinition{b, c}

	res := Derive(NewGraph(a), states{"c": running}.lookup)
	assert.Equal(t, []Edge{{From: "b", To: "a"}}, res.Cycles)
	assert.Equal(t, AggregateDescendantRunning, res.State("a"))
	assert.Equal(t, AggregateIdle, res.State("b"))
	assert.Equal(t, AggregateRunning, res.State("c"))
}

func TestResult_StateUnknown(t *testing.T) {
	res := Derive(NewGraph(), states{}.lookup)
	assert.Equal(t, AggregateIdle, res.State("nope"))
}

func TestStoreLookup(t *testing.T) {
	s := taskstate.NewStore()

	run := taskstate.NewTaskRuntimeState()
	run.Running = true
	run.State = taskstate.StateRunning
	run.StartTime = time.Now()
	s = s.Set("run", run)

	done := taskstate.NewTaskRuntimeState()
	done.Completed = true
	done.State = taskstate.StateCompleted
	s = s.Set("done", done)

	stopped := taskstate.NewTaskRuntimeState()
	stopped.Completed = true
	stopped.State = taskstate.StateStopped
	s = s.Set("stopped", stopped)

	bad := taskstate.NewTaskRuntimeState()
	bad.Completed = true
	bad.Failed = true
	bad.State = taskstate.StateFailed
	s = s.Set("bad", bad)

	lookup := StoreLookup(s)
	assert.Equal(t, AggregateRunning, lookup("run").Own())
	assert.Equal(t, AggregateSuccess, lookup("done").Own())
	assert.Equal(t, AggregateIdle, lookup("stopped").Own())
	assert.Equal(t, AggregateError, lookup("bad").Own())
	assert.Equal(t, AggregateIdle, lookup("missing").Own())
}
