// Package protocol defines the JSON-lines wire format spoken with the host:
// inbound events and catalog updates, and outbound fire-and-forget commands.
package protocol

// Inbound message types.
const (
	TypeTaskStarted        = "taskStarted"
	TypeTaskEnded          = "taskEnded"
	TypeTaskCompleted      = "taskCompleted"
	TypeTaskStateChanged   = "taskStateChanged"
	TypeSubtaskStarted     = "subtaskStarted"
	TypeSubtaskEnded       = "subtaskEnded"
	TypeDismissTaskGroup   = "dismissTaskGroup"
	TypeUpdateTasks        = "updateTasks"
	TypeUpdateStarred      = "updateStarred"
	TypeUpdateRecentlyUsed = "updateRecentlyUsed"
	TypeExecutionHistory   = "executionHistory"
	TypePanelState         = "panelState"
	TypeLogBuffer          = "logBuffer"
)

// Message is any decoded inbound message.
type Message interface {
	MessageType() string
}

// TaskRef names a task either by host id or by label.
type TaskRef struct {
	TaskID    string `json:"taskId,omitempty"`
	TaskLabel string `json:"taskLabel,omitempty"`
}

// Times are unix milliseconds and durations are milliseconds on the wire.

type TaskStartedMsg struct {
	TaskRef
	StartTime   *int64   `json:"startTime,omitempty"`
	AvgDuration *int64   `json:"avgDuration,omitempty"`
	IsFirstRun  bool     `json:"isFirstRun,omitempty"`
	Subtasks    []string `json:"subtasks,omitempty"`
	ParentTask  string   `json:"parentTask,omitempty"`
	State       string   `json:"state,omitempty"`
}

type TaskEndedMsg struct {
	TaskRef
}

type TaskCompletedMsg struct {
	TaskRef
	Failed           bool   `json:"failed"`
	ExitCode         *int   `json:"exitCode,omitempty"`
	Reason           string `json:"reason,omitempty"`
	FailedDependency string `json:"failedDependency,omitempty"`
	Duration         *int64 `json:"duration,omitempty"`
	ParentTask       string `json:"parentTask,omitempty"`
}

type TaskStateChangedMsg struct {
	TaskRef
	State    string `json:"state,omitempty"`
	CanStop  *bool  `json:"canStop,omitempty"`
	CanFocus *bool  `json:"canFocus,omitempty"`
}

type SubtaskStartedMsg struct {
	ParentTaskID    string `json:"parentTaskId,omitempty"`
	ParentLabel     string `json:"parentLabel,omitempty"`
	ChildTaskID     string `json:"childTaskId,omitempty"`
	ChildLabel      string `json:"childLabel,omitempty"`
	ParentStartTime *int64 `json:"parentStartTime,omitempty"`
}

type SubtaskEndedMsg struct {
	ParentTaskID string `json:"parentTaskId,omitempty"`
	ParentLabel  string `json:"parentLabel,omitempty"`
	ChildTaskID  string `json:"childTaskId,omitempty"`
	ChildLabel   string `json:"childLabel,omitempty"`
	Failed       bool   `json:"failed"`
	ExitCode     *int   `json:"exitCode,omitempty"`
}

type DismissTaskGroupMsg struct {
	TaskRef
}

// TaskDefinitionWire is a catalog entry with its nested dependencies.
type TaskDefinitionWire struct {
	ID           string                `json:"id,omitempty"`
	Label        string                `json:"label"`
	DisplayLabel string                `json:"displayLabel,omitempty"`
	Source       string                `json:"source,omitempty"`
	DependsOn    []*TaskDefinitionWire `json:"dependsOn,omitempty"`
	DependsOrder string                `json:"dependsOrder,omitempty"`
}

type UpdateTasksMsg struct {
	Tasks []*TaskDefinitionWire `json:"tasks"`
}

type UpdateStarredMsg struct {
	Tasks []string `json:"tasks"`
}

type UpdateRecentlyUsedMsg struct {
	Tasks []string `json:"tasks"`
}

// ExecutionRecordWire is one finished run as reported by the host.
type ExecutionRecordWire struct {
	ID          string   `json:"id,omitempty"`
	TaskID      string   `json:"taskId,omitempty"`
	TaskLabel   string   `json:"taskLabel,omitempty"`
	StartTime   *int64   `json:"startTime,omitempty"`
	EndTime     *int64   `json:"endTime,omitempty"`
	Duration    *int64   `json:"duration,omitempty"`
	Failed      bool     `json:"failed"`
	ExitCode    *int     `json:"exitCode,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	ParentLabel string   `json:"parentLabel,omitempty"`
	ChildLabels []string `json:"childLabels,omitempty"`
}

type ExecutionHistoryMsg struct {
	History []ExecutionRecordWire `json:"history"`
}

// PanelState is the host's UI preference mirror. Nil fields are unknown.
type PanelState struct {
	RunningTasksCollapsed *bool `json:"runningTasksCollapsed,omitempty"`
	StarredTasksCollapsed *bool `json:"starredTasksCollapsed,omitempty"`
}

type PanelStateMsg struct {
	State PanelState `json:"state"`
}

type LogBufferMsg struct {
	Logs []string `json:"logs"`
}

func (TaskStartedMsg) MessageType() string        { return TypeTaskStarted }
func (TaskEndedMsg) MessageType() string          { return TypeTaskEnded }
func (TaskCompletedMsg) MessageType() string      { return TypeTaskCompleted }
func (TaskStateChangedMsg) MessageType() string   { return TypeTaskStateChanged }
func (SubtaskStartedMsg) MessageType() string     { return TypeSubtaskStarted }
func (SubtaskEndedMsg) MessageType() string       { return TypeSubtaskEnded }
func (DismissTaskGroupMsg) MessageType() string   { return TypeDismissTaskGroup }
func (UpdateTasksMsg) MessageType() string        { return TypeUpdateTasks }
func (UpdateStarredMsg) MessageType() string      { return TypeUpdateStarred }
func (UpdateRecentlyUsedMsg) MessageType() string { return TypeUpdateRecentlyUsed }
func (ExecutionHistoryMsg) MessageType() string   { return TypeExecutionHistory }
func (PanelStateMsg) MessageType() string         { return TypePanelState }
func (LogBufferMsg) MessageType() string          { return TypeLogBuffer }

// Outbound command types.
const (
	CmdRunTask             = "runTask"
	CmdStopTask            = "stopTask"
	CmdFocusTerminal       = "focusTerminal"
	CmdOpenTaskDefinition  = "openTaskDefinition"
	CmdToggleStar          = "toggleStar"
	CmdDismissTask         = "dismissTask"
	CmdSetPanelState       = "setPanelState"
	CmdGetLogs             = "getLogs"
	CmdGetTaskLists        = "getTaskLists"
	CmdGetPanelState       = "getPanelState"
	CmdGetExecutionHistory = "getExecutionHistory"
)

// BootstrapCommands are requested once when a session starts.
var BootstrapCommands = []string{CmdGetTaskLists, CmdGetPanelState, CmdGetExecutionHistory}

// Command is an outbound request to the host. RequestID is for host-side
// tracing only; no reply is awaited.
type Command struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId"`
	TaskID    string      `json:"taskId,omitempty"`
	State     *PanelState `json:"state,omitempty"`
}
