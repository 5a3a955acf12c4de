package engine

import (
	"github.com/google/uuid"

	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/metrics"
	"github.com/maxkimambo/tasklens/internal/protocol"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// Sender delivers a command to the host. Delivery is fire-and-forget.
type Sender interface {
	Send(cmd protocol.Command) error
}

// EncoderSender writes commands as JSON lines.
type EncoderSender struct {
	enc *protocol.Encoder
}

// NewEncoderSender wraps a protocol encoder.
func NewEncoderSender(enc *protocol.Encoder) *EncoderSender {
	return &EncoderSender{enc: enc}
}

func (s *EncoderSender) Send(cmd protocol.Command) error {
	return s.enc.Encode(cmd)
}

// Commands issues outbound requests. No reply is awaited: the resulting
// state change, if any, arrives later as a host event.
type Commands struct {
	sender Sender
	newID  func() string
}

// NewCommands creates a command issuer over sender.
func NewCommands(sender Sender) *Commands {
	return &Commands{sender: sender, newID: uuid.NewString}
}

func (c *Commands) send(cmdType string, key taskstate.TaskKey, state *protocol.PanelState) error {
	cmd := protocol.Command{
		Type:      cmdType,
		RequestID: c.newID(),
		TaskID:    string(key),
		State:     state,
	}
	if err := c.sender.Send(cmd); err != nil {
		logger.CommandFailed(cmdType, string(key), cmd.RequestID, err)
		return err
	}
	metrics.RecordCommandSent(cmdType)
	logger.CommandSent(cmdType, string(key), cmd.RequestID)
	return nil
}

func (c *Commands) RunTask(key taskstate.TaskKey) error {
	return c.send(protocol.CmdRunTask, key, nil)
}

func (c *Commands) StopTask(key taskstate.TaskKey) error {
	return c.send(protocol.CmdStopTask, key, nil)
}

func (c *Commands) FocusTerminal(key taskstate.TaskKey) error {
	return c.send(protocol.CmdFocusTerminal, key, nil)
}

func (c *Commands) OpenTaskDefinition(key taskstate.TaskKey) error {
	return c.send(protocol.CmdOpenTaskDefinition, key, nil)
}

func (c *Commands) ToggleStar(key taskstate.TaskKey) error {
	return c.send(protocol.CmdToggleStar, key, nil)
}

func (c *Commands) DismissTask(key taskstate.TaskKey) error {
	return c.send(protocol.CmdDismissTask, key, nil)
}

func (c *Commands) SetPanelState(state protocol.PanelState) error {
	return c.send(protocol.CmdSetPanelState, "", &state)
}

func (c *Commands) GetLogs() error {
	return c.send(protocol.CmdGetLogs, "", nil)
}

// Bootstrap requests the task lists, panel state and execution history.
// Every request is attempted; the first error is returned.
func (c *Commands) Bootstrap() error {
	var first error
	for _, cmdType := range protocol.BootstrapCommands {
		if err := c.send(cmdType, "", nil); err != nil && first == nil {
			first = err
		}
	}
	return first
}
