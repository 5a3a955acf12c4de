package protocol

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/maxkimambo/tasklens/internal/errors"
)

// MaxLineSize bounds a single host message. Execution history arrives in one line.
const MaxLineSize = 16 << 20

// UnknownMsg is a well-formed message whose type this version does not handle.
type UnknownMsg struct {
	Type string
}

func (m UnknownMsg) MessageType() string { return m.Type }

type envelope struct {
	Type string `json:"type"`
}

// DecodeLine parses one JSON line into its typed message. Blank lines decode
// to (nil, nil).
func DecodeLine(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var env envelope
	if err := sonic.Unmarshal(line, &env); err != nil {
		return nil, errors.NewMalformedMessageError(line, err)
	}
	if env.Type == "" {
		return nil, errors.NewMissingTypeError(line)
	}

	var msg Message
	var err error
	switch env.Type {
	case TypeTaskStarted:
		msg, err = decodeAs[TaskStartedMsg](line)
	case TypeTaskEnded:
		msg, err = decodeAs[TaskEndedMsg](line)
	case TypeTaskCompleted:
		msg, err = decodeAs[TaskCompletedMsg](line)
	case TypeTaskStateChanged:
		msg, err = decodeAs[TaskStateChangedMsg](line)
	case TypeSubtaskStarted:
		msg, err = decodeAs[SubtaskStartedMsg](line)
	case TypeSubtaskEnded:
		msg, err = decodeAs[SubtaskEndedMsg](line)
	case TypeDismissTaskGroup:
		msg, err = decodeAs[DismissTaskGroupMsg](line)
	case TypeUpdateTasks:
		msg, err = decodeAs[UpdateTasksMsg](line)
	case TypeUpdateStarred:
		msg, err = decodeAs[UpdateStarredMsg](line)
	case TypeUpdateRecentlyUsed:
		msg, err = decodeAs[UpdateRecentlyUsedMsg](line)
	case TypeExecutionHistory:
		msg, err = decodeAs[ExecutionHistoryMsg](line)
	case TypePanelState:
		msg, err = decodeAs[PanelStateMsg](line)
	case TypeLogBuffer:
		msg, err = decodeAs[LogBufferMsg](line)
	default:
		return UnknownMsg{Type: env.Type}, nil
	}
	if err != nil {
		return nil, errors.NewMalformedMessageError(line, err).WithContext("type", env.Type)
	}
	return msg, nil
}

func decodeAs[T Message](line []byte) (Message, error) {
	var v T
	if err := sonic.Unmarshal(line, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decoder reads host messages from a JSON-lines stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Decoder{scanner: sc}
}

// Decode returns the next message. A malformed line yields an error but the
// decoder stays usable; io.EOF marks the end of the stream.
func (d *Decoder) Decode() (Message, error) {
	for d.scanner.Scan() {
		d.line++
		msg, err := DecodeLine(d.scanner.Bytes())
		if err != nil {
			if te, ok := errors.AsTrackerError(err); ok {
				te.WithContext("lineNumber", d.line)
			}
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Line returns the number of lines consumed so far.
func (d *Decoder) Line() int {
	return d.line
}

// Encoder writes commands as JSON lines. Safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one command followed by a newline.
func (e *Encoder) Encode(cmd Command) error {
	data, err := sonic.Marshal(cmd)
	if err != nil {
		return errors.NewEncodeError(cmd.Type, err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return errors.NewEncodeError(cmd.Type, err)
	}
	return nil
}
