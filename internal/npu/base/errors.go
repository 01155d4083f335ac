package base

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolUnavailable marks failures where the tool could not be run at all:
// missing binary, timeout, or no captured output to replay.
var ErrToolUnavailable = errors.New("tool unavailable")

// CommandError is returned by runners when a command fails.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err so that errors.Is(err, ErrToolUnavailable) holds.
func Unavailable(command string, err error) error {
	return &CommandError{Command: command, Err: fmt.Errorf("%w: %v", ErrToolUnavailable, err)}
}
