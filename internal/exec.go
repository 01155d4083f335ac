package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/wmc1992/npustat/internal/npu/base"
)

const DefaultCommandTimeout = 10 * time.Second

// LocalRunner runs tool commands on this machine. Command lines are split
// on whitespace and never passed through a shell.
func LocalRunner(timeout time.Duration) base.RunCmdFunc {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, cmd string) (string, error) {
		args := strings.Fields(cmd)
		if len(args) == 0 {
			return "", fmt.Errorf("empty command")
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, args[0], args[1:]...)
		c.Stdout = &stdout
		c.Stderr = &stderr

		err := c.Run()
		switch {
		case err == nil:
			return stdout.String(), nil
		case errors.Is(err, exec.ErrNotFound):
			return "", base.Unavailable(cmd, err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", base.Unavailable(cmd, fmt.Errorf("timed out after %s", timeout))
		default:
			return stdout.String(), &base.CommandError{Command: cmd, Output: stderr.String(), Err: err}
		}
	}
}
