package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// ReplayFile maps a command line to the file holding its captured output,
// e.g. "npu-smi info -t product -i 1" -> "npu-smi_info_-t_product_-i_1.txt".
func ReplayFile(cmd string) string {
	return strings.Join(strings.Fields(cmd), "_") + ".txt"
}

// ReplayRunner answers commands from captured outputs under dir. A command
// without a capture behaves like a tool that is not installed.
func ReplayRunner(fsys afero.Fs, dir string) base.RunCmdFunc {
	return func(ctx context.Context, cmd string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := filepath.Join(dir, ReplayFile(cmd))
		data, err := afero.ReadFile(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", base.Unavailable(cmd, fmt.Errorf("no capture at %s", path))
		}
		if err != nil {
			return "", &base.CommandError{Command: cmd, Err: err}
		}
		return string(data), nil
	}
}

// RecordingRunner passes commands through to runCmd and stores every
// successful output under dir in the layout ReplayRunner reads.
func RecordingRunner(fsys afero.Fs, dir string, runCmd base.RunCmdFunc) base.RunCmdFunc {
	return func(ctx context.Context, cmd string) (string, error) {
		out, err := runCmd(ctx, cmd)
		if err != nil {
			return out, err
		}
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := afero.WriteFile(fsys, filepath.Join(dir, ReplayFile(cmd)), []byte(out), 0o644); err != nil {
			return "", fmt.Errorf("failed to record %q: %w", cmd, err)
		}
		return out, nil
	}
}
