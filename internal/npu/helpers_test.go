package npu

import (
	"context"
	"fmt"
	"sync"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// fakeRunner answers commands from a fixed table and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (f *fakeRunner) set(cmd, output string) *fakeRunner {
	f.outputs[cmd] = output
	return f
}

func (f *fakeRunner) fail(cmd string, err error) *fakeRunner {
	f.errs[cmd] = err
	return f
}

func (f *fakeRunner) run(_ context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if err, ok := f.errs[cmd]; ok {
		return "", err
	}
	out, ok := f.outputs[cmd]
	if !ok {
		return "", base.Unavailable(cmd, fmt.Errorf("no fake output"))
	}
	return out, nil
}

func (f *fakeRunner) count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

const npuSmiTwoCards = `
+------------------------------------------------------------------------------+
| npu-smi 21.0.3.1                     Version: 21.0.3.1                       |
+-------------------+-----------------+----------------------------------------+
| NPU     Name      | Health          | Power(W)          Temp(C)              |
| Chip    Device    | Bus-Id          | AICore(%)         Memory-Usage(MB)     |
+===================+=================+========================================+
| 1       310       | OK              | 12.8              49                   |
| 0       0         | 0000:01:00.0    | 0                 2621 / 8192          |
+-------------------+-----------------+----------------------------------------+
| 1       310       | OK              | 12.8              51                   |
| 1       1         | 0000:02:00.0    | 35                2700 / 8192          |
+-------------------+-----------------+----------------------------------------+
| 2       310       | Warning         | 12.8              63                   |
| 0       2         | 0000:03:00.0    | 100               8000 / 8192          |
+===================+=================+========================================+
`
