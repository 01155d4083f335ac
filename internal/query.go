package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wmc1992/npustat/internal/npu"
	"github.com/wmc1992/npustat/internal/npu/base"
	"github.com/wmc1992/npustat/internal/stat"
)

type QueryOptions struct {
	RunCmd base.RunCmdFunc

	// Types is shared across queries; nil gets a fresh cache per Querier.
	Types *npu.CardTypeCache

	// TableOnly skips ascend-dmi and reads the npu-smi table.
	TableOnly bool
	HidePower bool

	// Hostname overrides the name in the header and JSON output.
	Hostname string

	Now func() time.Time
}

// Query runs one full query: backend selection, the backend's commands, and
// the projection into a Collection.
func Query(ctx context.Context, opts QueryOptions) (*stat.Collection, error) {
	return NewQuerier(opts).Query(ctx)
}

// Querier keeps the selected backend between queries so that repeated
// refreshes do not detect the tools again.
type Querier struct {
	opts QueryOptions

	mu      sync.Mutex
	backend base.Backend
}

func NewQuerier(opts QueryOptions) *Querier {
	if opts.RunCmd == nil {
		opts.RunCmd = LocalRunner(DefaultCommandTimeout)
	}
	if opts.Types == nil {
		opts.Types = npu.NewCardTypeCache()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Querier{opts: opts}
}

// Backend returns the selected backend, probing the tools on first use.
func (q *Querier) Backend(ctx context.Context) (base.Backend, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.backend != nil {
		return q.backend, nil
	}
	b, err := npu.Select(ctx, q.opts.RunCmd, q.opts.Types, q.opts.TableOnly)
	if errors.Is(err, npu.ErrNoBackend) {
		return nil, fmt.Errorf("npu-smi not found, check the toolkit installation: %w", err)
	}
	if err != nil {
		return nil, err
	}
	q.backend = b
	return b, nil
}

func (q *Querier) Query(ctx context.Context) (*stat.Collection, error) {
	b, err := q.Backend(ctx)
	if err != nil {
		return nil, err
	}
	version, cards, err := b.Query(ctx, q.opts.RunCmd)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", b.Name(), err)
	}
	return stat.New(q.hostname(), version, cards,
		stat.WithBackend(b.Name()),
		stat.WithPower(!q.opts.HidePower && b.RealtimePower()),
		stat.WithQueryTime(q.opts.Now()),
	), nil
}

// Types exposes the card-type cache so callers can clear it.
func (q *Querier) Types() *npu.CardTypeCache { return q.opts.Types }

func (q *Querier) hostname() string {
	if q.opts.Hostname != "" {
		return q.opts.Hostname
	}
	name, _ := os.Hostname()
	return name
}

// RemoteHostname asks the host behind runCmd for its name, falling back to
// fallback when the command fails.
func RemoteHostname(ctx context.Context, runCmd base.RunCmdFunc, fallback string) string {
	out, err := runCmd(ctx, "hostname")
	if err != nil {
		return fallback
	}
	if name := strings.TrimSpace(out); name != "" {
		return name
	}
	return fallback
}
