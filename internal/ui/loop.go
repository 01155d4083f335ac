package ui

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// RunPlain is the watch loop for outputs that are not a terminal: every
// result is printed in sequence and failed queries are logged and skipped.
// It returns when ctx is cancelled.
func RunPlain(ctx context.Context, w io.Writer, query QueryFunc, r *Renderer, interval time.Duration, log *zap.Logger) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		started := time.Now()
		// the query gets ctx, not a per-tick context
		c, err := query(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("query failed", zap.Error(err))
		} else if _, err := io.WriteString(w, r.Render(c)); err != nil {
			return err
		}

		wait := interval - time.Since(started)
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer.Reset(wait)
	}
}
