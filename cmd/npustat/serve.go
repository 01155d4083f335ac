package main

import (
	"context"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/wmc1992/npustat/internal/config"
	"github.com/wmc1992/npustat/internal/exporter"
	"github.com/wmc1992/npustat/internal/logger"
)

const (
	scrapeTimeout   = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose NPU status as Prometheus metrics",
		Long: `serve runs a query on every scrape of /metrics and reports card power, chip
temperature, AI core usage, memory and health. /healthz answers while the
server is up.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("listen", config.DefaultListen, "address to serve /metrics and /healthz on")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)
	ctx := cmd.Context()
	log := logger.New("exporter")
	defer log.Sync()

	// the exporter is long-lived and usually runs in a container
	if undo, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf)); err != nil {
		log.Warn("failed to set GOMAXPROCS", zap.Error(err))
	} else {
		defer undo()
	}
	if limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	); err != nil {
		log.Debug("memory limit left unset", zap.Error(err))
	} else {
		log.Debug("memory limit set", zap.Int64("bytes", limit))
	}

	querier, closeFn, err := newQuerier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	collector := exporter.NewCollector(querier.Query, scrapeTimeout, log.Logger)
	srv, err := exporter.NewServer(cfg.Listen, collector, log.Logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down", zap.String("addr", srv.Addr()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
