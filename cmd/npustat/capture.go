package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wmc1992/npustat/internal"
	"github.com/wmc1992/npustat/internal/logger"
	"github.com/wmc1992/npustat/internal/npu"
)

func newCaptureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture DIR",
		Short: "Save the tool outputs of one query for --replay",
		Long: `capture runs every command a query needs, for both ascend-dmi and npu-smi,
and writes each output to DIR. "npustat --replay DIR" answers from those files.`,
		Args: cobra.ExactArgs(1),
		RunE: runCapture,
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	if cfg.ReplayDir != "" {
		return errors.New(`"capture" reads from the tools, not from "--replay"`)
	}
	ctx := cmd.Context()
	dir := args[0]
	log := logger.New("capture")
	defer log.Sync()

	source := localRunner(cfg.Timeout)
	if cfg.Host != "" {
		hosts, _ := internal.ParseSSHConfig(FS, cfg.SSHConfig)
		client, err := internal.DialSSH(ctx, internal.LookupSSHHost(hosts, cfg.Host), cfg.Timeout)
		if err != nil {
			return err
		}
		defer client.Close()
		source = client.Runner(cfg.Timeout)
	}
	record := internal.RecordingRunner(FS, dir, source)

	// recorded so replays show the captured host
	_ = internal.RemoteHostname(ctx, record, "")

	types := npu.NewCardTypeCache()
	captured := 0
	var errs error
	for _, b := range npu.Backends(types) {
		if !b.Detect(ctx, record) {
			log.Info("tool not available", zap.String("backend", b.Name()))
			continue
		}
		if _, cards, err := b.Query(ctx, record); err != nil {
			log.Warn("query failed", zap.String("backend", b.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		} else {
			log.Info("captured", zap.String("backend", b.Name()), zap.Int("cards", len(cards)))
			captured++
		}
	}
	if captured == 0 {
		if errs != nil {
			return fmt.Errorf("nothing captured: %w", errs)
		}
		return fmt.Errorf("nothing captured: %w", npu.ErrNoBackend)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "captured %d backend(s) to %s\n", captured, dir)
	return nil
}
