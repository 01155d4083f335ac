package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wmc1992/npustat/internal"
	"github.com/wmc1992/npustat/internal/config"
	"github.com/wmc1992/npustat/internal/logger"
	"github.com/wmc1992/npustat/internal/ui"
)

// FS is where config files, SSH configs and captures are read from.
var FS afero.Fs = afero.NewOsFs()

// localRunner runs tool commands on this machine.
var localRunner = internal.LocalRunner

// flag name -> config key
var flagKeys = map[string]string{
	"interval":    "interval",
	"json":        "json",
	"no-header":   "no_header",
	"no-title":    "no_title",
	"use-npu-smi": "use_npu_smi",
	"hide-power":  "hide_power",
	"compact":     "compact",
	"debug":       "debug",
	"force-color": "force_color",
	"host":        "host",
	"ssh-config":  "ssh_config",
	"timeout":     "timeout",
	"replay":      "replay_dir",
	"listen":      "listen",
}

type cfgKey struct{}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "npustat",
		Short: "Show the status of Ascend NPU cards",
		Long: `npustat prints one line per Ascend accelerator card and per chip: health,
temperature, AI core usage, memory and (with ascend-dmi) realtime power.`,
		Version:           internal.FullVersion(),
		SilenceErrors:     true,
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: loadConfig,
		RunE:              runStatus,
	}
	cmd.SetVersionTemplate(internal.VersionLine() + "\n")

	pf := cmd.PersistentFlags()
	pf.Bool("use-npu-smi", false, `read the "npu-smi info" table instead of ascend-dmi (no realtime power)`)
	pf.Bool("debug", false, "verbose logging and full error details")
	pf.String("host", "", "run the tools on this SSH host from ~/.ssh/config")
	pf.String("ssh-config", "", "SSH client config to read hosts from (default ~/.ssh/config)")
	pf.Duration("timeout", config.DefaultTimeout, "timeout for every tool command")
	pf.String("replay", "", "answer tool commands from outputs captured in this directory")

	f := cmd.Flags()
	f.Bool("json", false, "print the result as JSON")
	f.StringP("interval", "i", "", "refresh every INTERVAL seconds (2 when given without a value)")
	f.Lookup("interval").NoOptDefVal = "2"
	f.Bool("no-header", false, "hide the hostname, time and version line")
	f.Bool("no-title", false, "hide the column titles")
	f.Bool("hide-power", false, "hide card power")
	f.Bool("compact", false, "no header, titles or blank lines")
	f.Bool("force-color", false, "emit colors even when stdout is not a terminal")
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "watch" {
			name = "interval"
		}
		return pflag.NormalizedName(name)
	})

	cmd.AddCommand(newServeCmd(), newVersionCmd(), newCaptureCmd())
	return cmd
}

// loadConfig layers defaults, the config file, NPUSTAT_* variables and the
// flags of the command being run.
func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.New(FS)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger.SetDebug(cfg.Debug)
	cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{Timeout: config.DefaultTimeout, Listen: config.DefaultListen}
}

func debugEnabled(cmd *cobra.Command) bool {
	if _, ok := os.LookupEnv("NPUSTAT_DEBUG"); ok {
		return true
	}
	on, _ := cmd.PersistentFlags().GetBool("debug")
	return on
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)
	ctx := cmd.Context()

	querier, closeFn, err := newQuerier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	renderer := ui.NewTextRenderer(ui.NewRenderer(out, cfg.ForceColor), ui.RenderOptions{
		NoHeader: cfg.NoHeader,
		NoTitle:  cfg.NoTitle,
		Compact:  cfg.Compact,
	})

	if cfg.Watch == 0 {
		c, err := querier.Query(ctx)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return c.WriteJSON(out)
		}
		_, err = io.WriteString(out, renderer.Render(c))
		return err
	}

	if isTerminal(out) {
		p := tea.NewProgram(ui.InitialModel(ctx, querier.Query, renderer, cfg.Watch),
			tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(out))
		_, err := p.Run()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log := logger.New("watch")
	defer log.Sync()
	log.Debug("stdout is not a terminal, printing every refresh", zap.Duration("interval", cfg.Watch))
	return ui.RunPlain(ctx, out, querier.Query, renderer, cfg.Watch, log.Logger)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newQuerier builds the querier for the configured command source: captured
// outputs, an SSH host, or this machine.
func newQuerier(ctx context.Context, cfg *config.Config) (*internal.Querier, func(), error) {
	opts := internal.QueryOptions{
		TableOnly: cfg.UseNpuSmi,
		HidePower: cfg.HidePower,
	}
	closeFn := func() {}

	switch {
	case cfg.ReplayDir != "":
		opts.RunCmd = internal.ReplayRunner(FS, cfg.ReplayDir)
		opts.Hostname = internal.RemoteHostname(ctx, opts.RunCmd, "replay")

	case cfg.Host != "":
		hosts, err := internal.ParseSSHConfig(FS, cfg.SSHConfig)
		if err != nil && cfg.SSHConfig != "" {
			return nil, nil, fmt.Errorf("failed to read SSH config: %w", err)
		}
		host := internal.LookupSSHHost(hosts, cfg.Host)
		client, err := internal.DialSSH(ctx, host, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { client.Close() }
		opts.RunCmd = client.Runner(cfg.Timeout)
		opts.Hostname = internal.RemoteHostname(ctx, opts.RunCmd, host.Name)

	default:
		opts.RunCmd = localRunner(cfg.Timeout)
	}

	return internal.NewQuerier(opts), closeFn, nil
}
