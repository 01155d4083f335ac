package config

import (
	"time"
)

type Config struct {
	// Interval is the raw refresh interval: seconds ("0.5", "2") or a Go
	// duration ("1500ms"). Empty or zero means a single query.
	Interval string `mapstructure:"interval"`

	JSON       bool `mapstructure:"json"`
	NoHeader   bool `mapstructure:"no_header"`
	NoTitle    bool `mapstructure:"no_title"`
	UseNpuSmi  bool `mapstructure:"use_npu_smi"`
	HidePower  bool `mapstructure:"hide_power"`
	Compact    bool `mapstructure:"compact"`
	Debug      bool `mapstructure:"debug"`
	ForceColor bool `mapstructure:"force_color"`

	Host      string        `mapstructure:"host"`
	SSHConfig string        `mapstructure:"ssh_config"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ReplayDir string        `mapstructure:"replay_dir"`
	Listen    string        `mapstructure:"listen"`

	// set by Validate
	Watch time.Duration `mapstructure:"-"`
}

const (
	DefaultWatchInterval = 2 * time.Second
	MinWatchInterval     = 100 * time.Millisecond
	DefaultTimeout       = 10 * time.Second
	DefaultListen        = ":9109"
)
