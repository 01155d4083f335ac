package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var (
	ErrJSONWithInterval = errors.New(`"--json" and "-i/--interval/--watch" cannot be used together`)
	ErrHostWithReplay   = errors.New(`"--host" and "--replay" cannot be used together`)
)

// New returns a viper instance with defaults, the config file search path
// and NPUSTAT_* environment lookup. Flags are bound by the caller.
func New(fsys afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fsys)

	v.SetConfigName("npustat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "npustat"))
	}
	v.AddConfigPath("/etc/npustat")

	v.SetEnvPrefix("NPUSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("interval", "")
	v.SetDefault("json", false)
	v.SetDefault("no_header", false)
	v.SetDefault("no_title", false)
	v.SetDefault("use_npu_smi", false)
	v.SetDefault("hide_power", false)
	v.SetDefault("compact", false)
	v.SetDefault("debug", false)
	v.SetDefault("force_color", false)
	v.SetDefault("host", "")
	v.SetDefault("ssh_config", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("replay_dir", "")
	v.SetDefault("listen", DefaultListen)
	return v
}

// Load reads the optional config file, decodes every layer and validates the
// result.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate resolves the watch interval and applies the option implications:
// compact hides header and title, the npu-smi table has no power column.
func (c *Config) Validate() error {
	watch, err := ParseInterval(c.Interval)
	if err != nil {
		return err
	}
	if watch > 0 && watch < MinWatchInterval {
		watch = MinWatchInterval
	}
	c.Watch = watch

	if c.JSON && c.Watch > 0 {
		return ErrJSONWithInterval
	}
	if c.Host != "" && c.ReplayDir != "" {
		return ErrHostWithReplay
	}
	if c.Compact {
		c.NoHeader = true
		c.NoTitle = true
	}
	if c.UseNpuSmi {
		c.HidePower = true
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	return nil
}

// largest number of seconds a time.Duration holds
const maxIntervalSeconds = float64(math.MaxInt64) / float64(time.Second)

// ParseInterval accepts plain seconds ("2", "0.5") or a Go duration ("750ms").
func ParseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || secs > maxIntervalSeconds {
			return 0, fmt.Errorf("invalid interval %q", raw)
		}
		d := time.Duration(secs * float64(time.Second))
		if secs > 0 && d <= 0 {
			// below one nanosecond, Validate raises it to the minimum
			d = time.Nanosecond
		}
		return d, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid interval %q", raw)
	}
	return d, nil
}
