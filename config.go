package main

import (
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultConfigPath = "~/.config/sqtop/config.toml"

// Config is loaded once at startup and handed to NewModel. Nothing reads
// it through a package-level variable, so tests can construct their own.
type Config struct {
	RefreshInterval float64      `toml:"refresh_interval"`
	Jobs            JobsConfig   `toml:"jobs"`
	Watch           WatchConfig  `toml:"watch"`
	Attach          AttachConfig `toml:"attach"`
	Safety          SafetyConfig `toml:"safety"`
	Health          HealthConfig `toml:"health"`
	UI              UIConfig     `toml:"ui"`
}

// JobsConfig caps the width of free-form jobs columns so a single job
// with a long name cannot starve the rest of the table.
type JobsConfig struct {
	NameMax           int `toml:"name_max"`
	UserMax           int `toml:"user_max"`
	PartitionMax      int `toml:"partition_max"`
	NodelistReasonMax int `toml:"nodelist_reason_max"`
}

// WatchConfig lists the job states treated as final by the watch list.
type WatchConfig struct {
	TerminalStates []string `toml:"terminal_states"`
}

type AttachConfig struct {
	Enabled        bool     `toml:"enabled"`
	DefaultCommand string   `toml:"default_command"`
	ExtraArgs      []string `toml:"extra_args"`
}

type SafetyConfig struct {
	ConfirmCancelSingle bool `toml:"confirm_cancel_single"`
	ConfirmBulkActions  bool `toml:"confirm_bulk_actions"`
}

type HealthConfig struct {
	Enabled     bool `toml:"enabled"`
	HistorySize int  `toml:"history_size"`
}

type UIConfig struct {
	Theme string `toml:"theme"`
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval: 2.0,
		Jobs: JobsConfig{
			NameMax:           24,
			UserMax:           12,
			PartitionMax:      14,
			NodelistReasonMax: 40,
		},
		Watch: WatchConfig{
			TerminalStates: []string{
				"COMPLETED", "FAILED", "CANCELLED", "TIMEOUT",
				"NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE",
			},
		},
		Attach: AttachConfig{
			Enabled:        true,
			DefaultCommand: "$SHELL -l",
		},
		Safety: SafetyConfig{
			ConfirmCancelSingle: true,
			ConfirmBulkActions:  true,
		},
		Health: HealthConfig{
			Enabled:     true,
			HistorySize: 100,
		},
		UI: UIConfig{Theme: "dracula"},
	}
}

// LoadConfig reads the TOML file at path (defaultConfigPath when empty)
// and overlays it on the compiled defaults. The dashboard must start on a
// missing or broken config, so any read or parse error yields the full
// defaults rather than an error.
func LoadConfig(path string) Config {
	if path == "" {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(expandHomePath(path))
	if err != nil {
		return DefaultConfig()
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig()
	}
	return sanitizeConfig(cfg)
}

func sanitizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.Health.HistorySize <= 0 {
		cfg.Health.HistorySize = def.Health.HistorySize
	}
	if len(cfg.Watch.TerminalStates) == 0 {
		cfg.Watch.TerminalStates = def.Watch.TerminalStates
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = def.UI.Theme
	}
	return cfg
}

// Interval converts the configured refresh interval to a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.RefreshInterval * float64(time.Second))
}

// JobColumnCaps returns the jobs-view maximum column widths keyed by
// column header. Columns without a configured cap are absent.
func (c Config) JobColumnCaps() map[string]int {
	caps := make(map[string]int, 4)
	if c.Jobs.NameMax > 0 {
		caps["NAME"] = c.Jobs.NameMax
	}
	if c.Jobs.UserMax > 0 {
		caps["USER"] = c.Jobs.UserMax
	}
	if c.Jobs.PartitionMax > 0 {
		caps["PARTITION"] = c.Jobs.PartitionMax
	}
	if c.Jobs.NodelistReasonMax > 0 {
		caps["NODELIST(REASON)"] = c.Jobs.NodelistReasonMax
	}
	return caps
}

// TerminalStateSet returns the watch terminal states as a lookup set.
func (c Config) TerminalStateSet() map[string]bool {
	set := make(map[string]bool, len(c.Watch.TerminalStates))
	for _, s := range c.Watch.TerminalStates {
		set[s] = true
	}
	return set
}
