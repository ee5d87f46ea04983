package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/milwrite/botwatch/internal/classify"
	"github.com/milwrite/botwatch/internal/health"
	"github.com/milwrite/botwatch/internal/logbuf"
	"github.com/milwrite/botwatch/internal/supervisor"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	Level   string `mapstructure:"level" yaml:"level" json:"level"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Bot        BotConfig        `mapstructure:"bot" yaml:"bot" json:"bot"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard" yaml:"dashboard" json:"dashboard"`
	Health     HealthConfig     `mapstructure:"health" yaml:"health" json:"health"`
	Logs       LogsConfig       `mapstructure:"logs" yaml:"logs" json:"logs"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
}

// BotConfig describes the supervised bot process
type BotConfig struct {
	Command        string        `mapstructure:"command" yaml:"command" json:"command"`
	ReadyMarker    string        `mapstructure:"ready_marker" yaml:"ready_marker" json:"ready_marker"`
	PortEnv        string        `mapstructure:"port_env" yaml:"port_env" json:"port_env"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout" json:"startup_timeout"`
	GracePeriod    time.Duration `mapstructure:"grace_period" yaml:"grace_period" json:"grace_period"`
}

// DashboardConfig describes the optional auxiliary dashboard
type DashboardConfig struct {
	Command string `mapstructure:"command" yaml:"command" json:"command"`
	Port    int    `mapstructure:"port" yaml:"port" json:"port"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

type HealthConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	HangThreshold time.Duration `mapstructure:"hang_threshold" yaml:"hang_threshold" json:"hang_threshold"`
}

type LogsConfig struct {
	Dir            string `mapstructure:"dir" yaml:"dir" json:"dir"`
	ReportsDir     string `mapstructure:"reports_dir" yaml:"reports_dir" json:"reports_dir"`
	FlushThreshold int    `mapstructure:"flush_threshold" yaml:"flush_threshold" json:"flush_threshold"`
}

type ClassifierConfig struct {
	ToolNames []string `mapstructure:"tool_names" yaml:"tool_names" json:"tool_names"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "text",
		Level:   "info",
		Quiet:   false,
		Verbose: false,
		Bot: BotConfig{
			Command:        "node bot.js",
			ReadyMarker:    supervisor.DefaultReadyMarker,
			PortEnv:        supervisor.DefaultPortEnv,
			StartupTimeout: supervisor.DefaultStartupTimeout,
			GracePeriod:    supervisor.DefaultGracePeriod,
		},
		Dashboard: DashboardConfig{
			Command: "node gui-server.js",
			Port:    supervisor.DefaultPort,
			Enabled: true,
		},
		Health: HealthConfig{
			Interval:      health.DefaultInterval,
			HangThreshold: health.DefaultHangThreshold,
		},
		Logs: LogsConfig{
			Dir:            "logs",
			ReportsDir:     filepath.Join("logs", "reports"),
			FlushThreshold: logbuf.DefaultThreshold,
		},
		Classifier: ClassifierConfig{
			ToolNames: append([]string(nil), classify.DefaultToolNames...),
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Explicit file wins, then the usual search locations
	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("botwatch")
		v.AddConfigPath("/etc/botwatch/")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "botwatch"))
		}
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("BOTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	return cfg, nil
}

// AutomaticEnv only sees keys viper knows about, so every key gets a default
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("bot.command", cfg.Bot.Command)
	v.SetDefault("bot.ready_marker", cfg.Bot.ReadyMarker)
	v.SetDefault("bot.port_env", cfg.Bot.PortEnv)
	v.SetDefault("bot.startup_timeout", cfg.Bot.StartupTimeout)
	v.SetDefault("bot.grace_period", cfg.Bot.GracePeriod)
	v.SetDefault("dashboard.command", cfg.Dashboard.Command)
	v.SetDefault("dashboard.port", cfg.Dashboard.Port)
	v.SetDefault("dashboard.enabled", cfg.Dashboard.Enabled)
	v.SetDefault("health.interval", cfg.Health.Interval)
	v.SetDefault("health.hang_threshold", cfg.Health.HangThreshold)
	v.SetDefault("logs.dir", cfg.Logs.Dir)
	v.SetDefault("logs.reports_dir", cfg.Logs.ReportsDir)
	v.SetDefault("logs.flush_threshold", cfg.Logs.FlushThreshold)
	v.SetDefault("classifier.tool_names", cfg.Classifier.ToolNames)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	if path := findConfigFile(); path != "" {
		return path
	}
	v := viper.New()
	v.SetConfigName("botwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/botwatch/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "botwatch"))
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}
	return ""
}

// findConfigFile looks for a dotfile in the current directory, then home
func findConfigFile() string {
	names := []string{".botwatch.yaml", ".botwatch.yml"}

	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	for _, dir := range dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// applyEnvOverrides handles the short env names that don't follow the
// BOTWATCH_<SECTION>_<KEY> layout
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOTWATCH_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("BOTWATCH_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("BOTWATCH_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("BOTWATCH_BOT_CMD"); v != "" {
		cfg.Bot.Command = v
	}
	if v := os.Getenv("BOTWATCH_GUI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Dashboard.Port = port
		}
	}
}
