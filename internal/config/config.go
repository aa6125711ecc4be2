package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEndpoints are public BSC RPC providers, tried in order.
var DefaultEndpoints = []string{
	"https://bsc-dataseed3.binance.org/",
	"https://binance.llamarpc.com",
	"https://bscrpc.com",
	"https://bsc.meowrpc.com",
	"https://bsc.drpc.org",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Endpoints    []string
	Out          string
	UTCOffset    time.Duration
	PollInterval time.Duration
	CallTimeout  time.Duration
	StallTimeout time.Duration
	RotatePause  time.Duration
	QueueSize    int
	UseReceipts  bool
	ForcePolling bool
	MetricsAddr  string
	LogLevel     string
}

// Location returns the fixed-offset zone records are stamped in.
func (c Config) Location() *time.Location {
	return FixedZone(c.UTCOffset)
}

// FixedZone names a fixed offset the way it is printed, e.g. UTC+08:00.
func FixedZone(offset time.Duration) *time.Location {
	sign := "+"
	abs := offset
	if offset < 0 {
		sign = "-"
		abs = -offset
	}
	hours := int(abs / time.Hour)
	minutes := int((abs % time.Hour) / time.Minute)
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, hours, minutes), int(offset/time.Second))
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("endpoints", DefaultEndpoints)
	v.SetDefault("out", "./erc20_tokens.txt")
	v.SetDefault("utc-offset", 8*time.Hour)
	v.SetDefault("poll-interval", 4*time.Second)
	v.SetDefault("call-timeout", 15*time.Second)
	v.SetDefault("stall-timeout", 60*time.Second)
	v.SetDefault("rotate-pause", 5*time.Second)
	v.SetDefault("queue-size", 256)
	v.SetDefault("use-receipts", false)
	v.SetDefault("force-polling", false)
	v.SetDefault("metrics-addr", "")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Endpoints:    getStringSlice(v, "endpoints"),
		Out:          v.GetString("out"),
		UTCOffset:    v.GetDuration("utc-offset"),
		PollInterval: v.GetDuration("poll-interval"),
		CallTimeout:  v.GetDuration("call-timeout"),
		StallTimeout: v.GetDuration("stall-timeout"),
		RotatePause:  v.GetDuration("rotate-pause"),
		QueueSize:    v.GetInt("queue-size"),
		UseReceipts:  v.GetBool("use-receipts"),
		ForcePolling: v.GetBool("force-polling"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate reports settings the watcher cannot run with.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	if c.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.StallTimeout < 0 || c.CallTimeout < 0 || c.RotatePause < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
