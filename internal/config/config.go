package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL    string
	WSURL     string
	ProgramID string

	Checkpoint     string
	PGDSN          string
	CheckpointName string

	PollInterval    time.Duration
	PageLimit       int
	MaxCatchupDepth uint64

	IntakeBuffer   int
	ListenerBuffer int

	MaxRetries   int
	RetryBackoff time.Duration

	Watch    []string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRIDGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-name", "bridgewatch")
	v.SetDefault("poll-interval", 10*time.Second)
	v.SetDefault("page-limit", 1000)
	v.SetDefault("max-catchup-depth", uint64(0))
	v.SetDefault("intake-buffer", 256)
	v.SetDefault("listener-buffer", 64)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
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
		RPCURL:          v.GetString("rpc"),
		WSURL:           v.GetString("ws"),
		ProgramID:       v.GetString("program"),
		Checkpoint:      v.GetString("checkpoint"),
		PGDSN:           v.GetString("pg-dsn"),
		CheckpointName:  v.GetString("checkpoint-name"),
		PollInterval:    v.GetDuration("poll-interval"),
		PageLimit:       v.GetInt("page-limit"),
		MaxCatchupDepth: v.GetUint64("max-catchup-depth"),
		IntakeBuffer:    v.GetInt("intake-buffer"),
		ListenerBuffer:  v.GetInt("listener-buffer"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Watch:           getStringSlice(v, "watch"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
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
