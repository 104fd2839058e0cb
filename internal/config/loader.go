package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".swiftsfv"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for settings.
const envPrefix = "SFV"

// Load reads configuration from file, env vars and defaults. A
// non-empty path names an explicit config file; otherwise the file is
// searched in the CWD and $HOME. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("algorithm", "CRC32")
	v.SetDefault("delimiter", DelimiterSpace)
	v.SetDefault("custom_delimiter", "")
	v.SetDefault("comment_marker", ";")
	v.SetDefault("path_style", "relative")
	v.SetDefault("workers", 0) // 0 = hardware concurrency
	v.SetDefault("chunk_size", 0)
	v.SetDefault("exclude", []string{})
	v.SetDefault("quick", false)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_file", ".swiftsfv_session.json")
}
