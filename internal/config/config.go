// Package config loads engine and CLI settings.
package config

import (
	"fmt"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
)

// Delimiter option names accepted in settings.
const (
	DelimiterSpace  = "space"
	DelimiterTab    = "tab"
	DelimiterCustom = "custom"
)

// Config is the explicit settings record handed to task submission.
// The engine never sees the loader; it holds no process-wide state.
type Config struct {
	Algorithm       string   `mapstructure:"algorithm"`
	Delimiter       string   `mapstructure:"delimiter"`
	CustomDelimiter string   `mapstructure:"custom_delimiter"`
	CommentMarker   string   `mapstructure:"comment_marker"`
	PathStyle       string   `mapstructure:"path_style"`
	Workers         int      `mapstructure:"workers"`
	ChunkSize       int      `mapstructure:"chunk_size"`
	Exclude         []string `mapstructure:"exclude"`
	Quick           bool     `mapstructure:"quick"`
	LogFile         string   `mapstructure:"log_file"`
	LogLevel        string   `mapstructure:"log_level"`
	SessionFile     string   `mapstructure:"session_file"`
}

// Validate checks the cross-field constraints a loaded config must hold.
func (c *Config) Validate() error {
	if _, err := checksum.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("algorithm: %w", err)
	}
	switch c.Delimiter {
	case DelimiterSpace, DelimiterTab:
	case DelimiterCustom:
		if c.CustomDelimiter == "" {
			return fmt.Errorf("delimiter %q requires custom_delimiter", c.Delimiter)
		}
	default:
		return fmt.Errorf("unknown delimiter option %q", c.Delimiter)
	}
	switch manifest.PathStyle(c.PathStyle) {
	case manifest.StyleRelative, manifest.StyleAbsolute:
	default:
		return fmt.Errorf("unknown path_style %q", c.PathStyle)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be >= 0, got %d", c.ChunkSize)
	}
	if c.CommentMarker == "" {
		return fmt.Errorf("comment_marker must not be empty")
	}
	return nil
}

// AlgorithmTag returns the validated algorithm value.
func (c *Config) AlgorithmTag() checksum.Algorithm {
	alg, _ := checksum.ParseAlgorithm(c.Algorithm)
	return alg
}

// DelimiterString maps the delimiter option to the literal separator.
func (c *Config) DelimiterString() string {
	switch c.Delimiter {
	case DelimiterTab:
		return manifest.DelimiterTab
	case DelimiterCustom:
		return c.CustomDelimiter
	default:
		return manifest.DelimiterSpace
	}
}

// Style returns the configured path style.
func (c *Config) Style() manifest.PathStyle {
	return manifest.PathStyle(c.PathStyle)
}
