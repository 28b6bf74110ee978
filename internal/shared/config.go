package shared

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Loader   LoaderConfig   `toml:"loader"`
	Playback PlaybackConfig `toml:"playback"`
}

// CacheConfig controls the on-disk download directory and the in-memory composition cache.
type CacheConfig struct {
	Dir             string `toml:"dir"`
	MaxCompositions int    `toml:"max_compositions"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig contains settings for fetching compositions over the network.
type RemoteConfig struct {
	TimeoutSeconds int      `toml:"timeout_seconds"`
	RateLimit      float64  `toml:"rate_limit"`
	Burst          int      `toml:"burst"`
	ChunkSize      int      `toml:"chunk_size"`
	UserAgent      string   `toml:"user_agent"`
	BearerToken    string   `toml:"bearer_token"`
	S3             S3Config `toml:"s3"`
}

// S3Config points the s3:// opener at a region or an S3-compatible endpoint.
type S3Config struct {
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// LoaderConfig sizes the background worker pool used for resolution.
type LoaderConfig struct {
	Workers int `toml:"workers"`
}

// PlaybackConfig holds defaults applied to every new animation view.
type PlaybackConfig struct {
	RenderMode        string  `toml:"render_mode"`
	APILevel          int     `toml:"api_level"`
	Autoplay          bool    `toml:"autoplay"`
	Speed             float64 `toml:"speed"`
	RepeatMode        string  `toml:"repeat_mode"`
	RepeatCount       int     `toml:"repeat_count"`
	CancelResetsFrame bool    `toml:"cancel_resets_frame"`
	FrameIntervalMS   int     `toml:"frame_interval_ms"`
}

var (
	renderModes = []string{"automatic", "hardware", "software"}
	repeatModes = []string{"restart", "reverse"}
)

// Timeout returns the remote timeout as a [time.Duration].
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FrameInterval returns the frame clock period.
func (c PlaybackConfig) FrameInterval() time.Duration {
	if c.FrameIntervalMS <= 0 {
		return 16 * time.Millisecond
	}
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	switch {
	case c.Cache.Dir == "":
		return fmt.Errorf("%w: cache.dir is required", ErrInvalidConfig)
	case c.Cache.MaxCompositions < 0:
		return fmt.Errorf("%w: cache.max_compositions must not be negative", ErrInvalidConfig)
	case c.Remote.ChunkSize < 0:
		return fmt.Errorf("%w: remote.chunk_size must not be negative", ErrInvalidConfig)
	case c.Remote.RateLimit < 0:
		return fmt.Errorf("%w: remote.rate_limit must not be negative", ErrInvalidConfig)
	case !slices.Contains(renderModes, c.Playback.RenderMode):
		return fmt.Errorf("%w: playback.render_mode %q (want one of %v)", ErrInvalidConfig, c.Playback.RenderMode, renderModes)
	case !slices.Contains(repeatModes, c.Playback.RepeatMode):
		return fmt.Errorf("%w: playback.repeat_mode %q (want one of %v)", ErrInvalidConfig, c.Playback.RepeatMode, repeatModes)
	case c.Playback.RepeatCount < -1:
		return fmt.Errorf("%w: playback.repeat_count must be -1 or greater", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
