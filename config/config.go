// Package config loads the recorder's YAML configuration file (§6.3).
package config

import (
	"fmt"
	"time"

	"github.com/coscene-io/topicrecorder/rlog"
	"github.com/coscene-io/topicrecorder/types"
)

// Config is the top-level recorder.yaml shape.
type Config struct {
	Bus         BusConfig         `yaml:"bus"`
	Storage     StorageConfig     `yaml:"storage"`
	FlushPolicy FlushPolicyConfig `yaml:"flush_policy"`
	Compression CompressionConfig `yaml:"compression"`
	Workers     WorkersConfig     `yaml:"workers"`
	Control     ControlConfig     `yaml:"control"`
	Schema      SchemaConfig      `yaml:"schema"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// BusConfig configures the pub/sub binding. mode is carried for parity with
// spec.md's {peer, client, router} vocabulary; RedisBus only distinguishes
// on url/timeout, since Redis Pub/Sub has no peer/client/router topology.
type BusConfig struct {
	Mode              string   `yaml:"mode"`
	URL               string   `yaml:"url"`
	ConnectEndpoints  []string `yaml:"connect_endpoints"`
	ListenEndpoints   []string `yaml:"listen_endpoints"`
	Timeout           Duration `yaml:"timeout"`
}

// StorageConfig selects and configures a storage backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "object-store" or "filesystem"

	// object-store fields
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	S3PathStyle  bool   `yaml:"s3_path_style"`

	// filesystem fields
	Path string `yaml:"path"`
}

// Validate checks the fields required by the selected backend.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "object-store":
		if c.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for backend %q", c.Backend)
		}
	case "filesystem":
		if c.Path == "" {
			return fmt.Errorf("storage.path is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("storage.backend must be \"object-store\" or \"filesystem\", got %q", c.Backend)
	}
	return nil
}

// FlushPolicyConfig mirrors buffer.Policy's YAML shape.
type FlushPolicyConfig struct {
	MaxBufferSizeBytes      int64    `yaml:"max_buffer_size_bytes"`
	MaxBufferDurationSecond Duration `yaml:"max_buffer_duration_seconds"`
	MinSamplesPerFlush      int      `yaml:"min_samples_per_flush"`
}

// Validate enforces the flush_policy bounds from §6.
func (c FlushPolicyConfig) Validate() error {
	if c.MaxBufferSizeBytes <= 0 {
		return fmt.Errorf("flush_policy.max_buffer_size_bytes must be > 0")
	}
	if c.MaxBufferDurationSecond.Duration <= 0 {
		return fmt.Errorf("flush_policy.max_buffer_duration_seconds must be > 0")
	}
	if c.MinSamplesPerFlush < 0 {
		return fmt.Errorf("flush_policy.min_samples_per_flush must be >= 0")
	}
	return nil
}

// CompressionConfig is the compression section: a default, plus per-topic
// glob overrides.
type CompressionConfig struct {
	DefaultType  types.CompressionType        `yaml:"default_type"`
	DefaultLevel int                          `yaml:"default_level"`
	PerTopic     map[string]TopicCompression  `yaml:"per_topic"`
}

// TopicCompression is one per_topic compression override.
type TopicCompression struct {
	Type  types.CompressionType `yaml:"type"`
	Level int                   `yaml:"level"`
}

// Validate checks the default compression type/level.
func (c CompressionConfig) Validate() error {
	if !c.DefaultType.Valid() {
		return fmt.Errorf("compression.default_type must be one of none/fast/ratio, got %q", c.DefaultType)
	}
	if c.DefaultLevel < 0 || c.DefaultLevel > 4 {
		return fmt.Errorf("compression.default_level must be in [0,4], got %d", c.DefaultLevel)
	}
	for topic, override := range c.PerTopic {
		if !override.Type.Valid() {
			return fmt.Errorf("compression.per_topic[%q].type must be one of none/fast/ratio, got %q", topic, override.Type)
		}
	}
	return nil
}

// WorkersConfig sizes the shared flush worker pool and queue.
type WorkersConfig struct {
	FlushWorkers  int `yaml:"flush_workers"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// Validate enforces the workers bounds from §6.
func (c WorkersConfig) Validate() error {
	if c.FlushWorkers <= 0 {
		return fmt.Errorf("workers.flush_workers must be > 0")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("workers.queue_capacity must be > 0")
	}
	return nil
}

// ControlConfig configures the control/status queryable keys.
type ControlConfig struct {
	KeyPrefix      string   `yaml:"key_prefix"`
	StatusKey      string   `yaml:"status_key"`
	TimeoutSeconds Duration `yaml:"timeout_seconds"`
	BucketName     string   `yaml:"bucket_name"`
}

// SchemaConfig configures schema-info attachment at serialization time.
type SchemaConfig struct {
	IncludeMetadata bool                  `yaml:"include_metadata"`
	PerTopic        []types.SchemaPattern `yaml:"per_topic"`
}

// LoggingConfig configures the rlog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RlogLevel translates the config string to rlog.Level, defaulting to info.
func (c LoggingConfig) RlogLevel() rlog.Level {
	switch c.Level {
	case "trace":
		return rlog.LevelTrace
	case "debug":
		return rlog.LevelDebug
	case "warn":
		return rlog.LevelWarn
	case "error":
		return rlog.LevelError
	default:
		return rlog.LevelInfo
	}
}

// RlogFormat translates the config string to rlog.Format, defaulting to json.
func (c LoggingConfig) RlogFormat() rlog.Format {
	if c.Format == "text" {
		return rlog.FormatText
	}
	return rlog.FormatJSON
}

// Validate runs every section's own validation and collects the bus URL
// requirement, which has no dedicated sub-struct validator.
func (c Config) Validate() error {
	if c.Bus.URL == "" {
		return fmt.Errorf("bus.url is required")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.FlushPolicy.Validate(); err != nil {
		return err
	}
	if err := c.Compression.Validate(); err != nil {
		return err
	}
	if err := c.Workers.Validate(); err != nil {
		return err
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m"),
// and also accepts a bare number of seconds for the *_seconds-named keys.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s", or a plain
// integer interpreted as seconds.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var secs int64
	if err := unmarshal(&secs); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\" or a number of seconds")
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
