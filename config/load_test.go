package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coscene-io/topicrecorder/types"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func validYAML() string {
	return `
bus:
  mode: client
  url: redis://localhost:6379/0
  timeout: 5s
storage:
  backend: filesystem
  path: /var/lib/recorder
flush_policy:
  max_buffer_size_bytes: 1048576
  max_buffer_duration_seconds: 2
  min_samples_per_flush: 1
compression:
  default_type: fast
  default_level: 1
workers:
  flush_workers: 4
  queue_capacity: 64
control:
  key_prefix: recorder/control
  status_key: recorder/status
  timeout_seconds: 5
  bucket_name: ${RECORDER_TEST_BUCKET:-default-bucket}
logging:
  level: debug
  format: text
`
}

func TestLoad_ParsesValidFile(t *testing.T) {
	path := writeConfigFile(t, validYAML())

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "redis://localhost:6379/0", cfg.Bus.URL)
	require.Equal(t, 5*time.Second, cfg.Bus.Timeout.Duration)
	require.Equal(t, 2*time.Second, cfg.FlushPolicy.MaxBufferDurationSecond.Duration, "bare integer seconds")
	require.Equal(t, "default-bucket", cfg.Control.BucketName, "env default")
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, validYAML()+"\nnot_a_real_field: true\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate_MissingBusURL(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_BadStorageBackend(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Storage.Backend = "nope"
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_ObjectStoreRequiresBucket(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Storage = StorageConfig{Backend: "object-store"}
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_CompressionDefaultType(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Compression.DefaultType = types.CompressionType("bogus")
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_WorkersBounds(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Workers.FlushWorkers = 0
	require.Error(t, cfg.Validate())
}

func minimalValidConfig() Config {
	return Config{
		Bus:     BusConfig{URL: "redis://localhost:6379/0"},
		Storage: StorageConfig{Backend: "filesystem", Path: "/tmp/x"},
		FlushPolicy: FlushPolicyConfig{
			MaxBufferSizeBytes:      1024,
			MaxBufferDurationSecond: Duration{time.Second},
			MinSamplesPerFlush:      0,
		},
		Compression: CompressionConfig{DefaultType: types.CompressionNone},
		Workers:     WorkersConfig{FlushWorkers: 1, QueueCapacity: 1},
	}
}
