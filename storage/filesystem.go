package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileConfig configures the local filesystem backend.
type FileConfig struct {
	// BaseDir is the root directory for recorded data (required).
	BaseDir string
}

// Validate checks required filesystem configuration.
func (c *FileConfig) Validate() error {
	if c.BaseDir == "" {
		return NewBackendError(ErrConfig, "init", "", fmt.Errorf("base_dir is required"))
	}
	return nil
}

// FileBackend writes each record as {base}/{entry}/{timestamp_us}.blob with
// a sibling {timestamp_us}.labels.json, per §6.
type FileBackend struct {
	cfg FileConfig
}

// NewFileBackend creates a filesystem-backed Backend.
func NewFileBackend(cfg FileConfig) (*FileBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FileBackend{cfg: cfg}, nil
}

// Initialize ensures the base directory exists.
func (b *FileBackend) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(b.cfg.BaseDir, 0o755); err != nil {
		return NewBackendError(ErrUnavailable, "init", b.cfg.BaseDir, err)
	}
	return nil
}

// WriteRecord writes the blob and its labels sidecar file. Writes the blob
// to a temp path and renames into place so a crash mid-write never leaves a
// partially-written blob visible at its final path (the atomicity §4.1
// requires).
func (b *FileBackend) WriteRecord(ctx context.Context, entry string, timestampUs int64, payload []byte, labels map[string]string) error {
	dir := filepath.Join(b.cfg.BaseDir, entry)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewBackendError(ClassifyError(err), "write", dir, err)
	}

	blobPath := filepath.Join(dir, fmt.Sprintf("%d.blob", timestampUs))
	if err := writeAtomic(blobPath, payload); err != nil {
		return NewBackendError(ClassifyError(err), "write", blobPath, err)
	}

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return NewBackendError(ErrPermanent, "write", blobPath, err)
	}
	labelsPath := filepath.Join(dir, fmt.Sprintf("%d.labels.json", timestampUs))
	if err := writeAtomic(labelsPath, labelsJSON); err != nil {
		return NewBackendError(ClassifyError(err), "write", labelsPath, err)
	}

	return nil
}

// HealthCheck verifies the base directory is writable.
func (b *FileBackend) HealthCheck(ctx context.Context) bool {
	probe := filepath.Join(b.cfg.BaseDir, ".health-check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// BackendType identifies this backend.
func (b *FileBackend) BackendType() string {
	return "filesystem"
}

// writeAtomic writes data to a temp file in the same directory as path,
// then renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ Backend = (*FileBackend)(nil)
