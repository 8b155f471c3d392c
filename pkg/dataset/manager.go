package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// Config wires the dataset manager.
type Config struct {
	CacheDir string
	Bucket   string // object storage bucket holding the master file
	Object   string // object name, e.g. "master_ds.parquet"
	TestMode bool   // write a small synthetic dataset instead of downloading
}

// Manager owns the local master-cache lifecycle: one parquet file per day,
// stale files cleaned up, remote download when the day's file is absent.
// The data version is the cache file name; a new version means a new file,
// existing files are never rewritten in place.
type Manager struct {
	cfg Config
	gcs *storage.Client
	mu  sync.Mutex
}

// NewManager creates a Manager. A GCS client is only opened when a bucket
// is configured and test mode is off.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = "data_cache"
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dataset cache dir: %w", err)
	}

	m := &Manager{cfg: cfg}
	if !cfg.TestMode && cfg.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create object storage client: %w", err)
		}
		m.gcs = client
	}
	return m, nil
}

// Refresh ensures today's master file is present locally and returns its
// path and version. Serialized so concurrent turns trigger one download.
func (m *Manager) Refresh(ctx context.Context) (path string, version string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	version = "master_" + today
	path = filepath.Join(m.cfg.CacheDir, version+".parquet")

	m.cleanupStale(version)

	if _, statErr := os.Stat(path); statErr == nil {
		return path, version, nil
	}

	if m.cfg.TestMode {
		slog.Info("Dataset test mode: writing synthetic master file", "path", path)
		if err := WriteFixture(path, TestModeRows()); err != nil {
			return "", "", err
		}
		return path, version, nil
	}

	if m.gcs == nil {
		return "", "", fmt.Errorf("master dataset %s missing and no storage bucket configured", path)
	}
	if err := m.download(ctx, path); err != nil {
		return "", "", err
	}
	return path, version, nil
}

// cleanupStale removes master files from previous days.
func (m *Manager) cleanupStale(currentVersion string) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.CacheDir, "master_*.parquet"))
	if err != nil {
		return
	}
	for _, f := range matches {
		if strings.TrimSuffix(filepath.Base(f), ".parquet") == currentVersion {
			continue
		}
		if err := os.Remove(f); err != nil {
			slog.Warn("Failed to remove stale master file", "path", f, "error", err)
		} else {
			slog.Info("Removed stale master file", "path", f)
		}
	}
}

// download fetches the master object into path via a temp file + rename so
// readers never observe a partial file.
func (m *Manager) download(ctx context.Context, path string) error {
	slog.Info("Downloading master dataset", "bucket", m.cfg.Bucket, "object", m.cfg.Object)

	reader, err := m.gcs.Bucket(m.cfg.Bucket).Object(m.cfg.Object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open master object: %w", err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(m.cfg.CacheDir, "master_download_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to download master object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize download: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish master file: %w", err)
	}
	slog.Info("Master dataset ready", "path", path)
	return nil
}

// Sample returns the first n rows across all columns.
func (m *Manager) Sample(ctx context.Context, n int) (*Frame, string, error) {
	path, version, err := m.Refresh(ctx)
	if err != nil {
		return nil, "", err
	}
	frame, err := ReadFrame(path, nil, n)
	if err != nil {
		return nil, "", err
	}
	return frame, version, nil
}

// Load returns all rows projected to columns. The scope column
// (consignee_codes) is always included so row-level security can be applied.
func (m *Manager) Load(ctx context.Context, columns []string) (*Frame, error) {
	path, _, err := m.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if columns != nil {
		found := false
		for _, c := range columns {
			if c == "consignee_codes" {
				found = true
				break
			}
		}
		if !found {
			columns = append(append([]string{}, columns...), "consignee_codes")
		}
	}
	return ReadFrame(path, columns, 0)
}

// Close releases the storage client.
func (m *Manager) Close() error {
	if m.gcs != nil {
		return m.gcs.Close()
	}
	return nil
}
