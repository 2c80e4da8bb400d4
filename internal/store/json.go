package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
)

// File names inside the data directory.
const (
	LedgerFile     = "Attendance.json"
	RegistryFile   = "rfid_tags.json"
	RecipientsFile = "authorized_users.json"
)

// JSONFiles keeps each collection in its own pretty-printed JSON file.
// A missing or corrupt file reads as empty; a corrupt file is moved aside
// first so its contents can be recovered by hand.
type JSONFiles struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex // serializes file access across collections
}

// OpenJSON prepares dir for the file backend.
func OpenJSON(dir string, logger *zap.Logger) (*JSONFiles, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &JSONFiles{dir: dir, logger: logger, now: time.Now}, nil
}

func (j *JSONFiles) LoadLedger(context.Context) ([]attendance.Record, error) {
	return loadFile(j, LedgerFile, []attendance.Record{})
}

func (j *JSONFiles) SaveLedger(_ context.Context, records []attendance.Record) error {
	if records == nil {
		records = []attendance.Record{}
	}
	return j.save(LedgerFile, records)
}

func (j *JSONFiles) LoadRegistry(context.Context) (map[string]string, error) {
	tags, err := loadFile(j, RegistryFile, map[string]string{})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = map[string]string{}
	}
	return tags, nil
}

func (j *JSONFiles) SaveRegistry(_ context.Context, tags map[string]string) error {
	if tags == nil {
		tags = map[string]string{}
	}
	return j.save(RegistryFile, tags)
}

func (j *JSONFiles) LoadRecipients(context.Context) ([]int64, error) {
	return loadFile(j, RecipientsFile, []int64{})
}

func (j *JSONFiles) SaveRecipients(_ context.Context, ids []int64) error {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return j.save(RecipientsFile, out)
}

// Healthy reports whether the data directory is still accessible.
func (j *JSONFiles) Healthy(context.Context) bool {
	info, err := os.Stat(j.dir)
	return err == nil && info.IsDir()
}

// Close is a no-op; every write is already durable.
func (j *JSONFiles) Close() error { return nil }

// Path returns the location of a collection file.
func (j *JSONFiles) Path(name string) string { return filepath.Join(j.dir, name) }

// loadFile decodes a collection file, reinitializing it with empty when it is
// missing or cannot be decoded.
func loadFile[T any](j *JSONFiles, name string, empty T) (T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return empty, j.writeLocked(path, empty)
	}
	if err != nil {
		return empty, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		quarantined := fmt.Sprintf("%s.corrupt-%d", path, j.now().Unix())
		j.logger.Warn("corrupt data file, reinitializing",
			zap.String("file", path), zap.String("moved_to", quarantined), zap.Error(err))
		if err := os.Rename(path, quarantined); err != nil {
			return empty, fmt.Errorf("quarantine %s: %w", name, err)
		}
		return empty, j.writeLocked(path, empty)
	}
	return v, nil
}

func (j *JSONFiles) save(name string, v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writeLocked(j.Path(name), v)
}

func (j *JSONFiles) writeLocked(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	// temp file in the same directory so the final rename never crosses filesystems
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644, renameio.WithTempDir(j.dir)); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
