// Package store persists the launcher's JSON documents: settings, courses,
// history and scenarios.
//
// Every read applies the category policy: a missing, empty or corrupt
// document is replaced with the category default, persisted, and reported
// with a document_repaired warning. Entries or fields of the wrong type are
// dropped the same way, keeping the rest of the document. Writes are atomic (temp file + rename)
// and every read-modify-write holds a <path>.lock file lock so two launcher
// processes cannot interleave.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Metrics receives store events.
type Metrics interface {
	DocumentRepaired(category string)
}

type noopMetrics struct{}

func (noopMetrics) DocumentRepaired(string) {}

// ErrUnreadable is returned for a broken document whose policy forbids repair.
var ErrUnreadable = errors.New("document unreadable")

// Paths locates the documents.
type Paths struct {
	Settings  string
	Courses   string
	History   string
	Scenarios string // directory
}

// Store reads and writes documents.
type Store struct {
	paths   Paths
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// New creates a store. A nil logger uses slog.Default; nil metrics are
// discarded.
func New(paths Paths, logger *slog.Logger, metrics Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Store{
		paths:   paths,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Paths returns the document locations.
func (s *Store) Paths() Paths {
	return s.paths
}

// =============================================================================
// Generic documents
// =============================================================================

// Read decodes the document at path into v, applying the category policy.
func (s *Store) Read(path string, cat Category, v any) error {
	return s.withLock(path, func() error {
		data, err := s.readLocked(path, cat)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	})
}

// Write replaces the document at path with v.
func (s *Store) Write(path string, v any) error {
	return s.withLock(path, func() error {
		return writeAtomic(path, v)
	})
}

// Update merges updates into the object document at path.
func (s *Store) Update(path string, cat Category, updates map[string]any) error {
	if PolicyFor(cat).Shape != ShapeObject {
		return fmt.Errorf("update %s: %s documents are not objects", path, cat)
	}
	return s.withLock(path, func() error {
		data, err := s.readLocked(path, cat)
		if err != nil {
			return err
		}
		doc := map[string]any{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		for k, v := range updates {
			doc[k] = v
		}
		return writeAtomic(path, doc)
	})
}

// modify runs a read-modify-write of the document at path under one lock.
// fn receives the current bytes and returns the new value to write.
func (s *Store) modify(path string, cat Category, fn func(data []byte) (any, error)) error {
	return s.withLock(path, func() error {
		data, err := s.readLocked(path, cat)
		if err != nil {
			return err
		}
		v, err := fn(data)
		if err != nil {
			return err
		}
		return writeAtomic(path, v)
	})
}

// readLocked returns the document bytes, repairing per policy. Caller holds
// the lock.
func (s *Store) readLocked(path string, cat Category) ([]byte, error) {
	policy := PolicyFor(cat)

	data, err := os.ReadFile(path)
	var reason string
	switch {
	case errors.Is(err, fs.ErrNotExist):
		reason = "missing"
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	case len(bytes.TrimSpace(data)) == 0:
		reason = "empty"
	case !hasShape(data, policy.Shape):
		reason = "corrupt"
	case policy.Repair && policy.Salvage != nil:
		return s.salvageLocked(path, cat, policy, data)
	default:
		return data, nil
	}

	if !policy.Repair {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnreadable, path, reason)
	}

	def := policy.Default()
	if err := writeAtomic(path, def); err != nil {
		return nil, fmt.Errorf("repair %s: %w", path, err)
	}

	// A first-time create is expected; anything else hides a producer bug
	level := slog.LevelWarn
	if reason == "missing" {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "document_repaired",
		"path", path,
		"category", string(cat),
		"reason", reason,
	)
	s.metrics.DocumentRepaired(string(cat))

	return json.Marshal(def)
}

// salvageLocked drops the mistyped parts of a well-shaped document and
// persists what is left. Caller holds the lock.
func (s *Store) salvageLocked(path string, cat Category, policy Policy, data []byte) ([]byte, error) {
	kept, dropped, err := policy.Salvage(data)
	if err != nil {
		return nil, fmt.Errorf("salvage %s: %w", path, err)
	}
	if dropped == 0 {
		return data, nil
	}

	if err := writeAtomic(path, kept); err != nil {
		return nil, fmt.Errorf("repair %s: %w", path, err)
	}
	s.logger.Warn("document_repaired",
		"path", path,
		"category", string(cat),
		"reason", "mistyped",
		"dropped", dropped,
	)
	s.metrics.DocumentRepaired(string(cat))

	return json.Marshal(kept)
}

// withLock holds <path>.lock while fn runs.
func (s *Store) withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	return fn()
}

// writeAtomic writes v as indented JSON through a temp file and rename.
func writeAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *Store) today() string {
	return s.now().Format("2006-01-02")
}
