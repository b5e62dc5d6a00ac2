// Package resultchan implements the result mailbox: a single well-known file
// that a player process writes one JSON object to and the launcher consumes.
//
// Presence of the file means an unread message. A successfully parsed record
// is deleted before it is returned, so each record is delivered at most once.
// An unparsable file is left in place; the producer may still be writing it.
package resultchan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// StallThreshold is how many consecutive polls may find the same unparsable
// file before a result_stalled warning is logged.
const StallThreshold = 10

// recordSchema is the minimal shape a player result is expected to have.
const recordSchema = `{
	"type": "object",
	"required": ["correct"],
	"properties": {
		"correct": {"type": "boolean"}
	}
}`

// Record is one result object written by the player.
type Record map[string]any

// Correct returns the record's correctness flag. ok is false when the field
// is missing or not a boolean.
func (r Record) Correct() (correct bool, ok bool) {
	v, present := r["correct"]
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// Metrics receives result channel events.
type Metrics interface {
	ResultConsumed()
	ResultParseFailed()
	ResultSchemaMismatch()
}

type noopMetrics struct{}

func (noopMetrics) ResultConsumed()       {}
func (noopMetrics) ResultParseFailed()    {}
func (noopMetrics) ResultSchemaMismatch() {}

// stallState tracks parse failures of one unchanged file.
type stallState struct {
	size     int64
	modTime  time.Time
	failures int
	warned   bool
}

// Channel consumes result files. The zero value is not usable; call New.
type Channel struct {
	logger  *slog.Logger
	metrics Metrics
	schema  *jsonschema.Schema

	mu     sync.Mutex
	stalls map[string]*stallState
}

// New creates a channel. A nil logger uses slog.Default; nil metrics are
// discarded.
func New(logger *slog.Logger, metrics Metrics) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	c := &Channel{
		logger:  logger,
		metrics: metrics,
		stalls:  make(map[string]*stallState),
	}

	schema, err := jsonschema.NewCompiler().Compile([]byte(recordSchema))
	if err != nil {
		// Constant schema; only a library regression gets here
		logger.Error("result_schema_compile_failed", "error", err)
	} else {
		c.schema = schema
	}
	return c
}

// TryConsume returns the record at path and deletes the file.
//
//   - file absent: (nil, false), nothing touched
//   - valid JSON object: file deleted, (record, true)
//   - anything else: (nil, false), file left for a later poll
func (c *Channel) TryConsume(path string) (Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("result_read_failed", "path", path, "error", err)
		}
		c.clearStall(path)
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec == nil {
		if err == nil {
			err = errors.New("not a JSON object")
		}
		c.parseFailed(path, err)
		return nil, false
	}

	// Delete before returning so the record can never be delivered twice
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Error("result_delete_failed", "path", path, "error", err)
		return nil, false
	}
	c.clearStall(path)

	c.checkSchema(path, data)
	c.metrics.ResultConsumed()

	correct, _ := rec.Correct()
	c.logger.Info("result_consumed", "path", path, "correct", correct, "fields", len(rec))
	return rec, true
}

func (c *Channel) checkSchema(path string, data []byte) {
	if c.schema == nil {
		return
	}
	result := c.schema.ValidateJSON(data)
	if result.IsValid() {
		return
	}
	c.metrics.ResultSchemaMismatch()
	c.logger.Warn("result_schema_mismatch",
		"path", path,
		"errors", fmt.Sprintf("%v", result.Errors),
	)
}

// parseFailed counts failures of an unchanged file and warns once when the
// producer appears to have stopped writing it.
func (c *Channel) parseFailed(path string, err error) {
	c.metrics.ResultParseFailed()

	info, statErr := os.Stat(path)
	if statErr != nil {
		c.clearStall(path)
		return
	}

	c.mu.Lock()
	st, ok := c.stalls[path]
	if !ok || st.size != info.Size() || !st.modTime.Equal(info.ModTime()) {
		st = &stallState{size: info.Size(), modTime: info.ModTime()}
		c.stalls[path] = st
	}
	st.failures++
	warn := st.failures >= StallThreshold && !st.warned
	if warn {
		st.warned = true
	}
	failures := st.failures
	c.mu.Unlock()

	c.logger.Debug("result_not_ready", "path", path, "error", err, "attempt", failures)
	if warn {
		c.logger.Warn("result_stalled",
			"path", path,
			"attempts", failures,
			"size", info.Size(),
			"error", err,
		)
	}
}

func (c *Channel) clearStall(path string) {
	c.mu.Lock()
	delete(c.stalls, path)
	c.mu.Unlock()
}

// Failures returns the consecutive parse failures recorded for path.
func (c *Channel) Failures(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stalls[path]; ok {
		return st.failures
	}
	return 0
}

// Publish writes v as JSON to path through a temporary file and a rename,
// so a consumer never sees a partial object. This is the write-side
// contract producers are expected to follow.
func Publish(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp result: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp result: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp result: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}
