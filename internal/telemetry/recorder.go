// Package telemetry is the process-wide sink for invocation records. Every
// tracked call produces exactly one record, appended to a JSONL log and
// folded into in-memory aggregates. The log is append-only: lines are never
// rewritten, so a crash can at worst lose the final line.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"skald/internal/models"
)

// Counters holds the running totals for one operation. Reset only on
// process restart.
type Counters struct {
	Calls        int64           `json:"calls"`
	Failures     int64           `json:"failures"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	DurationMS   int64           `json:"duration_ms"`
}

// Recorder owns the durable log and the aggregate counters. It has process
// lifetime: opened once before any wrapped operation runs, closed with a
// final flush at exit. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	agg  map[string]Counters
}

// NewRecorder opens (or creates) the append-only log file.
func NewRecorder(path string) (*Recorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry log %q: %w", path, err)
	}
	log.Infof("Telemetry recorder initialized (log: %s)", path)
	return &Recorder{
		file: file,
		agg:  make(map[string]Counters),
	}, nil
}

// Record appends the entry to the log and updates the aggregates as one
// logical unit. A write failure is returned as ErrPersistenceFailure but the
// in-memory aggregates still update: telemetry loss must never turn a
// successful business operation into a failure, and the caller only needs
// the error to report it out-of-band.
func (r *Recorder) Record(rec models.InvocationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.agg[rec.Operation]
	c.Calls++
	if rec.Outcome == models.OutcomeFailure {
		c.Failures++
	}
	c.InputTokens += int64(rec.InputTokens)
	c.OutputTokens += int64(rec.OutputTokens)
	c.Cost = c.Cost.Add(rec.Cost)
	c.DurationMS += rec.DurationMS
	r.agg[rec.Operation] = c

	if r.file == nil {
		return fmt.Errorf("%w: recorder is closed", models.ErrPersistenceFailure)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %v", models.ErrPersistenceFailure, err)
	}
	// Single Write call per line so concurrent records never interleave.
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: append record: %v", models.ErrPersistenceFailure, err)
	}
	return nil
}

// Snapshot returns a copy of the aggregate counters keyed by operation name.
func (r *Recorder) Snapshot() map[string]Counters {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Counters, len(r.agg))
	for op, c := range r.agg {
		out[op] = c
	}
	return out
}

// Close flushes and closes the log file. Record calls after Close fail with
// ErrPersistenceFailure.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Sync()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	if err != nil {
		return fmt.Errorf("%w: close telemetry log: %v", models.ErrPersistenceFailure, err)
	}
	return nil
}
