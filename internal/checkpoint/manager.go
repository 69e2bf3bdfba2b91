// Package checkpoint persists periodic snapshots of a run's accumulated
// results so an interrupted long run can be recovered by hand. Snapshots
// are best-effort durability: a failed write is logged and the run goes
// on, the in-memory record stays authoritative.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-scout/internal/model"
)

// Snapshot is the on-disk checkpoint schema: the same result record the
// final output is rendered from, plus run bookkeeping.
type Snapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	Sources   []string     `json:"sources"`
	Completed int          `json:"completed"`
	Items     model.Record `json:"items"`
}

// Manager writes checkpoints for one run. Writes are serialized by an
// internal mutex; only one periodic snapshot is kept on disk at a time.
type Manager struct {
	dir      string
	label    string
	interval int
	log      *zap.Logger

	mu        sync.Mutex
	lastCount int
	onDisk    []string // paths written during this run, oldest first

	nowFunc func() time.Time // test injection
}

// NewManager creates a manager writing into dir, tagging filenames with
// label (the joined source names). An interval <= 0 disables periodic
// snapshots; Finalize still works.
func NewManager(dir, label string, interval int) *Manager {
	return &Manager{
		dir:      dir,
		label:    label,
		interval: interval,
		log:      zap.L().With(zap.String("component", "checkpoint")),
		nowFunc:  time.Now,
	}
}

// Maybe writes a periodic snapshot when at least interval completions
// have accumulated since the last one, then prunes older snapshots so
// exactly one periodic checkpoint remains. Failures are logged, never
// returned: checkpointing must not take a run down.
func (m *Manager) Maybe(completed int, sources []string, rec model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interval <= 0 || completed-m.lastCount < m.interval {
		return
	}

	path, err := m.write(completed, sources, rec)
	if err != nil {
		m.log.Warn("periodic checkpoint failed", zap.Int("completed", completed), zap.Error(err))
		return
	}
	m.lastCount = completed
	m.log.Info("checkpoint written",
		zap.String("path", path),
		zap.Int("completed", completed),
	)

	// Prune everything older than the snapshot just written.
	for _, old := range m.onDisk[:len(m.onDisk)-1] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			m.log.Warn("checkpoint prune failed", zap.String("path", old), zap.Error(err))
		}
	}
	m.onDisk = m.onDisk[len(m.onDisk)-1:]
}

// Finalize writes one last snapshot reflecting the full record. After a
// clean run every checkpoint for the run is deleted: the output artifact
// is authoritative now. After an interrupted run the final snapshot is
// retained for manual recovery. The returned error is informational;
// callers log it and move on.
func (m *Manager) Finalize(clean bool, completed int, sources []string, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.write(completed, sources, rec)
	if err != nil {
		if !clean {
			return eris.Wrap(err, "checkpoint: final snapshot")
		}
		// A clean run would delete it anyway.
		m.log.Warn("final checkpoint failed", zap.Error(err))
	}

	if !clean {
		// Keep only the final snapshot around for recovery.
		if len(m.onDisk) > 1 {
			for _, old := range m.onDisk[:len(m.onDisk)-1] {
				if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
					m.log.Warn("checkpoint prune failed", zap.String("path", old), zap.Error(err))
				}
			}
			m.onDisk = m.onDisk[len(m.onDisk)-1:]
		}
		m.log.Info("run interrupted, checkpoint retained",
			zap.String("path", path),
			zap.Int("completed", completed),
		)
		return nil
	}

	for _, p := range m.onDisk {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.log.Warn("checkpoint cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
	m.onDisk = nil
	return nil
}

// write marshals and atomically persists a snapshot: the JSON goes to a
// temp file in the same directory, then a rename makes it visible. A
// reader never sees a half-written checkpoint.
func (m *Manager) write(completed int, sources []string, rec model.Record) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "checkpoint: create dir")
	}

	snap := Snapshot{
		Timestamp: m.nowFunc().UTC(),
		Sources:   sources,
		Completed: completed,
		Items:     rec,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "checkpoint: marshal")
	}

	name := fmt.Sprintf("checkpoint_%s_%d.json", m.label, snap.Timestamp.UnixNano())
	path := filepath.Join(m.dir, name)

	tmp, err := os.CreateTemp(m.dir, name+".tmp")
	if err != nil {
		return "", eris.Wrap(err, "checkpoint: create temp")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "checkpoint: write temp")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "checkpoint: close temp")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "checkpoint: rename")
	}

	m.onDisk = append(m.onDisk, path)
	return path, nil
}

// Load reads a snapshot back, for recovery tooling and tests.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: read")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "checkpoint: unmarshal")
	}
	return &snap, nil
}
