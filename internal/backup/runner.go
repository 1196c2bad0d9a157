// Package backup runs a user-supplied backup script after library writes,
// debounced so bursts of edits produce one backup.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/observability"
)

// SyncStatus reports whether the current database dump matches the hash
// recorded by the last completed backup.
type SyncStatus struct {
	Synced     bool   `json:"synced"`
	LastBackup bool   `json:"last_backup"`
	Message    string `json:"message,omitempty"`
}

// Runner debounces backup requests and executes the configured script.
// With no script configured every Trigger is a no-op.
type Runner struct {
	script    string
	debounce  time.Duration
	dumpPath  string
	statePath string
	logger    zerolog.Logger
	metrics   *observability.Metrics

	// runFn executes one backup. Replaced in tests.
	runFn func() error

	mu    sync.Mutex
	timer *time.Timer
}

// Config holds backup runner settings.
type Config struct {
	// Script is the path of the backup script. Empty disables backups.
	Script string
	// Debounce is how long to wait after the last trigger before running.
	Debounce time.Duration
	// DumpPath is where the script writes the database dump.
	DumpPath string
	// StatePath is where the runner records the hash of the last dump.
	StatePath string
}

// NewRunner creates a backup runner.
func NewRunner(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Runner {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 5 * time.Second
	}
	r := &Runner{
		script:    cfg.Script,
		debounce:  cfg.Debounce,
		dumpPath:  cfg.DumpPath,
		statePath: cfg.StatePath,
		logger:    logger.With().Str("component", "backup").Logger(),
		metrics:   metrics,
	}
	r.runFn = r.runScript
	return r
}

// Trigger schedules a backup after the debounce window. A trigger during
// the window resets it, so only the last of a burst runs.
func (r *Runner) Trigger() {
	if r.script == "" {
		return
	}
	r.metrics.RecordBackupTriggered()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.run)
}

// Stop cancels any pending backup. Used during shutdown.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Runner) run() {
	if err := r.runFn(); err != nil {
		r.metrics.RecordBackupFailed()
		r.logger.Error().Err(err).Msg("backup failed")
		return
	}

	if err := r.recordState(); err != nil {
		r.logger.Warn().Err(err).Msg("could not record backup state")
	}
	r.metrics.RecordBackupCompleted()
	r.logger.Info().Msg("backup completed")
}

func (r *Runner) runScript() error {
	cmd := exec.Command("/bin/bash", r.script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("backup script: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// recordState stores the hash of the current dump so SyncStatus can tell
// whether a later dump has diverged.
func (r *Runner) recordState() error {
	hash, err := fileHash(r.dumpPath)
	if err != nil {
		return err
	}
	return os.WriteFile(r.statePath, []byte(hash), 0o644)
}

// SyncStatus compares the current dump hash against the recorded state.
func (r *Runner) SyncStatus() SyncStatus {
	if _, err := os.Stat(r.dumpPath); errors.Is(err, os.ErrNotExist) {
		return SyncStatus{Synced: true, Message: "no backup dump yet"}
	}

	current, err := fileHash(r.dumpPath)
	if err != nil {
		return SyncStatus{Synced: false, Message: err.Error()}
	}

	recorded, err := os.ReadFile(r.statePath)
	if err != nil {
		return SyncStatus{Synced: false, LastBackup: false}
	}

	return SyncStatus{
		Synced:     current == strings.TrimSpace(string(recorded)),
		LastBackup: true,
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
