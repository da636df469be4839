// Package cleanup removes upload temp files left behind by a crashed or
// killed process. Per-request cleanup in the upload handler remains the
// primary mechanism.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Result summarises one sweep.
type Result struct {
	Deleted    int
	FreedBytes int64
	Errors     int
}

// TempFileSweeper periodically deletes files in dir that match pattern and
// are older than maxAge.
type TempFileSweeper struct {
	dir      string
	pattern  string
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewTempFileSweeper creates a sweeper. An empty dir means os.TempDir().
// pattern is a filepath.Match glob such as "upload-*".
func NewTempFileSweeper(dir, pattern string, maxAge, interval time.Duration, logger *zap.Logger) *TempFileSweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempFileSweeper{
		dir:      dir,
		pattern:  pattern,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once at startup and then on every interval until ctx is done.
func (s *TempFileSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logResult(s.Sweep(time.Now()))
	for {
		select {
		case <-ticker.C:
			s.logResult(s.Sweep(time.Now()))
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep deletes matching files whose modification time is older than
// now minus maxAge. Subdirectories are not descended into.
func (s *TempFileSweeper) Sweep(now time.Time) Result {
	var res Result
	cutoff := now.Add(-s.maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("temp dir unreadable", zap.String("dir", s.dir), zap.Error(err))
		res.Errors++
		return res
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(s.pattern, entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed concurrently
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to delete stale temp file",
				zap.String("file", path),
				zap.Duration("age", now.Sub(info.ModTime())),
				zap.Error(err),
			)
			res.Errors++
			continue
		}
		s.logger.Debug("deleted stale temp file",
			zap.String("file", path),
			zap.Duration("age", now.Sub(info.ModTime())),
			zap.Int64("size", info.Size()),
		)
		res.Deleted++
		res.FreedBytes += info.Size()
	}
	return res
}

func (s *TempFileSweeper) logResult(res Result) {
	if res.Deleted == 0 && res.Errors == 0 {
		return
	}
	s.logger.Info("temp file sweep completed",
		zap.String("dir", s.dir),
		zap.Int("deleted_count", res.Deleted),
		zap.Int64("freed_bytes", res.FreedBytes),
		zap.Int("errors", res.Errors),
	)
}
