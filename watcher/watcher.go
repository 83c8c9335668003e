package watcher

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
)

// Config holds the watched directory layout. Files land in SourceDir, move to
// ArchiveDir after successful ingestion and to BadDir after a failure.
type Config struct {
	SourceDir  string
	ArchiveDir string
	BadDir     string
	// SettleTime is how long a file must stay unmodified before it is
	// considered fully written and ready for ingestion.
	SettleTime time.Duration
	PollEvery  time.Duration
}

func (c *Config) setDefaults() {
	if c.SourceDir == "" {
		c.SourceDir = "watch/source"
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = "watch/archive"
	}
	if c.BadDir == "" {
		c.BadDir = "watch/bad"
	}
	if c.SettleTime <= 0 {
		c.SettleTime = 3 * time.Second
	}
	if c.PollEvery <= 0 {
		c.PollEvery = time.Second
	}
}

// Watcher polls a directory and emits file paths once they have settled.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func New(cfg Config) (*Watcher, error) {
	cfg.setDefaults()
	for _, dir := range []string{cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Watcher{
		cfg:        cfg,
		logger:     slog.Default().With("service", "watcher"),
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// Watch polls SourceDir until ctx is done, sending each settled file path to
// fileChan exactly once. The caller owns fileChan's lifetime.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("monitoring folder", "dir", w.cfg.SourceDir)

	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx, fileChan)
		}
	}
}

func (w *Watcher) scan(ctx context.Context, fileChan chan<- string) {
	files, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.Error("read source directory", "error", err)
		return
	}

	current := make(map[string]bool, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.SourceDir, file.Name())
		current[path] = true

		w.mu.Lock()
		if w.processing[path] {
			w.mu.Unlock()
			continue
		}
		seen, tracked := w.firstSeen[path]
		if !tracked {
			w.firstSeen[path] = time.Now()
			w.mu.Unlock()
			w.logger.Info("new file detected", "path", path)
			continue
		}
		ready := time.Since(seen) > w.cfg.SettleTime
		if ready {
			w.processing[path] = true
		}
		w.mu.Unlock()

		if !ready {
			continue
		}
		select {
		case fileChan <- path:
		case <-ctx.Done():
			return
		}
	}

	// Drop tracking state for files that disappeared from the directory.
	w.mu.Lock()
	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	w.mu.Unlock()
}

// Done releases a path from the processing set so a re-dropped file gets
// picked up again.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	delete(w.firstSeen, path)
	delete(w.processing, path)
	w.mu.Unlock()
}

// MoveToArchive moves an ingested file into a dated subdirectory of the
// archive (or bad) directory, renaming on name collisions.
func (w *Watcher) MoveToArchive(path string, failed bool) {
	base := w.cfg.ArchiveDir
	if failed {
		base = w.cfg.BadDir
	}
	destDir := filepath.Join(base, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		w.logger.Error("create archive directory", "error", err)
		return
	}

	destPath := filepath.Join(destDir, filepath.Base(path))
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(destPath)
		name := strings.TrimSuffix(filepath.Base(path), ext)
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", name, counter, ext))
	}

	if err := moveFile(path, destPath); err != nil {
		w.logger.Error("move file to archive", "path", path, "error", err)
		return
	}
	w.logger.Info("file archived", "from", path, "to", destPath)
}

// moveFile copies then removes, surviving cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
