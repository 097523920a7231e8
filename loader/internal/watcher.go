package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nutriplan/logger"
)

// Watcher polls an inbox directory and emits PDF paths once they have stayed
// in place for the settle period.
type Watcher struct {
	dir      string
	interval time.Duration
	settle   time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(dir string, interval, settle time.Duration, log *logger.Logger) *Watcher {
	return &Watcher{
		dir:        dir,
		interval:   interval,
		settle:     settle,
		log:        logger.OrNop(log),
		now:        time.Now,
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// Run scans until ctx ends. It closes out when it returns.
func (w *Watcher) Run(ctx context.Context, out chan<- string) {
	defer close(out)
	w.log.Info("[WATCH] monitoring folder", "dir", w.dir)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("[WATCH] watcher stopped")
			return
		case <-ticker.C:
			for _, path := range w.Scan() {
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan does one pass over the inbox and returns the files ready for processing.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("[WATCH] read inbox failed", "dir", w.dir, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	current := make(map[string]bool)
	var ready []string
	for _, e := range entries {
		if e.IsDir() || !IsPDF(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		current[path] = true
		if w.processing[path] {
			continue
		}
		first, seen := w.firstSeen[path]
		if !seen {
			w.firstSeen[path] = now
			w.log.Info("[WATCH] new file detected", "path", path)
			continue
		}
		if now.Sub(first) < w.settle {
			continue
		}
		w.processing[path] = true
		ready = append(ready, path)
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	return ready
}

// Done releases a path handed out by Scan.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	delete(w.processing, path)
	delete(w.firstSeen, path)
	w.mu.Unlock()
}

// MoveToArchive moves a processed file into dir/<date>/, adding a numeric
// suffix when the name is taken. Failed files go under dir/failed/<date>/.
func MoveToArchive(path, dir string, failed bool, now time.Time) (string, error) {
	if failed {
		dir = filepath.Join(dir, "failed")
	}
	destDir := filepath.Join(dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}

	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dest, os.Remove(path)
}

func copyFile(src, dst string) error {
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
	return out.Close()
}
