// Package watch parses notes files as they are dropped into a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
	"github.com/sbomarketplace/log-nexus-sub000/internal/worker"
)

// DefaultExtensions are the file types parsed when none are configured.
var DefaultExtensions = []string{".txt", ".md"}

// Result is one parsed file.
type Result struct {
	Path     string          `json:"path"`
	Response worker.Response `json:"response"`
	Text     string          `json:"-"`
}

// Watcher feeds new and changed files in one directory to a worker pool.
// Subdirectories are not watched.
type Watcher struct {
	dir    string
	pool   *worker.Pool
	logger *zap.Logger
	exts   map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for unreadable files and watch errors.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithExtensions replaces the accepted file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		if len(exts) == 0 {
			return
		}
		w.exts = extensionSet(exts)
	}
}

// New creates a Watcher for dir.
func New(dir string, pool *worker.Pool, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    dir,
		pool:   pool,
		logger: zap.NewNop(),
		exts:   extensionSet(DefaultExtensions),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Run watches until ctx ends or the watcher shuts down, calling emit once
// per parsed file. Files are handled one at a time, in event order. Blank
// files are skipped.
func (w *Watcher) Run(ctx context.Context, emit func(Result)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Debug("watching for notes", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path, ok := w.accept(ev)
			if !ok {
				continue
			}
			b, err := os.ReadFile(path)
			if err != nil {
				w.logger.Warn("skipping unreadable notes file", zap.String("path", path), zap.Error(err))
				continue
			}
			text := string(b)
			if textutil.IsBlank(text) {
				continue
			}
			resp := <-w.pool.Submit(ctx, worker.Request{Text: text})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			emit(Result{Path: path, Response: resp, Text: text})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))
		}
	}
}

// accept reports whether ev names a regular notes file that was created or
// written. Hidden files and other extensions are ignored.
func (w *Watcher) accept(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	if !w.exts[strings.ToLower(filepath.Ext(base))] {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return ev.Name, true
}
