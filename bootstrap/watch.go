package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "github.com/artpar/modelkit/adapters/http"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/plugin"
	"github.com/artpar/modelkit/core/schema"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before revalidating.
const DefaultDebounce = 200 * time.Millisecond

// Result is one validation run of a watched directory.
type Result struct {
	Set    schema.Set
	Status apihttp.Status
}

// Watcher revalidates a schema directory whenever a schema file changes.
// Unchanged files are served from the cache.
type Watcher struct {
	app      *App
	dir      string
	debounce time.Duration
	onResult func(Result)

	mu   sync.RWMutex
	last apihttp.Status
	ran  bool
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// OnResult is called after every validation run.
func OnResult(fn func(Result)) WatchOption {
	return func(w *Watcher) { w.onResult = fn }
}

// NewWatcher creates a watcher of dir.
func (a *App) NewWatcher(dir string, opts ...WatchOption) *Watcher {
	w := &Watcher{app: a, dir: dir, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status returns the latest run.
func (w *Watcher) Status() (apihttp.Status, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last, w.ran
}

// Check validates the directory once and records the outcome.
func (w *Watcher) Check(ctx context.Context) Result {
	set, report, err := w.app.Validate(ctx, w.dir)
	st := apihttp.Status{
		CheckedAt: w.app.clock.Now(),
		Dir:       w.dir,
		Models:    len(set),
		Valid:     err == nil && report.IsValid(),
		Report:    report,
	}
	if err != nil {
		st.Error = err.Error()
		st.Report = consistency.Report{}
	}

	w.mu.Lock()
	w.last, w.ran = st, true
	w.mu.Unlock()

	if err != nil {
		w.app.Logger.Warn().Err(err).Str("dir", w.dir).Msg("schema load failed")
	} else {
		w.app.Logger.Info().
			Str("dir", w.dir).
			Int("models", st.Models).
			Int("errors", len(report.Errors)).
			Int("warnings", len(report.Warnings)).
			Bool("valid", st.Valid).
			Msg("schemas checked")
	}

	res := Result{Set: set, Status: st}
	if w.onResult != nil {
		w.onResult(res)
	}
	return res
}

// Run checks the directory, then rechecks after every settled burst of
// schema file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := addTree(fw, w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.app.Logger.Info().Str("dir", w.dir).Msg("watching schemas for changes")

	w.Check(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fw, event) {
				continue
			}
			w.app.Logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("schema file changed")
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.app.Loader().Forget(ctx, event.Name)
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.Check(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.app.Logger.Error().Err(err).Msg("schema watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// relevant reports whether an event touches a schema file. New
// subdirectories are added to the watch as a side effect.
func (w *Watcher) relevant(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(fw, event.Name); err != nil {
				w.app.Logger.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
			}
			return true
		}
	}
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if _, ok := schema.FormatFor(name); !ok {
		return false
	}
	return !plugin.IsManifest(name)
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

// Serve runs the HTTP endpoints for w on the configured metrics address
// until ctx is done. It returns immediately when metrics are disabled.
func (a *App) Serve(ctx context.Context, w *Watcher) error {
	cfg := a.Config()
	if !cfg.Metrics.Enabled || a.Registry == nil {
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           a.Router(w),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Str("path", cfg.Metrics.Path).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("metrics server shutdown error")
	}
	return nil
}

// Router builds the watch-mode HTTP handler.
func (a *App) Router(w *Watcher) http.Handler {
	rc := apihttp.RouterConfig{MetricsPath: a.Config().Metrics.Path}
	if a.Store != nil {
		rc.Cache = a.stats
	}
	if w != nil {
		rc.Status = w
	}
	if a.Registry != nil {
		rc.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}
	return apihttp.NewRouter(a.Logger, rc)
}
