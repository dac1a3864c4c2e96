package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/taku25/unlscan/internal/extractor"
	"github.com/taku25/unlscan/internal/model"
	"github.com/taku25/unlscan/internal/store"
)

const watchDebounce = 200 * time.Millisecond

var watchedExtensions = map[string]bool{"h": true, "hpp": true, "cpp": true, "cs": true}

// watcher attaches one recursive fsnotify watch per project root and, on a
// debounced Modify/Create event, re-extracts the single changed file and
// bulk-upserts it (§4.6 "File watcher").
type watcher struct {
	logger zerolog.Logger
	ex     *extractor.Extractor
	fsw    *fsnotify.Watcher

	mu    sync.Mutex
	roots map[string]string // normalized root -> db path

	lastMu sync.Mutex
	last   map[string]time.Time // path -> last debounced event time
}

func newWatcher(logger zerolog.Logger, ex *extractor.Extractor) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		logger: logger, ex: ex, fsw: fsw,
		roots: map[string]string{},
		last:  map[string]time.Time{},
	}
	go w.loop()
	return w, nil
}

// watch recursively adds root (and re-adds it across restarts) and
// remembers which project db it belongs to.
func (w *watcher) watch(root, dbPath string) error {
	key := normalizeRoot(root)
	w.mu.Lock()
	w.roots[key] = dbPath
	w.mu.Unlock()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.logger.Warn().Str("component", "watcher").Str("path", path).Err(addErr).Msg("watch add failed")
			if os.IsPermission(addErr) {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

func (w *watcher) close() error {
	return w.fsw.Close()
}

func (w *watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.debounced(event.Name) {
				continue
			}
			w.handleChange(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Str("component", "watcher").Err(err).Msg("fsnotify error")
		}
	}
}

// debounced reports whether path fired within the last 200ms, recording the
// current event time either way.
func (w *watcher) debounced(path string) bool {
	w.lastMu.Lock()
	defer w.lastMu.Unlock()
	now := time.Now()
	if last, ok := w.last[path]; ok && now.Sub(last) < watchDebounce {
		w.last[path] = now
		return true
	}
	w.last[path] = now
	return false
}

func (w *watcher) dbPathFor(path string) (string, bool) {
	unixPath := normalizeRoot(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	var best, bestDB string
	for root, db := range w.roots {
		if strings.HasPrefix(unixPath, root) && len(root) > len(best) {
			best, bestDB = root, db
		}
	}
	return bestDB, best != ""
}

func (w *watcher) handleChange(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !watchedExtensions[ext] {
		return
	}
	dbPath, ok := w.dbPathFor(path)
	if !ok {
		return
	}

	unixPath := normalizeRoot(path)
	st, err := store.Open(dbPath, 5000)
	if err != nil {
		w.logger.Warn().Str("component", "watcher").Str("path", path).Err(err).Msg("open store for watch event")
		return
	}
	defer st.Close()

	moduleID, found, err := st.ResolveModuleIDForPath(unixPath)
	if err != nil || !found {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}

	result := w.ex.Extract(model.InputFile{
		Path: path, Mtime: info.ModTime().Unix(), ModuleID: moduleID, DBPath: dbPath,
	})
	if err := st.BulkUpsert([]model.ParseResult{result}, nil); err != nil {
		w.logger.Warn().Str("component", "watcher").Str("path", path).Err(err).Msg("bulk upsert on watch event")
	}
}
