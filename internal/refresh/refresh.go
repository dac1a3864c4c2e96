// Package refresh ties discovery, the extractor worker pool, and the store
// together into the single end-to-end indexing pass described in §4.4.
package refresh

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/taku25/unlscan/internal/discovery"
	"github.com/taku25/unlscan/internal/extractor"
	"github.com/taku25/unlscan/internal/model"
	"github.com/taku25/unlscan/internal/store"
)

// Request is one refresh invocation's parameters (§6 RPC "refresh" params).
type Request struct {
	ProjectRoot        string
	EngineRoot         string
	Scope              model.RefreshScope
	ExcludeDirectories []string
	IncludeExtensions  []string
}

var defaultExcludeDirs = []string{
	".git", ".svn", ".vs", ".vscode", "Intermediate", "Binaries", "DerivedDataCache", "Saved", "node_modules",
}

var defaultIncludeExts = []string{"*.h", "*.hpp", "*.cpp", "*.cs", "*.ini", "*.uproject", "*.uplugin"}

// Run executes the ten-step refresh (§4.4): validate, discover, reset
// component/module structure, reconcile file→module links, gate unchanged
// files by mtime, prune stale rows, parse changed headers in a worker pool,
// bulk upsert, persist other changed files, report completion.
func Run(st *store.Store, ex *extractor.Extractor, req Request, reporter model.ProgressReporter) error {
	if reporter == nil {
		reporter = model.NopReporter{}
	}

	excludes := req.ExcludeDirectories
	if len(excludes) == 0 {
		excludes = defaultExcludeDirs
	}
	includes := req.IncludeExtensions
	if len(includes) == 0 {
		includes = defaultIncludeExts
	}

	reporter.Report("discovery", 0, 100, fmt.Sprintf("Scanning: %s", req.ProjectRoot))
	result, err := discovery.Discover(discovery.Config{
		ProjectRoot: req.ProjectRoot, EngineRoot: req.EngineRoot, Scope: req.Scope,
		ExcludeDirectories: excludes, IncludeExtensions: includes,
	})
	if err != nil {
		return fmt.Errorf("refresh: discovery: %w", err)
	}
	reporter.Report("discovery", 40, 100, fmt.Sprintf("Processing %d modules...", len(result.Modules)))

	projectRoot := normalizePath(req.ProjectRoot)

	reporter.Report("file_scan", 0, 100, "Updating database structure...")
	existingMtimes, err := st.SnapshotMtimes()
	if err != nil {
		return fmt.Errorf("refresh: snapshot mtimes: %w", err)
	}

	rootToID, globalID, err := st.ResetComponentsAndModules(result.Components, result.Modules, projectRoot)
	if err != nil {
		return fmt.Errorf("refresh: reset components/modules: %w", err)
	}

	sortedRoots := make([]store.RootID, 0, len(rootToID))
	for root, id := range rootToID {
		sortedRoots = append(sortedRoots, store.RootID{Root: root, ID: id})
	}
	sort.Slice(sortedRoots, func(i, j int) bool { return len(sortedRoots[i].Root) > len(sortedRoots[j].Root) })

	reporter.Report("file_scan", 20, 100, "Verifying file-module associations...")
	allPaths := make([]string, len(result.Files))
	for i, f := range result.Files {
		allPaths[i] = f.Path
	}
	if err := st.ReconcileFileModules(allPaths, sortedRoots, globalID); err != nil {
		return fmt.Errorf("refresh: reconcile file modules: %w", err)
	}

	reporter.Report("file_scan", 40, 100, fmt.Sprintf("Partitioning %d discovered files...", len(result.Files)))

	var headersToParse []model.InputFile
	var otherFiles []model.File
	currentOnDisk := make(map[string]bool, len(result.Files))

	for _, f := range result.Files {
		currentOnDisk[f.Path] = true
		modID := resolveModuleID(f.Path, sortedRoots, globalID)

		info, statErr := os.Stat(f.Path)
		var mtime int64
		if statErr == nil {
			mtime = info.ModTime().Unix()
		}

		if old, ok := existingMtimes[f.Path]; ok && old == mtime {
			continue // unchanged, skip both parse and other-file write
		}

		if f.Extension == "h" || f.Extension == "hpp" {
			headersToParse = append(headersToParse, model.InputFile{
				Path: f.Path, Mtime: mtime, ModuleID: modID,
			})
		} else {
			otherFiles = append(otherFiles, model.File{
				Path: f.Path, Filename: filepath.Base(f.Path), Extension: f.Extension,
				Mtime: mtime, ModuleID: modID,
			})
		}
	}

	var stale []string
	for path := range existingMtimes {
		if !currentOnDisk[path] {
			stale = append(stale, path)
		}
	}
	if err := st.DeleteStaleFiles(stale); err != nil {
		return fmt.Errorf("refresh: delete stale files: %w", err)
	}
	reporter.Report("file_scan", 100, 100, fmt.Sprintf("%d changed headers, %d stale files removed", len(headersToParse), len(stale)))

	total := len(headersToParse)
	if total > 0 {
		reporter.Report("analysis", 0, total, fmt.Sprintf("Analyzing %d changed headers...", total))
		results := parseParallel(ex, headersToParse, total, reporter)

		reporter.Report("db_sync", 80, 100, "Saving changed results...")
		if err := st.BulkUpsert(results, reporter); err != nil {
			return fmt.Errorf("refresh: bulk upsert: %w", err)
		}
	} else {
		reporter.Report("analysis", 100, 100, "No headers changed.")
	}

	if err := st.SaveOtherFiles(otherFiles); err != nil {
		return fmt.Errorf("refresh: save other files: %w", err)
	}

	reporter.Report("complete", 100, 100, "Refresh complete.")
	return nil
}

// parseParallel runs Extract over a worker pool sized to the CPU count,
// preserving the original's "analyze changed headers in parallel" behavior
// without its thread-safety caveats: each worker gets its own goroutine but
// all share the same read-only compiled query/language from ex.
func parseParallel(ex *extractor.Extractor, inputs []model.InputFile, total int, reporter model.ProgressReporter) []model.ParseResult {
	workers := runtime.NumCPU()
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]model.ParseResult, total)
	var processed int
	var mu sync.Mutex

	type job struct {
		idx int
		in  model.InputFile
	}
	indexed := make(chan job, total)
	for i, in := range inputs {
		indexed <- job{i, in}
	}
	close(indexed)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range indexed {
				results[item.idx] = ex.Extract(item.in)

				mu.Lock()
				processed++
				current := processed
				mu.Unlock()

				if current%20 == 0 || current == total {
					reporter.Report("analysis", current, total, fmt.Sprintf("Analyzing: %d/%d", current, total))
				}
			}
		}()
	}
	wg.Wait()

	return results
}

func resolveModuleID(path string, sortedRoots []store.RootID, fallback int64) int64 {
	for _, r := range sortedRoots {
		if strings.HasPrefix(path, r.Root) {
			return r.ID
		}
	}
	return fallback
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.ToSlash(abs)
}
