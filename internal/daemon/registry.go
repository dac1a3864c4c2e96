package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taku25/unlscan/internal/model"
)

// normalizeRoot matches every project root against the same unix-slash form
// regardless of which separator the client sent it with (§4.6).
func normalizeRoot(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// Registry is the on-disk `{project_root: {db_path, vcs_hash}}` JSON map
// (§6 "Persisted state"), rewritten on every mutation.
type Registry struct {
	mu       sync.Mutex
	path     string
	bindings map[string]model.ProjectBinding
}

// loadRegistry reads path if it exists; a missing or unparseable file yields
// an empty registry rather than an error, matching the original's
// load_registry.
func loadRegistry(path string) *Registry {
	r := &Registry{path: path, bindings: map[string]model.ProjectBinding{}}
	if path == "" {
		return r
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return r
	}
	var bindings map[string]model.ProjectBinding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return r
	}
	r.bindings = bindings
	return r
}

// save rewrites the registry file in full. A no-op when no path is
// configured (registries are optional for single-shot use).
func (r *Registry) save() error {
	if r.path == "" {
		return nil
	}
	r.mu.Lock()
	data, err := json.MarshalIndent(r.bindings, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("daemon: marshal registry: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("daemon: create registry dir: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("daemon: write registry: %w", err)
	}
	return nil
}

func (r *Registry) get(root string) (model.ProjectBinding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[normalizeRoot(root)]
	return b, ok
}

func (r *Registry) set(root string, b model.ProjectBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[normalizeRoot(root)] = b
}

func (r *Registry) delete(root string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeRoot(root)
	if _, ok := r.bindings[key]; !ok {
		return false
	}
	delete(r.bindings, key)
	return true
}

// roots returns every registered project root, for re-attaching watchers at
// startup.
func (r *Registry) roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bindings))
	for root := range r.bindings {
		out = append(out, root)
	}
	return out
}

// snapshot returns a point-in-time copy for list_projects/status, so callers
// never hold the registry lock while building an RPC response.
func (r *Registry) snapshot() map[string]model.ProjectBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.ProjectBinding, len(r.bindings))
	for k, v := range r.bindings {
		out[k] = v
	}
	return out
}
