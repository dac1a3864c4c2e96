// Package discovery walks a project (and optionally its engine) root once,
// enumerating components (game/engine/plugin) and modules (.Build.cs-backed
// or synthetic), and collects every file matching the configured include
// patterns for the refresh orchestrator to act on (§4.3).
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/taku25/unlscan/internal/model"
)

// Config drives one discovery pass.
type Config struct {
	ProjectRoot        string
	EngineRoot         string // "" if the project has no known engine checkout
	Scope              model.RefreshScope
	ExcludeDirectories []string // glob patterns matched against a directory's basename
	IncludeExtensions  []string // glob patterns matched against a file's basename
}

// File is one discovered path matching IncludeExtensions, not yet classified
// as header vs. other.
type File struct {
	Path      string
	Extension string
}

// Result is everything discovered in a single pass, ready for the refresh
// orchestrator to sync to the store and dispatch for extraction.
type Result struct {
	Components []model.Component
	Modules    []model.Module
	Files      []File
}

// Discover performs the single-pass walk described in §4.3: steps 1-6 build
// components and raw module definitions while walking; step 7 resolves each
// module's transitive dependency closure afterward.
func Discover(cfg Config) (*Result, error) {
	projectRoot := normalizePath(cfg.ProjectRoot)
	if _, err := os.Stat(projectRoot); err != nil {
		return nil, fmt.Errorf("%w: project root does not exist: %s", model.ErrIO, projectRoot)
	}
	var engineRoot string
	if cfg.EngineRoot != "" {
		engineRoot = normalizePath(cfg.EngineRoot)
	}

	projectName := filepath.Base(projectRoot)
	engineName := ""
	if engineRoot != "" {
		engineName = filepath.Base(engineRoot)
	}

	var components []model.Component
	components = append(components, model.Component{
		Name: projectName, DisplayName: projectName, Type: model.ComponentGame,
		RootPath: projectRoot, OwnerName: projectName, UprojectPath: findUproject(projectRoot),
	})
	if engineRoot != "" {
		components = append(components, model.Component{
			Name: engineName, DisplayName: "Engine", Type: model.ComponentEngine,
			RootPath: engineRoot, OwnerName: engineName,
		})
	}

	searchRoots := []string{projectRoot}
	if engineRoot != "" && (cfg.Scope == model.ScopeFull || cfg.Scope == model.ScopeEngine || cfg.Scope == "") {
		searchRoots = append(searchRoots, engineRoot)
	}

	type buildFile struct {
		path, owner string
	}
	var buildFiles []buildFile
	var files []File

	for _, root := range searchRoots {
		isEngine := engineRoot != "" && strings.HasPrefix(root, engineRoot)
		rootOwner := projectName
		if isEngine {
			rootOwner = engineName
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if d.IsDir() {
				if path != root && isExcludedDir(d.Name(), cfg.ExcludeDirectories) {
					return filepath.SkipDir
				}
				return nil
			}

			norm := normalizePath(path)
			name := d.Name()
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

			switch {
			case ext == "uplugin":
				pluginRoot := filepath.Dir(path)
				owner := engineName
				if !isEngine && strings.HasPrefix(normalizePath(pluginRoot), projectRoot) {
					owner = projectName
				}
				if owner == "" {
					owner = "Engine"
				}
				components = append(components, model.Component{
					Name: filepath.Base(pluginRoot), DisplayName: strings.TrimSuffix(name, ".uplugin"),
					Type: model.ComponentPlugin, RootPath: normalizePath(pluginRoot),
					OwnerName: owner, UpluginPath: norm,
				})
			case strings.HasSuffix(strings.ToLower(name), ".build.cs"):
				buildFiles = append(buildFiles, buildFile{path: path, owner: rootOwner})
			}

			if matchesAny(name, cfg.IncludeExtensions) {
				files = append(files, File{Path: norm, Extension: ext})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walking %s: %v", model.ErrIO, root, err)
		}
	}

	components = dedupeComponents(components)

	var modules []model.Module
	if engineRoot != "" {
		modules = append(modules,
			pseudoModule("_EngineConfig", model.ModuleConfig, filepath.Join(engineRoot, "Engine/Config"), engineName),
			pseudoModule("_EngineShaders", model.ModuleShader, filepath.Join(engineRoot, "Engine/Shaders"), engineName),
		)
	}
	modules = append(modules, pseudoModule("_GameConfig", model.ModuleConfig, filepath.Join(projectRoot, "Config"), projectName))

	sortedComponents := append([]model.Component(nil), components...)
	sort.Slice(sortedComponents, func(i, j int) bool {
		return len(sortedComponents[i].RootPath) > len(sortedComponents[j].RootPath)
	})

	seenModuleRoots := map[string]bool{}
	for _, bf := range buildFiles {
		root := filepath.Dir(bf.path)
		normRoot := normalizePath(root)
		if seenModuleRoots[normRoot] {
			continue
		}
		seenModuleRoots[normRoot] = true

		name := strings.SplitN(filepath.Base(bf.path), ".", 2)[0]
		publicDeps, privateDeps := parseBuildCS(bf.path)

		var componentName string
		for _, c := range sortedComponents {
			if strings.HasPrefix(normRoot, c.RootPath) {
				componentName = c.Name
				break
			}
		}

		modules = append(modules, model.Module{
			Name: name, Type: model.ModuleRuntime, Scope: "Individual",
			RootPath: normRoot, BuildDescPath: normalizePath(bf.path),
			OwnerName: bf.owner, ComponentName: componentName,
			DeepDependencies: append(append([]string{}, publicDeps...), privateDeps...),
		})
	}

	resolveDeepDependencies(modules)

	return &Result{Components: components, Modules: modules, Files: files}, nil
}

// resolveDeepDependencies replaces each module's DeepDependencies (currently
// its direct public+private deps) with the full transitive closure, walked
// by name with a stack (depth-first) over the whole module set (§4.3 step 7).
func resolveDeepDependencies(modules []model.Module) {
	direct := make(map[string][]string, len(modules))
	for _, m := range modules {
		direct[m.Name] = append([]string(nil), m.DeepDependencies...)
	}

	for i := range modules {
		visited := map[string]bool{}
		deep := map[string]bool{}
		queue := []string{modules[i].Name}
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			for _, dep := range direct[cur] {
				deep[dep] = true
				queue = append(queue, dep)
			}
		}
		delete(deep, modules[i].Name)

		out := make([]string, 0, len(deep))
		for dep := range deep {
			out = append(out, dep)
		}
		sort.Strings(out)
		modules[i].DeepDependencies = out
	}
}

func pseudoModule(name string, typ model.ModuleType, root, owner string) model.Module {
	return model.Module{
		Name: name, Type: typ, Scope: "Individual",
		RootPath: normalizePath(root), OwnerName: owner, ComponentName: owner,
	}
}

func findUproject(projectRoot string) string {
	entries, err := os.ReadDir(projectRoot)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".uproject") {
			return normalizePath(filepath.Join(projectRoot, e.Name()))
		}
	}
	return ""
}

func dedupeComponents(components []model.Component) []model.Component {
	seen := map[string]bool{}
	var out []model.Component
	for _, c := range components {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

func isExcludedDir(name string, patterns []string) bool {
	return matchesAny(name, patterns)
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if matched, err := doublestar.Match(strings.ToLower(p), lower); err == nil && matched {
			return true
		}
	}
	return false
}

// normalizePath mirrors the original's forward-slash normalization so paths
// are stored consistently regardless of host OS.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.ToSlash(abs)
}
