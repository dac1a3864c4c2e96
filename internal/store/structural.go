package store

import (
	"encoding/json"
	"fmt"

	"github.com/taku25/unlscan/internal/model"
)

// ResetComponentsAndModules truncates components and modules (foreign keys
// temporarily OFF so the truncate itself doesn't cascade into files/classes,
// which must survive for incremental reconciliation) then repopulates both
// from freshly discovered definitions, plus a synthetic "_Global" module
// rooted at projectRoot to catch files matching no other module (§4.4 step
// 4). Returns a map of normalized module root_path -> module id, for the
// caller's longest-prefix file reconciliation pass.
func (s *Store) ResetComponentsAndModules(components []model.Component, modules []model.Module, projectRoot string) (map[string]int64, int64, error) {
	if _, err := s.DB.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		return nil, 0, fmt.Errorf("store: disable foreign keys: %w", err)
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return nil, 0, err
	}
	if _, err := tx.Exec(`DELETE FROM components`); err != nil {
		tx.Rollback()
		return nil, 0, fmt.Errorf("store: truncate components: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM modules`); err != nil {
		tx.Rollback()
		return nil, 0, fmt.Errorf("store: truncate modules: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}

	if _, err := s.DB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, 0, fmt.Errorf("store: re-enable foreign keys: %w", err)
	}

	tx, err = s.DB.Begin()
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	for _, c := range components {
		_, err := tx.Exec(`INSERT OR REPLACE INTO components
			(name, display_name, type, owner_name, root_path, uplugin_path, uproject_path)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.DisplayName, string(c.Type), c.OwnerName, c.RootPath,
			nullableString(c.UpluginPath), nullableString(c.UprojectPath))
		if err != nil {
			return nil, 0, fmt.Errorf("store: insert component %s: %w", c.Name, err)
		}
	}

	rootToID := make(map[string]int64, len(modules))
	for _, m := range modules {
		depsJSON, err := json.Marshal(m.DeepDependencies)
		if err != nil {
			return nil, 0, fmt.Errorf("store: marshal deep deps for %s: %w", m.Name, err)
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO modules
			(name, type, scope, root_path, build_cs_path, owner_name, component_name, deep_dependencies)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Name, string(m.Type), m.Scope, m.RootPath, nullableString(m.BuildDescPath),
			m.OwnerName, nullableString(m.ComponentName), string(depsJSON))
		if err != nil {
			return nil, 0, fmt.Errorf("store: insert module %s: %w", m.Name, err)
		}
		var id int64
		if err := tx.QueryRow(`SELECT id FROM modules WHERE name = ? AND root_path = ?`, m.Name, m.RootPath).Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("store: resolve module id for %s: %w", m.Name, err)
		}
		rootToID[m.RootPath] = id
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO modules (name, type, scope, root_path) VALUES (?, ?, ?, ?)`,
		"_Global", string(model.ModuleGlobal), "Game", projectRoot); err != nil {
		return nil, 0, fmt.Errorf("store: insert _Global module: %w", err)
	}
	var globalID int64
	if err := tx.QueryRow(`SELECT id FROM modules WHERE name = ? AND root_path = ?`, "_Global", projectRoot).Scan(&globalID); err != nil {
		return nil, 0, fmt.Errorf("store: resolve _Global module id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return rootToID, globalID, nil
}

// SnapshotMtimes returns the current path -> mtime map, used by the refresh
// orchestrator to gate re-parsing on unchanged mtime (§4.4 step 3, §9 Open
// Question decision: mtime-only gating).
func (s *Store) SnapshotMtimes() (map[string]int64, error) {
	rows, err := s.DB.Query(`SELECT path, mtime FROM files`)
	if err != nil {
		return nil, fmt.Errorf("store: snapshot mtimes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("store: snapshot mtimes: %w", err)
		}
		out[path] = mtime
	}
	return out, rows.Err()
}

// ReconcileFileModules updates every discovered file's module_id in bulk to
// the module whose root is the longest prefix of the file's path (§4.4 step
// 5). sortedRoots must be sorted by root-path length descending.
func (s *Store) ReconcileFileModules(paths []string, sortedRoots []RootID, globalModuleID int64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE files SET module_id = ? WHERE path = ? AND (module_id != ? OR module_id IS NULL)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, path := range paths {
		modID := resolveModuleID(path, sortedRoots, globalModuleID)
		if _, err := stmt.Exec(modID, path, modID); err != nil {
			return fmt.Errorf("store: reconcile module for %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// RootID pairs a module's normalized root path with its id, pre-sorted by
// callers so resolveModuleID can do a linear longest-prefix scan.
type RootID struct {
	Root string
	ID   int64
}

func resolveModuleID(path string, sortedRoots []RootID, fallback int64) int64 {
	for _, r := range sortedRoots {
		if len(path) >= len(r.Root) && path[:len(r.Root)] == r.Root {
			return r.ID
		}
	}
	return fallback
}

// DeleteStaleFiles removes file rows (and, via cascade, their classes/
// members/enum values/inheritance edges) for paths no longer present on
// disk (§4.4 step 6, §3 invariant 1).
func (s *Store) DeleteStaleFiles(stalePaths []string) error {
	if len(stalePaths) == 0 {
		return nil
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM files WHERE path = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, path := range stalePaths {
		if _, err := stmt.Exec(path); err != nil {
			return fmt.Errorf("store: delete stale file %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// SaveOtherFiles persists non-header files (config, shaders, etc.) in a
// single transaction with is_header = 0 (§4.4 step 9).
func (s *Store) SaveOtherFiles(files []model.File) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO files
		(path, filename, extension, mtime, module_id, is_header) VALUES (?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range files {
		var moduleID any
		if f.ModuleID > 0 {
			moduleID = f.ModuleID
		}
		if _, err := stmt.Exec(f.Path, f.Filename, f.Extension, f.Mtime, moduleID); err != nil {
			return fmt.Errorf("store: save other file %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}
