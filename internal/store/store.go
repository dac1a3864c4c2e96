// Package store owns the relational schema (§4.1): eight tables, their
// indexes, the operating-mode pragma sequences, and the bulk-upsert/query
// primitives the rest of the pipeline builds on.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a *sql.DB opened against one project's embedded database.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if absent) the SQLite database at path with the
// "idle/query" operating mode pragmas: WAL journaling, synchronous NORMAL,
// foreign keys ON, a busy-timeout so concurrent readers don't immediately
// fail against the writer refresh holds during bulk upsert.
func Open(path string, busyTimeoutMS int) (*Store, error) {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	params := fmt.Sprintf(
		"_busy_timeout=%d&_foreign_keys=ON&_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY",
		busyTimeoutMS,
	)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + params

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1) // one shared in-process connection keeps an in-memory DB from fragmenting across the pool
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close runs a quick_check before closing, logging (not failing) if it's
// unhealthy — matches the teacher's DBConn.Close defensive habit.
func (s *Store) Close() error {
	if err := QuickCheck(s.DB); err != nil {
		fmt.Printf("store: quick_check failed on close: %v\n", err)
	}
	return s.DB.Close()
}

// QuickCheck runs PRAGMA quick_check and returns an error if the database is
// not healthy.
func QuickCheck(db *sql.DB) error {
	row := db.QueryRow("PRAGMA quick_check;")
	var result string
	if err := row.Scan(&result); err != nil {
		return fmt.Errorf("store: quick_check scan: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("store: quick_check failed: %s", result)
	}
	return nil
}

const maxLockRetries = 5

// execWithRetry wraps Exec with retry-on-"database is locked", for
// single-statement writes outside the bulk-upsert batch path (SetMeta's
// project_meta upsert is its one caller) — per §4.1's WAL/busy-timeout
// model and the teacher's internal/db/db.go execWithRetry.
func execWithRetry(db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	for range maxLockRetries {
		res, err = db.Exec(query, args...)
		if err == nil {
			return res, nil
		}
		if strings.Contains(err.Error(), "database is locked") {
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("store: database locked after %d retries: %w", maxLockRetries, err)
}

// SetMeta upserts a project_meta key/value pair.
func (s *Store) SetMeta(key, value string) error {
	_, err := execWithRetry(s.DB, `INSERT INTO project_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta reads a project_meta value; ok is false if the key is absent.
func (s *Store) GetMeta(key string) (value string, ok bool, err error) {
	row := s.DB.QueryRow(`SELECT value FROM project_meta WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get meta %s: %w", key, err)
	}
	return value, true, nil
}

// ResolveModuleIDForPath returns the id of the module whose root_path is the
// longest prefix of path (§4.1, used by the watcher's single-file update
// path). Mirrors the original's get_module_id_for_path: iterate modules
// ordered by root_path length descending, return the first prefix match.
func (s *Store) ResolveModuleIDForPath(path string) (int64, bool, error) {
	rows, err := s.DB.Query(`SELECT id, root_path FROM modules ORDER BY length(root_path) DESC`)
	if err != nil {
		return 0, false, fmt.Errorf("store: resolve module for path: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var root string
		if err := rows.Scan(&id, &root); err != nil {
			return 0, false, fmt.Errorf("store: resolve module for path: %w", err)
		}
		if strings.HasPrefix(path, root) {
			return id, true, nil
		}
	}
	return 0, false, rows.Err()
}
