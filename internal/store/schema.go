package store

import (
	"database/sql"
	"fmt"
)

// schemaStatements creates all eight tables and their indexes. Mirrors the
// original scanner's init_db column-for-column: table/column/index names are
// carried over unchanged so any tooling built against the original schema
// keeps working against this one.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT,
		scope TEXT,
		root_path TEXT NOT NULL,
		build_cs_path TEXT,
		owner_name TEXT,
		component_name TEXT,
		deep_dependencies TEXT,
		UNIQUE(name, root_path)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_modules_name ON modules(name)`,

	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		extension TEXT,
		mtime INTEGER,
		module_id INTEGER,
		is_header INTEGER DEFAULT 0,
		file_hash TEXT,
		FOREIGN KEY(module_id) REFERENCES modules(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_filename ON files(filename)`,
	`CREATE INDEX IF NOT EXISTS idx_files_module_id ON files(module_id)`,

	`CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		namespace TEXT,
		base_class TEXT,
		file_id INTEGER,
		line_number INTEGER,
		symbol_type TEXT DEFAULT 'class',
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(name)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_base_class ON classes(base_class)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_file_id ON classes(file_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_classes_unique_name_file ON classes(name, symbol_type, namespace, file_id)`,

	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		class_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		flags TEXT,
		access TEXT,
		detail TEXT,
		return_type TEXT,
		is_static INTEGER,
		line_number INTEGER,
		FOREIGN KEY(class_id) REFERENCES classes(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_members_name ON members(name)`,
	`CREATE INDEX IF NOT EXISTS idx_members_class_id ON members(class_id)`,

	`CREATE TABLE IF NOT EXISTS enum_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		enum_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY(enum_id) REFERENCES classes(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_enum_values_id ON enum_values(enum_id)`,

	`CREATE TABLE IF NOT EXISTS inheritance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		child_id INTEGER NOT NULL,
		parent_name TEXT NOT NULL,
		FOREIGN KEY(child_id) REFERENCES classes(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inheritance_child ON inheritance(child_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inheritance_parent ON inheritance(parent_name)`,

	`CREATE TABLE IF NOT EXISTS project_meta (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS components (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT,
		type TEXT,
		owner_name TEXT,
		root_path TEXT,
		uplugin_path TEXT,
		uproject_path TEXT,
		engine_association TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_components_type ON components(type)`,
	`CREATE INDEX IF NOT EXISTS idx_components_owner ON components(owner_name)`,
}

// forwardMigrations are ALTER TABLEs attempted on every Init; failure (the
// column already exists) is swallowed, matching §4.1's "forward migrations
// ... failure is non-fatal".
var forwardMigrations = []string{
	`ALTER TABLE members ADD COLUMN line_number INTEGER`,
}

// Init creates all tables, indexes, and forward migrations. Idempotent.
func Init(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w: %s", err, stmt)
		}
	}
	for _, stmt := range forwardMigrations {
		_, _ = db.Exec(stmt) // non-fatal by design
	}
	return nil
}
