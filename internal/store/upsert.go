package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/taku25/unlscan/internal/model"
)

const bulkBatchSize = 2000

// BulkUpsert persists a batch of parsed files (§4.1). For every file with
// status "parsed" it upserts the file row, then for each class
// insert-or-ignores and resolves its id, then inserts inheritance edges,
// members, and enum values. Runs in the "bulk upsert" operating mode:
// synchronous OFF, 200MiB cache, in-memory temp store, batched transactions
// of 2,000 files, prepared statements reused across each batch. Restores
// synchronous NORMAL and checkpoints on completion.
func (s *Store) BulkUpsert(results []model.ParseResult, reporter model.ProgressReporter) error {
	if reporter == nil {
		reporter = model.NopReporter{}
	}

	if _, err := s.DB.Exec(`PRAGMA synchronous = OFF`); err != nil {
		return fmt.Errorf("store: bulk upsert set synchronous OFF: %w", err)
	}
	if _, err := s.DB.Exec(`PRAGMA cache_size = -200000`); err != nil {
		return fmt.Errorf("store: bulk upsert set cache_size: %w", err)
	}
	if _, err := s.DB.Exec(`PRAGMA temp_store = MEMORY`); err != nil {
		return fmt.Errorf("store: bulk upsert set temp_store: %w", err)
	}
	if _, err := s.DB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("store: bulk upsert set foreign_keys: %w", err)
	}

	total := len(results)
	reporter.Report("db_sync", 0, total, fmt.Sprintf("Saving to DB (0/%d)", total))

	for start := 0; start < total; start += bulkBatchSize {
		end := min(start+bulkBatchSize, total)
		if err := s.upsertBatch(results[start:end], start, total, reporter); err != nil {
			return fmt.Errorf("store: bulk upsert batch [%d,%d): %w", start, end, err)
		}
	}

	reporter.Report("finalizing", 50, 100, "Finalizing database (integrating WAL)...")
	if _, err := s.DB.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		return fmt.Errorf("store: restore synchronous NORMAL: %w", err)
	}
	if _, err := s.DB.Exec(`PRAGMA wal_checkpoint(RESTART)`); err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}

	reporter.Report("finalizing", 90, 100, "Finalizing database (optimizing)...")
	if _, err := s.DB.Exec(`PRAGMA optimize`); err != nil {
		return fmt.Errorf("store: optimize: %w", err)
	}

	reporter.Report("finalizing", 100, 100, "Database finalized.")
	return nil
}

func (s *Store) upsertBatch(batch []model.ParseResult, globalStart, total int, reporter model.ProgressReporter) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmtFile, err := tx.Prepare(`INSERT OR REPLACE INTO files
		(path, filename, extension, mtime, file_hash, module_id, is_header) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmtFile.Close()

	stmtClass, err := tx.Prepare(`INSERT OR IGNORE INTO classes
		(name, namespace, base_class, file_id, line_number, symbol_type) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmtClass.Close()

	stmtClassID, err := tx.Prepare(`SELECT id FROM classes WHERE name = ? AND file_id = ? LIMIT 1`)
	if err != nil {
		return err
	}
	defer stmtClassID.Close()

	stmtInheritance, err := tx.Prepare(`INSERT INTO inheritance (child_id, parent_name) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmtInheritance.Close()

	stmtEnum, err := tx.Prepare(`INSERT INTO enum_values (enum_id, name) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmtEnum.Close()

	stmtMember, err := tx.Prepare(`INSERT INTO members
		(class_id, name, type, flags, access, detail, return_type, is_static, line_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmtMember.Close()

	for i, result := range batch {
		globalI := globalStart + i
		if globalI%200 == 0 {
			reporter.Report("db_sync", globalI, total, fmt.Sprintf("Saving results (%d/%d)", globalI, total))
		}

		if result.Status != model.StatusParsed || result.Data == nil {
			continue
		}

		filename := filepath.Base(result.Path)
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(result.Path), "."))
		isHeader := 0
		if ext == "h" || ext == "hpp" {
			isHeader = 1
		}

		var moduleID any
		if result.ModuleID > 0 {
			moduleID = result.ModuleID
		}

		fileRes, err := stmtFile.Exec(result.Path, filename, ext, result.Mtime, result.Data.NewHash, moduleID, isHeader)
		if err != nil {
			continue // per-row failures tolerated, matches §4.1
		}
		fileID, err := fileRes.LastInsertId()
		if err != nil {
			continue
		}

		for _, cls := range result.Data.Classes {
			var firstBase any
			if len(cls.BaseClasses) > 0 {
				firstBase = cls.BaseClasses[0]
			}
			_, _ = stmtClass.Exec(cls.ClassName, nullableString(cls.Namespace), firstBase, fileID, cls.Line, string(cls.SymbolType))

			var classID int64
			if err := stmtClassID.QueryRow(cls.ClassName, fileID).Scan(&classID); err != nil {
				continue
			}

			for _, parent := range cls.BaseClasses {
				_, _ = stmtInheritance.Exec(classID, parent)
			}

			for _, mem := range cls.Members {
				if mem.MemType == model.MemberEnumItem {
					_, _ = stmtEnum.Exec(classID, mem.Name)
					continue
				}
				isStatic := 0
				if mem.IsStatic || strings.Contains(mem.Flags, "static") {
					isStatic = 1
				}
				_, _ = stmtMember.Exec(classID, mem.Name, string(mem.MemType), mem.Flags,
					string(mem.Access), mem.Detail, mem.ReturnType, isStatic, mem.LineNumber)
			}
		}
	}

	return tx.Commit()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
