package query

import (
	"database/sql"
	"fmt"
)

// DerivedClass is one row of FindDerivedClasses/GetRecursiveDerivedClasses.
type DerivedClass struct {
	ClassName  string `msgpack:"class_name" json:"class_name"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
	FilePath   string `msgpack:"file_path" json:"file_path"`
	Filename   string `msgpack:"filename" json:"filename"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
}

// findDerivedClasses is a single-level lookup: every class whose stored
// inheritance edge names base_class as a parent (§4.5, no recursion).
func findDerivedClasses(db *sql.DB, baseClass string) ([]DerivedClass, error) {
	rows, err := db.Query(
		`SELECT c.name, f.path, f.filename, c.symbol_type, m.name
		 FROM classes c
		 JOIN inheritance i ON c.id = i.child_id
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id
		 WHERE i.parent_name = ?`, baseClass)
	if err != nil {
		return nil, fmt.Errorf("query: find derived classes: %w", err)
	}
	defer rows.Close()

	var out []DerivedClass
	for rows.Next() {
		var d DerivedClass
		if err := rows.Scan(&d.ClassName, &d.FilePath, &d.Filename, &d.SymbolType, &d.ModuleName); err != nil {
			return nil, fmt.Errorf("query: find derived classes: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// getRecursiveDerivedClasses walks the inheritance graph downward via a
// recursive CTE, excluding the seed class itself (§4.5 "Recursive walks").
func getRecursiveDerivedClasses(db *sql.DB, baseClass string) ([]DerivedClass, error) {
	rows, err := db.Query(
		`WITH RECURSIVE derived_cte AS (
		   SELECT c.id, c.name, c.symbol_type
		   FROM classes c
		   JOIN inheritance i ON c.id = i.child_id
		   WHERE i.parent_name = ?
		   UNION
		   SELECT c.id, c.name, c.symbol_type
		   FROM classes c
		   JOIN inheritance i ON c.id = i.child_id
		   JOIN derived_cte p ON i.parent_name = p.name
		 )
		 SELECT d.name, c.line_number, f.path, f.filename, d.symbol_type, m.name
		 FROM derived_cte d
		 JOIN classes c ON d.id = c.id
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id
		 WHERE d.name != ?`, baseClass, baseClass)
	if err != nil {
		return nil, fmt.Errorf("query: recursive derived classes: %w", err)
	}
	defer rows.Close()

	var out []DerivedClass
	for rows.Next() {
		var d DerivedClass
		if err := rows.Scan(&d.ClassName, &d.LineNumber, &d.FilePath, &d.Filename, &d.SymbolType, &d.ModuleName); err != nil {
			return nil, fmt.Errorf("query: recursive derived classes: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ParentClass is one row of GetRecursiveParentClasses; Level is the
// distance from the seed class (0 = the seed itself, 1 = its direct parents).
type ParentClass struct {
	ClassName  string `msgpack:"class_name" json:"class_name"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
	FilePath   string `msgpack:"file_path" json:"file_path"`
	Filename   string `msgpack:"filename" json:"filename"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
	Level      int64  `msgpack:"level" json:"level"`
}

// getRecursiveParentClasses walks the inheritance graph upward, carrying a
// level column and ordering nearest-first, excluding the seed class itself
// (§4.5 "Parent walks carry a level column"; §8 invariant 6 — the RPC-facing
// result never includes the queried class).
func getRecursiveParentClasses(db *sql.DB, childClass string) ([]ParentClass, error) {
	return parentClassesCTE(db, childClass, true)
}

// getRecursiveParentClassesWithSeed is parentClassesCTE with the seed class
// included at level 0, for internal callers (findSymbolInInheritanceChain,
// getVirtualFunctionsInChain) that need to consider the class's own members
// alongside its ancestors.
func getRecursiveParentClassesWithSeed(db *sql.DB, childClass string) ([]ParentClass, error) {
	return parentClassesCTE(db, childClass, false)
}

func parentClassesCTE(db *sql.DB, childClass string, excludeSeed bool) ([]ParentClass, error) {
	sqlStr := `WITH RECURSIVE parents_cte AS (
		   SELECT id, name, 0 as level FROM classes WHERE name = ?
		   UNION
		   SELECT p.id, p.name, c.level + 1
		   FROM classes p
		   JOIN inheritance i ON p.name = i.parent_name
		   JOIN parents_cte c ON i.child_id = c.id
		 )
		 SELECT d.name, c.line_number, f.path, f.filename, c.symbol_type, m.name, d.level
		 FROM parents_cte d
		 JOIN classes c ON d.id = c.id
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id`
	if excludeSeed {
		sqlStr += ` WHERE d.level > 0`
	}
	sqlStr += ` ORDER BY d.level ASC`

	rows, err := db.Query(sqlStr, childClass)
	if err != nil {
		return nil, fmt.Errorf("query: recursive parent classes: %w", err)
	}
	defer rows.Close()

	var out []ParentClass
	for rows.Next() {
		var p ParentClass
		if err := rows.Scan(&p.ClassName, &p.LineNumber, &p.FilePath, &p.Filename, &p.SymbolType, &p.ModuleName, &p.Level); err != nil {
			return nil, fmt.Errorf("query: recursive parent classes: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClassInModule is one row of GetClassesInModules when symbol_type is unset.
type ClassInModule struct {
	Name       string `msgpack:"name" json:"name"`
	BaseClass  string `msgpack:"base_class" json:"base_class"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
	Path       string `msgpack:"path" json:"path"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
}

// ClassesByPath groups ClassInModule rows by file path, the shape returned
// when a symbol_type filter narrows the result (§4.5 "Chunked IN-lists").
type ClassesByPath struct {
	Path  string          `msgpack:"p" json:"p"`
	Items []ClassInModule `msgpack:"i" json:"i"`
}

// getClassesInModules returns every class declared in one of the given
// modules, optionally narrowed by symbol_type and grouped by file when
// narrowed. Module-name sets are chunked at 500 to dodge SQLite's bound
// parameter limit (§4.5).
func getClassesInModules(db *sql.DB, modules []string, symbolType string) (any, error) {
	if len(modules) == 0 {
		return []ClassInModule{}, nil
	}

	var flat []ClassInModule
	order := []string{}
	grouped := map[string][]ClassInModule{}

	for _, c := range chunk(modules, chunkSize) {
		sqlStr := `SELECT c.name, c.base_class, c.line_number, f.path, c.symbol_type
			 FROM classes c
			 JOIN files f ON c.file_id = f.id
			 JOIN modules m ON f.module_id = m.id
			 WHERE m.name IN (` + inPlaceholders(len(c)) + `)`
		args := make([]any, 0, len(c)+1)
		for _, m := range c {
			args = append(args, m)
		}
		if symbolType != "" {
			clause, extra := symbolTypeClause("c.symbol_type", symbolType)
			sqlStr += clause
			args = append(args, extra...)
		}

		rows, err := db.Query(sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("query: classes in modules: %w", err)
		}
		func() {
			defer rows.Close()
			for rows.Next() {
				var item ClassInModule
				var base sql.NullString
				if err = rows.Scan(&item.Name, &base, &item.LineNumber, &item.Path, &item.SymbolType); err != nil {
					return
				}
				item.BaseClass = base.String
				if symbolType != "" {
					if _, seen := grouped[item.Path]; !seen {
						order = append(order, item.Path)
					}
					grouped[item.Path] = append(grouped[item.Path], item)
				} else {
					flat = append(flat, item)
				}
			}
		}()
		if err != nil {
			return nil, fmt.Errorf("query: classes in modules: %w", err)
		}
	}

	if symbolType != "" {
		out := make([]ClassesByPath, 0, len(order))
		for _, p := range order {
			out = append(out, ClassesByPath{Path: p, Items: grouped[p]})
		}
		return out, nil
	}
	return flat, nil
}

// ClassRecord is a full class row, used by FindClassByName.
type ClassRecord struct {
	ID         int64  `msgpack:"id" json:"id"`
	ClassName  string `msgpack:"class_name" json:"class_name"`
	BaseClass  string `msgpack:"base_class" json:"base_class"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
	FilePath   string `msgpack:"file_path" json:"file_path"`
	Filename   string `msgpack:"filename" json:"filename"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
	ModuleRoot string `msgpack:"module_root" json:"module_root"`
}

func findClassByName(db *sql.DB, name string) (*ClassRecord, error) {
	row := db.QueryRow(
		`SELECT c.id, c.name, c.base_class, c.line_number, f.path, f.filename, c.symbol_type, m.name, m.root_path
		 FROM classes c
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id
		 WHERE c.name = ? LIMIT 1`, name)

	var r ClassRecord
	var base sql.NullString
	if err := row.Scan(&r.ID, &r.ClassName, &base, &r.LineNumber, &r.FilePath, &r.Filename, &r.SymbolType, &r.ModuleName, &r.ModuleRoot); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: find class by name: %w", err)
	}
	r.BaseClass = base.String
	return &r, nil
}

// ClassNameHit is one row of SearchClassesPrefix.
type ClassNameHit struct {
	Name       string `msgpack:"name" json:"name"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
}

func searchClassesPrefix(db *sql.DB, prefix string, limit int) ([]ClassNameHit, error) {
	rows, err := db.Query(`SELECT name, symbol_type FROM classes WHERE name LIKE ? LIMIT ?`, prefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("query: search classes prefix: %w", err)
	}
	defer rows.Close()

	var out []ClassNameHit
	for rows.Next() {
		var c ClassNameHit
		if err := rows.Scan(&c.Name, &c.SymbolType); err != nil {
			return nil, fmt.Errorf("query: search classes prefix: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClassSummary is one row of GetClasses/GetStructs/GetStructsOnly.
type ClassSummary struct {
	ID         int64  `msgpack:"id" json:"id"`
	Name       string `msgpack:"name" json:"name"`
	BaseClass  string `msgpack:"base_class" json:"base_class"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
	Path       string `msgpack:"path" json:"path"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
}

func getClasses(db *sql.DB) ([]ClassSummary, error) {
	return classSummaryQuery(db, `c.symbol_type IN ('class','struct')`)
}

func getStructsOnly(db *sql.DB) ([]ClassSummary, error) {
	return classSummaryQuery(db, `c.symbol_type = 'struct'`)
}

func classSummaryQuery(db *sql.DB, whereClause string) ([]ClassSummary, error) {
	rows, err := db.Query(
		`SELECT c.id, c.name, c.base_class, c.symbol_type, f.path, m.name
		 FROM classes c
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id
		 WHERE ` + whereClause + ` AND c.name NOT LIKE '(%'
		 ORDER BY c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query: class summary: %w", err)
	}
	defer rows.Close()

	var out []ClassSummary
	for rows.Next() {
		var c ClassSummary
		var base sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &base, &c.SymbolType, &c.Path, &c.ModuleName); err != nil {
			return nil, fmt.Errorf("query: class summary: %w", err)
		}
		c.BaseClass = base.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func getClassFilePath(db *sql.DB, className string) (*string, error) {
	row := db.QueryRow(`SELECT f.path FROM files f JOIN classes c ON c.file_id = f.id WHERE c.name = ? LIMIT 1`, className)
	var path string
	if err := row.Scan(&path); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: class file path: %w", err)
	}
	return &path, nil
}

func getEnumValues(db *sql.DB, enumName string) ([]string, error) {
	rows, err := db.Query(
		`SELECT ev.name FROM enum_values ev JOIN classes c ON ev.enum_id = c.id
		 WHERE c.name = ? AND c.symbol_type IN ('enum', 'UENUM')`, enumName)
	if err != nil {
		return nil, fmt.Errorf("query: enum values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("query: enum values: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
