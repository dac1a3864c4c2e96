package query

import (
	"database/sql"
	"fmt"
)

// FileHit is the common shape for plain filename/path search results.
type FileHit struct {
	Path     string `msgpack:"path" json:"path"`
	Filename string `msgpack:"filename" json:"filename"`
}

func searchFiles(db *sql.DB, part string) ([]FileHit, error) {
	rows, err := db.Query(`SELECT path, filename FROM files WHERE filename LIKE ? LIMIT 100`, "%"+part+"%")
	if err != nil {
		return nil, fmt.Errorf("query: search files: %w", err)
	}
	defer rows.Close()

	var out []FileHit
	for rows.Next() {
		var f FileHit
		if err := rows.Scan(&f.Path, &f.Filename); err != nil {
			return nil, fmt.Errorf("query: search files: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FilePathHit is the shape returned by path-based and module-scoped path
// searches.
type FilePathHit struct {
	Path       string `msgpack:"path" json:"path"`
	Filename   string `msgpack:"filename" json:"filename"`
	ModuleRoot string `msgpack:"module_root" json:"module_root"`
}

func searchFilesByPathPart(db *sql.DB, part string) ([]FilePathHit, error) {
	rows, err := db.Query(
		`SELECT f.path, f.filename, m.root_path
		 FROM files f JOIN modules m ON f.module_id = m.id
		 WHERE f.path LIKE ? LIMIT 50`, "%"+part+"%")
	if err != nil {
		return nil, fmt.Errorf("query: search files by path part: %w", err)
	}
	defer rows.Close()

	var out []FilePathHit
	for rows.Next() {
		var f FilePathHit
		if err := rows.Scan(&f.Path, &f.Filename, &f.ModuleRoot); err != nil {
			return nil, fmt.Errorf("query: search files by path part: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ModuleFileHit is the shape returned by module-scoped file listings.
type ModuleFileHit struct {
	FilePath   string `msgpack:"file_path" json:"file_path"`
	Extension  string `msgpack:"extension" json:"extension"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
	ModuleRoot string `msgpack:"module_root" json:"module_root"`
}

func searchFilesInModules(db *sql.DB, modules []string, filter string, limit int) ([]ModuleFileHit, error) {
	if len(modules) == 0 {
		return []ModuleFileHit{}, nil
	}
	var out []ModuleFileHit
	for _, c := range chunk(modules, chunkSize) {
		if len(out) >= limit {
			break
		}
		remaining := limit - len(out)

		sqlStr := `SELECT f.path, f.extension, m.name, m.root_path
			 FROM files f JOIN modules m ON f.module_id = m.id
			 WHERE m.name IN (` + inPlaceholders(len(c)) + `) AND f.path LIKE ? LIMIT ?`
		args := make([]any, 0, len(c)+2)
		for _, m := range c {
			args = append(args, m)
		}
		args = append(args, "%"+filter+"%", remaining)

		rows, err := db.Query(sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("query: search files in modules: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var f ModuleFileHit
				if err := rows.Scan(&f.FilePath, &f.Extension, &f.ModuleName, &f.ModuleRoot); err != nil {
					return err
				}
				out = append(out, f)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("query: search files in modules: %w", err)
		}
	}
	return out, nil
}

// SymbolHit is one row of SearchSymbolsInModules.
type SymbolHit struct {
	Name       string `msgpack:"name" json:"name"`
	BaseClass  string `msgpack:"base_class" json:"base_class"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
	Path       string `msgpack:"path" json:"path"`
	SymbolType string `msgpack:"symbol_type" json:"symbol_type"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
}

func searchSymbolsInModules(db *sql.DB, modules []string, symbolType, filter string, limit int) ([]SymbolHit, error) {
	if len(modules) == 0 {
		return []SymbolHit{}, nil
	}
	var out []SymbolHit
	for _, c := range chunk(modules, chunkSize) {
		if len(out) >= limit {
			break
		}
		remaining := limit - len(out)

		sqlStr := `SELECT c.name, c.base_class, c.line_number, f.path, c.symbol_type, m.name
			 FROM classes c
			 JOIN files f ON c.file_id = f.id
			 JOIN modules m ON f.module_id = m.id
			 WHERE m.name IN (` + inPlaceholders(len(c)) + `) AND c.name LIKE ?`
		args := make([]any, 0, len(c)+3)
		for _, m := range c {
			args = append(args, m)
		}
		args = append(args, "%"+filter+"%")

		if symbolType != "" {
			clause, extra := symbolTypeClause("c.symbol_type", symbolType)
			sqlStr += clause
			args = append(args, extra...)
		}
		sqlStr += " LIMIT ?"
		args = append(args, remaining)

		rows, err := db.Query(sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("query: search symbols in modules: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var s SymbolHit
				var base sql.NullString
				if err := rows.Scan(&s.Name, &base, &s.LineNumber, &s.Path, &s.SymbolType, &s.ModuleName); err != nil {
					return err
				}
				s.BaseClass = base.String
				out = append(out, s)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("query: search symbols in modules: %w", err)
		}
	}
	return out, nil
}

func getFilesInModule(db *sql.DB, moduleID int) ([]string, error) {
	rows, err := db.Query(`SELECT path FROM files WHERE module_id = ?`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query: files in module: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("query: files in module: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func getFilesInModules(db *sql.DB, modules, extensions []string, filter string) ([]ModuleFileHit, error) {
	if len(modules) == 0 {
		return []ModuleFileHit{}, nil
	}
	var out []ModuleFileHit
	for _, c := range chunk(modules, chunkSize) {
		sqlStr := `SELECT f.path, f.extension, m.name, m.root_path
			 FROM files f JOIN modules m ON f.module_id = m.id
			 WHERE m.name IN (` + inPlaceholders(len(c)) + `)`
		args := make([]any, 0, len(c)+len(extensions)+1)
		for _, m := range c {
			args = append(args, m)
		}
		if len(extensions) > 0 {
			sqlStr += ` AND f.extension IN (` + inPlaceholders(len(extensions)) + `)`
			for _, e := range extensions {
				args = append(args, e)
			}
		}
		if filter != "" {
			sqlStr += ` AND f.path LIKE ?`
			args = append(args, "%"+filter+"%")
		}

		rows, err := db.Query(sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("query: files in modules: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var f ModuleFileHit
				if err := rows.Scan(&f.FilePath, &f.Extension, &f.ModuleName, &f.ModuleRoot); err != nil {
					return err
				}
				out = append(out, f)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("query: files in modules: %w", err)
		}
	}
	return out, nil
}

// ModuleOwnedFile is the shape used by GetProgramFiles/GetAllIniFiles,
// files listed alongside their owning module.
type ModuleOwnedFile struct {
	Path       string `msgpack:"path" json:"path"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
	ModuleRoot string `msgpack:"module_root" json:"module_root"`
}

func getProgramFiles(db *sql.DB) ([]ModuleOwnedFile, error) {
	return moduleOwnedFileQuery(db, `m.type = 'Program'`)
}

func getAllIniFiles(db *sql.DB) ([]ModuleOwnedFile, error) {
	return moduleOwnedFileQuery(db, `f.extension = 'ini'`)
}

func moduleOwnedFileQuery(db *sql.DB, whereClause string) ([]ModuleOwnedFile, error) {
	rows, err := db.Query(
		`SELECT f.path, m.name, m.root_path
		 FROM files f JOIN modules m ON f.module_id = m.id
		 WHERE ` + whereClause)
	if err != nil {
		return nil, fmt.Errorf("query: module-owned files: %w", err)
	}
	defer rows.Close()

	var out []ModuleOwnedFile
	for rows.Next() {
		var f ModuleOwnedFile
		if err := rows.Scan(&f.Path, &f.ModuleName, &f.ModuleRoot); err != nil {
			return nil, fmt.Errorf("query: module-owned files: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func getTargetFiles(db *sql.DB) ([]FileHit, error) {
	rows, err := db.Query(`SELECT path, filename FROM files WHERE filename LIKE '%.Target.cs'`)
	if err != nil {
		return nil, fmt.Errorf("query: target files: %w", err)
	}
	defer rows.Close()

	var out []FileHit
	for rows.Next() {
		var f FileHit
		if err := rows.Scan(&f.Path, &f.Filename); err != nil {
			return nil, fmt.Errorf("query: target files: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func getAllFilePaths(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, fmt.Errorf("query: all file paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("query: all file paths: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FileMetadata is one row of GetAllFilesMetadata.
type FileMetadata struct {
	Filename   string `msgpack:"filename" json:"filename"`
	Path       string `msgpack:"path" json:"path"`
	ModuleName string `msgpack:"module_name" json:"module_name"`
}

func getAllFilesMetadata(db *sql.DB) ([]FileMetadata, error) {
	rows, err := db.Query(
		`SELECT f.filename, f.path, m.name
		 FROM files f JOIN modules m ON f.module_id = m.id`)
	if err != nil {
		return nil, fmt.Errorf("query: all files metadata: %w", err)
	}
	defer rows.Close()

	var out []FileMetadata
	for rows.Next() {
		var f FileMetadata
		if err := rows.Scan(&f.Filename, &f.Path, &f.ModuleName); err != nil {
			return nil, fmt.Errorf("query: all files metadata: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func getModuleFilesByNameAndRoot(db *sql.DB, name, root string) ([]struct {
	Path      string `msgpack:"path" json:"path"`
	Extension string `msgpack:"extension" json:"extension"`
}, error) {
	rows, err := db.Query(
		`SELECT f.path, f.extension FROM files f JOIN modules m ON f.module_id = m.id
		 WHERE m.name = ? AND m.root_path = ?`, name, root)
	if err != nil {
		return nil, fmt.Errorf("query: module files by name and root: %w", err)
	}
	defer rows.Close()

	var out []struct {
		Path      string `msgpack:"path" json:"path"`
		Extension string `msgpack:"extension" json:"extension"`
	}
	for rows.Next() {
		var row struct {
			Path      string `msgpack:"path" json:"path"`
			Extension string `msgpack:"extension" json:"extension"`
		}
		if err := rows.Scan(&row.Path, &row.Extension); err != nil {
			return nil, fmt.Errorf("query: module files by name and root: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FileSymbolClass is one class entry in GetFileSymbols's per-file tree.
type FileSymbolClass struct {
	Name       string              `msgpack:"name" json:"name"`
	Kind       string              `msgpack:"kind" json:"kind"`
	LineNumber int64               `msgpack:"line_number" json:"line_number"`
	Fields     []FileSymbolMember  `msgpack:"fields" json:"fields"`
	Methods    []FileSymbolMember  `msgpack:"methods" json:"methods"`
}

// FileSymbolMember is one member entry within FileSymbolClass, grouped by
// access on the caller side if desired; kind uses the editor's camelCase
// vocabulary (§4.5 "File-scoped symbol tree").
type FileSymbolMember struct {
	Name       string `msgpack:"name" json:"name"`
	Kind       string `msgpack:"kind" json:"kind"`
	Access     string `msgpack:"access" json:"access"`
	ReturnType string `msgpack:"return_type" json:"return_type"`
	Detail     string `msgpack:"detail" json:"detail"`
}

var classKindDisplay = map[string]string{
	"UCLASS": "UClass", "class": "Class", "USTRUCT": "UStruct", "struct": "Struct",
	"UENUM": "UEnum", "enum": "Enum", "UINTERFACE": "UClass", "typedef": "Struct",
}

// memberKindDisplay maps a raw member type to the editor's camelCase
// vocabulary: UFUNCTION-flagged functions become "UFunction", plain
// functions "Function", UPROPERTY-flagged fields "UProperty", plain fields
// "Field", enum entries "EnumItem" (§4.5).
func memberKindDisplay(memType, flags string) string {
	switch memType {
	case "function":
		if hasFlag(flags, "UFUNCTION") {
			return "UFunction"
		}
		return "Function"
	case "variable", "property":
		if hasFlag(flags, "UPROPERTY") {
			return "UProperty"
		}
		return "Field"
	case "enum_item":
		return "EnumItem"
	default:
		return memType
	}
}

func hasFlag(flags, name string) bool {
	for _, f := range splitFlags(flags) {
		if f == name {
			return true
		}
	}
	return false
}

func splitFlags(flags string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(flags); i++ {
		if i == len(flags) || flags[i] == ',' || flags[i] == ' ' {
			if i > start {
				out = append(out, flags[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// getFileSymbols returns every class declared in path with its members
// categorized as fields vs. methods and kind-remapped for the editor (§4.5
// "File-scoped symbol tree"). No original_source ancestor names this tag;
// built directly from spec.md's description atop the plain classes/members
// tables.
func getFileSymbols(db *sql.DB, path string) ([]FileSymbolClass, error) {
	rows, err := db.Query(
		`SELECT c.id, c.name, c.symbol_type, c.line_number
		 FROM classes c JOIN files f ON c.file_id = f.id
		 WHERE f.path = ? ORDER BY c.line_number`, path)
	if err != nil {
		return nil, fmt.Errorf("query: file symbols: %w", err)
	}

	type classRow struct {
		id   int64
		name string
		typ  string
		line int64
	}
	var classes []classRow
	err = func() error {
		defer rows.Close()
		for rows.Next() {
			var c classRow
			if err := rows.Scan(&c.id, &c.name, &c.typ, &c.line); err != nil {
				return err
			}
			classes = append(classes, c)
		}
		return rows.Err()
	}()
	if err != nil {
		return nil, fmt.Errorf("query: file symbols: %w", err)
	}

	out := make([]FileSymbolClass, 0, len(classes))
	for _, c := range classes {
		kind := classKindDisplay[c.typ]
		if kind == "" {
			kind = c.typ
		}
		fsc := FileSymbolClass{Name: c.name, Kind: kind, LineNumber: c.line}

		members, err := getClassMembersById(db, int(c.id))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			entry := FileSymbolMember{Name: m.Name, Kind: memberKindDisplay(m.Type, m.Flags), Access: m.Access, ReturnType: m.ReturnType, Detail: m.Detail}
			if m.Type == "function" {
				fsc.Methods = append(fsc.Methods, entry)
			} else {
				fsc.Fields = append(fsc.Fields, entry)
			}
		}
		out = append(out, fsc)
	}
	return out, nil
}
