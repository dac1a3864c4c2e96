package query

import (
	"database/sql"
	"fmt"
	"strings"
)

// ModuleSummary is a full modules row, used by GetModuleByName/GetModules.
type ModuleSummary struct {
	ID              int64  `msgpack:"id" json:"id"`
	Name            string `msgpack:"name" json:"name"`
	Type            string `msgpack:"type" json:"type"`
	Scope           string `msgpack:"scope" json:"scope"`
	RootPath        string `msgpack:"root_path" json:"root_path"`
	BuildCSPath     string `msgpack:"build_cs_path" json:"build_cs_path"`
	OwnerName       string `msgpack:"owner_name" json:"owner_name"`
	ComponentName   string `msgpack:"component_name" json:"component_name"`
	DeepDependencies string `msgpack:"deep_dependencies" json:"deep_dependencies"`
}

func getModuleByName(db *sql.DB, name string) (*ModuleSummary, error) {
	row := db.QueryRow(
		`SELECT id, name, type, scope, root_path, build_cs_path, owner_name, component_name, deep_dependencies
		 FROM modules WHERE name = ? LIMIT 1`, name)
	var m ModuleSummary
	var typ, scope, buildCS, owner, comp, deps sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &typ, &scope, &m.RootPath, &buildCS, &owner, &comp, &deps); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: module by name: %w", err)
	}
	m.Type, m.Scope, m.BuildCSPath, m.OwnerName, m.ComponentName, m.DeepDependencies =
		typ.String, scope.String, buildCS.String, owner.String, comp.String, deps.String
	return &m, nil
}

func getModules(db *sql.DB) ([]ModuleSummary, error) {
	rows, err := db.Query(
		`SELECT id, name, type, scope, root_path, build_cs_path, owner_name, component_name, deep_dependencies
		 FROM modules ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query: modules: %w", err)
	}
	defer rows.Close()

	var out []ModuleSummary
	for rows.Next() {
		var m ModuleSummary
		var typ, scope, buildCS, owner, comp, deps sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &typ, &scope, &m.RootPath, &buildCS, &owner, &comp, &deps); err != nil {
			return nil, fmt.Errorf("query: modules: %w", err)
		}
		m.Type, m.Scope, m.BuildCSPath, m.OwnerName, m.ComponentName, m.DeepDependencies =
			typ.String, scope.String, buildCS.String, owner.String, comp.String, deps.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func getModuleIDByName(db *sql.DB, name string) (*int64, error) {
	row := db.QueryRow(`SELECT id FROM modules WHERE name = ?`, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: module id by name: %w", err)
	}
	return &id, nil
}

func getModuleRootPath(db *sql.DB, name string) (*string, error) {
	row := db.QueryRow(`SELECT root_path FROM modules WHERE name = ?`, name)
	var root string
	if err := row.Scan(&root); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: module root path: %w", err)
	}
	return &root, nil
}

// ComponentSummary is a full components row, used by GetComponents.
type ComponentSummary struct {
	ID                int64  `msgpack:"id" json:"id"`
	Name              string `msgpack:"name" json:"name"`
	DisplayName       string `msgpack:"display_name" json:"display_name"`
	Type              string `msgpack:"type" json:"type"`
	OwnerName         string `msgpack:"owner_name" json:"owner_name"`
	RootPath          string `msgpack:"root_path" json:"root_path"`
	UpluginPath       string `msgpack:"uplugin_path" json:"uplugin_path"`
	UprojectPath      string `msgpack:"uproject_path" json:"uproject_path"`
	EngineAssociation string `msgpack:"engine_association" json:"engine_association"`
}

func getComponents(db *sql.DB) ([]ComponentSummary, error) {
	rows, err := db.Query(
		`SELECT id, name, display_name, type, owner_name, root_path, uplugin_path, uproject_path, engine_association
		 FROM components ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query: components: %w", err)
	}
	defer rows.Close()

	var out []ComponentSummary
	for rows.Next() {
		var c ComponentSummary
		var display, typ, owner, root, uplugin, uproject, engine sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &display, &typ, &owner, &root, &uplugin, &uproject, &engine); err != nil {
			return nil, fmt.Errorf("query: components: %w", err)
		}
		c.DisplayName, c.Type, c.OwnerName, c.RootPath, c.UpluginPath, c.UprojectPath, c.EngineAssociation =
			display.String, typ.String, owner.String, root.String, uplugin.String, uproject.String, engine.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ComponentFileTree is LoadComponentData's per-module payload: files
// bucketed by kind, with per-header class details.
type ComponentFileTree struct {
	Name          string                      `msgpack:"name" json:"name"`
	ModuleRoot    string                      `msgpack:"module_root" json:"module_root"`
	Path          string                      `msgpack:"path" json:"path"`
	Files         ComponentFilesByKind        `msgpack:"files" json:"files"`
	HeaderDetails map[string]HeaderClassList  `msgpack:"header_details" json:"header_details"`
}

type ComponentFilesByKind struct {
	Source []string `msgpack:"source" json:"source"`
	Config []string `msgpack:"config" json:"config"`
	Shader []string `msgpack:"shader" json:"shader"`
	Other  []string `msgpack:"other" json:"other"`
}

type HeaderClassList struct {
	Classes []HeaderClass `msgpack:"classes" json:"classes"`
}

type HeaderClass struct {
	Name       string `msgpack:"name" json:"name"`
	BaseClass  string `msgpack:"base_class" json:"base_class"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
}

// ComponentData groups modules by build category, the shape LoadComponentData
// returns (§4.5, mirrors the original's runtime/editor/developer/programs
// bucketing).
type ComponentData struct {
	RuntimeModules   map[string]*ComponentFileTree `msgpack:"runtime_modules" json:"runtime_modules"`
	EditorModules    map[string]*ComponentFileTree `msgpack:"editor_modules" json:"editor_modules"`
	DeveloperModules map[string]*ComponentFileTree `msgpack:"developer_modules" json:"developer_modules"`
	ProgramsModules  map[string]*ComponentFileTree `msgpack:"programs_modules" json:"programs_modules"`
}

// loadComponentData returns every module scoped to component (by exact
// scope match or scope-prefix), bucketed by module type, each with its
// files categorized and header classes attached.
func loadComponentData(db *sql.DB, component string) (*ComponentData, error) {
	rows, err := db.Query(
		`SELECT m.id, m.name, m.type, m.root_path, m.build_cs_path
		 FROM modules m WHERE m.scope = ? OR m.scope LIKE ?`, component, component+"%")
	if err != nil {
		return nil, fmt.Errorf("query: load component data: %w", err)
	}

	type modRow struct {
		id                      int64
		name, typ, root, build  string
		buildValid              bool
	}
	var mods []modRow
	err = func() error {
		defer rows.Close()
		for rows.Next() {
			var r modRow
			var build sql.NullString
			if err := rows.Scan(&r.id, &r.name, &r.typ, &r.root, &build); err != nil {
				return err
			}
			r.build, r.buildValid = build.String, build.Valid
			mods = append(mods, r)
		}
		return rows.Err()
	}()
	if err != nil {
		return nil, fmt.Errorf("query: load component data: %w", err)
	}

	result := &ComponentData{
		RuntimeModules: map[string]*ComponentFileTree{}, EditorModules: map[string]*ComponentFileTree{},
		DeveloperModules: map[string]*ComponentFileTree{}, ProgramsModules: map[string]*ComponentFileTree{},
	}

	for _, m := range mods {
		tree := &ComponentFileTree{
			Name: m.name, ModuleRoot: m.root, Path: m.build,
			HeaderDetails: map[string]HeaderClassList{},
		}

		fileRows, err := db.Query(`SELECT id, path, extension, is_header FROM files WHERE module_id = ?`, m.id)
		if err != nil {
			return nil, fmt.Errorf("query: load component data files: %w", err)
		}
		err = func() error {
			defer fileRows.Close()
			for fileRows.Next() {
				var fid int64
				var path, ext string
				var isHeader int64
				if err := fileRows.Scan(&fid, &path, &ext, &isHeader); err != nil {
					return err
				}
				lowerExt := strings.ToLower(ext)
				switch {
				case lowerExt == "cpp" || lowerExt == "c" || lowerExt == "cc" || lowerExt == "h" || lowerExt == "hpp":
					tree.Files.Source = append(tree.Files.Source, path)
					if isHeader == 1 {
						if classes, err := headerClasses(db, fid); err == nil && len(classes) > 0 {
							tree.HeaderDetails[path] = HeaderClassList{Classes: classes}
						}
					}
				case lowerExt == "ini":
					tree.Files.Config = append(tree.Files.Config, path)
				case lowerExt == "usf" || lowerExt == "ush":
					tree.Files.Shader = append(tree.Files.Shader, path)
				default:
					tree.Files.Other = append(tree.Files.Other, path)
				}
			}
			return fileRows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("query: load component data files: %w", err)
		}

		switch m.typ {
		case "Runtime":
			result.RuntimeModules[m.name] = tree
		case "Editor":
			result.EditorModules[m.name] = tree
		case "Developer":
			result.DeveloperModules[m.name] = tree
		case "Program":
			result.ProgramsModules[m.name] = tree
		default:
			result.RuntimeModules[m.name] = tree
		}
	}

	return result, nil
}

func headerClasses(db *sql.DB, fileID int64) ([]HeaderClass, error) {
	rows, err := db.Query(`SELECT name, base_class, line_number FROM classes WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HeaderClass
	for rows.Next() {
		var c HeaderClass
		var base sql.NullString
		if err := rows.Scan(&c.Name, &base, &c.LineNumber); err != nil {
			return nil, err
		}
		c.BaseClass = base.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// SymbolLocation is FindSymbolInModule's result.
type SymbolLocation struct {
	FilePath   string `msgpack:"file_path" json:"file_path"`
	LineNumber int64  `msgpack:"line_number" json:"line_number"`
}

func findSymbolInModule(db *sql.DB, module, symbol string) (*SymbolLocation, error) {
	row := db.QueryRow(
		`SELECT f.path, c.line_number
		 FROM classes c
		 JOIN files f ON c.file_id = f.id
		 JOIN modules m ON f.module_id = m.id
		 WHERE m.name = ? AND c.name = ? LIMIT 1`, module, symbol)
	var s SymbolLocation
	if err := row.Scan(&s.FilePath, &s.LineNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: find symbol in module: %w", err)
	}
	return &s, nil
}
