package query

import (
	"database/sql"
	"fmt"
	"strings"
)

// MemberRecord is one row of the Get*Members family.
type MemberRecord struct {
	Name       string `msgpack:"name" json:"name"`
	Type       string `msgpack:"type" json:"type"`
	Flags      string `msgpack:"flags" json:"flags"`
	Access     string `msgpack:"access" json:"access"`
	Detail     string `msgpack:"detail" json:"detail"`
	ReturnType string `msgpack:"return_type" json:"return_type"`
	IsStatic   int64  `msgpack:"is_static" json:"is_static"`
}

func scanMembers(rows *sql.Rows) ([]MemberRecord, error) {
	defer rows.Close()
	var out []MemberRecord
	for rows.Next() {
		var m MemberRecord
		var flags, access, detail, retType sql.NullString
		if err := rows.Scan(&m.Name, &m.Type, &flags, &access, &detail, &retType, &m.IsStatic); err != nil {
			return nil, fmt.Errorf("query: scan members: %w", err)
		}
		m.Flags, m.Access, m.Detail, m.ReturnType = flags.String, access.String, detail.String, retType.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func getClassMembersById(db *sql.DB, classID int) ([]MemberRecord, error) {
	rows, err := db.Query(
		`SELECT name, type, flags, access, detail, return_type, is_static
		 FROM members WHERE class_id = ? ORDER BY type, name`, classID)
	if err != nil {
		return nil, fmt.Errorf("query: class members by id: %w", err)
	}
	return scanMembers(rows)
}

func getClassMembers(db *sql.DB, className string) ([]MemberRecord, error) {
	rows, err := db.Query(
		`SELECT m.name, m.type, m.flags, m.access, m.detail, m.return_type, m.is_static
		 FROM members m JOIN classes c ON m.class_id = c.id
		 WHERE c.name = ? ORDER BY m.type, m.name`, className)
	if err != nil {
		return nil, fmt.Errorf("query: class members: %w", err)
	}
	return scanMembers(rows)
}

func getClassMethods(db *sql.DB, className string) ([]MemberRecord, error) {
	rows, err := db.Query(
		`SELECT m.name, 'function', m.flags, m.access, m.detail, m.return_type, m.is_static
		 FROM members m JOIN classes c ON m.class_id = c.id
		 WHERE c.name = ? AND m.type = 'function' ORDER BY m.name`, className)
	if err != nil {
		return nil, fmt.Errorf("query: class methods: %w", err)
	}
	return scanMembers(rows)
}

func getClassProperties(db *sql.DB, className string) ([]MemberRecord, error) {
	rows, err := db.Query(
		`SELECT m.name, m.type, m.flags, m.access, m.detail, m.return_type, m.is_static
		 FROM members m JOIN classes c ON m.class_id = c.id
		 WHERE c.name = ? AND (m.type = 'variable' OR m.type = 'property') ORDER BY m.name`, className)
	if err != nil {
		return nil, fmt.Errorf("query: class properties: %w", err)
	}
	return scanMembers(rows)
}

// RecursiveMember is one row of GetClassMembersRecursive, tagged with the
// class it was found on (since the walk may cross several ancestors).
type RecursiveMember struct {
	Name       string `msgpack:"name" json:"name"`
	Type       string `msgpack:"type" json:"type"`
	Flags      string `msgpack:"flags" json:"flags"`
	Access     string `msgpack:"access" json:"access"`
	Detail     string `msgpack:"detail" json:"detail"`
	ReturnType string `msgpack:"return_type" json:"return_type"`
	IsStatic   int64  `msgpack:"is_static" json:"is_static"`
	ClassName  string `msgpack:"class_name" json:"class_name"`
}

// getClassMembersRecursive walks a class's inheritance chain collecting
// members, deduplicated by name, preferring the class found via a
// namespace/path-based tie-break over SQL's ambiguous parent_name=name join
// (§4.5 "Recursive member collection"). This is application-level traversal,
// not a CTE, because the preference order and namespace disambiguation
// can't be expressed as a single ORDER BY across the whole walk.
func getClassMembersRecursive(db *sql.DB, className, namespace string) ([]RecursiveMember, error) {
	var result []RecursiveMember
	seenNames := map[string]bool{}
	visited := map[string]bool{}
	queue := []string{className}
	first := true

	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		searchName := current
		searchNS := ""
		if idx := strings.Index(current, "::"); idx >= 0 {
			searchNS = current[:idx]
			searchName = current[idx+2:]
		} else if first {
			searchNS = namespace
		}
		first = false

		visitedKey := searchNS + "::" + searchName
		if visited[visitedKey] {
			continue
		}
		visited[visitedKey] = true

		var classID int64
		row := db.QueryRow(
			`SELECT c.id
			 FROM classes c
			 JOIN files f ON c.file_id = f.id
			 WHERE c.name = ?
			 ORDER BY
			   (CASE
			     WHEN c.namespace = ? THEN 0
			     WHEN f.path LIKE '%/Runtime/Core/%' THEN 1
			     WHEN f.path LIKE '%/Runtime/Engine/%' THEN 2
			     WHEN c.namespace IS NULL OR c.namespace = '' THEN 3
			     ELSE 4 END) ASC,
			   (CASE WHEN c.symbol_type = 'UCLASS' THEN 0 WHEN c.symbol_type = 'USTRUCT' THEN 1 ELSE 2 END) ASC
			 LIMIT 1`, searchName, searchNS)
		if err := row.Scan(&classID); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("query: class members recursive: %w", err)
		}

		memRows, err := db.Query(
			`SELECT name, type, flags, access, detail, return_type, is_static
			 FROM members WHERE class_id = ? ORDER BY type, name`, classID)
		if err != nil {
			return nil, fmt.Errorf("query: class members recursive: %w", err)
		}
		members, err := scanMembers(memRows)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if seenNames[m.Name] {
				continue
			}
			seenNames[m.Name] = true
			result = append(result, RecursiveMember{
				Name: m.Name, Type: m.Type, Flags: m.Flags, Access: m.Access,
				Detail: m.Detail, ReturnType: m.ReturnType, IsStatic: m.IsStatic, ClassName: searchName,
			})
		}

		enumRows, err := db.Query(`SELECT name FROM enum_values WHERE enum_id = ?`, classID)
		if err != nil {
			return nil, fmt.Errorf("query: class members recursive enum values: %w", err)
		}
		func() {
			defer enumRows.Close()
			for enumRows.Next() {
				var name string
				if err = enumRows.Scan(&name); err != nil {
					return
				}
				if seenNames[name] {
					continue
				}
				seenNames[name] = true
				result = append(result, RecursiveMember{
					Name: name, Type: "enum_item", Access: "public", ClassName: searchName,
				})
			}
		}()
		if err != nil {
			return nil, fmt.Errorf("query: class members recursive enum values: %w", err)
		}

		parentRows, err := db.Query(`SELECT parent_name FROM inheritance WHERE child_id = ? AND parent_name != ?`, classID, searchName)
		if err != nil {
			return nil, fmt.Errorf("query: class members recursive parents: %w", err)
		}
		func() {
			defer parentRows.Close()
			for parentRows.Next() {
				var parent string
				if err = parentRows.Scan(&parent); err != nil {
					return
				}
				queue = append(queue, parent)
			}
		}()
		if err != nil {
			return nil, fmt.Errorf("query: class members recursive parents: %w", err)
		}
	}

	if result == nil {
		result = []RecursiveMember{}
	}
	return result, nil
}

func updateMemberReturnType(db *sql.DB, className, memberName, returnType string) (map[string]int64, error) {
	res, err := db.Exec(
		`UPDATE members SET return_type = ?
		 WHERE name = ? AND class_id = (SELECT id FROM classes WHERE name = ?)`,
		returnType, memberName, className)
	if err != nil {
		return nil, fmt.Errorf("query: update member return type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("query: update member return type: %w", err)
	}
	return map[string]int64{"updated": n}, nil
}

// InheritanceChainHit is FindSymbolInInheritanceChain's result: the nearest
// ancestor (by level) declaring member_name, plus the matching implementation
// file when mode == "implementation" found one.
type InheritanceChainHit struct {
	ClassName  string `msgpack:"class_name" json:"class_name"`
	Level      int64  `msgpack:"level" json:"level"`
	HeaderPath string `msgpack:"header_path" json:"header_path"`
	Member     MemberRecord `msgpack:"member" json:"member"`
	ImplPath   string `msgpack:"impl_path,omitempty" json:"impl_path,omitempty"`
}

// findSymbolInInheritanceChain walks className's ancestors by level
// ascending and returns the nearest one declaring memberName (§4.5
// "Inheritance-chain symbol lookup"). When mode is "implementation" it also
// looks for a same-module .cpp/.c/.cc file sharing the header's filename
// stem. There is no Rust precedent for this tag by name; it implements the
// behavior spec.md describes directly atop the existing parent-walk and
// member-lookup primitives.
func findSymbolInInheritanceChain(db *sql.DB, className, memberName, mode string) (*InheritanceChainHit, error) {
	parents, err := getRecursiveParentClassesWithSeed(db, className)
	if err != nil {
		return nil, err
	}
	// The seed class itself is included at level 0, already nearest-first
	// ordered, since a symbol declared on className itself should win over
	// any ancestor's declaration.
	for _, c := range parents {
		members, err := getClassMembers(db, c.ClassName)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.Name != memberName {
				continue
			}
			headerPath := c.FilePath
			if headerPath == "" {
				headerPath, _ = derefString(getClassFilePath(db, c.ClassName))
			}
			hit := &InheritanceChainHit{ClassName: c.ClassName, Level: c.Level, HeaderPath: headerPath, Member: m}
			if mode == "implementation" && headerPath != "" {
				hit.ImplPath = findImplementationFile(db, headerPath)
			}
			return hit, nil
		}
	}
	return nil, nil
}

func derefString(s *string, err error) (string, error) {
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func findImplementationFile(db *sql.DB, headerPath string) string {
	stem := filenameStem(headerPath)
	row := db.QueryRow(
		`SELECT f.path FROM files f
		 JOIN modules hm ON hm.id = (SELECT module_id FROM files WHERE path = ?)
		 WHERE f.module_id = hm.id AND f.extension IN ('cpp','c','cc')
		 AND f.filename LIKE ? LIMIT 1`, headerPath, stem+".%")
	var path string
	if err := row.Scan(&path); err != nil {
		return ""
	}
	return path
}

func filenameStem(path string) string {
	name := path
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		name = path[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// VirtualFunction is one row of GetVirtualFunctionsInInheritanceChain.
type VirtualFunction struct {
	ClassName string `msgpack:"class_name" json:"class_name"`
	Level     int64  `msgpack:"level" json:"level"`
	Member    MemberRecord `msgpack:"member" json:"member"`
}

// getVirtualFunctionsInChain collects every member whose flags mention
// "virtual" across className's full ancestor chain, nearest-first. Like
// FindSymbolInInheritanceChain, this tag has no original_source ancestor;
// it's built from spec.md's description directly.
func getVirtualFunctionsInChain(db *sql.DB, className string) ([]VirtualFunction, error) {
	parents, err := getRecursiveParentClassesWithSeed(db, className)
	if err != nil {
		return nil, err
	}
	var out []VirtualFunction
	for _, c := range parents {
		members, err := getClassMethods(db, c.ClassName)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if strings.Contains(m.Flags, "virtual") {
				out = append(out, VirtualFunction{ClassName: c.ClassName, Level: c.Level, Member: m})
			}
		}
	}
	if out == nil {
		out = []VirtualFunction{}
	}
	return out, nil
}
