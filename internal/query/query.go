// Package query implements the closed, tagged set of named queries over the
// store's schema (§4.5): one function per tag, each a parameterized SQL
// fragment returning a JSON/msgpack-shaped result. Dispatch is the single
// entry point the daemon's "query" RPC method routes through.
package query

import (
	"database/sql"
	"fmt"

	"github.com/taku25/unlscan/internal/model"
)

// Query tags, per §4.5/§6. The set is closed: Dispatch rejects anything not
// listed here with a Validation error rather than building SQL from an
// unrecognized tag.
const (
	TagFindDerivedClasses               = "FindDerivedClasses"
	TagGetRecursiveDerivedClasses       = "GetRecursiveDerivedClasses"
	TagGetRecursiveParentClasses        = "GetRecursiveParentClasses"
	TagFindSymbolInInheritanceChain     = "FindSymbolInInheritanceChain"
	TagGetVirtualFunctionsInChain       = "GetVirtualFunctionsInInheritanceChain"
	TagSearchFiles                      = "SearchFiles"
	TagSearchFilesByPathPart            = "SearchFilesByPathPart"
	TagSearchFilesInModules             = "SearchFilesInModules"
	TagSearchSymbolsInModules           = "SearchSymbolsInModules"
	TagLoadComponentData                = "LoadComponentData"
	TagGetModuleByName                  = "GetModuleByName"
	TagGetClassesInModules               = "GetClassesInModules"
	TagGetClassMembers                  = "GetClassMembers"
	TagGetClassMembersRecursive         = "GetClassMembersRecursive"
	TagGetClassMembersById              = "GetClassMembersById"
	TagGetClassMethods                  = "GetClassMethods"
	TagGetClassProperties               = "GetClassProperties"
	TagGetFileSymbols                   = "GetFileSymbols"
	TagGetEnumValues                    = "GetEnumValues"
	TagGetComponents                    = "GetComponents"
	TagGetModules                       = "GetModules"
	TagGetAllIniFiles                   = "GetAllIniFiles"
	TagGetProgramFiles                  = "GetProgramFiles"
	TagGetTargetFiles                   = "GetTargetFiles"
	TagGetAllFilePaths                  = "GetAllFilePaths"
	TagGetAllFilesMetadata              = "GetAllFilesMetadata"
	TagUpdateMemberReturnType           = "UpdateMemberReturnType"
	TagFindSymbolInModule               = "FindSymbolInModule"
	TagFindClassByName                  = "FindClassByName"
	TagSearchClassesPrefix              = "SearchClassesPrefix"
	TagGetClasses                       = "GetClasses"
	TagGetStructs                       = "GetStructs"
	TagGetStructsOnly                   = "GetStructsOnly"
	TagGetClassFilePath                 = "GetClassFilePath"
	TagGetModuleIdByName                = "GetModuleIdByName"
	TagGetModuleRootPath                = "GetModuleRootPath"
	TagGetFilesInModule                 = "GetFilesInModule"
	TagGetFilesInModules                = "GetFilesInModules"
	TagGetModuleFilesByNameAndRoot       = "GetModuleFilesByNameAndRoot"
	TagGetModuleDirsByNameAndRoot        = "GetModuleDirsByNameAndRoot"
	TagGetDirectoriesInModule           = "GetDirectoriesInModule"
)

// chunkSize is the IN-list chunk size for arbitrary module-name sets (§4.5
// "Chunked IN-lists"), chosen to stay well under SQLite's default bound
// parameter limit.
const chunkSize = 500

// Dispatch routes a tagged query to its implementation. fields is the
// msgpack-decoded params map as the daemon received it (project_root and
// kind included); each query reads only the keys it needs.
func Dispatch(db *sql.DB, tag string, fields map[string]any) (any, error) {
	switch tag {
	case TagFindDerivedClasses:
		return findDerivedClasses(db, strField(fields, "base_class"))
	case TagGetRecursiveDerivedClasses:
		return getRecursiveDerivedClasses(db, strField(fields, "base_class"))
	case TagGetRecursiveParentClasses:
		return getRecursiveParentClasses(db, strField(fields, "child_class"))
	case TagFindSymbolInInheritanceChain:
		return findSymbolInInheritanceChain(db, strField(fields, "class_name"), strField(fields, "member_name"), strField(fields, "mode"))
	case TagGetVirtualFunctionsInChain:
		return getVirtualFunctionsInChain(db, strField(fields, "class_name"))
	case TagSearchFiles:
		return searchFiles(db, strField(fields, "part"))
	case TagSearchFilesByPathPart:
		return searchFilesByPathPart(db, strField(fields, "part"))
	case TagSearchFilesInModules:
		return searchFilesInModules(db, strSliceField(fields, "modules"), strField(fields, "filter"), intFieldOr(fields, "limit", 100))
	case TagSearchSymbolsInModules:
		return searchSymbolsInModules(db, strSliceField(fields, "modules"), optStrField(fields, "symbol_type"), strField(fields, "filter"), intFieldOr(fields, "limit", 100))
	case TagLoadComponentData:
		return loadComponentData(db, strField(fields, "component"))
	case TagGetModuleByName:
		return getModuleByName(db, strField(fields, "name"))
	case TagGetClassesInModules:
		return getClassesInModules(db, strSliceField(fields, "modules"), optStrField(fields, "symbol_type"))
	case TagGetClassMembers:
		return getClassMembers(db, strField(fields, "class_name"))
	case TagGetClassMembersRecursive:
		return getClassMembersRecursive(db, strField(fields, "class_name"), strField(fields, "namespace"))
	case TagGetClassMembersById:
		return getClassMembersById(db, intFieldOr(fields, "class_id", 0))
	case TagGetClassMethods:
		return getClassMethods(db, strField(fields, "class_name"))
	case TagGetClassProperties:
		return getClassProperties(db, strField(fields, "class_name"))
	case TagGetFileSymbols:
		return getFileSymbols(db, strField(fields, "path"))
	case TagGetEnumValues:
		return getEnumValues(db, strField(fields, "enum_name"))
	case TagGetComponents:
		return getComponents(db)
	case TagGetModules:
		return getModules(db)
	case TagGetAllIniFiles:
		return getAllIniFiles(db)
	case TagGetProgramFiles:
		return getProgramFiles(db)
	case TagGetTargetFiles:
		return getTargetFiles(db)
	case TagGetAllFilePaths:
		return getAllFilePaths(db)
	case TagGetAllFilesMetadata:
		return getAllFilesMetadata(db)
	case TagUpdateMemberReturnType:
		return updateMemberReturnType(db, strField(fields, "class_name"), strField(fields, "member_name"), strField(fields, "return_type"))
	case TagFindSymbolInModule:
		return findSymbolInModule(db, strField(fields, "module"), strField(fields, "symbol"))
	case TagFindClassByName:
		return findClassByName(db, strField(fields, "name"))
	case TagSearchClassesPrefix:
		return searchClassesPrefix(db, strField(fields, "prefix"), intFieldOr(fields, "limit", 50))
	case TagGetClasses:
		return getClasses(db)
	case TagGetStructs:
		return getStructsOnly(db)
	case TagGetStructsOnly:
		return getStructsOnly(db)
	case TagGetClassFilePath:
		return getClassFilePath(db, strField(fields, "class_name"))
	case TagGetModuleIdByName:
		return getModuleIDByName(db, strField(fields, "name"))
	case TagGetModuleRootPath:
		return getModuleRootPath(db, strField(fields, "name"))
	case TagGetFilesInModule:
		return getFilesInModule(db, intFieldOr(fields, "module_id", 0))
	case TagGetFilesInModules:
		return getFilesInModules(db, strSliceField(fields, "modules"), strSliceField(fields, "extensions"), optStrField(fields, "filter"))
	case TagGetModuleFilesByNameAndRoot:
		return getModuleFilesByNameAndRoot(db, strField(fields, "name"), strField(fields, "root"))
	case TagGetModuleDirsByNameAndRoot, TagGetDirectoriesInModule:
		return []any{}, nil // directory enumeration has no backing table; kept as a no-op stub matching the original
	default:
		return nil, fmt.Errorf("%w: unknown query tag %q", model.ErrValidation, tag)
	}
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func inPlaceholders(n int) string {
	s := ""
	for i := range n {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// symbolTypeClause expands the class/struct/enum shorthand into the SQL
// IN-list of concrete symbol_type values (§4.5 "Symbol-type grouping").
func symbolTypeClause(column string, symbolType string) (string, []any) {
	switch symbolType {
	case "class":
		return fmt.Sprintf(" AND %s IN ('class','UCLASS','UINTERFACE')", column), nil
	case "struct":
		return fmt.Sprintf(" AND %s IN ('struct','USTRUCT')", column), nil
	case "enum":
		return fmt.Sprintf(" AND %s IN ('enum','UENUM')", column), nil
	default:
		return fmt.Sprintf(" AND %s = ?", column), []any{symbolType}
	}
}

func strField(fields map[string]any, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func optStrField(fields map[string]any, key string) string {
	return strField(fields, key)
}

func strSliceField(fields map[string]any, key string) []string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intFieldOr(fields map[string]any, key string, def int) int {
	v, ok := fields[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}
