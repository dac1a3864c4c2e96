package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taku25/unlscan/internal/model"
)

func openMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func TestInitCreatesAllTables(t *testing.T) {
	s := openMemStore(t)

	tables := []string{"modules", "files", "classes", "members", "enum_values", "inheritance", "project_meta", "components"}
	for _, tbl := range tables {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, tbl).Scan(&name)
		assert.NoError(t, err, "table %s should exist", tbl)
		assert.Equal(t, tbl, name)
	}
}

func TestSetMetaGetMetaRoundTrip(t *testing.T) {
	s := openMemStore(t)

	_, ok, err := s.GetMeta("schema_version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMeta("schema_version", "1"))
	val, ok, err := s.GetMeta("schema_version")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	require.NoError(t, s.SetMeta("schema_version", "2"))
	val, ok, err = s.GetMeta("schema_version")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", val)
}

func TestResolveModuleIDForPathLongestPrefix(t *testing.T) {
	s := openMemStore(t)

	_, err := s.DB.Exec(`INSERT INTO modules (name, root_path) VALUES (?, ?)`, "Engine", "/proj/Engine")
	require.NoError(t, err)
	_, err = s.DB.Exec(`INSERT INTO modules (name, root_path) VALUES (?, ?)`, "EnginePlugin", "/proj/Engine/Plugins/Foo")
	require.NoError(t, err)

	id, ok, err := s.ResolveModuleIDForPath("/proj/Engine/Plugins/Foo/Source/Foo.h")
	require.NoError(t, err)
	require.True(t, ok)

	var name string
	require.NoError(t, s.DB.QueryRow(`SELECT name FROM modules WHERE id = ?`, id).Scan(&name))
	assert.Equal(t, "EnginePlugin", name, "longest matching root_path should win over its shorter parent")

	_, ok, err = s.ResolveModuleIDForPath("/other/unrelated.h")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkUpsertRoundTrip(t *testing.T) {
	s := openMemStore(t)

	results := []model.ParseResult{
		{
			Path:   "/proj/Foo.h",
			Status: model.StatusParsed,
			Mtime:  1000,
			Data: &model.ParseData{
				NewHash: "abc123",
				Parser:  "cpp",
				Classes: []model.ClassInfo{
					{
						ClassName:   "AFoo",
						Namespace:   "",
						BaseClasses: []string{"AActor"},
						SymbolType:  model.SymbolUClass,
						Line:        10,
						Members: []model.MemberInfo{
							{Name: "DoThing", MemType: model.MemberFunction, Access: model.AccessPublic, ReturnType: "void", LineNumber: 12},
							{Name: "bFlag", MemType: model.MemberProperty, Access: model.AccessPublic, LineNumber: 13},
						},
					},
				},
			},
		},
		{
			Path:   "/proj/broken.h",
			Status: model.StatusError,
			Mtime:  1000,
			Err:    assert.AnError,
		},
	}

	require.NoError(t, s.BulkUpsert(results, nil))

	var fileCount int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM files`).Scan(&fileCount))
	assert.Equal(t, 1, fileCount, "errored file must not be persisted")

	var className string
	require.NoError(t, s.DB.QueryRow(`SELECT name FROM classes WHERE name = 'AFoo'`).Scan(&className))
	assert.Equal(t, "AFoo", className)

	var memberCount int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM members`).Scan(&memberCount))
	assert.Equal(t, 2, memberCount)

	var parentName string
	require.NoError(t, s.DB.QueryRow(`SELECT parent_name FROM inheritance`).Scan(&parentName))
	assert.Equal(t, "AActor", parentName)
}

func TestResetComponentsAndModulesAddsGlobal(t *testing.T) {
	s := openMemStore(t)

	components := []model.Component{
		{Name: "MyGame", Type: model.ComponentGame, RootPath: "/proj"},
	}
	modules := []model.Module{
		{Name: "MyGame", Type: model.ModuleRuntime, Scope: "Game", RootPath: "/proj/Source/MyGame"},
	}

	rootToID, globalID, err := s.ResetComponentsAndModules(components, modules, "/proj")
	require.NoError(t, err)
	assert.Contains(t, rootToID, "/proj/Source/MyGame")
	assert.NotZero(t, globalID)

	var moduleCount int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM modules`).Scan(&moduleCount))
	assert.Equal(t, 2, moduleCount, "declared module plus synthetic _Global")

	var componentCount int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM components`).Scan(&componentCount))
	assert.Equal(t, 1, componentCount)
}

func TestDeleteStaleFilesCascades(t *testing.T) {
	s := openMemStore(t)

	results := []model.ParseResult{
		{
			Path:   "/proj/Stale.h",
			Status: model.StatusParsed,
			Mtime:  1,
			Data: &model.ParseData{
				NewHash: "x",
				Classes: []model.ClassInfo{{ClassName: "AStale", SymbolType: model.SymbolClass, Line: 1}},
			},
		},
	}
	require.NoError(t, s.BulkUpsert(results, nil))

	var classCountBefore int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM classes`).Scan(&classCountBefore))
	require.Equal(t, 1, classCountBefore)

	require.NoError(t, s.DeleteStaleFiles([]string{"/proj/Stale.h"}))

	var fileCount, classCount int
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM files`).Scan(&fileCount))
	require.NoError(t, s.DB.QueryRow(`SELECT count(*) FROM classes`).Scan(&classCount))
	assert.Equal(t, 0, fileCount)
	assert.Equal(t, 0, classCount, "cascade delete must remove classes owned by the stale file")
}
