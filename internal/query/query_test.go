package query

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taku25/unlscan/internal/model"
	"github.com/taku25/unlscan/internal/store"
)

// openFixture opens an in-memory store pre-loaded with one module
// ("Engine") owning two headers: "Foo.h" declares AFoo : public AActor
// with one virtual method and one property, plus an unrelated enum, and
// "Bar.h" declares ABar : public AFoo.
func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	st, err := store.Open("file::memory:?cache=shared", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { st.DB.Close() })

	modules := []model.Module{
		{Name: "Engine", Type: model.ModuleRuntime, Scope: "Runtime", RootPath: "/proj/Engine", OwnerName: "Proj"},
	}
	_, globalID, err := st.ResetComponentsAndModules(nil, modules, "/proj")
	require.NoError(t, err)

	var engineModID int64
	require.NoError(t, st.DB.QueryRow(`SELECT id FROM modules WHERE name = 'Engine'`).Scan(&engineModID))
	_ = globalID

	results := []model.ParseResult{
		{
			Path: "/proj/Engine/Foo.h", Status: model.StatusParsed, ModuleID: engineModID,
			Data: &model.ParseData{
				NewHash: "hash1",
				Classes: []model.ClassInfo{
					{
						ClassName: "AFoo", SymbolType: model.SymbolUClass, BaseClasses: []string{"AActor"}, Line: 10,
						Members: []model.MemberInfo{
							{Name: "DoThing", MemType: model.MemberFunction, Flags: "virtual,UFUNCTION", Access: model.AccessPublic, ReturnType: "void"},
							{Name: "Health", MemType: model.MemberProperty, Flags: "UPROPERTY", Access: model.AccessPublic, ReturnType: "float"},
						},
					},
					{
						ClassName: "EFooState", SymbolType: model.SymbolUEnum, Line: 20,
						Members: []model.MemberInfo{
							{Name: "Idle", MemType: model.MemberEnumItem},
							{Name: "Active", MemType: model.MemberEnumItem},
						},
					},
				},
			},
		},
		{
			Path: "/proj/Engine/Bar.h", Status: model.StatusParsed, ModuleID: engineModID,
			Data: &model.ParseData{
				NewHash: "hash2",
				Classes: []model.ClassInfo{
					{ClassName: "ABar", SymbolType: model.SymbolUClass, BaseClasses: []string{"AFoo"}, Line: 5},
				},
			},
		},
	}
	require.NoError(t, st.BulkUpsert(results, nil))

	return st.DB
}

func TestFindDerivedClasses(t *testing.T) {
	db := openFixture(t)
	rows, err := findDerivedClasses(db, "AActor")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AFoo", rows[0].ClassName)
}

func TestGetRecursiveDerivedClasses(t *testing.T) {
	db := openFixture(t)
	rows, err := getRecursiveDerivedClasses(db, "AActor")
	require.NoError(t, err)
	var names []string
	for _, r := range rows {
		names = append(names, r.ClassName)
	}
	assert.ElementsMatch(t, []string{"AFoo", "ABar"}, names, "ABar derives from AFoo which derives from AActor")
}

func TestGetRecursiveParentClasses(t *testing.T) {
	db := openFixture(t)
	rows, err := getRecursiveParentClasses(db, "ABar")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	for _, r := range rows {
		assert.NotEqual(t, "ABar", r.ClassName, "the seed class must not be returned")
	}

	assert.Equal(t, "AFoo", rows[0].ClassName, "nearest parent must come first")
	assert.Equal(t, int64(1), rows[0].Level)
}

func TestGetClassMembers(t *testing.T) {
	db := openFixture(t)
	members, err := getClassMembers(db, "AFoo")
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestGetClassMethodsAndProperties(t *testing.T) {
	db := openFixture(t)
	methods, err := getClassMethods(db, "AFoo")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "DoThing", methods[0].Name)

	props, err := getClassProperties(db, "AFoo")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Health", props[0].Name)
}

func TestGetClassMembersRecursiveInheritsParentMembers(t *testing.T) {
	db := openFixture(t)
	members, err := getClassMembersRecursive(db, "ABar", "")
	require.NoError(t, err)

	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "DoThing", "ABar should inherit AFoo's members")
	assert.Contains(t, names, "Health")
}

func TestGetEnumValues(t *testing.T) {
	db := openFixture(t)
	values, err := getEnumValues(db, "EFooState")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Idle", "Active"}, values)
}

func TestFindClassByName(t *testing.T) {
	db := openFixture(t)
	rec, err := findClassByName(db, "AFoo")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "UCLASS", rec.SymbolType)
	assert.Equal(t, "AActor", rec.BaseClass)
}

func TestFindClassByNameMissingReturnsNil(t *testing.T) {
	db := openFixture(t)
	rec, err := findClassByName(db, "NoSuchClass")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateMemberReturnType(t *testing.T) {
	db := openFixture(t)
	res, err := updateMemberReturnType(db, "AFoo", "DoThing", "bool")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res["updated"])

	members, err := getClassMembers(db, "AFoo")
	require.NoError(t, err)
	for _, m := range members {
		if m.Name == "DoThing" {
			assert.Equal(t, "bool", m.ReturnType)
		}
	}
}

func TestGetFileSymbols(t *testing.T) {
	db := openFixture(t)
	classes, err := getFileSymbols(db, "/proj/Engine/Foo.h")
	require.NoError(t, err)
	require.Len(t, classes, 2)

	var fooClass *FileSymbolClass
	for i := range classes {
		if classes[i].Name == "AFoo" {
			fooClass = &classes[i]
		}
	}
	require.NotNil(t, fooClass)
	assert.Equal(t, "UClass", fooClass.Kind)
	require.Len(t, fooClass.Methods, 1)
	assert.Equal(t, "UFunction", fooClass.Methods[0].Kind)
	require.Len(t, fooClass.Fields, 1)
	assert.Equal(t, "UProperty", fooClass.Fields[0].Kind)
}

func TestGetVirtualFunctionsInChain(t *testing.T) {
	db := openFixture(t)
	funcs, err := getVirtualFunctionsInChain(db, "ABar")
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.Equal(t, "DoThing", funcs[0].Member.Name)
	assert.Equal(t, "AFoo", funcs[0].ClassName)
}

func TestFindSymbolInInheritanceChain(t *testing.T) {
	db := openFixture(t)
	hit, err := findSymbolInInheritanceChain(db, "ABar", "Health", "")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "AFoo", hit.ClassName)
	assert.Equal(t, int64(1), hit.Level)
}

func TestGetModuleByNameAndComponents(t *testing.T) {
	db := openFixture(t)
	mod, err := getModuleByName(db, "Engine")
	require.NoError(t, err)
	require.NotNil(t, mod)
	assert.Equal(t, "Engine", mod.Name)

	mods, err := getModules(db)
	require.NoError(t, err)
	assert.NotEmpty(t, mods)
}

func TestDispatchUnknownTagIsValidationError(t *testing.T) {
	db := openFixture(t)
	_, err := Dispatch(db, "NotATag", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.ClassifyError(err))
}

func TestDispatchFindDerivedClasses(t *testing.T) {
	db := openFixture(t)
	result, err := Dispatch(db, TagFindDerivedClasses, map[string]any{"base_class": "AActor"})
	require.NoError(t, err)
	derived, ok := result.([]DerivedClass)
	require.True(t, ok)
	require.Len(t, derived, 1)
}

func TestGetClassesInModulesGroupsBySymbolType(t *testing.T) {
	db := openFixture(t)
	result, err := getClassesInModules(db, []string{"Engine"}, "class")
	require.NoError(t, err)
	grouped, ok := result.([]ClassesByPath)
	require.True(t, ok)
	assert.NotEmpty(t, grouped)
}
