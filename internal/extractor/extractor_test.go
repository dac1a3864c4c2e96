package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taku25/unlscan/internal/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const plainHeader = `
class AFoo : public AActor
{
public:
	void DoThing();
	int Count;
protected:
	bool bFlag;
};
`

func TestExtractPlainClass(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	path := writeTemp(t, "Foo.h", plainHeader)
	result := ex.Extract(model.InputFile{Path: path, Mtime: 1})

	require.Equal(t, model.StatusParsed, result.Status)
	require.NotNil(t, result.Data)
	require.Len(t, result.Data.Classes, 1)

	cls := result.Data.Classes[0]
	assert.Equal(t, "AFoo", cls.ClassName)
	assert.Equal(t, model.SymbolClass, cls.SymbolType)
	assert.Contains(t, cls.BaseClasses, "AActor")

	var names []string
	for _, m := range cls.Members {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "DoThing")
	assert.Contains(t, names, "Count")
	assert.Contains(t, names, "bFlag")
}

const uclassHeader = `
UCLASS(Blueprintable)
class AWeapon : public AActor
{
public:
	UFUNCTION(BlueprintCallable)
	void Fire();

	UPROPERTY(EditAnywhere)
	int Ammo;
};
`

func TestExtractUClassAndMacroFlags(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	path := writeTemp(t, "Weapon.h", uclassHeader)
	result := ex.Extract(model.InputFile{Path: path, Mtime: 1})

	require.Equal(t, model.StatusParsed, result.Status)
	require.Len(t, result.Data.Classes, 1)

	cls := result.Data.Classes[0]
	assert.Equal(t, "AWeapon", cls.ClassName)
	assert.Equal(t, model.SymbolUClass, cls.SymbolType)

	members := map[string]model.MemberInfo{}
	for _, m := range cls.Members {
		members[m.Name] = m
	}
	require.Contains(t, members, "Fire")
	assert.Contains(t, members["Fire"].Flags, "UFUNCTION")
	require.Contains(t, members, "Ammo")
	assert.Contains(t, members["Ammo"].Flags, "UPROPERTY")
}

func TestExtractCacheHitSkipsParse(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	path := writeTemp(t, "Foo.h", plainHeader)
	first := ex.Extract(model.InputFile{Path: path, Mtime: 1})
	require.Equal(t, model.StatusParsed, first.Status)

	second := ex.Extract(model.InputFile{Path: path, Mtime: 2, OldHash: first.Data.NewHash})
	assert.Equal(t, model.StatusCacheHit, second.Status)
	assert.Nil(t, second.Data)
}

func TestExtractMissingFileReturnsIOError(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	result := ex.Extract(model.InputFile{Path: filepath.Join(t.TempDir(), "missing.h"), Mtime: 1})
	assert.Equal(t, model.StatusError, result.Status)
	assert.Equal(t, model.KindIO, model.ClassifyError(result.Err))
}

const delegateHeader = `
DECLARE_DYNAMIC_MULTICAST_DELEGATE_OneParam(FOnHealthChanged, float, NewHealth);
`

func TestExtractDelegateDeclaration(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	path := writeTemp(t, "Delegates.h", delegateHeader)
	result := ex.Extract(model.InputFile{Path: path, Mtime: 1})

	require.Equal(t, model.StatusParsed, result.Status)
	require.Len(t, result.Data.Classes, 1)
	assert.Equal(t, "FOnHealthChanged", result.Data.Classes[0].ClassName)
}
