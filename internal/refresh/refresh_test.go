package refresh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taku25/unlscan/internal/extractor"
	"github.com/taku25/unlscan/internal/model"
	"github.com/taku25/unlscan/internal/store"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunIndexesHeadersEndToEnd(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "MyGame.uproject"), "{}")
	mkfile(t, filepath.Join(root, "Source", "MyGame", "MyGame.Build.cs"),
		`PublicDependencyModuleNames.AddRange(new string[] { "Core" });`)
	mkfile(t, filepath.Join(root, "Source", "MyGame", "Foo.h"), `
class AFoo : public AActor
{
public:
	void DoThing();
};
`)

	dbPath := filepath.Join(t.TempDir(), "unl.db")
	st, err := store.Open(dbPath, 5000)
	require.NoError(t, err)
	defer st.DB.Close()

	ex, err := extractor.New()
	require.NoError(t, err)

	req := Request{ProjectRoot: root, Scope: model.ScopeProject}
	require.NoError(t, Run(st, ex, req, nil))

	var fileCount int
	require.NoError(t, st.DB.QueryRow(`SELECT count(*) FROM files WHERE filename = 'Foo.h'`).Scan(&fileCount))
	assert.Equal(t, 1, fileCount)

	var className string
	require.NoError(t, st.DB.QueryRow(`SELECT name FROM classes WHERE name = 'AFoo'`).Scan(&className))
	assert.Equal(t, "AFoo", className)

	var moduleCount int
	require.NoError(t, st.DB.QueryRow(`SELECT count(*) FROM modules WHERE name = 'MyGame'`).Scan(&moduleCount))
	assert.Equal(t, 1, moduleCount)
}

func TestRunSecondPassSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "MyGame.uproject"), "{}")
	mkfile(t, filepath.Join(root, "Source", "MyGame", "Foo.h"), "class AFoo {};")

	dbPath := filepath.Join(t.TempDir(), "unl.db")
	st, err := store.Open(dbPath, 5000)
	require.NoError(t, err)
	defer st.DB.Close()

	ex, err := extractor.New()
	require.NoError(t, err)

	req := Request{ProjectRoot: root, Scope: model.ScopeProject}
	require.NoError(t, Run(st, ex, req, nil))
	require.NoError(t, Run(st, ex, req, nil))

	var fileCount int
	require.NoError(t, st.DB.QueryRow(`SELECT count(*) FROM files WHERE filename = 'Foo.h'`).Scan(&fileCount))
	assert.Equal(t, 1, fileCount, "re-running refresh over unchanged files must not duplicate rows")
}

func TestRunDeletesStaleFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "MyGame.uproject"), "{}")
	headerPath := filepath.Join(root, "Source", "MyGame", "Foo.h")
	mkfile(t, headerPath, "class AFoo {};")

	dbPath := filepath.Join(t.TempDir(), "unl.db")
	st, err := store.Open(dbPath, 5000)
	require.NoError(t, err)
	defer st.DB.Close()

	ex, err := extractor.New()
	require.NoError(t, err)

	req := Request{ProjectRoot: root, Scope: model.ScopeProject}
	require.NoError(t, Run(st, ex, req, nil))

	require.NoError(t, os.Remove(headerPath))
	require.NoError(t, Run(st, ex, req, nil))

	var fileCount int
	require.NoError(t, st.DB.QueryRow(`SELECT count(*) FROM files WHERE filename = 'Foo.h'`).Scan(&fileCount))
	assert.Equal(t, 0, fileCount)
}
