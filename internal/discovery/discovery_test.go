package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taku25/unlscan/internal/model"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseBuildCS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MyGame.Build.cs")
	mkfile(t, path, `
using UnrealBuildTool;
public class MyGame : ModuleRules
{
	public MyGame(ReadOnlyTargetRules Target) : base(Target)
	{
		PublicDependencyModuleNames.AddRange(new string[] { "Core", "CoreUObject", "Engine" });
		PrivateDependencyModuleNames.Add("Slate");
	}
}
`)

	pub, priv := parseBuildCS(path)
	assert.ElementsMatch(t, []string{"Core", "CoreUObject", "Engine"}, pub)
	assert.ElementsMatch(t, []string{"Slate"}, priv)
}

func TestDiscoverFindsModuleAndComponent(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "MyGame.uproject"), "{}")
	mkfile(t, filepath.Join(root, "Source", "MyGame", "MyGame.Build.cs"), `
PublicDependencyModuleNames.AddRange(new string[] { "Core" });
`)
	mkfile(t, filepath.Join(root, "Source", "MyGame", "MyGame.h"), "class AFoo {};")
	mkfile(t, filepath.Join(root, "Intermediate", "Generated.h"), "// should be excluded")

	result, err := Discover(Config{
		ProjectRoot:        root,
		Scope:              model.ScopeProject,
		ExcludeDirectories: []string{"Intermediate", ".git"},
		IncludeExtensions:  []string{"*.h", "*.cpp"},
	})
	require.NoError(t, err)

	var gameComponent *model.Component
	for i, c := range result.Components {
		if c.Type == model.ComponentGame {
			gameComponent = &result.Components[i]
		}
	}
	require.NotNil(t, gameComponent)
	assert.NotEmpty(t, gameComponent.UprojectPath)

	var gameModule *model.Module
	for i, m := range result.Modules {
		if m.Name == "MyGame" {
			gameModule = &result.Modules[i]
		}
	}
	require.NotNil(t, gameModule)
	assert.Contains(t, gameModule.DeepDependencies, "Core")

	var paths []string
	for _, f := range result.Files {
		paths = append(paths, f.Path)
	}
	found := false
	for _, p := range paths {
		if filepath.Base(p) == "MyGame.h" {
			found = true
		}
		assert.NotContains(t, p, "Intermediate", "excluded directory must not be walked")
	}
	assert.True(t, found, "MyGame.h should have been discovered")
}

func TestDiscoverAddsPseudoModules(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "dummy.txt"), "x")

	result, err := Discover(Config{ProjectRoot: root, Scope: model.ScopeProject})
	require.NoError(t, err)

	var names []string
	for _, m := range result.Modules {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "_GameConfig")
}

func TestDiscoverMissingRootErrors(t *testing.T) {
	_, err := Discover(Config{ProjectRoot: "/nonexistent/path/xyz"})
	require.Error(t, err)
	assert.Equal(t, model.KindIO, model.ClassifyError(err))
}
