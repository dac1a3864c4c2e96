package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/taku25/unlscan/internal/config"
	"github.com/taku25/unlscan/internal/model"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := &config.Config{
		ServerPort: 0, RegistryPath: filepath.Join(t.TempDir(), "registry.json"),
		BusyTimeoutMS: 5000, IdleShutdownSeconds: 0, ClientSweepSeconds: 60,
	}
	d, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { d.watcher.close() })
	return d
}

func newTestProject(t *testing.T) (root, dbPath string) {
	t.Helper()
	root = t.TempDir()
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
	dbPath = filepath.Join(t.TempDir(), "unl.db")
	return root, dbPath
}

func TestHandlePingRegistersClient(t *testing.T) {
	d := newTestDaemon(t)
	res, err := d.dispatch(incomingRequest{Method: "ping", Params: map[string]any{"pid": int64(os.Getpid())}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", res)

	d.mu.Lock()
	_, tracked := d.clients[os.Getpid()]
	d.mu.Unlock()
	assert.True(t, tracked)
}

func TestHandleSetupThenRefreshThenQuery(t *testing.T) {
	d := newTestDaemon(t)
	root, dbPath := newTestProject(t)

	_, err := d.dispatch(incomingRequest{Method: "setup", Params: map[string]any{
		"project_root": root, "db_path": dbPath,
	}}, nil)
	require.NoError(t, err)

	binding, ok := d.registry.get(root)
	require.True(t, ok)
	assert.Equal(t, dbPath, binding.DBPath)

	writeCh := make(chan []byte, 10)
	res, err := d.dispatch(incomingRequest{Method: "refresh", Params: map[string]any{
		"project_root": root,
	}}, writeCh)
	require.NoError(t, err)
	assert.Equal(t, "Refresh success", res)

	result, err := d.dispatch(incomingRequest{Method: "query", Params: map[string]any{
		"project_root": root, "kind": "FindClassByName", "name": "AFoo",
	}}, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestHandleQueryUnknownProjectIsNotFound(t *testing.T) {
	d := newTestDaemon(t)
	_, err := d.dispatch(incomingRequest{Method: "query", Params: map[string]any{
		"project_root": "/nope", "kind": "GetModules",
	}}, nil)
	require.Error(t, err)
}

func TestHandleListProjectsAndStatus(t *testing.T) {
	d := newTestDaemon(t)
	root, dbPath := newTestProject(t)
	_, err := d.dispatch(incomingRequest{Method: "setup", Params: map[string]any{
		"project_root": root, "db_path": dbPath,
	}}, nil)
	require.NoError(t, err)

	list, err := d.dispatch(incomingRequest{Method: "list_projects"}, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	status, err := d.dispatch(incomingRequest{Method: "status"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "running", status.(map[string]any)["status"])
}

func TestHandleDeleteProject(t *testing.T) {
	d := newTestDaemon(t)
	root, dbPath := newTestProject(t)
	_, err := d.dispatch(incomingRequest{Method: "setup", Params: map[string]any{
		"project_root": root, "db_path": dbPath,
	}}, nil)
	require.NoError(t, err)

	_, err = d.dispatch(incomingRequest{Method: "delete_project", Params: map[string]any{
		"project_root": root,
	}}, nil)
	require.NoError(t, err)

	_, ok := d.registry.get(root)
	assert.False(t, ok)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := newTestDaemon(t)
	_, err := d.dispatch(incomingRequest{Method: "not_a_method"}, nil)
	require.Error(t, err)
}

func TestWireRoundTrip(t *testing.T) {
	payload, err := msgpack.Marshal([4]any{model.MsgRequest, uint64(7), "ping", map[string]any{"pid": int64(1)}})
	require.NoError(t, err)

	req, err := decodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), req.MsgID)
	assert.Equal(t, "ping", req.Method)
	pid, ok := asInt(req.Params["pid"])
	require.True(t, ok)
	assert.Equal(t, int64(1), pid)

	respPayload, err := encodeResponse(7, "", "pong")
	require.NoError(t, err)
	assert.NotEmpty(t, respPayload)
}
