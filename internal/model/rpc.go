package model

// Wire message type tags, per §4.6: request=0, response=1, notification=2.
const (
	MsgRequest      = 0
	MsgResponse     = 1
	MsgNotification = 2
)

// RPC method names (§6).
const (
	MethodPing          = "ping"
	MethodSetup         = "setup"
	MethodRefresh       = "refresh"
	MethodWatch         = "watch"
	MethodQuery         = "query"
	MethodScan          = "scan"
	MethodStatus        = "status"
	MethodListProjects  = "list_projects"
	MethodDeleteProject = "delete_project"
	MethodProgress      = "progress" // notification-only
)

// Request is the decoded form of a `[0, msgid, method, params]` frame.
// Params stays as raw msgpack-decoded `any` (a map[string]any in practice)
// until the method handler asserts it into a concrete params struct.
type Request struct {
	MsgID  uint64
	Method string
	Params any
}

// Response is the `[1, msgid, error, result]` frame. Error is nil on
// success; ErrKind classifies it for clients that want to branch on kind
// rather than message text.
type Response struct {
	MsgID   uint64
	ErrKind ErrorKind
	ErrMsg  string
	Result  any
}

// Notification is the `[2, method, params]` frame. Only "progress" is
// currently emitted.
type Notification struct {
	Method string
	Params any
}

// SetupParams is the `setup` method's params shape.
type SetupParams struct {
	ProjectRoot       string   `msgpack:"project_root"`
	DBPath            string   `msgpack:"db_path"`
	ExcludesDirectory []string `msgpack:"excludes_directory"`
	IncludeExtensions []string `msgpack:"include_extensions"`
	VCSHash           string   `msgpack:"vcs_hash"`
}

// RefreshScope constrains which roots a refresh walks (§4.3).
type RefreshScope string

const (
	ScopeFull    RefreshScope = "Full"
	ScopeEngine  RefreshScope = "Engine"
	ScopeProject RefreshScope = "Project"
)

// RefreshParams is the `refresh` method's params shape.
type RefreshParams struct {
	ProjectRoot       string       `msgpack:"project_root"`
	EngineRoot        string       `msgpack:"engine_root"`
	DBPath            string       `msgpack:"db_path"`
	ExcludesDirectory []string     `msgpack:"excludes_directory"`
	IncludeExtensions []string     `msgpack:"include_extensions"`
	Scope             RefreshScope `msgpack:"scope"`
	VCSHash           string       `msgpack:"vcs_hash"`
}

// WatchParams is the `watch` method's params shape.
type WatchParams struct {
	ProjectRoot string `msgpack:"project_root"`
	DBPath      string `msgpack:"db_path"`
}

// QueryParams is the `query` method's params shape; Fields carries the
// tag-specific arguments as a raw map, decoded further by internal/query.
type QueryParams struct {
	ProjectRoot string         `msgpack:"project_root"`
	Kind        string         `msgpack:"kind"`
	Fields      map[string]any `msgpack:"-"`
}

// ScanParams is the `scan` method's params shape.
type ScanParams struct {
	Files []InputFile `msgpack:"files"`
}

// DeleteProjectParams is the `delete_project` method's params shape.
type DeleteProjectParams struct {
	ProjectRoot string `msgpack:"project_root"`
}

// PingParams is the `ping` method's params shape.
type PingParams struct {
	PID int `msgpack:"pid"`
}

// ProjectBinding is one entry of the on-disk JSON registry (§6 "Persisted
// state"): `{"<project_root>": {db_path, vcs_hash}}`.
type ProjectBinding struct {
	DBPath  string `json:"db_path"`
	VCSHash string `json:"vcs_hash"`
}
