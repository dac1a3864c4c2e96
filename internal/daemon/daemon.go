package daemon

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taku25/unlscan/internal/config"
	"github.com/taku25/unlscan/internal/extractor"
	"github.com/taku25/unlscan/internal/model"
	"github.com/taku25/unlscan/internal/query"
	"github.com/taku25/unlscan/internal/refresh"
	"github.com/taku25/unlscan/internal/store"
)

// Daemon is the process-wide state of §4.6: the project registry, the
// per-project watcher, and the active-client set, each guarded by its own
// short-held mutex (§5 "Shared-resource policy" — no I/O inside a lock).
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	registry *Registry
	watcher  *watcher
	ex       *extractor.Extractor

	mu           sync.Mutex
	clients      map[int]struct{}
	lastActivity time.Time
}

// New builds a Daemon from cfg: it loads the registry from disk and
// re-attaches a watcher to every known project root (§6 "Registry
// persistence").
func New(cfg *config.Config, logger zerolog.Logger) (*Daemon, error) {
	ex, err := extractor.New()
	if err != nil {
		return nil, fmt.Errorf("daemon: init extractor: %w", err)
	}

	w, err := newWatcher(logger, ex)
	if err != nil {
		return nil, fmt.Errorf("daemon: init watcher: %w", err)
	}

	d := &Daemon{
		cfg: cfg, logger: logger,
		registry: loadRegistry(cfg.RegistryPath),
		watcher:  w, ex: ex,
		clients:      map[int]struct{}{},
		lastActivity: time.Now(),
	}

	for _, root := range d.registry.roots() {
		binding, ok := d.registry.get(root)
		if !ok {
			continue
		}
		if err := d.watcher.watch(root, binding.DBPath); err != nil {
			d.logger.Warn().Str("component", "daemon").Str("project_root", root).Err(err).Msg("re-attach watcher failed")
		}
	}

	return d, nil
}

// Serve binds the TCP listener and runs until it fails or the process is
// told to idle-shut-down (§4.6).
func (d *Daemon) Serve() error {
	addr := fmt.Sprintf("127.0.0.1:%d", d.cfg.ServerPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen on %s: %v", model.ErrIO, addr, err)
	}
	defer listener.Close()
	d.logger.Info().Str("component", "daemon").Str("addr", addr).Msg("listening")

	go d.livenessLoop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("%w: accept: %v", model.ErrIO, err)
		}
		go d.handleConnection(conn)
	}
}

// livenessLoop runs the client-pid sweep and the idle-shutdown check on the
// ticks configured by UNL_CLIENT_SWEEP_SECONDS (§4.6 "client liveness
// sweep").
func (d *Daemon) livenessLoop() {
	interval := time.Duration(d.cfg.ClientSweepSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		d.sweepClients()
	}
}

func (d *Daemon) sweepClients() {
	d.mu.Lock()
	for pid := range d.clients {
		if !isProcessAlive(pid) {
			d.logger.Info().Str("component", "daemon").Int("pid", pid).Msg("client disconnected")
			delete(d.clients, pid)
		}
	}
	empty := len(d.clients) == 0
	idleSince := d.lastActivity
	if !empty {
		d.lastActivity = time.Now()
	}
	d.mu.Unlock()

	if !empty || d.cfg.IdleShutdownSeconds <= 0 {
		return
	}
	if time.Since(idleSince) > time.Duration(d.cfg.IdleShutdownSeconds)*time.Second {
		d.logger.Info().Str("component", "daemon").Msg("idle timeout reached, shutting down")
		os.Exit(0)
	}
}

func (d *Daemon) touchActivity() {
	d.mu.Lock()
	d.lastActivity = time.Now()
	d.mu.Unlock()
}

func (d *Daemon) registerClient(pid int) {
	if pid <= 0 {
		return
	}
	d.mu.Lock()
	d.clients[pid] = struct{}{}
	d.mu.Unlock()
	d.touchActivity()
}

// handleConnection multiplexes one client's requests: reads are serial, but
// each request dispatches into its own goroutine so responses may return out
// of order (the msgid reconciles them, §5 "Ordering"). A single buffered
// writer goroutine drains a bounded channel so slow clients apply
// backpressure rather than unbounded memory growth.
func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	d.logger.Info().Str("component", "daemon").Str("conn_id", connID).Str("remote", conn.RemoteAddr().String()).Msg("connection opened")
	defer d.logger.Info().Str("component", "daemon").Str("conn_id", connID).Msg("connection closed")

	writeCh := make(chan []byte, 2000)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range writeCh {
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		}
	}()
	defer func() {
		close(writeCh)
		<-done
	}()

	var wg sync.WaitGroup
	for {
		payload, err := readFrame(conn)
		if err != nil {
			break
		}
		req, err := decodeRequest(payload)
		if err != nil {
			d.logger.Warn().Str("component", "daemon").Err(err).Msg("malformed frame")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.process(req, writeCh)
		}()
	}
	wg.Wait()
}

func (d *Daemon) process(req incomingRequest, writeCh chan<- []byte) {
	result, err := d.dispatch(req, writeCh)
	var errMsg string
	if err != nil {
		errMsg = err.Error()
		d.logger.Warn().Str("component", "daemon").Str("method", req.Method).Err(err).Msg("request failed")
		result = nil
	}
	frame, encErr := encodeResponse(req.MsgID, errMsg, result)
	if encErr != nil {
		d.logger.Error().Str("component", "daemon").Err(encErr).Msg("encode response")
		return
	}
	// Responses must not be dropped: a dropped frame leaves the client
	// waiting on a msgid that will never reconcile. The bounded channel
	// applies backpressure by blocking the producer instead (§5
	// "Backpressure").
	writeCh <- frame
}

func (d *Daemon) dispatch(req incomingRequest, writeCh chan<- []byte) (any, error) {
	switch req.Method {
	case model.MethodPing:
		return d.handlePing(req.Params)
	case model.MethodSetup:
		return d.handleSetup(req.Params)
	case model.MethodRefresh:
		return d.handleRefresh(req.Params, writeCh)
	case model.MethodWatch:
		return d.handleWatch(req.Params)
	case model.MethodQuery:
		return d.handleQuery(req.Params)
	case model.MethodScan:
		return d.handleScan(req.Params)
	case model.MethodStatus:
		return d.handleStatus(), nil
	case model.MethodListProjects:
		return d.handleListProjects(), nil
	case model.MethodDeleteProject:
		return d.handleDeleteProject(req.Params)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", model.ErrProtocol, req.Method)
	}
}

func (d *Daemon) handlePing(params map[string]any) (any, error) {
	pid, _ := intField(params, "pid")
	d.registerClient(pid)
	return "pong", nil
}

func (d *Daemon) handleSetup(params map[string]any) (any, error) {
	root, err := requireStrField(params, "project_root")
	if err != nil {
		return nil, err
	}
	dbPath, err := requireStrField(params, "db_path")
	if err != nil {
		return nil, err
	}
	vcsHash, _ := strField(params, "vcs_hash")

	st, err := store.Open(dbPath, d.cfg.BusyTimeoutMS)
	if err != nil {
		return nil, err
	}
	st.Close()

	d.registry.set(root, model.ProjectBinding{DBPath: dbPath, VCSHash: vcsHash})
	if err := d.registry.save(); err != nil {
		return nil, err
	}
	if err := d.watcher.watch(root, dbPath); err != nil {
		d.logger.Warn().Str("component", "daemon").Str("project_root", root).Err(err).Msg("watch on setup failed")
	}
	return map[string]any{"status": "ok"}, nil
}

func (d *Daemon) handleRefresh(params map[string]any, writeCh chan<- []byte) (any, error) {
	root, err := requireStrField(params, "project_root")
	if err != nil {
		return nil, err
	}
	engineRoot, _ := strField(params, "engine_root")
	scope, _ := strField(params, "scope")
	vcsHash, _ := strField(params, "vcs_hash")
	excludes, _ := strSliceField(params, "excludes_directory")
	includes, _ := strSliceField(params, "include_extensions")

	dbPath, explicit := strField(params, "db_path")
	binding, known := d.registry.get(root)
	switch {
	case explicit:
		binding = model.ProjectBinding{DBPath: dbPath, VCSHash: vcsHash}
		d.registry.set(root, binding)
	case known:
		binding.VCSHash = vcsHash
		d.registry.set(root, binding)
	default:
		return nil, fmt.Errorf("%w: project not registered: %s", model.ErrNotFound, root)
	}
	if err := d.registry.save(); err != nil {
		return nil, err
	}

	st, err := store.Open(binding.DBPath, d.cfg.BusyTimeoutMS)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	reporter := notifyReporter{writeCh: writeCh}
	req := refresh.Request{
		ProjectRoot: root, EngineRoot: engineRoot, Scope: model.RefreshScope(scope),
		ExcludeDirectories: excludes, IncludeExtensions: includes,
	}
	if err := refresh.Run(st, d.ex, req, reporter); err != nil {
		return nil, err
	}
	d.touchActivity()
	return "Refresh success", nil
}

func (d *Daemon) handleWatch(params map[string]any) (any, error) {
	root, err := requireStrField(params, "project_root")
	if err != nil {
		return nil, err
	}
	dbPath, ok := strField(params, "db_path")
	if !ok {
		binding, known := d.registry.get(root)
		if !known {
			return nil, fmt.Errorf("%w: project not registered: %s", model.ErrNotFound, root)
		}
		dbPath = binding.DBPath
	}
	if err := d.watcher.watch(root, dbPath); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	return "Watch started", nil
}

func (d *Daemon) handleQuery(params map[string]any) (any, error) {
	root, err := requireStrField(params, "project_root")
	if err != nil {
		return nil, err
	}
	kind, err := requireStrField(params, "kind")
	if err != nil {
		return nil, err
	}
	binding, known := d.registry.get(root)
	if !known {
		return nil, fmt.Errorf("%w: project not registered: %s", model.ErrNotFound, root)
	}

	st, err := store.Open(binding.DBPath, d.cfg.BusyTimeoutMS)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return query.Dispatch(st.DB, kind, params)
}

func (d *Daemon) handleScan(params map[string]any) (any, error) {
	rawFiles, _ := params["files"].([]any)
	if len(rawFiles) == 0 {
		return nil, fmt.Errorf("%w: scan requires at least one file", model.ErrValidation)
	}

	var dbPath string
	results := make([]model.ParseResult, 0, len(rawFiles))
	for _, raw := range rawFiles {
		fields, _ := raw.(map[string]any)
		path, _ := strField(fields, "path")
		oldHash, _ := strField(fields, "old_hash")
		moduleID, _ := intField(fields, "module_id")
		thisDB, _ := strField(fields, "db_path")
		if thisDB != "" {
			dbPath = thisDB
		}
		info, err := os.Stat(path)
		mtime := int64(0)
		if err == nil {
			mtime = info.ModTime().Unix()
		}
		results = append(results, d.ex.Extract(model.InputFile{
			Path: path, Mtime: mtime, OldHash: oldHash, ModuleID: int64(moduleID), DBPath: dbPath,
		}))
	}
	if dbPath == "" {
		return nil, fmt.Errorf("%w: scan requires a db_path", model.ErrValidation)
	}

	st, err := store.Open(dbPath, d.cfg.BusyTimeoutMS)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.BulkUpsert(results, nil); err != nil {
		return nil, err
	}
	return len(results), nil
}

func (d *Daemon) handleStatus() any {
	d.mu.Lock()
	clients := make([]int, 0, len(d.clients))
	for pid := range d.clients {
		clients = append(clients, pid)
	}
	d.mu.Unlock()

	roots := d.registry.roots()
	return map[string]any{"status": "running", "active_projects": roots, "active_clients": clients}
}

func (d *Daemon) handleListProjects() any {
	snapshot := d.registry.snapshot()
	list := make([]map[string]any, 0, len(snapshot))
	for root, binding := range snapshot {
		list = append(list, map[string]any{"root": root, "db_path": binding.DBPath, "vcs_hash": binding.VCSHash})
	}
	return list
}

func (d *Daemon) handleDeleteProject(params map[string]any) (any, error) {
	root, err := requireStrField(params, "project_root")
	if err != nil {
		return nil, err
	}
	if !d.registry.delete(root) {
		return nil, fmt.Errorf("%w: project not found: %s", model.ErrNotFound, root)
	}
	if err := d.registry.save(); err != nil {
		return nil, err
	}
	return "Deleted", nil
}

// notifyReporter adapts the refresh package's model.ProgressReporter
// interface to a progress notification frame sent on the connection's
// writer channel (§4.6 "streams progress notifications").
type notifyReporter struct {
	writeCh chan<- []byte
}

func (r notifyReporter) Report(stage string, current, total int, message string) {
	payload := map[string]any{
		"type": "progress", "stage": stage, "current": current, "total": total, "message": message,
	}
	frame, err := encodeNotification(model.MethodProgress, payload)
	if err != nil {
		return
	}
	// Progress notifications are advisory — unlike the final response, a
	// dropped one doesn't strand the client waiting on an unreconciled
	// msgid, so this send stays non-blocking.
	select {
	case r.writeCh <- frame:
	default:
	}
}

func strField(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

func requireStrField(params map[string]any, key string) (string, error) {
	v, ok := strField(params, key)
	if !ok {
		return "", fmt.Errorf("%w: missing required field %q", model.ErrValidation, key)
	}
	return v, nil
}

func intField(params map[string]any, key string) (int, bool) {
	n, ok := asInt(params[key])
	return int(n), ok
}

func strSliceField(params map[string]any, key string) ([]string, bool) {
	raw, ok := params[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// DefaultRegistryPath is used by cmd/unlscand when UNL_REGISTRY_PATH is
// unset, keeping the registry beside the rest of the daemon's state.
func DefaultRegistryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "unlscan-registry.json"
	}
	return filepath.Join(dir, "unlscan", "registry.json")
}
