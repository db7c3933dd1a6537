// Package supervisor spawns, initializes, health-tracks, and restarts the
// capability-server child processes (or remote SSE endpoints) that back the
// Tool Registry: a server-map-with-status shape, extended with a restart-backoff state
// machine built on github.com/cenkalti/backoff/v4.
package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/localmind/cortex/internal/errs"
	"github.com/localmind/cortex/internal/logging"
	"github.com/localmind/cortex/internal/rpctransport"
)

// State is a capability server's lifecycle state.
type State string

const (
	StateSpawning     State = "spawning"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCrashed      State = "crashed"
	StateRestarting   State = "restarting"
	StateTerminated   State = "terminated"
)

const (
	initializeTimeout  = 30 * time.Second
	shutdownWait       = 5 * time.Second
	restartBaseBackoff = time.Second
	maxRestartAttempts = 3
)

// TransportKind distinguishes local child-process servers from remote SSE
// ones.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportSSE   TransportKind = "sse"
)

// ServerConfig describes one capability server to spawn.
type ServerConfig struct {
	Name      string
	Transport TransportKind
	Command   []string
	Dir       string
	Env       map[string]string
	URL       string
	Headers   map[string]string
}

// managedServer is the Supervisor's internal bookkeeping for one server. It
// is not exported; callers read it through State, Tools and Transport.
type managedServer struct {
	mu           sync.Mutex
	config       ServerConfig
	transport    rpctransport.Transport
	state        State
	tools        []rpctransport.ToolDescriptor
	restartCount int
	lastError    string
}

// SpawnFailure pairs a server name with the error that prevented it from
// starting, for spawn_all's partial-startup report.
type SpawnFailure struct {
	Name  string
	Error error
}

// Supervisor owns the set of managed capability servers.
type Supervisor struct {
	mu      sync.RWMutex
	servers map[string]*managedServer
}

// New creates an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{servers: make(map[string]*managedServer)}
}

// SpawnAll fans out spawns concurrently and returns the set of server names
// that started successfully plus a list of (name, error) pairs for the
// rest. Partial startup is acceptable: callers proceed with whatever
// succeeded.
func (s *Supervisor) SpawnAll(ctx context.Context, configs []ServerConfig) ([]string, []SpawnFailure) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       []string
		failures []SpawnFailure
	)

	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			if err := s.spawnOne(ctx, cfg); err != nil {
				mu.Lock()
				failures = append(failures, SpawnFailure{Name: cfg.Name, Error: err})
				mu.Unlock()
				return
			}
			mu.Lock()
			ok = append(ok, cfg.Name)
			mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	return ok, failures
}

func (s *Supervisor) spawnOne(ctx context.Context, cfg ServerConfig) error {
	ms := &managedServer{config: cfg, state: StateSpawning}
	s.mu.Lock()
	s.servers[cfg.Name] = ms
	s.mu.Unlock()

	var tr rpctransport.Transport
	var err error
	switch cfg.Transport {
	case TransportSSE:
		tr = rpctransport.NewSSETransport(cfg.Name, cfg.URL, cfg.Headers, &http.Client{})
	default:
		tr, err = rpctransport.NewStdioTransport(ctx, cfg.Name, cfg.Command, cfg.Dir, cfg.Env)
	}
	if err != nil {
		ms.mu.Lock()
		ms.state = StateCrashed
		ms.lastError = err.Error()
		ms.mu.Unlock()
		return err
	}

	ms.mu.Lock()
	ms.transport = tr
	ms.state = StateInitializing
	ms.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	raw, err := tr.Request(initCtx, "initialize", map[string]any{})
	if err != nil {
		stderrMsg := drainStderrIfStdio(tr)
		_ = tr.Close()
		ms.mu.Lock()
		ms.state = StateCrashed
		ms.lastError = err.Error()
		ms.mu.Unlock()
		msg := err.Error()
		if stderrMsg != "" {
			msg = msg + ": " + stderrMsg
		}
		return &errs.InitFailedError{Server: cfg.Name, Message: msg}
	}

	var result rpctransport.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		_ = tr.Close()
		ms.mu.Lock()
		ms.state = StateCrashed
		ms.mu.Unlock()
		return &errs.InitFailedError{Server: cfg.Name, Message: "malformed initialize result: " + err.Error()}
	}

	ms.mu.Lock()
	ms.state = StateRunning
	ms.tools = result.Tools
	ms.mu.Unlock()

	logging.Info().Str("server", cfg.Name).Int("tools", len(result.Tools)).Msg("capability server running")
	return nil
}

func drainStderrIfStdio(tr rpctransport.Transport) string {
	if st, ok := tr.(*rpctransport.StdioTransport); ok {
		return st.DrainStderr()
	}
	return ""
}

// RestartServer attempts to respawn a crashed server with exponential
// backoff (1s * 2^attempt), failing with RestartExhaustedError after
// maxRestartAttempts. The restart counter is never reset by a successful
// restart; it only resets on an explicit fresh SpawnAll call for that name.
func (s *Supervisor) RestartServer(ctx context.Context, name string) error {
	s.mu.RLock()
	ms, ok := s.servers[name]
	s.mu.RUnlock()
	if !ok {
		return &errs.SpawnFailedError{Server: name, Message: "no prior configuration for server"}
	}

	ms.mu.Lock()
	ms.state = StateRestarting
	cfg := ms.config
	priorRestarts := ms.restartCount
	ms.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = restartBaseBackoff
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries instead
	bounded := backoff.WithContext(backoff.WithMaxRetries(b, maxRestartAttempts), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		spawnErr := s.spawnOne(ctx, cfg)
		// spawnOne installs a fresh record; carry the count over onto it.
		s.mu.RLock()
		cur := s.servers[name]
		s.mu.RUnlock()
		cur.mu.Lock()
		cur.restartCount = priorRestarts + attempt
		cur.mu.Unlock()
		return spawnErr
	}, bounded)

	if err != nil {
		s.mu.RLock()
		cur := s.servers[name]
		s.mu.RUnlock()
		cur.mu.Lock()
		cur.state = StateTerminated
		cur.mu.Unlock()
		return &errs.RestartExhaustedError{Server: name, Attempts: attempt}
	}
	return nil
}

// ShutdownAll sends a best-effort "shutdown" notification to every running
// server, waits up to shutdownWait, then force-kills whatever remains.
func (s *Supervisor) ShutdownAll(ctx context.Context) {
	s.mu.RLock()
	servers := make([]*managedServer, 0, len(s.servers))
	for _, ms := range s.servers {
		servers = append(servers, ms)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, ms := range servers {
		wg.Add(1)
		go func(ms *managedServer) {
			defer wg.Done()
			ms.mu.Lock()
			tr := ms.transport
			ms.mu.Unlock()
			if tr == nil {
				return
			}
			notifyCtx, cancel := context.WithTimeout(ctx, shutdownWait)
			_ = tr.Notify(notifyCtx, "shutdown", nil)
			cancel()
			time.Sleep(shutdownWait)
			_ = tr.Close()
			ms.mu.Lock()
			ms.state = StateTerminated
			ms.mu.Unlock()
		}(ms)
	}
	wg.Wait()
}

// Transport returns the live transport for a running server.
func (s *Supervisor) Transport(name string) (rpctransport.Transport, bool) {
	s.mu.RLock()
	ms, ok := s.servers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.state != StateRunning {
		return nil, false
	}
	return ms.transport, true
}

// Tools returns the last-known tool list for a server.
func (s *Supervisor) Tools(name string) ([]rpctransport.ToolDescriptor, bool) {
	s.mu.RLock()
	ms, ok := s.servers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.tools, true
}

// State reports a server's current lifecycle state.
func (s *Supervisor) State(name string) (State, bool) {
	s.mu.RLock()
	ms, ok := s.servers[name]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.state, true
}

// RegisterLocal installs a transport that never goes through spawn/restart:
// it is already running and stays running for the Supervisor's lifetime.
// Used for the in-process "local" pseudo-server (internal/localtool) so the
// Tool Registry and Executor can address built-in tools exactly like any
// other capability server, with no child process behind them.
func (s *Supervisor) RegisterLocal(name string, tr rpctransport.Transport, tools []rpctransport.ToolDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[name] = &managedServer{
		config:    ServerConfig{Name: name},
		transport: tr,
		state:     StateRunning,
		tools:     tools,
	}
}

// Names returns every configured server name.
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.servers))
	for name := range s.servers {
		out = append(out, name)
	}
	return out
}
