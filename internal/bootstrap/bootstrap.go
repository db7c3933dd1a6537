// Package bootstrap wires the assistant daemon's subsystems together in
// dependency order: Conversation Store, local built-in tool server, Tool
// Registry, Server Supervisor (spawning any configured remote capability
// servers), Permission Checker and Tool Executor, provider registry and
// model Caller, then Orchestrator and AgentLoop on top. This package
// extracts that graph into one reusable constructor so the run and serve
// subcommands share it instead of each assembling it inline.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/localmind/cortex/internal/agentloop"
	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/event"
	"github.com/localmind/cortex/internal/localtool"
	"github.com/localmind/cortex/internal/logging"
	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/orchestrator"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/provider"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/rpctransport"
	"github.com/localmind/cortex/internal/storage"
	"github.com/localmind/cortex/internal/supervisor"
	"github.com/localmind/cortex/internal/toolexec"
	"github.com/localmind/cortex/pkg/types"
)

// App holds every long-lived collaborator for one daemon process, assembled
// in dependency order. Callers (the run/serve subcommands) drive the
// Orchestrator and AgentLoop from here; App itself runs nothing on its own.
type App struct {
	Config       *types.Config
	Store        *convstore.Store
	Supervisor   *supervisor.Supervisor
	Registry     *registry.Registry
	Checker      *permission.Checker
	ToolExec     *toolexec.Executor
	Providers    *provider.Registry
	Caller       *modelcall.Caller
	Orchestrator *orchestrator.Orchestrator
	AgentLoop    *agentloop.Loop
	LocalTools   *localtool.Registry
}

// New assembles an App for workDir using cfg (already loaded and merged by
// internal/config). dbPath is where the Conversation Store's SQLite
// database lives; callers typically pass config.GetPaths().StoragePath()
// joined with a database file name.
func New(ctx context.Context, cfg *types.Config, workDir, dbPath string) (*App, error) {
	store, err := convstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}
	if m, ok := cfg.Models[cfg.ActiveModel]; ok {
		store.ConfigureBudget(m.ContextWindow, 0)
	}

	localReg := localtool.NewRegistry()
	localTransport := localtool.NewTransport(localReg)

	sup := supervisor.New()
	sup.RegisterLocal(localtool.ServerName, localTransport, localReg.ToolDescriptors())

	toolReg := registry.New()
	toolReg.RegisterServerTools(localtool.ServerName, localReg.ToolDefinitions())

	if len(cfg.Servers) > 0 {
		failures := spawnConfiguredServers(ctx, sup, toolReg, cfg.Servers)
		for _, f := range failures {
			logging.Warn().Str("server", f.Name).Err(f.Error).Msg("capability server failed to start")
		}
	}

	grantStore := permission.NewGrantStore(storage.New(filepath.Join(filepath.Dir(dbPath), "storage")))
	if err := grantStore.Load(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to load persistent permission grants")
	}
	checker := permission.NewCheckerWithGrants(grantStore)
	exec := toolexec.New(toolReg, sup, checker, store, workDir)

	providerReg, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to initialize some providers")
	}
	caller := modelcall.New(providerReg, cfg)

	var orch *orchestrator.Orchestrator
	if cfg.Orchestrator != nil && cfg.Orchestrator.Enabled {
		orch = orchestrator.New(caller, toolReg, exec, store, cfg, cfg.Orchestrator.EmbedEndpoint)
	}
	loop := agentloop.New(caller, toolReg, exec, store, cfg)

	return &App{
		Config:       cfg,
		Store:        store,
		Supervisor:   sup,
		Registry:     toolReg,
		Checker:      checker,
		ToolExec:     exec,
		Providers:    providerReg,
		Caller:       caller,
		Orchestrator: orch,
		AgentLoop:    loop,
		LocalTools:   localReg,
	}, nil
}

// baseSystemPrompt is the fixed preamble every new session's system message
// opens with; CapabilitySummary is appended so the model knows, turn one,
// which servers need confirmation before it tries a write.
const baseSystemPrompt = "You are a helpful local assistant with access to file, search, and command tools."

// SystemPrompt builds a new session's system message: the fixed preamble
// plus the Tool Registry's capability summary (spec.md §4.3), so the model
// learns which servers are read-only and which require confirmation before
// it ever calls one.
func (a *App) SystemPrompt() string {
	summary := a.Registry.CapabilitySummary([]string{localtool.ServerName})
	if summary == "" {
		return baseSystemPrompt
	}
	return baseSystemPrompt + "\n\n" + summary
}

// Dispatch runs one user turn for sessionID: through the dual-model
// Orchestrator when configured and enabled, falling back to the
// single-model AgentLoop when the orchestrator bails out (its result's
// FellBack flag) or is disabled entirely. Dispatch persists userMessage itself
// before either path runs, since Orchestrator.Run only reads history (it
// leaves turn persistence to its caller) while AgentLoop.Run expects the
// triggering message already in the store.
func (a *App) Dispatch(ctx context.Context, sessionID, userMessage string, perms permission.AgentPermissions) (string, error) {
	if _, err := a.Store.AddUserMessage(sessionID, userMessage); err != nil {
		return "", fmt.Errorf("persisting user message: %w", err)
	}

	if a.Orchestrator != nil {
		result, err := a.Orchestrator.Run(ctx, sessionID, userMessage, perms)
		if err == nil && !result.FellBack {
			if _, err := a.Store.AddAssistantMessage(sessionID, result.Synthesis, nil); err != nil {
				return "", fmt.Errorf("persisting orchestrator synthesis: %w", err)
			}
			event.Publish(event.Event{Type: event.StreamComplete, Data: event.StreamCompleteData{SessionID: sessionID, Content: result.Synthesis}})
			return result.Synthesis, nil
		}
		if err != nil {
			logging.Warn().Err(err).Str("sessionID", sessionID).Msg("orchestrator run failed, falling back to agent loop")
		}
	}

	loopResult, err := a.AgentLoop.Run(ctx, sessionID, perms)
	if err != nil {
		return "", err
	}
	return loopResult.FinalText, nil
}

// spawnConfiguredServers converts the configured types.ServerSpec entries
// into supervisor.ServerConfig, spawns them, and registers whichever tools
// each one reports with the Tool Registry.
func spawnConfiguredServers(ctx context.Context, sup *supervisor.Supervisor, reg *registry.Registry, specs []types.ServerSpec) []supervisor.SpawnFailure {
	configs := make([]supervisor.ServerConfig, 0, len(specs))
	for _, s := range specs {
		kind := supervisor.TransportStdio
		if s.Transport == "sse" {
			kind = supervisor.TransportSSE
		}
		configs = append(configs, supervisor.ServerConfig{
			Name:      s.Name,
			Transport: kind,
			Command:   s.Command,
			Dir:       s.Dir,
			Env:       s.Env,
			URL:       s.URL,
			Headers:   s.Headers,
		})
	}

	started, failures := sup.SpawnAll(ctx, configs)
	for _, name := range started {
		tools, ok := sup.Tools(name)
		if !ok {
			continue
		}
		reg.RegisterServerTools(name, toolDefinitionsFromDescriptors(tools))
	}
	return failures
}

// toolDefinitionsFromDescriptors adapts a capability server's initialize-
// handshake tool list into the Registry's owned types.ToolDefinition shape.
func toolDefinitionsFromDescriptors(descs []rpctransport.ToolDescriptor) []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, types.ToolDefinition{
			Name:                 d.Name,
			Description:          d.Description,
			ParameterSchema:      d.InputSchema,
			ConfirmationRequired: d.ConfirmationRequired,
			UndoSupported:        d.UndoSupported,
		})
	}
	return defs
}

// ApplyConfig swaps in a freshly loaded configuration without restarting the
// daemon or re-spawning capability servers. It only updates the parts of the
// graph that read Config by reference on every call (the model Caller, the
// Agent Loop and the Orchestrator); server specs, storage path, and already-registered tools
// are unaffected since changing those safely requires a process restart.
func (a *App) ApplyConfig(cfg *types.Config) {
	a.Config = cfg
	a.Caller.Config = cfg
	a.AgentLoop.Config = cfg
	if a.Orchestrator != nil {
		a.Orchestrator.Config = cfg
	}
	logging.Info().Str("activeModel", cfg.ActiveModel).Msg("configuration reloaded")
}

// Shutdown tears down the capability servers and closes the store. Callers
// should invoke this once on process exit.
func (a *App) Shutdown(ctx context.Context) {
	a.Supervisor.ShutdownAll(ctx)
	if err := a.Store.Close(); err != nil {
		logging.Warn().Err(err).Msg("error closing conversation store")
	}
}
