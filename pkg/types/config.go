package types

// Config is the assistant daemon's top-level configuration: a model
// registry, an optional orchestrator block, and post-discovery tool/server
// allowlists. Loaded and merged by internal/config in priority order
// (global -> project -> environment).
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// ActiveModel names the entry in Models to use as the primary model.
	ActiveModel string `json:"activeModel,omitempty"`

	// Models is the registry of configured model endpoints, keyed by name.
	Models map[string]ModelConfig `json:"models,omitempty"`

	// FallbackChain is an ordered list of model names tried in sequence
	// when the active model's endpoint is unavailable. The sentinel name
	// "static_response" is recognized specially: the client returns a
	// fixed fallback message instead of making a request.
	FallbackChain []string `json:"fallbackChain,omitempty"`

	// Orchestrator configures the dual-model pipeline; nil disables it
	// entirely, in which case every request runs the single-model loop.
	Orchestrator *OrchestratorConfig `json:"orchestrator,omitempty"`

	// TwoPassToolSelection enables an extra router confirmation pass
	// before executing a step's resolved tool call.
	TwoPassToolSelection bool `json:"twoPassToolSelection,omitempty"`

	// EnabledServers/EnabledTools are allowlists applied after capability
	// servers have reported their tools; nil means "all discovered".
	EnabledServers []string `json:"enabledServers,omitempty"`
	EnabledTools   []string `json:"enabledTools,omitempty"`

	// Servers lists the capability servers the Supervisor spawns (or
	// connects to) at startup, in addition to the always-registered
	// in-process "local" tool server.
	Servers []ServerSpec `json:"servers,omitempty"`

	Permission *PermissionConfig `json:"permission,omitempty"`
}

// ServerSpec describes one capability server for the Supervisor to manage,
// as read from configuration. Mirrors internal/supervisor.ServerConfig's
// fields without importing that package from pkg/types.
type ServerSpec struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"` // "stdio" | "sse"
	Command   []string          `json:"command,omitempty"`
	Dir       string            `json:"dir,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ModelConfig describes one configured model endpoint.
type ModelConfig struct {
	Endpoint       string  `json:"endpoint"`
	Format         string  `json:"format,omitempty"` // tool-call wire format: "native" | "pythonic" | "bracket"
	APIKey         string  `json:"apiKey,omitempty"`
	ContextWindow  int     `json:"contextWindow,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
	Role           string  `json:"role,omitempty"` // "planner" | "router" | "synthesizer" | "general"
}

// OrchestratorConfig configures the dual-model pipeline.
type OrchestratorConfig struct {
	Enabled      bool   `json:"enabled"`
	PlannerModel string `json:"plannerModel,omitempty"`
	RouterModel  string `json:"routerModel,omitempty"`
	RouterTopK   int    `json:"routerTopK,omitempty"`   // default 15
	MaxPlanSteps int    `json:"maxPlanSteps,omitempty"` // default 10
	StepRetries  int    `json:"stepRetries,omitempty"`

	// EmbedEndpoint is the embeddings endpoint used to build the
	// per-request Tool Embedding Index.
	EmbedEndpoint string `json:"embedEndpoint,omitempty"`
}

// PermissionConfig holds default per-category permission policy.
type PermissionConfig struct {
	Edit        string      `json:"edit,omitempty"`     // "allow"|"deny"|"ask"
	Bash        interface{} `json:"bash,omitempty"`     // string or map[string]string of scoped patterns
	WebFetch    string      `json:"webfetch,omitempty"` // "allow"|"deny"|"ask"
	ExternalDir string      `json:"externalDirectory,omitempty"`
	DoomLoop    string      `json:"doomLoop,omitempty"`
}

// Model represents an LLM model available from a provider, used by the
// provider registry to report capabilities independent of Config. Billing
// is out of scope (see spec non-goals), so this carries only the
// capabilities agentloop/orchestrator actually branch on.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions contains model-specific generation options.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
