// Package config loads and merges the assistant daemon's configuration.
//
// # Configuration Loading
//
// Load searches for and merges configuration from multiple sources, in
// priority order (later sources win on scalar fields; maps merge key-wise):
//
//  1. Global config (XDG_CONFIG_HOME/cortex, or ~/.config/cortex)
//  2. Project config (<directory>/.cortex/)
//  3. Environment variable overrides (CORTEX_MODEL, provider API keys)
//
// # Supported Formats
//
// Each location is checked for, in order: config.jsonc, config.json,
// config.yaml, config.yml. JSONC is parsed with tidwall/jsonc; YAML is
// round-tripped through a generic map and re-marshaled to JSON first so
// its keys line up with types.Config's `json:` tags rather than yaml.v3's
// default lowercased-fieldname matching.
//
// # Variable Interpolation
//
// Configuration files support ${VAR} and ${VAR:-default} substitution
// against the process environment, applied before parsing so it works
// inside any JSON/YAML string value (API keys, endpoints, paths). A
// .env file in the working directory is loaded first via joho/godotenv,
// so interpolation can reference variables defined there too.
//
// # Hot Reload
//
// WatchConfig uses fsnotify to watch the global and project config
// directories and re-run Load whenever a file inside them settles after
// a burst of write/rename/create events, handing the result to a
// caller-supplied callback. internal/bootstrap.App.ApplyConfig consumes
// this to pick up model/orchestrator changes without a process restart;
// capability server specs and the storage path are not hot-swappable.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/cortex (XDG_DATA_HOME)
//   - Config: ~/.config/cortex (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/cortex (XDG_CACHE_HOME)
//   - State: ~/.local/state/cortex (XDG_STATE_HOME)
//
// On Windows these resolve under APPDATA instead.
package config
