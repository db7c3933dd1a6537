// Package config loads and merges the assistant daemon's JSONC configuration
// files in priority order: global (~/.config/cortex), project (.cortex/),
// then environment variable overrides.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/localmind/cortex/pkg/types"
)

// envVarPattern matches ${VAR} and ${VAR:-default} interpolation forms.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/cortex/)
// 2. Project config (.cortex/)
// 3. Environment variables
func Load(directory string) (*types.Config, error) {
	_ = godotenv.Load(filepath.Join(directory, ".env"))

	config := &types.Config{
		Models: make(map[string]types.ModelConfig),
	}

	globalPath := GetPaths().Config
	files := []string{
		filepath.Join(globalPath, "config.jsonc"),
		filepath.Join(globalPath, "config.json"),
		filepath.Join(globalPath, "config.yaml"),
		filepath.Join(globalPath, "config.yml"),
	}
	if directory != "" {
		files = append(files,
			filepath.Join(directory, ".cortex", "config.jsonc"),
			filepath.Join(directory, ".cortex", "config.json"),
			filepath.Join(directory, ".cortex", "config.yaml"),
			filepath.Join(directory, ".cortex", "config.yml"),
		)
	}
	for _, path := range files {
		if err := loadConfigFile(path, config); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads and merges a single config file, in JSONC/JSON or
// YAML depending on its extension. A missing file yields the os.ReadFile
// not-exist error, which Load treats as "skip this file"; any other read or
// parse error makes Load fail.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolateEnv(data)

	var fileConfig types.Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		// types.Config only carries `json:` tags; round-trip through a
		// generic map so YAML keys line up with the same camelCase names
		// the JSON/JSONC config files use, instead of yaml.v3's default
		// lowercased-fieldname matching.
		var generic map[string]interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		asJSON, err := json.Marshal(generic)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(asJSON, &fileConfig); err != nil {
			return err
		}
	default:
		data = jsonc.ToJSON(data)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolateEnv replaces ${VAR} and ${VAR:-default} references with the
// named environment variable's value, or the given default when unset.
func interpolateEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		name := string(groups[1])
		value, ok := os.LookupEnv(name)
		if ok {
			return []byte(value)
		}
		if len(groups[2]) > 2 {
			return groups[2][2:] // strip the leading ":-"
		}
		return []byte{}
	})
}

// mergeConfig merges source config into target, field by field; later
// sources take precedence except for maps, which merge key-wise.
func mergeConfig(target, source *types.Config) {
	if source.ActiveModel != "" {
		target.ActiveModel = source.ActiveModel
	}

	if source.Models != nil {
		if target.Models == nil {
			target.Models = make(map[string]types.ModelConfig)
		}
		for k, v := range source.Models {
			target.Models[k] = v
		}
	}

	if source.FallbackChain != nil {
		target.FallbackChain = source.FallbackChain
	}

	if source.Orchestrator != nil {
		target.Orchestrator = source.Orchestrator
	}

	if source.TwoPassToolSelection {
		target.TwoPassToolSelection = true
	}

	if source.EnabledServers != nil {
		target.EnabledServers = source.EnabledServers
	}
	if source.EnabledTools != nil {
		target.EnabledTools = source.EnabledTools
	}

	if source.Servers != nil {
		target.Servers = source.Servers
	}

	if source.Permission != nil {
		target.Permission = source.Permission
	}
}

// applyEnvOverrides applies top-level environment variable overrides, on
// top of whatever was loaded from config files.
func applyEnvOverrides(config *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for name, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Models == nil {
				config.Models = make(map[string]types.ModelConfig)
			}
			m := config.Models[name]
			if m.APIKey == "" {
				m.APIKey = apiKey
				config.Models[name] = m
			}
		}
	}

	if model := os.Getenv("CORTEX_MODEL"); model != "" {
		config.ActiveModel = model
	}
}

// Save writes the configuration to path as plain (non-JSONC) JSON.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
