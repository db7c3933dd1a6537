// Package registry maps fully-qualified "server.tool" names to tool
// definitions and resolves ambiguous, unprefixed, or misspelled references
// from a model via a four-stage match: exact, unprefixed, semantic alias,
// then same-server Levenshtein fuzzy matching over a map-based registry.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/localmind/cortex/internal/errs"
	"github.com/localmind/cortex/pkg/types"
)

// semanticAliases is a closed table of common wrong-name -> correct-name
// suffixes, checked before fuzzy matching because edit distance alone picks
// the wrong neighbor for some pairs (e.g. "rename_file" is closer to
// "read_file" than to "move_file").
var semanticAliases = map[string]string{
	"rename_file": "move_file",
	"delete_file": "move_to_trash",
}

// MatchKind tags how resolve() found (or failed to find) a tool.
type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchUnprefixed MatchKind = "unprefixed"
	MatchCorrected  MatchKind = "corrected"
	MatchNotFound   MatchKind = "not_found"
)

// ResolveResult is the outcome of resolve().
type ResolveResult struct {
	Kind        MatchKind
	Resolved    string
	Original    string
	Score       float64
	Suggestions []string
}

// suggestionFloor is the minimum similarity for a name to be offered as a
// suggestion when resolution fails outright.
const suggestionFloor = 0.3

// DefaultMinSimilarity is the similarity threshold below which
// same-server fuzzy matching gives up and falls through to NotFound.
const DefaultMinSimilarity = 0.6

// Registry is the map-based tool registry, safe for concurrent readers;
// writes (register/unregister) happen only during server lifecycle
// transitions.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]types.ToolDefinition // key: fully-qualified name
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]types.ToolDefinition)}
}

// RegisterServerTools registers every tool from one server. Names lacking a
// dot are auto-prefixed with the server name.
func (r *Registry) RegisterServerTools(server string, defs []types.ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range defs {
		name := d.Name
		if !strings.Contains(name, ".") {
			name = server + "." + name
		}
		d.Name = name
		r.tools[name] = d
	}
}

// UnregisterServer removes every tool entry belonging to server.
func (r *Registry) UnregisterServer(server string) {
	prefix := server + "."
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		if strings.HasPrefix(name, prefix) {
			delete(r.tools, name)
		}
	}
}

// Get looks up a tool by its exact fully-qualified name.
func (r *Registry) Get(name string) (types.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns every registered tool definition, in no particular order.
func (r *Registry) List() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ToolDefinition, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out
}

// ValidateToolCall checks that name exists and that every field named in
// its schema's required list is present in args. Deeper validation is
// delegated to the capability server itself.
func (r *Registry) ValidateToolCall(name string, args map[string]any) error {
	d, ok := r.Get(name)
	if !ok {
		return &errs.UnknownToolError{Name: name}
	}
	var missing []string
	for _, field := range d.RequiredFields() {
		if _, present := args[field]; !present {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &errs.InvalidArgumentsError{ToolName: name, Missing: missing}
	}
	return nil
}

// Resolve implements the four-stage match described above.
func (r *Registry) Resolve(name string, minSimilarity float64) ResolveResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Stage 1: exact.
	if _, ok := r.tools[name]; ok {
		return ResolveResult{Kind: MatchExact, Resolved: name, Original: name, Score: 1.0}
	}

	if !strings.Contains(name, ".") {
		// Stage 2: unprefixed - search for any entry whose suffix equals ".name".
		suffix := "." + name
		var matches []string
		for fq := range r.tools {
			if strings.HasSuffix(fq, suffix) {
				matches = append(matches, fq)
			}
		}
		if len(matches) == 1 {
			return ResolveResult{Kind: MatchUnprefixed, Resolved: matches[0], Original: name, Score: 1.0}
		}
		return ResolveResult{Kind: MatchNotFound, Original: name, Suggestions: r.topSuggestions(name, 3)}
	}

	server, toolSuffix, _ := strings.Cut(name, ".")

	// Stage 3: semantic alias.
	if target, ok := semanticAliases[toolSuffix]; ok {
		candidate := server + "." + target
		if _, ok := r.tools[candidate]; ok {
			return ResolveResult{Kind: MatchCorrected, Resolved: candidate, Original: name, Score: 1.0}
		}
	}

	// Stage 4: same-server fuzzy.
	best := ""
	bestScore := -1.0
	for fq := range r.tools {
		otherServer, otherSuffix, ok := strings.Cut(fq, ".")
		if !ok || otherServer != server {
			continue
		}
		score := similarity(toolSuffix, otherSuffix)
		if score > bestScore {
			bestScore = score
			best = fq
		}
	}
	if best != "" && bestScore >= minSimilarity {
		return ResolveResult{Kind: MatchCorrected, Resolved: best, Original: name, Score: bestScore}
	}

	return ResolveResult{Kind: MatchNotFound, Original: name, Suggestions: r.topSuggestions(name, 3)}
}

// similarity is 1 - normalized Levenshtein distance.
func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// topSuggestions returns up to n fully-qualified names with similarity
// above suggestionFloor to name (comparing the unprefixed suffix), sorted
// by descending similarity.
func (r *Registry) topSuggestions(name string, n int) []string {
	type scored struct {
		name  string
		score float64
	}
	_, suffix, hasDot := strings.Cut(name, ".")
	if !hasDot {
		suffix = name
	}

	var candidates []scored
	for fq := range r.tools {
		_, fqSuffix, _ := strings.Cut(fq, ".")
		s := similarity(suffix, fqSuffix)
		if s >= suggestionFloor {
			candidates = append(candidates, scored{fq, s})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]string, 0, n)
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}
