package permission

import (
	"context"
	"sync"

	"github.com/localmind/cortex/internal/storage"
	"github.com/localmind/cortex/pkg/types"
)

// grantsPath is the storage path segment persistent grants are written
// under: <basePath>/permissions/grants.json.
var grantsPath = []string{"permissions", "grants"}

// grantsDocument is the on-disk shape of the persistent grant file: a
// version tag plus a map of fully-qualified tool name to grant record.
type grantsDocument struct {
	Version int                               `json:"version"`
	Grants  map[string]types.PermissionGrant `json:"grants"`
}

// GrantStore persists "always allow" decisions for fully-qualified tool
// names (e.g. "fs.bash") across process restarts, backed by
// internal/storage's write-tmp-then-rename JSON file. Session-scoped
// grants stay in Checker's in-memory approved/patterns maps; only
// GrantPersistent grants round-trip through here.
type GrantStore struct {
	store *storage.Storage

	mu    sync.RWMutex
	cache map[string]types.PermissionGrant
}

// NewGrantStore wraps a storage.Storage as a persistent grant cache. Call
// Load once at startup to populate the cache from disk.
func NewGrantStore(store *storage.Storage) *GrantStore {
	return &GrantStore{store: store, cache: make(map[string]types.PermissionGrant)}
}

// Load reads the persistent grant file into memory. A missing file is not
// an error — it just means no tool has been granted "always" yet.
func (g *GrantStore) Load(ctx context.Context) error {
	var doc grantsDocument
	err := g.store.Get(ctx, grantsPath, &doc)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for name, grant := range doc.Grants {
		g.cache[name] = grant
	}
	return nil
}

// IsGranted reports whether toolName already carries a standing
// persistent grant.
func (g *GrantStore) IsGranted(toolName string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.cache[toolName]
	return ok
}

// Grant records a persistent grant for toolName and flushes the whole
// document to disk via atomic write-tmp-then-rename, so a crash mid-write
// never leaves a torn grants file behind.
func (g *GrantStore) Grant(ctx context.Context, toolName string, grantedAt int64) error {
	g.mu.Lock()
	g.cache[toolName] = types.PermissionGrant{
		ToolName: toolName,
		Scope:    types.GrantPersistent,
		Granted:  grantedAt,
	}
	doc := grantsDocument{Version: 1, Grants: make(map[string]types.PermissionGrant, len(g.cache))}
	for name, grant := range g.cache {
		doc.Grants[name] = grant
	}
	g.mu.Unlock()

	return g.store.Put(ctx, grantsPath, doc)
}

// Revoke removes toolName's persistent grant, if any, and flushes the
// document to disk.
func (g *GrantStore) Revoke(ctx context.Context, toolName string) error {
	g.mu.Lock()
	delete(g.cache, toolName)
	doc := grantsDocument{Version: 1, Grants: make(map[string]types.PermissionGrant, len(g.cache))}
	for name, grant := range g.cache {
		doc.Grants[name] = grant
	}
	g.mu.Unlock()

	return g.store.Put(ctx, grantsPath, doc)
}
