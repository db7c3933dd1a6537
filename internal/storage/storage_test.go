package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/localmind/cortex/pkg/types"
)

func sampleGrant(tool string, scope types.GrantScope) types.PermissionGrant {
	return types.PermissionGrant{ToolName: tool, Scope: scope, Granted: 1}
}

func TestStorage_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	grant := sampleGrant("bash.run", types.GrantPersistent)

	err := s.Put(ctx, []string{"grants", "bash.run"}, grant)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	filePath := filepath.Join(tmpDir, "grants", "bash.run.json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("File was not created")
	}

	var retrieved types.PermissionGrant
	err = s.Get(ctx, []string{"grants", "bash.run"}, &retrieved)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if retrieved.ToolName != grant.ToolName || retrieved.Scope != grant.Scope {
		t.Errorf("Grant mismatch: got %+v, want %+v", retrieved, grant)
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	var grant types.PermissionGrant
	err := s.Get(ctx, []string{"grants", "filesystem.write_file"}, &grant)
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestStorage_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	grant := sampleGrant("filesystem.write_file", types.GrantSession)

	err := s.Put(ctx, []string{"grants", "filesystem.write_file"}, grant)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err = s.Delete(ctx, []string{"grants", "filesystem.write_file"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var retrieved types.PermissionGrant
	err = s.Get(ctx, []string{"grants", "filesystem.write_file"}, &retrieved)
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got: %v", err)
	}
}

func TestStorage_DeleteNonexistent(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	err := s.Delete(ctx, []string{"grants", "never-granted"})
	if err != nil {
		t.Errorf("Delete of nonexistent grant should not error: %v", err)
	}
}

func TestStorage_List(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	tools := []string{"bash.run", "filesystem.write_file", "git.push"}
	for _, tool := range tools {
		grant := sampleGrant(tool, types.GrantPersistent)
		if err := s.Put(ctx, []string{"grants", tool}, grant); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	items, err := s.List(ctx, []string{"grants"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(items) != len(tools) {
		t.Errorf("Expected %d items, got %d: %v", len(tools), len(items), items)
	}
}

func TestStorage_ListEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	items, err := s.List(ctx, []string{"grants"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("Expected empty list, got: %v", items)
	}
}

func TestStorage_Scan(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	expected := map[string]types.PermissionGrant{
		"bash.run":              sampleGrant("bash.run", types.GrantPersistent),
		"filesystem.write_file": sampleGrant("filesystem.write_file", types.GrantSession),
		"git.push":              sampleGrant("git.push", types.GrantPersistent),
	}

	for tool, grant := range expected {
		if err := s.Put(ctx, []string{"grants", tool}, grant); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	scanned := make(map[string]types.PermissionGrant)
	err := s.Scan(ctx, []string{"grants"}, func(key string, data json.RawMessage) error {
		var grant types.PermissionGrant
		if err := json.Unmarshal(data, &grant); err != nil {
			return err
		}
		scanned[key] = grant
		return nil
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(scanned) != len(expected) {
		t.Errorf("Expected %d grants, got %d", len(expected), len(scanned))
	}

	for tool, exp := range expected {
		got, ok := scanned[tool]
		if !ok {
			t.Errorf("Missing key %s", tool)
			continue
		}
		if got.ToolName != exp.ToolName || got.Scope != exp.Scope {
			t.Errorf("Mismatch for %s: got %+v, want %+v", tool, got, exp)
		}
	}
}

func TestStorage_Exists(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	if s.Exists(ctx, []string{"grants", "bash.run"}) {
		t.Error("Grant should not exist before it's written")
	}

	grant := sampleGrant("bash.run", types.GrantPersistent)
	if err := s.Put(ctx, []string{"grants", "bash.run"}, grant); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !s.Exists(ctx, []string{"grants", "bash.run"}) {
		t.Error("Grant should exist after Put")
	}
}

func TestStorage_ConcurrentAccess(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			grant := types.PermissionGrant{ToolName: "bash.run", Scope: types.GrantPersistent, Granted: int64(n)}
			if err := s.Put(ctx, []string{"grants", "bash.run"}, grant); err != nil {
				t.Errorf("Concurrent Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var retrieved types.PermissionGrant
	if err := s.Get(ctx, []string{"grants", "bash.run"}, &retrieved); err != nil {
		t.Fatalf("Get after concurrent writes failed: %v", err)
	}
}

func TestStorage_AtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	grant := sampleGrant("bash.run", types.GrantPersistent)
	if err := s.Put(ctx, []string{"grants", "bash.run"}, grant); err != nil {
		t.Fatalf("Initial Put failed: %v", err)
	}

	tmpPath := filepath.Join(tmpDir, "grants", "bash.run.json.tmp")
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("Temp file should not exist after successful write-tmp-then-rename")
	}
}
