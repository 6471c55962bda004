package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlStore, err := Open(context.Background(), InMemory)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { sqlStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
			}

			if err := store.Set(ctx, "openai_api_key", "sk-one"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := store.Set(ctx, "openai_api_key", "sk-two"); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}

			got, ok, err := store.Get(ctx, "openai_api_key")
			if err != nil || !ok {
				t.Fatalf("Get() = ok %v, err %v", ok, err)
			}
			if got != "sk-two" {
				t.Errorf("expected last write to win, got %q", got)
			}

			if err := store.Delete(ctx, "openai_api_key"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := store.Delete(ctx, "openai_api_key"); err != nil {
				t.Fatalf("Delete() of missing key error = %v", err)
			}
			if _, ok, _ := store.Get(ctx, "openai_api_key"); ok {
				t.Error("expected key to be gone after Delete")
			}
		})
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()

	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"promptme_tags_u1", "promptme_prompts_u1", "promptme_prompts_u2", "other"} {
				if err := store.Set(ctx, k, "[]"); err != nil {
					t.Fatalf("Set(%s) error = %v", k, err)
				}
			}

			keys, err := store.Keys(ctx, "promptme_prompts_")
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(keys) != 2 || keys[0] != "promptme_prompts_u1" || keys[1] != "promptme_prompts_u2" {
				t.Errorf("unexpected keys: %v", keys)
			}
		})
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "promptpal.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("Get() after reopen = %q, %v, %v", got, ok, err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %s, want %s", s.Path(), path)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database is locked"), true},
		{errors.New("no such table: kv"), false},
	}
	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.want {
			t.Errorf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
