package library

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/promptpal/internal/kvstore"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLibrary(t *testing.T) (*Library, *kvstore.MemoryStore, *fakeClock) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(kv, "u1", Options{Now: clock.now}), kv, clock
}

func TestLibrary_AddGet(t *testing.T) {
	ctx := context.Background()
	lib, kv, _ := newTestLibrary(t)

	p, err := lib.Add(ctx, Prompt{
		Title:   "Blog outline",
		Content: "Write an outline about [topic] for [audience]",
		Tags:    []string{"writing", " Writing ", ""},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !strings.HasPrefix(p.ID, "prompt_") {
		t.Errorf("unexpected id %q", p.ID)
	}
	if p.UserID != "u1" {
		t.Errorf("UserID = %q", p.UserID)
	}
	if len(p.Tags) != 1 || p.Tags[0] != "writing" {
		t.Errorf("expected normalized tags, got %v", p.Tags)
	}
	if len(p.Variables) != 2 || p.Variables[0].Name != "audience" || p.Variables[1].Name != "topic" {
		t.Errorf("expected detected variables, got %+v", p.Variables)
	}

	got, err := lib.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Blog outline" {
		t.Errorf("Get() title = %q", got.Title)
	}

	if _, ok, _ := kv.Get(ctx, PromptsKeyPrefix+"u1"); !ok {
		t.Error("expected prompts stored under the user key")
	}
	tags, _ := lib.Tags(ctx)
	if len(tags) != 1 || tags[0].Name != "writing" {
		t.Errorf("expected tag registered on add, got %+v", tags)
	}
}

func TestLibrary_AddValidation(t *testing.T) {
	ctx := context.Background()
	lib, _, _ := newTestLibrary(t)

	_, err := lib.Add(ctx, Prompt{Title: "", Content: "x"})
	if !errors.Is(err, ErrInvalidPrompt) {
		t.Fatalf("expected ErrInvalidPrompt for missing title, got %v", err)
	}
	_, err = lib.Add(ctx, Prompt{Title: "x"})
	if !errors.Is(err, ErrInvalidPrompt) {
		t.Fatalf("expected ErrInvalidPrompt for missing content, got %v", err)
	}
}

func TestLibrary_UpdateBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	lib, _, clock := newTestLibrary(t)

	p, _ := lib.Add(ctx, Prompt{Title: "t", Content: "c"})
	clock.advance(time.Hour)

	title := "new title"
	updated, err := lib.Update(ctx, p.ID, Patch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "new title" || updated.Content != "c" {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("expected UpdatedAt to advance")
	}

	if _, err := lib.Update(ctx, "prompt_missing", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	empty := ""
	if _, err := lib.Update(ctx, p.ID, Patch{Content: &empty}); !errors.Is(err, ErrInvalidPrompt) {
		t.Errorf("expected ErrInvalidPrompt for blank content, got %v", err)
	}
}

func TestLibrary_DeleteLastPersistsEmptyArray(t *testing.T) {
	ctx := context.Background()
	lib, kv, _ := newTestLibrary(t)

	p, _ := lib.Add(ctx, Prompt{Title: "t", Content: "c"})
	if err := lib.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	raw, ok, _ := kv.Get(ctx, PromptsKeyPrefix+"u1")
	if !ok || raw != "[]" {
		t.Errorf("expected persisted empty array, got %q (present %v)", raw, ok)
	}
	if err := lib.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLibrary_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	lib, _, _ := newTestLibrary(t)

	p, _ := lib.Add(ctx, Prompt{Title: "t", Content: "c"})
	got, err := lib.ToggleFavorite(ctx, p.ID)
	if err != nil || !got.Favorite {
		t.Fatalf("ToggleFavorite() = %+v, %v", got, err)
	}
	got, _ = lib.ToggleFavorite(ctx, p.ID)
	if got.Favorite {
		t.Error("expected second toggle to clear favorite")
	}
}

func TestLibrary_List(t *testing.T) {
	ctx := context.Background()
	lib, _, clock := newTestLibrary(t)

	a, _ := lib.Add(ctx, Prompt{Title: "SQL tuning", Content: "Explain indexes", Tags: []string{"db"}})
	clock.advance(time.Minute)
	b, _ := lib.Add(ctx, Prompt{Title: "Poem", Content: "A haiku", Description: "Short verse", Tags: []string{"writing"}})
	clock.advance(time.Minute)
	_, _ = lib.ToggleFavorite(ctx, a.ID)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all by updated", Filter{}, []string{a.ID, b.ID}},
		{"query title", Filter{Query: "sql"}, []string{a.ID}},
		{"query description", Filter{Query: "VERSE"}, []string{b.ID}},
		{"query content", Filter{Query: "indexes"}, []string{a.ID}},
		{"tag", Filter{Tag: "WRITING"}, []string{b.ID}},
		{"favorites", Filter{FavoritesOnly: true}, []string{a.ID}},
		{"no match", Filter{Query: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lib.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d prompts, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("position %d: got %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestLibrary_RecentAndStats(t *testing.T) {
	ctx := context.Background()
	lib, _, clock := newTestLibrary(t)

	old, _ := lib.Add(ctx, Prompt{Title: "old", Content: "c", Tags: []string{"a"}})
	clock.advance(10 * 24 * time.Hour)
	mid, _ := lib.Add(ctx, Prompt{Title: "mid", Content: "c", Tags: []string{"A", "b"}})
	clock.advance(time.Hour)
	newest, _ := lib.Add(ctx, Prompt{Title: "new", Content: "c"})
	_, _ = lib.ToggleFavorite(ctx, old.ID)

	recent, err := lib.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != newest.ID || recent[1].ID != mid.ID {
		t.Errorf("unexpected recent order: %+v", recent)
	}

	stats, err := lib.Stats(ctx, clock.now())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 3, Favorited: 1, TagsUsed: 2, RecentlyCreated: 2}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestLibrary_Tags(t *testing.T) {
	ctx := context.Background()
	lib, _, _ := newTestLibrary(t)

	first, err := lib.AddTag(ctx, "Research")
	if err != nil {
		t.Fatal(err)
	}
	dup, err := lib.AddTag(ctx, " research ")
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID != first.ID || dup.Name != "Research" {
		t.Errorf("expected existing tag back, got %+v", dup)
	}
	if _, err := lib.AddTag(ctx, "  "); err == nil {
		t.Error("expected error for blank tag")
	}

	tags, _ := lib.Tags(ctx)
	if len(tags) != 1 {
		t.Errorf("expected one tag, got %+v", tags)
	}
}

func TestLibrary_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	u1 := New(kv, "u1", Options{})
	u2 := New(kv, "u2", Options{})

	_, _ = u1.Add(ctx, Prompt{Title: "t", Content: "c"})
	got, _ := u2.List(ctx, Filter{})
	if len(got) != 0 {
		t.Errorf("expected u2 to see no prompts, got %d", len(got))
	}
	if New(kv, "", Options{}).User() != DefaultUser {
		t.Error("expected default user")
	}
}

func TestDetectVariables(t *testing.T) {
	got := DetectVariables("Hi [name], write about [topic] for [name]. [not valid] [2x]")
	if len(got) != 2 || got[0].Name != "name" || got[1].Name != "topic" {
		t.Errorf("DetectVariables() = %+v", got)
	}
	if got := DetectVariables("no placeholders"); len(got) != 0 {
		t.Errorf("expected none, got %+v", got)
	}
}

// failingStore rejects writes to keys with a given prefix.
type failingStore struct {
	*kvstore.MemoryStore
	prefix string
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if strings.HasPrefix(key, s.prefix) {
		return errors.New("write refused")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestLibrary_FailedPromptWriteLeavesNoTags(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{MemoryStore: kvstore.NewMemoryStore(), prefix: PromptsKeyPrefix}
	lib := New(kv, "u1", Options{})

	if _, err := lib.Add(ctx, Prompt{Title: "t", Content: "c", Tags: []string{"orphan"}}); err == nil {
		t.Fatal("expected the prompt write to fail")
	}
	tags, err := lib.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected no tags after a failed add, got %+v", tags)
	}
}

func TestLibrary_FailedTagWriteKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{MemoryStore: kvstore.NewMemoryStore(), prefix: TagsKeyPrefix}
	lib := New(kv, "u1", Options{})

	p, err := lib.Add(ctx, Prompt{Title: "t", Content: "c", Tags: []string{"work"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := lib.Get(ctx, p.ID); err != nil {
		t.Errorf("prompt should be stored even when tags cannot be: %v", err)
	}
}
