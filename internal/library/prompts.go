package library

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string     `json:"title,omitempty"`
	Content     *string     `json:"content,omitempty"`
	Description *string     `json:"description,omitempty"`
	Variables   *[]Variable `json:"variables,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
	Favorite    *bool       `json:"favorite,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Query         string // case-insensitive match on title, description or content
	Tag           string
	FavoritesOnly bool
}

// Add stores a new prompt. ID, timestamps and user are assigned here; tags not
// yet known are registered. Variables are detected from content when none
// are given.
func (l *Library) Add(ctx context.Context, p Prompt) (*Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	p.ID = "prompt_" + uuid.NewString()
	p.UserID = l.user
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Tags = normalizeTags(p.Tags)
	if len(p.Variables) == 0 {
		p.Variables = DetectVariables(p.Content)
	}
	if err := validatePrompt(&p); err != nil {
		return nil, err
	}

	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}
	// Prompts are written before tags so a failed write leaves no orphan tags.
	prompts = append(prompts, p)
	if err := l.savePrompts(ctx, prompts); err != nil {
		return nil, err
	}
	l.registerTags(ctx, p.Tags)

	l.logger.Debug("prompt added", "id", p.ID, "user", l.user)
	return &p, nil
}

// Get returns the prompt with id.
func (l *Library) Get(ctx context.Context, id string) (*Prompt, error) {
	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &prompts[i], nil
}

// Update applies patch to the prompt with id and bumps UpdatedAt.
func (l *Library) Update(ctx context.Context, id string, patch Patch) (*Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return nil, ErrNotFound
	}

	p := prompts[i]
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Variables != nil {
		p.Variables = *patch.Variables
	}
	if patch.Tags != nil {
		p.Tags = normalizeTags(*patch.Tags)
	}
	if patch.Favorite != nil {
		p.Favorite = *patch.Favorite
	}
	p.UpdatedAt = l.now().UTC()

	if err := validatePrompt(&p); err != nil {
		return nil, err
	}
	prompts[i] = p
	if err := l.savePrompts(ctx, prompts); err != nil {
		return nil, err
	}
	l.registerTags(ctx, p.Tags)
	return &p, nil
}

// Delete removes the prompt with id.
func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return ErrNotFound
	}
	prompts = slices.Delete(prompts, i, i+1)
	return l.savePrompts(ctx, prompts)
}

// ToggleFavorite flips the favorite flag and returns the updated prompt.
func (l *Library) ToggleFavorite(ctx context.Context, id string) (*Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	prompts[i].Favorite = !prompts[i].Favorite
	prompts[i].UpdatedAt = l.now().UTC()
	if err := l.savePrompts(ctx, prompts); err != nil {
		return nil, err
	}
	p := prompts[i]
	return &p, nil
}

// List returns prompts matching f, most recently updated first.
func (l *Library) List(ctx context.Context, f Filter) ([]Prompt, error) {
	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Prompt, 0, len(prompts))
	for _, p := range prompts {
		if f.FavoritesOnly && !p.Favorite {
			continue
		}
		if f.Tag != "" && !hasTag(p.Tags, f.Tag) {
			continue
		}
		if query != "" && !matches(p, query) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Recent returns up to n prompts by creation time, newest first.
func (l *Library) Recent(ctx context.Context, n int) ([]Prompt, error) {
	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(prompts, func(i, j int) bool {
		return prompts[i].CreatedAt.After(prompts[j].CreatedAt)
	})
	if n > 0 && len(prompts) > n {
		prompts = prompts[:n]
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	return prompts, nil
}

func indexOf(prompts []Prompt, id string) int {
	return slices.IndexFunc(prompts, func(p Prompt) bool { return p.ID == id })
}

func matches(p Prompt, query string) bool {
	return strings.Contains(strings.ToLower(p.Title), query) ||
		strings.Contains(strings.ToLower(p.Description), query) ||
		strings.Contains(strings.ToLower(p.Content), query)
}

func hasTag(tags []string, name string) bool {
	return slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, name) })
}

// normalizeTags trims names and drops blanks and case-insensitive duplicates.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || hasTag(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
