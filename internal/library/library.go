// Package library manages a user's saved prompts and tags.
//
// Each user's prompts and tags are stored as whole JSON arrays under
// per-user keys and rewritten on every mutation, so concurrent writers
// resolve as last write wins.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/promptpal/internal/kvstore"
)

// Storage key prefixes.
const (
	PromptsKeyPrefix = "promptme_prompts_"
	TagsKeyPrefix    = "promptme_tags_"
)

// DefaultUser is the profile used when none is configured.
const DefaultUser = "local"

var (
	// ErrNotFound is returned when a prompt ID does not exist.
	ErrNotFound = errors.New("prompt not found")

	// ErrInvalidPrompt wraps field validation failures.
	ErrInvalidPrompt = errors.New("invalid prompt")
)

// Variable is a named placeholder in a prompt's content.
type Variable struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

// Prompt is a saved prompt.
type Prompt struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title" validate:"required,max=200"`
	Content     string     `json:"content" yaml:"content" validate:"required"`
	Description string     `json:"description" yaml:"description"`
	Variables   []Variable `json:"variables" yaml:"variables" validate:"dive"`
	Tags        []string   `json:"tags" yaml:"tags" validate:"dive,required"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updated_at"`
	Favorite    bool       `json:"favorite" yaml:"favorite"`
	UserID      string     `json:"userId" yaml:"user_id"`
}

// Tag is a named label shared across a user's prompts.
type Tag struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

var validate = validator.New()

func validatePrompt(p *Prompt) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrompt, err)
	}
	return nil
}

// Options configures a Library.
type Options struct {
	// Now overrides the clock, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// Library is one user's prompt collection.
type Library struct {
	kv     kvstore.Store
	user   string
	now    func() time.Time
	logger *slog.Logger

	// Serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// New creates a Library for user over kv.
func New(kv kvstore.Store, user string, opts Options) *Library {
	if user == "" {
		user = DefaultUser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Library{
		kv:     kv,
		user:   user,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// User returns the profile this library is bound to.
func (l *Library) User() string {
	return l.user
}

func (l *Library) promptsKey() string { return PromptsKeyPrefix + l.user }
func (l *Library) tagsKey() string    { return TagsKeyPrefix + l.user }

func (l *Library) loadPrompts(ctx context.Context) ([]Prompt, error) {
	var prompts []Prompt
	if err := l.loadJSON(ctx, l.promptsKey(), &prompts); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return prompts, nil
}

func (l *Library) savePrompts(ctx context.Context, prompts []Prompt) error {
	if prompts == nil {
		prompts = []Prompt{}
	}
	if err := l.saveJSON(ctx, l.promptsKey(), prompts); err != nil {
		return fmt.Errorf("save prompts: %w", err)
	}
	return nil
}

func (l *Library) loadTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := l.loadJSON(ctx, l.tagsKey(), &tags); err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return tags, nil
}

func (l *Library) saveTags(ctx context.Context, tags []Tag) error {
	if tags == nil {
		tags = []Tag{}
	}
	if err := l.saveJSON(ctx, l.tagsKey(), tags); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	return nil
}

func (l *Library) loadJSON(ctx context.Context, key string, v any) error {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (l *Library) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, key, string(data))
}
