package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AddTag registers a tag. A name matching an existing tag case-insensitively
// returns the existing tag unchanged.
func (l *Library) AddTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tags, err := l.loadTags(ctx)
	if err != nil {
		return nil, err
	}
	if t := findTag(tags, name); t != nil {
		return t, nil
	}

	t := Tag{ID: "tag_" + uuid.NewString(), Name: name}
	tags = append(tags, t)
	if err := l.saveTags(ctx, tags); err != nil {
		return nil, err
	}
	return &t, nil
}

// Tags returns all registered tags in creation order.
func (l *Library) Tags(ctx context.Context) ([]Tag, error) {
	tags, err := l.loadTags(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []Tag{}
	}
	return tags, nil
}

// ensureTags registers any names not yet known. Callers hold l.mu.
func (l *Library) ensureTags(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tags, err := l.loadTags(ctx)
	if err != nil {
		return err
	}
	added := false
	for _, name := range names {
		if findTag(tags, name) == nil {
			tags = append(tags, Tag{ID: "tag_" + uuid.NewString(), Name: name})
			added = true
		}
	}
	if !added {
		return nil
	}
	return l.saveTags(ctx, tags)
}

// registerTags runs ensureTags after a prompt write has succeeded. The prompt
// is already stored, so a failure here is logged; the names are registered
// again by the next write that carries them.
func (l *Library) registerTags(ctx context.Context, names []string) {
	if err := l.ensureTags(ctx, names); err != nil {
		l.logger.Warn("failed to register tags", "user", l.user, "tags", names, "error", err)
	}
}

func findTag(tags []Tag, name string) *Tag {
	for i := range tags {
		if strings.EqualFold(tags[i].Name, name) {
			t := tags[i]
			return &t
		}
	}
	return nil
}
