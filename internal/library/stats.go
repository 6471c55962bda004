package library

import (
	"context"
	"strings"
	"time"
)

// RecentWindow is how far back a prompt counts as recently created.
const RecentWindow = 7 * 24 * time.Hour

// Stats summarizes a library.
type Stats struct {
	Total           int `json:"total" yaml:"total"`
	Favorited       int `json:"favorited" yaml:"favorited"`
	TagsUsed        int `json:"tags_used" yaml:"tags_used"`
	RecentlyCreated int `json:"recently_created" yaml:"recently_created"`
}

// Stats computes summary counts relative to now.
func (l *Library) Stats(ctx context.Context, now time.Time) (Stats, error) {
	prompts, err := l.loadPrompts(ctx)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	used := make(map[string]struct{})
	cutoff := now.Add(-RecentWindow)
	for _, p := range prompts {
		s.Total++
		if p.Favorite {
			s.Favorited++
		}
		if p.CreatedAt.After(cutoff) {
			s.RecentlyCreated++
		}
		for _, t := range p.Tags {
			used[strings.ToLower(t)] = struct{}{}
		}
	}
	s.TagsUsed = len(used)
	return s, nil
}
