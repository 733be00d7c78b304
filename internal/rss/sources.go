package rss

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsdigest/internal/news"
)

// SourcesConfig is the YAML layout of the curated source list:
//
//	sources:
//	  - id: hn
//	    name: Hacker News
//	    url: https://news.ycombinator.com/rss
//	    source_weight: 0.8
//	    only_external_links: true
type SourcesConfig struct {
	Sources []news.SourceConfig `yaml:"sources"`
}

// LoadSources reads the source list and returns the enabled sources in file order.
func LoadSources(path string) ([]news.SourceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer f.Close()

	var cfg SourcesConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}

	seen := map[string]bool{}
	var enabled []news.SourceConfig
	for i, s := range cfg.Sources {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" || strings.TrimSpace(s.URL) == "" {
			return nil, fmt.Errorf("source #%d: id and url are required", i+1)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("source %q listed twice", s.ID)
		}
		seen[s.ID] = true
		if s.SourceWeight < 0 || s.SourceWeight > 1 {
			return nil, fmt.Errorf("source %q: source_weight must be in [0, 1]", s.ID)
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}
