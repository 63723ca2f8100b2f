// Package catalog serves track module ordering from memory or a YAML file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"track-billing/internal/domain"
	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.ContentCatalog = (*StaticCatalog)(nil)

type StaticCatalog struct {
	mu     sync.RWMutex
	tracks map[string][]string
}

func NewStaticCatalog(tracks map[string][]string) *StaticCatalog {
	c := &StaticCatalog{tracks: make(map[string][]string, len(tracks))}
	for id, modules := range tracks {
		c.Set(id, modules)
	}
	return c
}

// file is the on-disk layout:
//
//	tracks:
//	  go-backend: [mod-intro, mod-http, mod-db]
type file struct {
	Tracks map[string][]string `yaml:"tracks"`
}

// LoadStaticCatalog reads a catalog YAML file.
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for id, modules := range f.Tracks {
		if id == "" || len(modules) == 0 {
			return nil, fmt.Errorf("catalog track %q has no modules", id)
		}
	}
	return NewStaticCatalog(f.Tracks), nil
}

// Demo is the catalog used in dev mode without a file.
func Demo() *StaticCatalog {
	return NewStaticCatalog(map[string][]string{
		"go-backend":   {"go-basics", "go-http", "go-postgres", "go-concurrency", "go-deploy"},
		"data-science": {"ds-python", "ds-pandas", "ds-stats", "ds-ml"},
	})
}

func (c *StaticCatalog) Set(trackID string, modules []string) {
	cp := append([]string(nil), modules...)
	c.mu.Lock()
	c.tracks[trackID] = cp
	c.mu.Unlock()
}

func (c *StaticCatalog) ModuleIDs(ctx context.Context, trackID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	modules, ok := c.tracks[trackID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]string(nil), modules...), nil
}

// Tracks lists the known track ids in sorted order.
func (c *StaticCatalog) Tracks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tracks))
	for id := range c.tracks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
