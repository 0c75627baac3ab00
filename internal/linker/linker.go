// Package linker relates knowledge sources to each other.
//
// Two sources are linked when they share a tag; the link weight is the
// number of shared tags. Manual links are persisted in the keyword
// index's knowledge_links table and add their weight on top. Links are
// undirected.
package linker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/gokb/internal/storage"
	"github.com/dshills/gokb/pkg/types"
)

// DefaultRelatedLimit applies when Related is called with a non-positive limit
const DefaultRelatedLimit = 10

// LinkStore supplies tags and persists manual links
type LinkStore interface {
	SourceTags(ctx context.Context) (map[string][]string, error)
	AddLink(ctx context.Context, link storage.Link) error
	Links(ctx context.Context) ([]storage.Link, error)
}

// Relation is one neighbour of a source
type Relation struct {
	Source string  `json:"source"`
	Weight float64 `json:"weight"`
}

// GraphStats summarises the link graph
type GraphStats struct {
	Documents      int     `json:"total_documents"`
	Links          int     `json:"total_links"`
	AvgLinksPerDoc float64 `json:"avg_links_per_doc"`
}

// Graph is an in-memory adjacency view of the links between sources
type Graph struct {
	store LinkStore

	mu  sync.RWMutex
	adj map[string]map[string]float64
}

// New creates an empty graph backed by store
func New(store LinkStore) *Graph {
	return &Graph{
		store: store,
		adj:   make(map[string]map[string]float64),
	}
}

// FindLinks derives links from shared tags: every pair of distinct
// sources with a tag in common is related, weighted by the number of
// shared tags
func FindLinks(sourceTags map[string][]string) map[string]map[string]float64 {
	bySourceTag := make(map[string][]string)
	for source, tags := range sourceTags {
		seen := make(map[string]bool)
		for _, tag := range tags {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			bySourceTag[tag] = append(bySourceTag[tag], source)
		}
	}

	links := make(map[string]map[string]float64)
	for _, sources := range bySourceTag {
		sort.Strings(sources)
		for i, a := range sources {
			for _, b := range sources[i+1:] {
				if a == b {
					continue
				}
				addEdge(links, a, b, 1)
			}
		}
	}
	return links
}

// Load rebuilds the graph from the store's tags and manual links
func (g *Graph) Load(ctx context.Context) error {
	tags, err := g.store.SourceTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	manual, err := g.store.Links(ctx)
	if err != nil {
		return fmt.Errorf("failed to load links: %w", err)
	}

	adj := FindLinks(tags)
	for _, l := range manual {
		addEdge(adj, l.Source, l.Target, l.Weight)
	}

	g.mu.Lock()
	g.adj = adj
	g.mu.Unlock()
	return nil
}

// AddLink persists a manual link between two sources and adds it to the graph
func (g *Graph) AddLink(ctx context.Context, a, b string, weight float64) error {
	if a == "" || b == "" {
		return fmt.Errorf("%w: link endpoints are required", types.ErrValidation)
	}
	if a == b {
		return fmt.Errorf("%w: cannot link %s to itself", types.ErrValidation, a)
	}
	if weight <= 0 {
		weight = 1
	}
	if err := g.store.AddLink(ctx, storage.Link{Source: a, Target: b, Weight: weight}); err != nil {
		return err
	}

	g.mu.Lock()
	addEdge(g.adj, a, b, weight)
	g.mu.Unlock()
	return nil
}

// Related returns the neighbours of source, strongest first
func (g *Graph) Related(source string, limit int) []Relation {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	g.mu.RLock()
	neighbours := g.adj[source]
	related := make([]Relation, 0, len(neighbours))
	for other, w := range neighbours {
		related = append(related, Relation{Source: other, Weight: w})
	}
	g.mu.RUnlock()

	sort.Slice(related, func(i, j int) bool {
		if related[i].Weight != related[j].Weight {
			return related[i].Weight > related[j].Weight
		}
		return related[i].Source < related[j].Source
	})
	if len(related) > limit {
		related = related[:limit]
	}
	return related
}

// Stats summarises the graph
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	degree := 0
	for _, n := range g.adj {
		degree += len(n)
	}
	stats := GraphStats{
		Documents: len(g.adj),
		Links:     degree / 2,
	}
	if stats.Documents > 0 {
		stats.AvgLinksPerDoc = float64(stats.Links) / float64(stats.Documents)
	}
	return stats
}

func addEdge(adj map[string]map[string]float64, a, b string, w float64) {
	if adj[a] == nil {
		adj[a] = make(map[string]float64)
	}
	if adj[b] == nil {
		adj[b] = make(map[string]float64)
	}
	adj[a][b] += w
	adj[b][a] += w
}
