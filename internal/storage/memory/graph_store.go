package memory

import (
	"context"
	"sort"
	"sync"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// GraphStore is an in-memory implementation of storage.GraphStore.
type GraphStore struct {
	mu    sync.RWMutex
	nodes map[string]*domain.GraphNode // keyed by (label, id)
	edges map[string]*domain.GraphEdge // keyed by (type, from, to)
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		nodes: make(map[string]*domain.GraphNode),
		edges: make(map[string]*domain.GraphEdge),
	}
}

func nodeKey(label domain.NodeLabel, id string) string {
	return string(label) + "|" + id
}

func edgeKey(e *domain.GraphEdge) string {
	return string(e.Type) + "|" + nodeKey(e.FromLabel, e.FromID) + "|" + nodeKey(e.ToLabel, e.ToID)
}

// MergeNode creates the node if absent. Properties of an existing node are updated.
func (s *GraphStore) MergeNode(_ context.Context, n *domain.GraphNode) error {
	if n == nil || n.ID == "" || n.Label == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := nodeKey(n.Label, n.ID)
	props := make(map[string]string, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	if existing, ok := s.nodes[key]; ok {
		for k, v := range props {
			existing.Properties[k] = v
		}
		return nil
	}
	s.nodes[key] = &domain.GraphNode{Label: n.Label, ID: n.ID, Properties: props, CreatedAt: n.CreatedAt}
	return nil
}

// MergeEdge creates the edge if absent.
func (s *GraphStore) MergeEdge(_ context.Context, e *domain.GraphEdge) error {
	if e == nil || e.Type == "" || e.FromID == "" || e.ToID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(e)
	if _, ok := s.edges[key]; ok {
		return nil
	}
	edgeCopy := *e
	s.edges[key] = &edgeCopy
	return nil
}

// EdgesTo returns edges of type t ending at (label, id), newest first.
func (s *GraphStore) EdgesTo(_ context.Context, t domain.EdgeType, label domain.NodeLabel, id string, limit int) ([]*domain.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GraphEdge
	for _, e := range s.edges {
		if e.Type == t && e.ToLabel == label && e.ToID == id {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt == result[j].CreatedAt {
			return result[i].FromID < result[j].FromID
		}
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// NodeCount returns the number of stored nodes.
func (s *GraphStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of stored edges.
func (s *GraphStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

var _ storage.GraphStore = (*GraphStore)(nil)
