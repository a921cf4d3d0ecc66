package clickhouse

import (
	"context"
	"fmt"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// GraphStore implements storage.GraphStore on two ReplacingMergeTree tables.
// Reads use FINAL so repeated merges collapse to a single row.
type GraphStore struct {
	conn *Conn
}

// NewGraphStore creates a new GraphStore.
func NewGraphStore(conn *Conn) *GraphStore {
	return &GraphStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GraphStore = (*GraphStore)(nil)

// MergeNode creates the node if absent. New properties are merged into an
// existing node by writing a newer row version.
func (s *GraphStore) MergeNode(ctx context.Context, n *domain.GraphNode) error {
	if n == nil || n.ID == "" || n.Label == "" {
		return storage.ErrInvalidInput
	}

	existing, found, err := s.getNode(ctx, n.Label, n.ID)
	if err != nil {
		return fmt.Errorf("get node: %w", err)
	}

	props := make(map[string]string, len(n.Properties))
	createdAt := n.CreatedAt
	if found {
		changed := false
		for k, v := range existing.Properties {
			props[k] = v
		}
		for k, v := range n.Properties {
			if props[k] != v {
				changed = true
			}
			props[k] = v
		}
		if !changed {
			return nil
		}
		createdAt = existing.CreatedAt
	} else {
		for k, v := range n.Properties {
			props[k] = v
		}
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO graph_nodes (label, id, properties, created_at)
		VALUES (?, ?, ?, ?)
	`, string(n.Label), n.ID, props, uint64(createdAt))
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// MergeEdge creates the edge if absent.
func (s *GraphStore) MergeEdge(ctx context.Context, e *domain.GraphEdge) error {
	began := time.Now()
	err := s.mergeEdge(ctx, e)
	observe("graph_merge_edge", began, err)
	return err
}

func (s *GraphStore) mergeEdge(ctx context.Context, e *domain.GraphEdge) error {
	if e == nil || e.Type == "" || e.FromID == "" || e.ToID == "" {
		return storage.ErrInvalidInput
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM graph_edges
		WHERE edge_type = ? AND from_label = ? AND from_id = ? AND to_label = ? AND to_id = ?
	`, string(e.Type), string(e.FromLabel), e.FromID, string(e.ToLabel), e.ToID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check edge exists: %w", err)
	}
	if count > 0 {
		return nil
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO graph_edges (edge_type, from_label, from_id, to_label, to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(e.Type), string(e.FromLabel), e.FromID, string(e.ToLabel), e.ToID, uint64(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

// EdgesTo returns edges of type t pointing at (label, id), newest first.
func (s *GraphStore) EdgesTo(ctx context.Context, t domain.EdgeType, label domain.NodeLabel, id string, limit int) ([]*domain.GraphEdge, error) {
	began := time.Now()
	out, err := s.edgesTo(ctx, t, label, id, limit)
	observe("graph_edges_to", began, err)
	return out, err
}

func (s *GraphStore) edgesTo(ctx context.Context, t domain.EdgeType, label domain.NodeLabel, id string, limit int) ([]*domain.GraphEdge, error) {
	query := `
		SELECT edge_type, from_label, from_id, to_label, to_id, created_at
		FROM graph_edges FINAL
		WHERE edge_type = ? AND to_label = ? AND to_id = ?
		ORDER BY created_at DESC, from_id ASC
	`
	args := []interface{}{string(t), string(label), id}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	return scanGraphEdges(rows)
}

func (s *GraphStore) getNode(ctx context.Context, label domain.NodeLabel, id string) (*domain.GraphNode, bool, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT properties, created_at
		FROM graph_nodes FINAL
		WHERE label = ? AND id = ?
	`, string(label), id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}

	n := &domain.GraphNode{Label: label, ID: id}
	var createdAt uint64
	if err := rows.Scan(&n.Properties, &createdAt); err != nil {
		return nil, false, err
	}
	n.CreatedAt = int64(createdAt)
	return n, true, nil
}

func scanGraphEdges(rows chRows) ([]*domain.GraphEdge, error) {
	var edges []*domain.GraphEdge

	for rows.Next() {
		var e domain.GraphEdge
		var edgeType, fromLabel, toLabel string
		var createdAt uint64

		if err := rows.Scan(&edgeType, &fromLabel, &e.FromID, &toLabel, &e.ToID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan graph edge row: %w", err)
		}

		e.Type = domain.EdgeType(edgeType)
		e.FromLabel = domain.NodeLabel(fromLabel)
		e.ToLabel = domain.NodeLabel(toLabel)
		e.CreatedAt = int64(createdAt)
		edges = append(edges, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graph edge rows: %w", err)
	}

	return edges, nil
}

// NodeCount returns the number of distinct nodes with the given label.
func (s *GraphStore) NodeCount(ctx context.Context, label domain.NodeLabel) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM graph_nodes FINAL WHERE label = ?`, string(label)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}
