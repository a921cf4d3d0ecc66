package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using PostgreSQL.
// The full result is kept as a JSONB document; patterns and analyzed_at are
// lifted into columns for the historical queries.
type AnalysisStore struct {
	pool *Pool
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(pool *Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

// Insert appends a result. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(ctx context.Context, r *domain.FinalAnalysisResult) error {
	began := time.Now()
	err := s.insert(ctx, r)
	observe("analysis_insert", began, err)
	return err
}

func (s *AnalysisStore) insert(ctx context.Context, r *domain.FinalAnalysisResult) error {
	if r == nil || r.AnalysisID == "" || r.Post.ID == "" {
		return storage.ErrInvalidInput
	}

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	patterns := r.Candidate.Patterns
	if patterns == nil {
		patterns = []string{}
	}

	query := `
		INSERT INTO analyses (
			analysis_id, post_id, author, category, patterns, confidence, analyzed_at, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		r.AnalysisID,
		r.Post.ID,
		r.Post.Author,
		string(r.Candidate.Category),
		patterns,
		r.Confidence,
		r.AnalyzedAt,
		doc,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetByPostID returns the most recent result for a post. Returns ErrNotFound if none.
func (s *AnalysisStore) GetByPostID(ctx context.Context, postID string) (*domain.FinalAnalysisResult, error) {
	query := `
		SELECT document
		FROM analyses
		WHERE post_id = $1
		ORDER BY analyzed_at DESC, analysis_id DESC
		LIMIT 1
	`

	r, err := scanAnalysis(s.pool.QueryRow(ctx, query, postID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get analysis by post id: %w", err)
	}
	return r, nil
}

// ListByPattern returns results tagged with pattern analyzed within [start, end].
func (s *AnalysisStore) ListByPattern(ctx context.Context, pattern string, start, end time.Time) ([]*domain.FinalAnalysisResult, error) {
	began := time.Now()
	out, err := s.listByPattern(ctx, pattern, start, end)
	observe("analysis_list_by_pattern", began, err)
	return out, err
}

func (s *AnalysisStore) listByPattern(ctx context.Context, pattern string, start, end time.Time) ([]*domain.FinalAnalysisResult, error) {
	query := `
		SELECT document
		FROM analyses
		WHERE $1 = ANY(patterns) AND analyzed_at >= $2 AND analyzed_at <= $3
		ORDER BY analyzed_at ASC, analysis_id ASC
	`

	rows, err := s.pool.Query(ctx, query, pattern, start, end)
	if err != nil {
		return nil, fmt.Errorf("list analyses by pattern: %w", err)
	}
	defer rows.Close()

	var results []*domain.FinalAnalysisResult
	for rows.Next() {
		r, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return results, nil
}

func scanAnalysis(row pgx.Row) (*domain.FinalAnalysisResult, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var r domain.FinalAnalysisResult
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &r, nil
}
