package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
	"memecoin-signal-lab/internal/orchestrator"
	"memecoin-signal-lab/internal/storage"
)

// analysisService is the part of the orchestrator the HTTP surface needs.
type analysisService interface {
	Analyze(ctx context.Context, post domain.Post, image *domain.ImageAnalysis) (*domain.FinalAnalysisResult, error)
	Status(ctx context.Context, postID string) (*orchestrator.AnalysisStatus, error)
}

type influencerLister interface {
	TopInfluencers(ctx context.Context, limit int) ([]*domain.VipRecord, error)
}

type apiServer struct {
	analyses analysisService
	vips     influencerLister
	started  time.Time
	logger   *log.Logger
}

func newMux(s *apiServer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/influencers", s.handleInfluencers)
	mux.HandleFunc("/analyze", s.handleAnalyze)

	return mux
}

// handleStatus returns the stored analysis and follow-up task for ?post_id=.
func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "running",
			"uptime": time.Since(s.started).Truncate(time.Second).String(),
		})
		return
	}

	status, err := s.analyses.Status(r.Context(), postID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("status %s: %v", postID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.vips.TopInfluencers(r.Context(), limit)
	if err != nil {
		s.logger.Printf("top influencers: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleAnalyze runs one post submitted as JSON, for posts arriving outside the feed.
func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var post domain.Post
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&post); err != nil {
		http.Error(w, "invalid post: "+err.Error(), http.StatusBadRequest)
		return
	}
	if post.ID == "" || post.Author == "" {
		http.Error(w, "id and author are required", http.StatusBadRequest)
		return
	}
	if post.ObservedAt.IsZero() {
		post.ObservedAt = time.Now().UTC()
	}

	result, err := s.analyses.Analyze(r.Context(), post, nil)
	if err != nil {
		s.logger.Printf("analyze %s: %v", post.ID, err)
		http.Error(w, "analysis failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
