package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/store"
	"go.uber.org/zap"
)

type searchRequest struct {
	Query string `json:"query"`
	search.Options
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	response, err := s.engine.Search(r.Context(), req.Query, req.Options)
	if err != nil {
		// The engine reports failure inside the response envelope too.
		s.logger.Error("search failed", zap.Error(err))
		s.respondJSON(w, statusForError(err), response)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type contextSearchRequest struct {
	Query   string              `json:"query"`
	Context models.AgentContext `json:"context"`
	search.Options
}

func (s *Server) handleSearchWithContext(w http.ResponseWriter, r *http.Request) {
	var req contextSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("context search request",
		zap.String("query", req.Query),
		zap.Strings("objectives", req.Context.Objectives))
	response, err := s.engine.SearchWithContext(r.Context(), req.Query, req.Context, req.Options)
	if err != nil {
		s.logger.Error("context search failed", zap.Error(err))
		s.respondJSON(w, statusForError(err), response)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type addRecordRequest struct {
	ID       string          `json:"id,omitempty"`
	Content  string          `json:"content"`
	Vector   []float32       `json:"vector,omitempty"`
	Metadata models.Metadata `json:"metadata,omitempty"`
}

// handleAddRecord stores a record. When a vector is supplied it is stored
// as-is; otherwise the content is embedded first.
func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req addRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" && len(req.Vector) == 0 {
		s.respondError(w, http.StatusBadRequest, "content or vector is required")
		return
	}

	if len(req.Vector) > 0 {
		rec := &models.VectorRecord{
			ID:       req.ID,
			Vector:   req.Vector,
			Content:  req.Content,
			Metadata: req.Metadata,
		}
		if err := s.store.Put(rec); err != nil {
			s.logger.Error("add record failed", zap.Error(err))
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "status": "stored"})
		return
	}

	rec, err := s.store.AddText(r.Context(), req.Content, req.Metadata)
	if err != nil {
		s.logger.Error("add record failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "status": "stored"})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.store.GetByID(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete record request", zap.String("id", id))
	if !s.store.Delete(id) {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type ingestRequest struct {
	Path      string `json:"path"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

// handleIngest chunks a file and stores one record per chunk. On a partial
// failure the records created before the failure are kept and reported.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.config.Search.FileChunkSize
	}
	s.logger.Debug("ingest request", zap.String("path", req.Path), zap.Int("chunk_size", chunkSize))

	recs, err := s.store.ProcessFile(r.Context(), req.Path, chunkSize)
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	if err != nil {
		s.logger.Error("ingest failed", zap.String("path", req.Path), zap.Error(err))
		s.respondJSON(w, statusForError(err), map[string]interface{}{
			"path":            req.Path,
			"records_created": len(recs),
			"record_ids":      ids,
			"error":           err.Error(),
		})
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"path":            req.Path,
		"records_created": len(recs),
		"record_ids":      ids,
	})
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		s.respondError(w, http.StatusNotImplemented, "persistence not enabled")
		return
	}
	result, err := s.persister.Save(r.Context())
	if err != nil {
		s.logger.Error("persist failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, result)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		s.respondError(w, http.StatusNotImplemented, "persistence not enabled")
		return
	}
	result, err := s.persister.Load(r.Context())
	if err != nil {
		s.logger.Error("restore failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, result)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"records":    s.store.Len(),
		"dimensions": s.store.Dimensions(),
	}
	if !s.startedAt.IsZero() {
		resp["uptime_seconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	resp["config"] = map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"top_k":                s.config.Search.TopK,
		"similarity_threshold": s.config.Search.SimilarityThreshold,
		"file_chunk_size":      s.config.Search.FileChunkSize,
		"data_dir":             s.config.Storage.DataDir,
		"auto_persist":         s.config.Storage.AutoPersist,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusForError maps the package sentinel errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidVector):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
