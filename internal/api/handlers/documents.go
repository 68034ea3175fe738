package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recallio/recallio/internal/api"
	"github.com/recallio/recallio/internal/api/middleware"
	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/pagination"
	"github.com/recallio/recallio/internal/service"
)

type DocumentService interface {
	Ingest(ctx context.Context, userID string, in service.IngestInput) (*service.IngestResult, error)
	Enqueue(ctx context.Context, userID string, in service.IngestInput) (*domain.IngestJob, error)
	JobStatus(ctx context.Context, userID, jobID string) (*domain.IngestJob, error)
	Get(ctx context.Context, userID, documentID string) (*domain.Document, error)
	List(ctx context.Context, userID, afterID string, limit int) ([]*domain.Document, error)
	Delete(ctx context.Context, userID, documentID string) (int64, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type IngestRequest struct {
	Name       string `json:"name"`
	Text       string `json:"text"`
	PageCount  int    `json:"page_count,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

type IngestResponse struct {
	DocumentID  string `json:"document_id"`
	ChunkCount  int    `json:"chunk_count"`
	WordCount   int    `json:"word_count"`
	EmbedTokens int    `json:"embed_tokens"`
}

type IngestJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Retries   int    `json:"retries,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PageCount   int    `json:"page_count"`
	WordCount   int    `json:"word_count"`
	ChunkCount  int    `json:"chunk_count"`
	EmbedTokens int    `json:"embed_tokens"`
	HasFile     bool   `json:"has_file"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type DeleteDocumentResponse struct {
	VectorsRemoved int64 `json:"vectors_removed"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Name:        d.Name,
		PageCount:   d.PageCount,
		WordCount:   d.WordCount,
		ChunkCount:  d.ChunkCount,
		EmbedTokens: d.EmbedTokens,
		HasFile:     d.StorageKey != "",
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func ingestJobToResponse(j *domain.IngestJob) *IngestJobResponse {
	return &IngestJobResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		Retries:   j.Retries,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Ingest accepts extracted document text. With ?async=1 the document is
// queued for the background worker instead of being processed inline.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	input := service.IngestInput{
		Name:       req.Name,
		Text:       req.Text,
		PageCount:  req.PageCount,
		StorageKey: req.StorageKey,
	}

	if r.URL.Query().Get("async") == "1" {
		job, err := h.svc.Enqueue(r.Context(), userID, input)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusAccepted, ingestJobToResponse(job))
		return
	}

	result, err := h.svc.Ingest(r.Context(), userID, input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{
		DocumentID:  result.DocumentID,
		ChunkCount:  result.ChunkCount,
		WordCount:   result.WordCount,
		EmbedTokens: result.EmbedTokens,
	})
}

func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.JobStatus(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ingestJobToResponse(job))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	afterID, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	docs, err := h.svc.List(r.Context(), userID, afterID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		items[i] = documentToResponse(d)
	}

	cursor := pagination.CreateNextCursor(docs, limit, func(d *domain.Document) string { return d.ID })
	api.Success(w, http.StatusOK, pagination.PageResult[*DocumentResponse]{
		Items:   items,
		Cursor:  cursor,
		HasMore: cursor != "",
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	removed, err := h.svc.Delete(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteDocumentResponse{VectorsRemoved: removed})
}
