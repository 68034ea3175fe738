package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recallio/internal/api/middleware"
	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/pagination"
	"github.com/recallio/recallio/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, userID string, in service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockDocumentService) Enqueue(ctx context.Context, userID string, in service.IngestInput) (*domain.IngestJob, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockDocumentService) JobStatus(ctx context.Context, userID, jobID string) (*domain.IngestJob, error) {
	args := m.Called(ctx, userID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, userID, afterID string, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, userID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, userID, documentID string) (int64, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func documentRouter(h *DocumentHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/documents", h.Ingest)
	r.Get("/documents", h.List)
	r.Get("/documents/{id}", h.Get)
	r.Delete("/documents/{id}", h.Delete)
	r.Get("/jobs/{id}", h.GetJob)
	return r
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-1")
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestIngestHandler_Sync(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Ingest", mock.Anything, "user-1", service.IngestInput{Name: "doc.pdf", Text: "body", PageCount: 3}).
		Return(&service.IngestResult{DocumentID: "doc-1", ChunkCount: 5, WordCount: 100, EmbedTokens: 120}, nil)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/documents", `{"name":"doc.pdf","text":"body","page_count":3}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp IngestResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, 5, resp.ChunkCount)
	svc.AssertExpectations(t)
}

func TestIngestHandler_Async(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Enqueue", mock.Anything, "user-1", mock.Anything).
		Return(&domain.IngestJob{ID: "job-1", Status: domain.IngestJobStatusPending, CreatedAt: time.Now()}, nil)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/documents?async=1", `{"name":"doc.pdf","text":"body"}`))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp IngestJobResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "pending", resp.Status)
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestHandler_Validation(t *testing.T) {
	router := documentRouter(NewDocumentHandler(new(MockDocumentService)))

	for _, body := range []string{`not json`, `{"text":"body"}`, `{"name":"doc.pdf"}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodPost, "/documents", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestIngestHandler_Unauthenticated(t *testing.T) {
	router := documentRouter(NewDocumentHandler(new(MockDocumentService)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"name":"a","text":"b"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDocumentHandler(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Get", mock.Anything, "user-1", "doc-1").Return(&domain.Document{
		ID: "doc-1", Name: "doc.pdf", StorageKey: "documents/user-1/doc-1/doc.pdf",
	}, nil)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/documents/doc-1", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DocumentResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "doc-1", resp.ID)
	assert.True(t, resp.HasFile)
}

func TestGetDocumentHandler_NotFound(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Get", mock.Anything, "user-1", "nope").Return(nil, domain.ErrDocumentNotFound)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/documents/nope", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocumentsHandler_Pagination(t *testing.T) {
	docs := []*domain.Document{
		{ID: "doc-1", Name: "a.pdf"},
		{ID: "doc-2", Name: "b.pdf"},
	}
	svc := new(MockDocumentService)
	svc.On("List", mock.Anything, "user-1", "", 2).Return(docs, nil)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/documents?limit=2", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp pagination.PageResult[*DocumentResponse]
	decodeData(t, rec, &resp)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.HasMore)

	afterID, err := pagination.DecodeCursor(resp.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", afterID)
}

func TestListDocumentsHandler_BadCursor(t *testing.T) {
	router := documentRouter(NewDocumentHandler(new(MockDocumentService)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/documents?cursor=garbage", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocumentHandler(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Delete", mock.Anything, "user-1", "doc-1").Return(int64(7), nil)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/documents/doc-1", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeleteDocumentResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(7), resp.VectorsRemoved)
}

func TestGetJobHandler_OwnerScoped(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("JobStatus", mock.Anything, "user-1", "job-1").Return(nil, domain.ErrIngestJobNotFound)

	router := documentRouter(NewDocumentHandler(svc))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/job-1", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
