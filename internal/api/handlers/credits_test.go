package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recallio/internal/domain"
)

type MockCreditStore struct {
	mock.Mock
}

func (m *MockCreditStore) GetBalance(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditStore) Events(ctx context.Context, userID string, limit int) ([]*domain.CreditEvent, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CreditEvent), args.Error(1)
}

func creditRouter(h *CreditHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/credits", h.Balance)
	return r
}

func TestBalanceHandler(t *testing.T) {
	store := new(MockCreditStore)
	store.On("GetBalance", mock.Anything, "user-1").Return(42, nil)

	router := creditRouter(NewCreditHandler(store))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/credits", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreditBalanceResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 42, resp.Balance)
	assert.Empty(t, resp.Events)
	store.AssertNotCalled(t, "Events", mock.Anything, mock.Anything, mock.Anything)
}

func TestBalanceHandler_WithEvents(t *testing.T) {
	store := new(MockCreditStore)
	store.On("GetBalance", mock.Anything, "user-1").Return(9, nil)
	store.On("Events", mock.Anything, "user-1", 5).Return([]*domain.CreditEvent{
		{Action: domain.ActionAsk, Delta: -1, Metadata: "ask", CreatedAt: time.Now()},
	}, nil)

	router := creditRouter(NewCreditHandler(store))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/credits?events=5", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreditBalanceResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "ask", resp.Events[0].Action)
	assert.Equal(t, -1, resp.Events[0].Delta)
}

func TestBalanceHandler_InvalidEventsParam(t *testing.T) {
	store := new(MockCreditStore)
	store.On("GetBalance", mock.Anything, "user-1").Return(9, nil)

	router := creditRouter(NewCreditHandler(store))
	for _, q := range []string{"events=abc", "events=0", "events=-3"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/credits?"+q, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}
