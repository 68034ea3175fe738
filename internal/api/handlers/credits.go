package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/recallio/recallio/internal/api"
	"github.com/recallio/recallio/internal/api/middleware"
	"github.com/recallio/recallio/internal/domain"
)

type CreditStore interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Events(ctx context.Context, userID string, limit int) ([]*domain.CreditEvent, error)
}

type CreditHandler struct {
	store CreditStore
}

func NewCreditHandler(store CreditStore) *CreditHandler {
	return &CreditHandler{store: store}
}

type CreditEventResponse struct {
	Action    string `json:"action"`
	Delta     int    `json:"delta"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreditBalanceResponse struct {
	Balance int                    `json:"balance"`
	Events  []*CreditEventResponse `json:"events,omitempty"`
}

// Balance reports the credit balance and, with ?events=N, the most recent
// ledger entries.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := h.store.GetBalance(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := CreditBalanceResponse{Balance: balance}

	if eventsStr := r.URL.Query().Get("events"); eventsStr != "" {
		limit, err := strconv.Atoi(eventsStr)
		if err != nil || limit <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid events parameter")
			return
		}

		events, err := h.store.Events(r.Context(), userID, limit)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		resp.Events = make([]*CreditEventResponse, len(events))
		for i, e := range events {
			resp.Events[i] = &CreditEventResponse{
				Action:    string(e.Action),
				Delta:     e.Delta,
				Metadata:  e.Metadata,
				CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
			}
		}
	}

	api.Success(w, http.StatusOK, resp)
}
