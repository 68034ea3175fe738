package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/recallio/recallio/internal/api"
	"github.com/recallio/recallio/internal/api/middleware"
	"github.com/recallio/recallio/internal/service"
)

type AskPipeline interface {
	Ask(ctx context.Context, userID string, in service.AskInput) (*service.AskOutput, error)
	Flashcards(ctx context.Context, userID string, in service.FlashcardsInput) (*service.FlashcardsOutput, error)
}

type AskHandler struct {
	svc AskPipeline
}

func NewAskHandler(svc AskPipeline) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Query      string   `json:"query"`
	Sources    []string `json:"sources,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
	Premium    bool     `json:"premium,omitempty"`
}

type AskResponse struct {
	Answer           string   `json:"answer"`
	Sources          []string `json:"sources,omitempty"`
	KeySource        string   `json:"key_source"`
	RemainingCredits int      `json:"remaining_credits,omitempty"`
	TokensUsed       int      `json:"tokens_used"`
	NoContext        bool     `json:"no_context,omitempty"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.svc.Ask(r.Context(), userID, service.AskInput{
		Query:      req.Query,
		Sources:    req.Sources,
		DocumentID: req.DocumentID,
		Provider:   req.Provider,
		Model:      req.Model,
		Premium:    req.Premium,
		BYOKKey:    middleware.GetBYOKKey(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:           out.Answer,
		Sources:          out.Sources,
		KeySource:        string(out.KeySource),
		RemainingCredits: out.RemainingCredits,
		TokensUsed:       out.TokensUsed,
		NoContext:        out.NoContext,
	})
}

type FlashcardsRequest struct {
	Query      string   `json:"query,omitempty"`
	Count      int      `json:"count,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

type FlashcardItem struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type FlashcardsResponse struct {
	Cards            []FlashcardItem `json:"cards"`
	ParseMode        string          `json:"parse_mode,omitempty"`
	Sources          []string        `json:"sources,omitempty"`
	KeySource        string          `json:"key_source"`
	RemainingCredits int             `json:"remaining_credits,omitempty"`
	TokensUsed       int             `json:"tokens_used"`
	NoContext        bool            `json:"no_context,omitempty"`
}

func (h *AskHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req FlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.svc.Flashcards(r.Context(), userID, service.FlashcardsInput{
		Query:      req.Query,
		Count:      req.Count,
		Sources:    req.Sources,
		DocumentID: req.DocumentID,
		Provider:   req.Provider,
		Model:      req.Model,
		BYOKKey:    middleware.GetBYOKKey(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	cards := make([]FlashcardItem, len(out.Cards))
	for i, c := range out.Cards {
		cards[i] = FlashcardItem{Front: c.Front, Back: c.Back}
	}

	api.Success(w, http.StatusOK, FlashcardsResponse{
		Cards:            cards,
		ParseMode:        string(out.ParseMode),
		Sources:          out.Sources,
		KeySource:        string(out.KeySource),
		RemainingCredits: out.RemainingCredits,
		TokensUsed:       out.TokensUsed,
		NoContext:        out.NoContext,
	})
}
