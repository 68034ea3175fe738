package domain

import "time"

// KeySource identifies which tier supplied the provider key for a request.
// The tiers are mutually exclusive and resolved in priority order
// BYOK > team > credits.
type KeySource string

const (
	KeySourceBYOK    KeySource = "byok"
	KeySourceTeam    KeySource = "team"
	KeySourceCredits KeySource = "credits"
)

// CreditAction names a billable operation. Costs are a pure lookup table;
// credits are only consumed when the server's own provider key serves the
// request.
type CreditAction string

const (
	ActionAsk            CreditAction = "ask"
	ActionAskPremium     CreditAction = "ask_premium"
	ActionFlashcards     CreditAction = "flashcards"
	ActionIngestDocument CreditAction = "ingest_document"
)

var creditCosts = map[CreditAction]int{
	ActionAsk:            1,
	ActionAskPremium:     3,
	ActionFlashcards:     2,
	ActionIngestDocument: 1,
}

// CostOf returns the credit cost for an action. Unknown actions return
// ErrUnknownAction so a typo can never bill zero.
func CostOf(action CreditAction) (int, error) {
	cost, ok := creditCosts[action]
	if !ok {
		return 0, ErrUnknownAction
	}
	return cost, nil
}

// CreditAccount holds a user's balance. The balance is mutated only through
// the ledger's add/deduct operations, never directly by the pipeline.
type CreditAccount struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}

// CreditEvent is one audit-log entry for a balance change. Delta is negative
// for deductions.
type CreditEvent struct {
	ID        string
	UserID    string
	Action    CreditAction
	Delta     int
	Metadata  string
	CreatedAt time.Time
}

// TeamKey is a shared provider credential configured for a team. Members
// resolve to it when they have no key of their own.
type TeamKey struct {
	TeamName  string
	APIKey    string
	UpdatedAt time.Time
}
