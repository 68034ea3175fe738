package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// EncodeCursor creates an opaque cursor from the last item ID
func EncodeCursor(lastID string) string {
	if lastID == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte("v1|" + lastID))
}

// DecodeCursor returns the last item ID carried by the cursor. An empty
// cursor means "first page".
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] != "v1" || parts[1] == "" {
		return "", ErrInvalidCursor
	}
	return parts[1], nil
}

// CreateNextCursor creates a cursor for the next page based on the last item
// Returns empty string if there are no more items
func CreateNextCursor[T any](items []T, limit int, getID func(T) string) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	return EncodeCursor(getID(items[len(items)-1]))
}
