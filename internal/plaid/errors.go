package plaid

import (
	"fmt"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
)

// Error is the error body Plaid returns on any non-2xx response.
type Error struct {
	Status         int     `json:"-"`
	Type           string  `json:"error_type"`
	Code           string  `json:"error_code"`
	Message        string  `json:"error_message"`
	DisplayMessage *string `json:"display_message"`
	RequestID      string  `json:"request_id"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("plaid %s/%s (status %d): %s", e.Type, e.Code, e.Status, e.Message)
}

// Unwrap lets callers match any Plaid failure with errors.Is(err, errs.ErrProvider).
func (e *Error) Unwrap() error { return errs.ErrProvider }

// ItemLoginRequired reports whether the user must re-authenticate the item with the bank.
func (e *Error) ItemLoginRequired() bool { return e.Code == "ITEM_LOGIN_REQUIRED" }

// RateLimited reports whether Plaid throttled the request.
func (e *Error) RateLimited() bool { return e.Type == "RATE_LIMIT_EXCEEDED" }
