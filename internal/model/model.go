// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used by the provider.
const DateLayout = "2006-01-02"

// User represents an account stored on the server.
type User struct {
	ID             uuid.UUID // PK
	Username       string    // unique
	PwdHash        []byte    // Argon2id(password, SaltAuth); empty for users not yet upgraded
	SaltAuth       []byte    // per-user auth salt
	LegacyPassword string    // plaintext of earlier deployments, cleared on upgrade
	SessionToken   string    // empty until the first login
	LegacyItems    string    // encoded item field kept for older readers
	CreatedAt      time.Time
}

// Item is one linked institution: the provider's access credential and its item id.
type Item struct {
	AccessToken string
	ItemID      string
}

// LinkToken is a short-lived token the client uses to open the provider's link flow.
type LinkToken struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

// Balances holds the monetary state of an account. Fields the provider reports as null stay invalid.
type Balances struct {
	Available              decimal.NullDecimal `json:"available"`
	Current                decimal.NullDecimal `json:"current"`
	Limit                  decimal.NullDecimal `json:"limit"`
	ISOCurrencyCode        *string             `json:"iso_currency_code"`
	UnofficialCurrencyCode *string             `json:"unofficial_currency_code"`
}

// Account is a snapshot of one account at balance-fetch time, tagged with its item.
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Mask         *string  `json:"mask"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Balances     Balances `json:"balances"`
	ItemID       string   `json:"item_id"`
}

// Transaction is a single posted or pending transaction.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode *string         `json:"iso_currency_code"`
	Date            string          `json:"date"`
	AuthorizedDate  *string         `json:"authorized_date"`
	Name            string          `json:"name"`
	MerchantName    *string         `json:"merchant_name"`
	Pending         bool            `json:"pending"`
	Category        []string        `json:"category"`
	PaymentChannel  string          `json:"payment_channel"`
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionQuery scopes a transaction fetch to one account of one item.
type TransactionQuery struct {
	AccountID string
	Range     DateRange
	Count     int
}

// ItemResult is the outcome of one per-item provider call during aggregation.
type ItemResult struct {
	ItemID   string
	Accounts []Account
	Err      error
}

// ItemFailure records an item whose contribution was omitted from an aggregate.
type ItemFailure struct {
	ItemID string
	Err    error
}

// BalanceReport is the merged result of a balance fan-out.
type BalanceReport struct {
	Accounts []Account
	Failures []ItemFailure
}
