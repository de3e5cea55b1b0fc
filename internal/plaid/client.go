// Package plaid is a minimal client for the Plaid REST API.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

const (
	defaultTimeout    = 30 * time.Second
	linkTokenPath     = "/link/token/create"
	exchangePath      = "/item/public_token/exchange"
	removeItemPath    = "/item/remove"
	balancePath       = "/accounts/balance/get"
	transactionsPath  = "/transactions/get"
	defaultClientName = "Fibox"
)

var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// Config configures a Client.
type Config struct {
	ClientID     string
	Secret       string
	Env          string // sandbox, development or production
	BaseURL      string // overrides Env when set
	Timeout      time.Duration
	ClientName   string
	Language     string
	CountryCodes []string
	Products     []string
}

// Client talks to Plaid on behalf of every user; the API credentials are per deployment.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      credentials
	link       linkSettings
}

type credentials struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type linkSettings struct {
	clientName   string
	language     string
	countryCodes []string
	products     []string
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("%w: plaid client id and secret are required", errs.ErrValidation)
	}
	base := cfg.BaseURL
	if base == "" {
		env := cfg.Env
		if env == "" {
			env = "sandbox"
		}
		var ok bool
		if base, ok = environments[env]; !ok {
			return nil, fmt.Errorf("%w: unknown plaid environment %q", errs.ErrValidation, env)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if len(cfg.CountryCodes) == 0 {
		cfg.CountryCodes = []string{"CA", "US"}
	}
	if len(cfg.Products) == 0 {
		cfg.Products = []string{"auth", "transactions"}
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		creds:      credentials{ClientID: cfg.ClientID, Secret: cfg.Secret},
		link: linkSettings{
			clientName:   cfg.ClientName,
			language:     cfg.Language,
			countryCodes: cfg.CountryCodes,
			products:     cfg.Products,
		},
	}, nil
}

type linkTokenRequest struct {
	credentials
	ClientName   string   `json:"client_name"`
	Language     string   `json:"language"`
	CountryCodes []string `json:"country_codes"`
	User         struct {
		ClientUserID string `json:"client_user_id"`
	} `json:"user"`
	Products []string `json:"products"`
}

// CreateLinkToken creates a link token bound to userRef.
func (c *Client) CreateLinkToken(ctx context.Context, userRef string) (model.LinkToken, error) {
	req := linkTokenRequest{
		credentials:  c.creds,
		ClientName:   c.link.clientName,
		Language:     c.link.language,
		CountryCodes: c.link.countryCodes,
		Products:     c.link.products,
	}
	req.User.ClientUserID = userRef

	var resp model.LinkToken
	if err := c.post(ctx, linkTokenPath, req, &resp); err != nil {
		return model.LinkToken{}, err
	}
	return resp, nil
}

type exchangeRequest struct {
	credentials
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// ExchangePublicToken trades a public token from the link flow for a permanent item credential.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (model.Item, error) {
	var resp exchangeResponse
	if err := c.post(ctx, exchangePath, exchangeRequest{credentials: c.creds, PublicToken: publicToken}, &resp); err != nil {
		return model.Item{}, err
	}
	if resp.AccessToken == "" || resp.ItemID == "" {
		return model.Item{}, fmt.Errorf("%w: exchange returned empty access token or item id", errs.ErrProvider)
	}
	return model.Item{AccessToken: resp.AccessToken, ItemID: resp.ItemID}, nil
}

type accessRequest struct {
	credentials
	AccessToken string `json:"access_token"`
}

// RemoveItem invalidates accessToken and ends Plaid billing for its item.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	var resp struct {
		RequestID string `json:"request_id"`
	}
	return c.post(ctx, removeItemPath, accessRequest{credentials: c.creds, AccessToken: accessToken}, &resp)
}

type balanceResponse struct {
	Accounts []model.Account `json:"accounts"`
	Item     struct {
		ItemID string `json:"item_id"`
	} `json:"item"`
}

// GetBalances fetches real-time balances for every account of the item behind accessToken.
func (c *Client) GetBalances(ctx context.Context, accessToken string) (string, []model.Account, error) {
	var resp balanceResponse
	if err := c.post(ctx, balancePath, accessRequest{credentials: c.creds, AccessToken: accessToken}, &resp); err != nil {
		return "", nil, err
	}
	return resp.Item.ItemID, resp.Accounts, nil
}

type transactionsRequest struct {
	credentials
	AccessToken string `json:"access_token"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Options     struct {
		Count      int      `json:"count,omitempty"`
		AccountIDs []string `json:"account_ids,omitempty"`
	} `json:"options"`
}

type transactionsResponse struct {
	Transactions      []model.Transaction `json:"transactions"`
	TotalTransactions int                 `json:"total_transactions"`
}

// GetTransactions fetches one page of transactions; Plaid applies q.Count as its page size.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, q model.TransactionQuery) ([]model.Transaction, error) {
	req := transactionsRequest{
		credentials: c.creds,
		AccessToken: accessToken,
		StartDate:   q.Range.Start.Format(model.DateLayout),
		EndDate:     q.Range.End.Format(model.DateLayout),
	}
	req.Options.Count = q.Count
	if q.AccountID != "" {
		req.Options.AccountIDs = []string{q.AccountID}
	}

	var resp transactionsResponse
	if err := c.post(ctx, transactionsPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		resp.Transactions = []model.Transaction{}
	}
	return resp.Transactions, nil
}

// post sends a JSON request and decodes a 2xx body into out, or a Plaid error body into *Error.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrProvider, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", errs.ErrProvider, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &Error{Status: resp.StatusCode}
		if jerr := json.Unmarshal(body, perr); jerr != nil || perr.Code == "" {
			perr.Type = "API_ERROR"
			perr.Code = "UNEXPECTED_RESPONSE"
			perr.Message = string(body)
		}
		return perr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", errs.ErrProvider, path, err)
	}
	return nil
}
