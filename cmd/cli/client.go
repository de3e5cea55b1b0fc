package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// envelope mirrors the server's response body.
type envelope struct {
	Result  string          `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiError is a "failed" envelope or a non-JSON error response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error: status=%d msg=%s", e.Status, e.Message)
}

type apiClient struct {
	base string
	hc   *http.Client
}

func newAPIClient(addr string, timeout time.Duration) *apiClient {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &apiClient{base: strings.TrimRight(addr, "/"), hc: &http.Client{Timeout: timeout}}
}

// get calls path with params and decodes the envelope's data into out (if non-nil).
func (c *apiClient) get(ctx context.Context, path string, params url.Values, out any) (string, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode/100 != 2 || env.Result != "success" {
		return "", &apiError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Message, nil
}

func credParams(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func (s session) params() url.Values {
	return url.Values{"username": {s.Username}, "token": {s.Token}}
}
