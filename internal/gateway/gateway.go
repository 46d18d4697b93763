// Package gateway abstracts the external payment processor. The engine calls
// Capture at the fund boundary and Release at the release boundary; everything
// between those calls is custody bookkeeping in the ledger.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Receipt is the processor's confirmation of a capture or release.
type Receipt struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	TS        string `json:"ts"`
}

type Gateway interface {
	// Capture moves the client's funds into custody for an order.
	Capture(ctx context.Context, orderID string, amount int64, currency string) (Receipt, error)
	// Release transfers custodied funds to the freelancer.
	Release(ctx context.Context, orderID string, amount int64, currency string) (Receipt, error)
}

// Dev is an in-process gateway that always succeeds. It backs local
// development and tests; receipts are deterministic per call order.
type Dev struct {
	Now      func() time.Time
	captures int
	releases int
}

func (g *Dev) Capture(_ context.Context, orderID string, amount int64, currency string) (Receipt, error) {
	g.captures++
	return g.receipt("cap", orderID, g.captures, amount, currency), nil
}

func (g *Dev) Release(_ context.Context, orderID string, amount int64, currency string) (Receipt, error) {
	g.releases++
	return g.receipt("rel", orderID, g.releases, amount, currency), nil
}

// Captures returns how many capture calls the gateway has seen.
func (g *Dev) Captures() int { return g.captures }

// Releases returns how many release calls the gateway has seen.
func (g *Dev) Releases() int { return g.releases }

func (g *Dev) receipt(prefix, orderID string, n int, amount int64, currency string) Receipt {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return Receipt{
		Reference: fmt.Sprintf("%s_%s_%d", prefix, orderID, n),
		Amount:    amount,
		Currency:  currency,
		TS:        now().UTC().Format(time.RFC3339),
	}
}

// HTTP talks to a real processor over its JSON API.
type HTTP struct {
	BaseURL string
	Secret  string
	Client  *http.Client
}

func NewHTTP(baseURL, secret string) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTP) Capture(ctx context.Context, orderID string, amount int64, currency string) (Receipt, error) {
	return g.post(ctx, "/captures", orderID, amount, currency)
}

func (g *HTTP) Release(ctx context.Context, orderID string, amount int64, currency string) (Receipt, error) {
	return g.post(ctx, "/releases", orderID, amount, currency)
}

func (g *HTTP) post(ctx context.Context, path, orderID string, amount int64, currency string) (Receipt, error) {
	body, err := json.Marshal(map[string]any{
		"order_id": orderID,
		"amount":   amount,
		"currency": currency,
	})
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+g.Secret)
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	res, err := client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Receipt{}, fmt.Errorf("gateway status %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	var receipt Receipt
	if err := json.NewDecoder(res.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("decode gateway receipt: %w", err)
	}
	return receipt, nil
}
