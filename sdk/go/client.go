// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dutchsdk is the Go client for a dutchd daemon.
package dutchsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	operatorHeader = "X-Operator-Credential"
	clearingHeader = "X-Clearing-Credential"
)

// Client talks to one dutchd daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// OfferingParams configures a new offering.
type OfferingParams struct {
	TokenName     string `json:"token_name"`
	TokenSymbol   string `json:"token_symbol"`
	Supply        string `json:"supply"`
	StartingPrice string `json:"starting_price"`
	DecayRate     string `json:"decay_rate"`
	StartTick     uint64 `json:"start_tick"`
	DurationTicks uint64 `json:"duration_ticks"`
	LiquidityPct  string `json:"liquidity_pct"`
}

// Credential identifies a capability minted by the daemon. The resource id
// is the secret; whoever presents it holds the capability.
type Credential struct {
	ResourceID string            `json:"resource_id"`
	Tags       map[string]string `json:"tags"`
}

// CreateOfferingResult is the daemon's answer to a create call.
type CreateOfferingResult struct {
	ID                 string     `json:"id"`
	ClearingCredential Credential `json:"clearing_credential"`
}

// CreateOffering lists a new token sale. Requires the operator credential.
func (c *Client) CreateOffering(ctx context.Context, operator string, params OfferingParams) (*CreateOfferingResult, error) {
	var result CreateOfferingResult
	if err := c.post(ctx, "/offerings", params, map[string]string{operatorHeader: operator}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Offering is a read-only snapshot of one sale.
type Offering struct {
	ID                   uint32          `json:"id"`
	State                string          `json:"state"`
	StartingPrice        decimal.Decimal `json:"starting_price"`
	DecayRate            decimal.Decimal `json:"decay_rate"`
	StartTick            uint64          `json:"start_tick"`
	DurationTicks        uint64          `json:"duration_ticks"`
	LiquidityFraction    decimal.Decimal `json:"liquidity_fraction"`
	TotalSupplyOffered   decimal.Decimal `json:"total_supply_offered"`
	Remaining            decimal.Decimal `json:"remaining"`
	Proceeds             decimal.Decimal `json:"proceeds"`
	LiquidityProvisioned bool            `json:"liquidity_provisioned"`
}

// GetOffering fetches the snapshot for one offering.
func (c *Client) GetOffering(ctx context.Context, id uint32) (*Offering, error) {
	var offering Offering
	if err := c.get(ctx, fmt.Sprintf("/offerings/%d", id), &offering); err != nil {
		return nil, err
	}
	return &offering, nil
}

// Quote is a point on an offering's price curve.
type Quote struct {
	ID        uint32          `json:"id"`
	Tick      uint64          `json:"tick"`
	State     string          `json:"state"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining"`
}

// GetPrice fetches the current curve point for an offering.
func (c *Client) GetPrice(ctx context.Context, id uint32) (*Quote, error) {
	var quote Quote
	if err := c.get(ctx, fmt.Sprintf("/offerings/%d/price", id), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// StreamPrices subscribes to the price feed for an offering and delivers
// quotes until the auction window closes, the context is cancelled, or the
// connection drops. The returned channel is closed when the stream ends.
func (c *Client) StreamPrices(ctx context.Context, id uint32) (<-chan Quote, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + fmt.Sprintf("/offerings/%d/price/stream", id)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	quotes := make(chan Quote)
	go func() {
		defer close(quotes)
		defer conn.Close()
		for {
			var quote Quote
			if err := conn.ReadJSON(&quote); err != nil {
				return
			}
			select {
			case quotes <- quote:
			case <-ctx.Done():
				return
			}
		}
	}()
	return quotes, nil
}

// BuyResult is the outcome of a purchase: tokens bought plus any change
// from a partial fill.
type BuyResult struct {
	Tokens decimal.Decimal `json:"tokens"`
	Change decimal.Decimal `json:"change"`
}

// Buy spends payment currency against an open offering.
func (c *Client) Buy(ctx context.Context, id uint32, payment string) (*BuyResult, error) {
	var result BuyResult
	err := c.post(ctx, fmt.Sprintf("/offerings/%d/buy", id), map[string]string{"payment": payment}, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearResult is one settlement withdrawal.
type ClearResult struct {
	Proceeds decimal.Decimal `json:"proceeds"`
	Tokens   decimal.Decimal `json:"tokens"`
}

// Clear withdraws proceeds and unsold tokens after the window closes.
// Requires the offering's clearing credential.
func (c *Client) Clear(ctx context.Context, id uint32, clearing string) (*ClearResult, error) {
	var result ClearResult
	err := c.post(ctx, fmt.Sprintf("/offerings/%d/clear", id), nil, map[string]string{clearingHeader: clearing}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LiquidityResult reports the pool seeded for an offering.
type LiquidityResult struct {
	PoolShares  decimal.Decimal `json:"pool_shares"`
	PoolAddress string          `json:"pool_address"`
}

// ProvideLiquidity seeds the offering's pool. Requires the clearing
// credential; succeeds at most once per offering.
func (c *Client) ProvideLiquidity(ctx context.Context, id uint32, clearing string) (*LiquidityResult, error) {
	var result LiquidityResult
	err := c.post(ctx, fmt.Sprintf("/offerings/%d/liquidity", id), nil, map[string]string{clearingHeader: clearing}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ToggleCircuit flips the daemon's circuit breaker and reports the new
// state. Requires the operator credential.
func (c *Client) ToggleCircuit(ctx context.Context, operator string) (bool, error) {
	var result struct {
		Active bool `json:"active"`
	}
	err := c.post(ctx, "/admin/circuit", nil, map[string]string{operatorHeader: operator}, &result)
	if err != nil {
		return false, err
	}
	return result.Active, nil
}

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dutchd: %d: %s", e.StatusCode, e.Message)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	} else {
		payload.WriteString("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
