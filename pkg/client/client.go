package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/minipool/pkg/address"
)

// Sentinels matched by APIError through errors.Is.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrReentrantCall       = errors.New("reentrant call")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferFailed      = errors.New("asset transfer failed")
	ErrRateLimited         = errors.New("rate limited")
)

// APIError is a non-2xx response from poold.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("poold %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto a package sentinel.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrInvalidRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrReentrantCall
	case http.StatusUnprocessableEntity:
		return ErrInsufficientBalance
	case http.StatusBadGateway:
		return ErrTransferFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Position is the result of a deposit, withdrawal or balance query.
type Position struct {
	Participant address.Address `json:"participant"`
	Balance     uint64          `json:"balance"`
	Total       uint64          `json:"total,omitempty"`
}

// PoolTotals is returned by Total.
type PoolTotals struct {
	Total   uint64 `json:"total"`
	Custody uint64 `json:"custody"`
	Gate    string `json:"gate"`
}

// Reconciliation is returned by Reconcile.
type Reconciliation struct {
	Consistent bool   `json:"consistent"`
	Error      string `json:"error,omitempty"`
}

// Allowance is returned by Approve.
type Allowance struct {
	Owner     address.Address `json:"owner"`
	Spender   address.Address `json:"spender"`
	Allowance uint64          `json:"allowance"`
}

// AssetBalance is returned by AssetBalance.
type AssetBalance struct {
	Holder    address.Address `json:"holder"`
	Symbol    string          `json:"symbol"`
	Balance   uint64          `json:"balance"`
	Allowance uint64          `json:"allowance"` // granted to the pool
}

// JournalEntry is one audit record.
type JournalEntry struct {
	Index       int             `json:"index"`
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Participant string          `json:"participant,omitempty"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DataHash    string          `json:"data_hash"`
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
}

// JournalOverview is returned by Journal.
type JournalOverview struct {
	Entries int             `json:"entries"`
	Root    string          `json:"root"`
	Recent  []*JournalEntry `json:"recent"`
}

// JournalVerification is returned by VerifyJournal.
type JournalVerification struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HealthCheck is the last result of one background pool check.
type HealthCheck struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Failures  int       `json:"consecutive_failures"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthReport is the response of GET /api/v1/health.
type HealthReport struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// Client talks to a poold instance.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a participant session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the poold instance at base, e.g. "http://localhost:8090".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ── Pool ─────────────────────────────────────────────────────────────────

// Deposit moves amount of the caller's asset into the pool.
func (c *Client) Deposit(ctx context.Context, amount uint64) (*Position, error) {
	var out Position
	err := c.call(ctx, http.MethodPost, "/api/v1/pool/deposit", amountBody{amount}, &out)
	return &out, err
}

// Withdraw returns amount of the caller's deposit.
func (c *Client) Withdraw(ctx context.Context, amount uint64) (*Position, error) {
	var out Position
	err := c.call(ctx, http.MethodPost, "/api/v1/pool/withdraw", amountBody{amount}, &out)
	return &out, err
}

// Balance returns the pool balance of participant. The zero address asks
// for the caller named by the bearer token.
func (c *Client) Balance(ctx context.Context, participant address.Address) (uint64, error) {
	path := "/api/v1/pool/balance"
	if !participant.IsZero() {
		path = "/api/v1/pool/balances/" + participant.Hex()
	}
	var out Position
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Total returns the tracked total, the custody balance and the gate.
func (c *Client) Total(ctx context.Context) (*PoolTotals, error) {
	var out PoolTotals
	err := c.call(ctx, http.MethodGet, "/api/v1/pool/total", nil, &out)
	return &out, err
}

// Reconcile asks the server to check its books against custody.
func (c *Client) Reconcile(ctx context.Context) (*Reconciliation, error) {
	var out Reconciliation
	err := c.call(ctx, http.MethodGet, "/api/v1/pool/reconcile", nil, &out)
	return &out, err
}

// ── Asset ────────────────────────────────────────────────────────────────

// Approve sets the pool's allowance over the caller's asset. 0 revokes it.
func (c *Client) Approve(ctx context.Context, amount uint64) (*Allowance, error) {
	var out Allowance
	err := c.call(ctx, http.MethodPost, "/api/v1/asset/approve", amountBody{amount}, &out)
	return &out, err
}

// AssetBalance returns holder's asset balance and its allowance to the
// pool. The zero address asks for the caller.
func (c *Client) AssetBalance(ctx context.Context, holder address.Address) (*AssetBalance, error) {
	path := "/api/v1/asset/balance"
	if !holder.IsZero() {
		path = "/api/v1/asset/balances/" + holder.Hex()
	}
	var out AssetBalance
	err := c.call(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

// ── Journal ──────────────────────────────────────────────────────────────

// Journal returns the chain length, root and up to limit recent entries,
// optionally only those of participant (zero address = all).
func (c *Client) Journal(ctx context.Context, participant address.Address, limit int) (*JournalOverview, error) {
	q := url.Values{}
	if !participant.IsZero() {
		q.Set("participant", participant.Hex())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/journal"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out JournalOverview
	err := c.call(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

// VerifyJournal asks the server to walk the audit chain.
func (c *Client) VerifyJournal(ctx context.Context) (*JournalVerification, error) {
	var out JournalVerification
	err := c.call(ctx, http.MethodGet, "/api/v1/journal/verify", nil, &out)
	return &out, err
}

// JournalEntry fetches the entry at idx.
func (c *Client) JournalEntry(ctx context.Context, idx int) (*JournalEntry, error) {
	var out JournalEntry
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/v1/journal/entries/%d", idx), nil, &out)
	return &out, err
}

// ── Health ───────────────────────────────────────────────────────────────

// Health fetches the background check report. A degraded pool answers 503
// with a report; that report is returned without an error.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var out HealthReport
	err := c.call(ctx, http.MethodGet, "/api/v1/health", nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if json.Unmarshal([]byte(apiErr.Message), &out) == nil && out.Status != "" {
			return &out, nil
		}
	}
	return &out, err
}

// ── Transport ────────────────────────────────────────────────────────────

type amountBody struct {
	Amount uint64 `json:"amount"`
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return nil, apiErr
	}
	return body, nil
}
