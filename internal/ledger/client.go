// Package ledger talks to the protocol indexer: event log, live position
// snapshot and historical daily prices for one wallet.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/cenkalti/backoff/v5"
	"github.com/mr-tron/base58"

	"blend-pnl-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxTries   = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultPageLimit  = 200
)

// Client is an HTTP client for the indexer's REST API.
type Client struct {
	endpoint   string
	client     *http.Client
	maxTries   uint
	retryDelay time.Duration
	pageLimit  int
	now        func() time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxTries sets maximum attempts per request.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) {
		c.maxTries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithPageLimit sets the event page size.
func WithPageLimit(n int) ClientOption {
	return func(c *Client) {
		c.pageLimit = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithClock sets the time source. Tests pin it for deterministic ids.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new indexer client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxTries:   DefaultMaxTries,
		retryDelay: DefaultRetryDelay,
		pageLimit:  DefaultPageLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateAccount checks that an account identifier is a base58-encoded
// ed25519 public key on the curve.
func ValidateAccount(account string) error {
	raw, err := base58.Decode(account)
	if err != nil {
		return fmt.Errorf("decode account %q: %w", account, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("account %q: expected 32 bytes, got %d", account, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("account %q: not a valid ed25519 point: %w", account, err)
	}
	return nil
}

// Events fetches the wallet's complete event log, following pagination
// until the indexer reports no further cursor.
func (c *Client) Events(ctx context.Context, account string) ([]*domain.RawEvent, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}

	now := c.now().UnixMilli()
	var events []*domain.RawEvent
	cursor := ""

	for {
		page, err := c.eventPage(ctx, account, cursor)
		if err != nil {
			return nil, err
		}
		for i := range page.Events {
			events = append(events, page.Events[i].toDomain(account, now))
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return events, nil
}

func (c *Client) eventPage(ctx context.Context, account, cursor string) (*eventPage, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.pageLimit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := fmt.Sprintf("/accounts/%s/events?%s", account, q.Encode())

	var page eventPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return &page, nil
}

// Snapshot fetches the wallet's current positions and prices.
func (c *Client) Snapshot(ctx context.Context, account string) (*domain.LivePositionSnapshot, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}

	var rec snapshotRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/accounts/%s/positions", account), &rec); err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return rec.toDomain(account, c.now().UnixMilli()), nil
}

// DailyPrices fetches daily closing prices for a batch of assets within
// [fromDay, toDay] (inclusive, YYYY-MM-DD).
func (c *Client) DailyPrices(ctx context.Context, assets []string, fromDay, toDay string) ([]*domain.PricePoint, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("assets", strings.Join(assets, ","))
	q.Set("from", fromDay)
	q.Set("to", toDay)

	var records []priceRecord
	if err := c.getJSON(ctx, "/prices/daily?"+q.Encode(), &records); err != nil {
		return nil, fmt.Errorf("fetch daily prices: %w", err)
	}

	points := make([]*domain.PricePoint, len(records))
	for i, r := range records {
		points[i] = &domain.PricePoint{
			AssetAddress: r.AssetAddress,
			Day:          r.Day,
			PriceUsd:     r.PriceUsd,
		}
	}
	return points, nil
}

// getJSON performs a GET with exponential-backoff retries on transient
// failures. 4xx responses are permanent and not retried.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return struct{}{}, backoff.Permanent(fmt.Errorf("indexer returned %d: %s", resp.StatusCode, body))
		default:
			return struct{}{}, fmt.Errorf("indexer returned %d", resp.StatusCode)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return struct{}{}, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries))
	return err
}
