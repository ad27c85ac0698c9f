// Package legacyoracle implements validator.LegacyOracle against an OPI-LC
// style HTTP service, the Go counterpart of the Python original's
// LegacyTokenService (src/services/legacy_token_service.py): GET
// /v1/brc20/ticker/{ticker}, treating 404 as "not found" with no error.
// Transport, status and decode failures are retried and, once retries are
// exhausted, returned as found=false with a non-nil error; the validator
// treats that error as "not found" (its fail-open path, spec.md §4.4).
// HTTP wiring is grounded on the teacher's
// util/distributor.Distributor, which holds its own *http.Client with a
// fixed timeout rather than reaching for a global default client.
package legacyoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/bitcoin-sv/brc20indexer/util/retry"
)

// DefaultTimeout matches the Python original's httpx.Timeout(30.0, connect=10.0).
const DefaultTimeout = 30 * time.Second

// tickerResponse models OPI-LC's /v1/brc20/ticker/{ticker} success body:
// {"result": {...}} on a hit, or {"error": "..."} / an empty result on a miss.
type tickerResponse struct {
	Error  string        `json:"error"`
	Result *tickerResult `json:"result"`
}

type tickerResult struct {
	BlockHeight json.Number `json:"block_height"`
}

// Client is an HTTP-backed validator.LegacyOracle. A zero-value Client is
// not usable; construct with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     ulogger.Logger
	retries    int
}

// New constructs a Client against baseURL (e.g. "https://opi-lc.example.com").
// logger is used only to report retried requests.
func New(baseURL string, logger ulogger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
		retries:    3,
	}
}

// CheckTokenExists implements validator.LegacyOracle. A non-200/404 status,
// a malformed body, or an exhausted retry budget all resolve to
// found=false, err=non-nil so the caller can choose to fail open exactly as
// the Python original's except-clauses did.
func (c *Client) CheckTokenExists(ctx context.Context, ticker string) (uint32, bool, error) {
	url := fmt.Sprintf("%s/v1/brc20/ticker/%s", c.baseURL, ticker)

	resp, err := retry.Retry(ctx, c.logger, func() (*tickerResponse, error) {
		return c.fetch(ctx, url)
	}, retry.WithRetryCount(c.retries), retry.WithMessage(fmt.Sprintf("legacy oracle lookup for %s, ", ticker)))
	if err != nil {
		return 0, false, err
	}
	if resp == nil || resp.Result == nil {
		return 0, false, nil
	}

	height, err := strconv.ParseUint(resp.Result.BlockHeight.String(), 10, 32)
	if err != nil {
		// Matches the Python original's "if conversion fails, allow the
		// deploy (fail open)": an unparseable height is not found.
		return 0, false, nil
	}

	return uint32(height), true, nil
}

// fetch performs one HTTP round trip. A 404 is a legitimate miss, reported
// as (nil, nil) rather than retried; every other non-200 status is treated
// as a retryable transient failure.
func (c *Client) fetch(ctx context.Context, url string) (*tickerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("legacy oracle returned status %d", resp.StatusCode)
	}

	var body tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, nil
	}

	return &body, nil
}
