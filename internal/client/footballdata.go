package client

import (
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

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrInvalidRange is returned before any request for a time range that ends before it starts
var ErrInvalidRange = errors.New("invalid time range")

// FetchError is returned when the feed cannot be read: network failure,
// timeout or a non-2xx response.
type FetchError struct {
	Path       string
	StatusCode int // 0 for transport errors
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %s", e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a later attempt may succeed
func (e *FetchError) Temporary() bool {
	switch e.StatusCode {
	case 0, http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return true
	}
	return false
}

// IsFetchError reports whether err is or wraps a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Options tunes the client
type Options struct {
	MaxConcurrent int
	MaxRetries    int
	RetryDelay    time.Duration
}

// Client is the football-data.org API client
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new football-data.org API client
func NewClient(baseURL, apiKey string, timeout time.Duration, opts Options) *Client {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 1 * time.Second
	}

	rateLimiter := make(chan struct{}, opts.MaxConcurrent)
	for i := 0; i < opts.MaxConcurrent; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		rateLimiter: rateLimiter,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a GET request with retry logic and rate limiting
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("url", reqURL).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, &FetchError{Path: path, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		body, err := c.do(ctx, endpoint, path, reqURL, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *FetchError
		if !errors.As(err, &fe) || !fe.Temporary() || ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.maxRetries {
			log.Warn().
				Str("url", reqURL).
				Int("status", fe.StatusCode).
				Int("attempt", attempt+1).
				Msg("Received retryable error, will retry")
		}
	}

	return nil, lastErr
}

// do performs a single attempt
func (c *Client) do(ctx context.Context, endpoint, path, reqURL string, attempt int) ([]byte, error) {
	// Rate limiting: acquire semaphore
	select {
	case <-ctx.Done():
		return nil, &FetchError{Path: path, Err: ctx.Err()}
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Auth-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sportify-worker/1.0")

	log.Debug().
		Str("url", reqURL).
		Str("method", req.Method).
		Int("attempt", attempt+1).
		Msg("Making API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
		return nil, &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPICall(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Path: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	log.Debug().
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Int("size", len(body)).
		Msg("API request successful")

	return body, nil
}

type fixturesResponse struct {
	Count    int                   `json:"count"`
	Fixtures []models.FixtureInput `json:"fixtures"`
}

type teamsResponse struct {
	Count int                `json:"count"`
	Teams []models.TeamInput `json:"teams"`
}

// FetchFixturesByTournamentAndMatchDay fetches the fixtures of one matchday
func (c *Client) FetchFixturesByTournamentAndMatchDay(ctx context.Context, competitionID, matchDay int) ([]models.FixtureInput, error) {
	path := fmt.Sprintf("competitions/%d/fixtures", competitionID)
	params := url.Values{}
	params.Set("matchday", strconv.Itoa(matchDay))

	return c.fetchFixtures(ctx, "fixtures_by_matchday", path, params)
}

// FetchFixturesByTournamentAndTimeRange fetches fixtures scheduled between from and to (inclusive days)
func (c *Client) FetchFixturesByTournamentAndTimeRange(ctx context.Context, competitionID int, from, to time.Time) ([]models.FixtureInput, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	path := fmt.Sprintf("competitions/%d/fixtures", competitionID)
	params := url.Values{}
	params.Set("timeFrameStart", from.UTC().Format(time.DateOnly))
	params.Set("timeFrameEnd", to.UTC().Format(time.DateOnly))

	return c.fetchFixtures(ctx, "fixtures_by_range", path, params)
}

func (c *Client) fetchFixtures(ctx context.Context, endpoint, path string, params url.Values) ([]models.FixtureInput, error) {
	body, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}

	var resp fixturesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("failed to unmarshal fixtures: %w", err)}
	}

	for i := range resp.Fixtures {
		resp.Fixtures[i].ResolveIDs()
	}

	return resp.Fixtures, nil
}

// FetchTeamsByTournament fetches the teams of a competition
func (c *Client) FetchTeamsByTournament(ctx context.Context, competitionID int) ([]models.TeamInput, error) {
	path := fmt.Sprintf("competitions/%d/teams", competitionID)
	body, err := c.get(ctx, "teams", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}

	var resp teamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("failed to unmarshal teams: %w", err)}
	}

	for i := range resp.Teams {
		resp.Teams[i].ID = models.IDFromHref(resp.Teams[i].Links.Self.Href)
	}

	return resp.Teams, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
