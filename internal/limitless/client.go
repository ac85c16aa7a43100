// Package limitless provides a rate-limited client for the LimitlessTCG
// play API.
//
// The API is read-only and paginated with a fixed page size. Failures are
// normalized into absence: a 404, a non-success status, a transport timeout,
// or a malformed body all log a warning and surface as "no data" to the
// caller, with no automatic retry. The only backoff is the pause derived
// from the server's remaining-quota header.
package limitless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	gameCode = "DCG"
	pageSize = 50

	// Remaining-quota thresholds from the X-RateLimit-Remaining header.
	lowQuota      = 5
	lowQuotaPause = 5 * time.Second
	midQuota      = 20
	midQuotaPause = 2 * time.Second
)

// Client is the rate-limited HTTP client for all Limitless endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a client. requestDelay is the fixed minimum delay enforced
// between any two calls, independent of quota hints.
func New(baseURL, userAgent string, requestDelay time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if requestDelay > 0 {
		limit = rate.Every(requestDelay)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// get performs a single rate-limited GET. A 404 returns (nil, nil); any
// other failure returns an error. No retries.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.pauseForQuota(ctx, resp.Header.Get("X-RateLimit-Remaining"))

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("limitless %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// pauseForQuota self-throttles from the server's remaining-quota hint.
func (c *Client) pauseForQuota(ctx context.Context, remainingHeader string) {
	if remainingHeader == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return
	}

	var pause time.Duration
	switch {
	case remaining < lowQuota:
		pause = lowQuotaPause
	case remaining < midQuota:
		pause = midQuotaPause
	default:
		return
	}

	c.logger.Info("rate limit low, pausing", "remaining", remaining, "pause", pause)
	select {
	case <-time.After(pause):
	case <-ctx.Done():
	}
}

// --------------------------------------------------------------------------
// Endpoints
// --------------------------------------------------------------------------

// ListTournaments fetches all DCG tournaments for an organizer, paginated.
// The since filter (YYYY-MM-DD, inclusive) is applied client-side after each
// page is fetched; the listing endpoint has no date parameter, so older
// pages are still fully fetched before the loop can stop.
func (c *Client) ListTournaments(ctx context.Context, organizerID, since string) []TournamentSummary {
	var all []TournamentSummary

	for page := 1; ; page++ {
		params := url.Values{
			"game":        {gameCode},
			"organizerId": {organizerID},
			"limit":       {strconv.Itoa(pageSize)},
			"page":        {strconv.Itoa(page)},
		}
		batch, ok := c.fetchPage(ctx, params)
		if !ok || len(batch) == 0 {
			break
		}

		for _, t := range batch {
			if since != "" && t.Date < since {
				continue
			}
			all = append(all, t)
		}

		if len(batch) < pageSize {
			break
		}
	}
	return all
}

// RecentTournaments fetches one page of the global DCG tournament listing,
// newest first. Used by organizer discovery.
func (c *Client) RecentTournaments(ctx context.Context, page int) []TournamentSummary {
	params := url.Values{
		"game":  {gameCode},
		"limit": {strconv.Itoa(pageSize)},
		"page":  {strconv.Itoa(page)},
	}
	batch, _ := c.fetchPage(ctx, params)
	return batch
}

func (c *Client) fetchPage(ctx context.Context, params url.Values) ([]TournamentSummary, bool) {
	raw, err := c.get(ctx, "/tournaments", params)
	if err != nil {
		c.logger.Warn("tournament listing failed", "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var batch []TournamentSummary
	if err := json.Unmarshal(raw, &batch); err != nil {
		c.logger.Warn("tournament listing malformed", "error", err)
		return nil, false
	}
	return batch, true
}

// Details fetches one tournament's detail payload. Nil means absent.
func (c *Client) Details(ctx context.Context, tournamentID string) *TournamentDetails {
	raw, err := c.get(ctx, "/tournaments/"+tournamentID+"/details", nil)
	if err != nil {
		c.logger.Warn("tournament details failed", "tournament", tournamentID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var details TournamentDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		c.logger.Warn("tournament details malformed", "tournament", tournamentID, "error", err)
		return nil
	}
	return &details
}

// Standings fetches a tournament's standings. Empty means absent.
func (c *Client) Standings(ctx context.Context, tournamentID string) []Standing {
	raw, err := c.get(ctx, "/tournaments/"+tournamentID+"/standings", nil)
	if err != nil {
		c.logger.Warn("standings fetch failed", "tournament", tournamentID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var standings []Standing
	if err := json.Unmarshal(raw, &standings); err != nil {
		c.logger.Warn("standings malformed", "tournament", tournamentID, "error", err)
		return nil
	}
	return standings
}

// Pairings fetches a tournament's round-by-round pairings. Empty means
// absent.
func (c *Client) Pairings(ctx context.Context, tournamentID string) []Pairing {
	raw, err := c.get(ctx, "/tournaments/"+tournamentID+"/pairings", nil)
	if err != nil {
		c.logger.Warn("pairings fetch failed", "tournament", tournamentID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var pairings []Pairing
	if err := json.Unmarshal(raw, &pairings); err != nil {
		c.logger.Warn("pairings malformed", "tournament", tournamentID, "error", err)
		return nil
	}
	return pairings
}

// StandingsURL is the public standings page recorded on ingested results.
// It points at the website, not the API.
func (c *Client) StandingsURL(tournamentID string) string {
	return "https://play.limitlesstcg.com/tournament/" + tournamentID + "/standings"
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
