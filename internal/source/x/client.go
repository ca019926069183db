package x

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"bookmark_sync/internal/domain"
	"bookmark_sync/internal/metrics"
)

const (
	SourceName = "X Bookmarks"

	// RateLimitResetHeader carries the end of the current window as Unix seconds.
	RateLimitResetHeader = "x-rate-limit-reset"

	maxErrorBodySize = 4 << 10
)

const (
	tweetFields = "created_at,entities,note_tweet,article,attachments,referenced_tweets,author_id"
	expansions  = "author_id,attachments.media_keys,referenced_tweets.id,referenced_tweets.id.author_id,referenced_tweets.id.attachments.media_keys"
	userFields  = "username,name,profile_image_url"
	mediaFields = "type,url,preview_image_url,variants"
)

// Config holds X client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches bookmark pages from the X API v2.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
}

// New creates a new X client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		timeout:   cfg.Timeout,
		transport: http.DefaultTransport,
		logger:    logger.With("source", domain.ContentSourceXBookmark),
	}
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// FetchBookmarks performs exactly one page request. It never retries; a 429
// comes back as *domain.RateLimited so the caller can decide what to do.
func (c *Client) FetchBookmarks(ctx context.Context, cred domain.Credential, req domain.PageRequest) domain.FetchResult {
	endpoint, err := c.bookmarksURL(cred.RemoteAccountID, req)
	if err != nil {
		return c.failure(&domain.FetchFailure{Err: fmt.Errorf("build url: %w", err)})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.failure(&domain.FetchFailure{Err: fmt.Errorf("create request: %w", err)})
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "BookmarkSync/1.0")

	resp, err := c.httpClient(cred).Do(httpReq)
	if err != nil {
		return c.failure(&domain.FetchFailure{Err: fmt.Errorf("execute request: %w", err)})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		resetAt := parseResetHeader(resp.Header.Get(RateLimitResetHeader))
		metrics.RemoteRequests.WithLabelValues("rate_limited").Inc()
		c.logger.Warn("rate limited",
			"remote_account_id", cred.RemoteAccountID,
			"reset_at", resetAt,
		)
		return &domain.RateLimited{ResetAt: resetAt}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return c.failure(&domain.FetchFailure{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return c.failure(&domain.FetchFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)})
	}

	if len(apiResp.Data) == 0 && len(apiResp.Errors) > 0 {
		e := apiResp.Errors[0]
		return c.failure(&domain.FetchFailure{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("remote error: %s: %s", e.Title, e.Detail),
		})
	}
	if len(apiResp.Errors) > 0 {
		c.logger.Debug("page has partial errors", "errors", len(apiResp.Errors))
	}

	metrics.RemoteRequests.WithLabelValues("ok").Inc()
	c.logger.Debug("fetched page",
		"account_id", cred.AccountID,
		"entries", len(apiResp.Data),
		"has_next", apiResp.Meta.NextToken != "",
	)

	return &domain.Page{
		Records:     Resolve(apiResp, cred.AccountID),
		NextCursor:  apiResp.Meta.NextToken,
		ResultCount: len(apiResp.Data),
	}
}

// httpClient injects the bearer credential through oauth2 while keeping the
// configured timeout.
func (c *Client) httpClient(cred domain.Credential) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cred.AccessToken,
				TokenType:   "Bearer",
			}),
			Base: c.transport,
		},
	}
}

func (c *Client) bookmarksURL(remoteAccountID string, req domain.PageRequest) (string, error) {
	if remoteAccountID == "" {
		return "", fmt.Errorf("empty remote account id")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("2", "users", remoteAccountID, "bookmarks")

	q := u.Query()
	q.Set("max_results", strconv.Itoa(req.MaxResults))
	q.Set("tweet.fields", tweetFields)
	q.Set("expansions", expansions)
	q.Set("user.fields", userFields)
	q.Set("media.fields", mediaFields)
	if req.Cursor != "" {
		q.Set("pagination_token", req.Cursor)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) failure(f *domain.FetchFailure) domain.FetchResult {
	metrics.RemoteRequests.WithLabelValues("error").Inc()
	c.logger.Warn("fetch failed", "status", f.StatusCode, "error", f.Error())
	return f
}

// parseResetHeader returns the zero time when the header is missing or invalid.
func parseResetHeader(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseInt(v, 10, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
