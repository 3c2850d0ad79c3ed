package srcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://www.speedrun.com/api/v1"

// APIError is a 4xx response: the request itself is malformed or the
// resource is gone, so it is surfaced immediately and never retried.
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d for %s: %s", e.StatusCode, e.Endpoint, e.Status)
}

type ClientOptions struct {
	BaseURL            string
	CacheDir           string
	MinRequestInterval time.Duration
	HTTPClient         *http.Client
	// MaxRetryElapsed bounds the transient-failure backoff loop. Zero keeps
	// retrying until the context is canceled.
	MaxRetryElapsed time.Duration
}

type Client struct {
	baseURL         string
	httpClient      *http.Client
	cache           *ResponseCache
	limiter         *Limiter
	maxRetryElapsed time.Duration
}

func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = "srcom_cached"
	}
	return &Client{
		baseURL:         baseURL,
		httpClient:      httpClient,
		cache:           NewResponseCache(cacheDir),
		limiter:         NewLimiter(opts.MinRequestInterval),
		maxRetryElapsed: opts.MaxRetryElapsed,
	}
}

// get resolves one endpoint through the response cache. Cache misses go to
// the network behind the rate limiter, with exponential backoff on
// transient failures (15s initial, capped at 1000s).
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	return c.cache.GetOrFetch(endpoint, params, func() ([]byte, error) {
		var body []byte
		op := func() error {
			data, err := c.fetchOnce(ctx, endpoint, params)
			if err != nil {
				return err
			}
			body = data
			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 15 * time.Second
		bo.MaxInterval = 1000 * time.Second
		bo.MaxElapsedTime = c.maxRetryElapsed
		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			return nil, err
		}
		return body, nil
	})
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	reqURL := c.baseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}
	fmt.Printf("url: %s\n", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request for %s: %w", endpoint, err))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response for %s: %w", endpoint, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: endpoint})
	default:
		// 5xx and everything else is transient: let backoff handle it.
		return nil, fmt.Errorf("got status code %d for %s", resp.StatusCode, endpoint)
	}
}

// UserID resolves a username to the account id.
func (c *Client) UserID(ctx context.Context, username string) (string, error) {
	body, err := c.get(ctx, "/users/"+url.PathEscape(username), nil)
	if err != nil {
		return "", fmt.Errorf("look up user %q: %w", username, err)
	}
	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode user %q: %w", username, err)
	}
	if payload.Data.ID == "" {
		return "", fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return payload.Data.ID, nil
}

// GameID resolves a game abbreviation to the game id.
func (c *Client) GameID(ctx context.Context, abbreviation string) (string, error) {
	params := url.Values{}
	params.Set("abbreviation", abbreviation)
	params.Set("max", "1")
	params.Set("_bulk", "yes")
	body, err := c.get(ctx, "/games", params)
	if err != nil {
		return "", fmt.Errorf("look up game %q: %w", abbreviation, err)
	}
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode game %q: %w", abbreviation, err)
	}
	if len(payload.Data) == 0 {
		return "", fmt.Errorf("game %q: %w", abbreviation, ErrNotFound)
	}
	return payload.Data[0].ID, nil
}

// PersonalBests returns the set of run ids that are the user's personal
// bests, used to narrow a harvest when configured.
func (c *Client) PersonalBests(ctx context.Context, userID string) (map[string]bool, error) {
	params := url.Values{}
	params.Set("embed", "game,category")
	body, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/personal-bests", params)
	if err != nil {
		return nil, fmt.Errorf("fetch personal bests for %s: %w", userID, err)
	}
	var payload struct {
		Data []struct {
			Run struct {
				ID string `json:"id"`
			} `json:"run"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode personal bests for %s: %w", userID, err)
	}
	ids := make(map[string]bool, len(payload.Data))
	for _, pb := range payload.Data {
		if pb.Run.ID != "" {
			ids[pb.Run.ID] = true
		}
	}
	return ids, nil
}
