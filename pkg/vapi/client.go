// Package vapi is a client for the VAPI voice-call provider API, used to
// fetch historical calls for backfill.
package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/dreamseed2025/formation-intake/internal/resilience"
)

const defaultBaseURL = "https://api.vapi.ai"

// Call is the provider's call object, reduced to the fields backfill needs.
type Call struct {
	ID              string    `json:"id"`
	AssistantID     string    `json:"assistantId"`
	Status          string    `json:"status"`
	EndedReason     string    `json:"endedReason"`
	Transcript      string    `json:"transcript"`
	Summary         string    `json:"summary"`
	DurationSeconds float64   `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
	Customer        struct {
		Number string `json:"number"`
	} `json:"customer"`
	Messages []struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	} `json:"messages"`
}

// ListFilter narrows a call listing.
type ListFilter struct {
	AssistantID  string
	CreatedAtGte time.Time
	Limit        int
}

// Client fetches calls from the provider.
type Client interface {
	GetCall(ctx context.Context, id string) (*Call, error)
	ListCalls(ctx context.Context, filter ListFilter) ([]Call, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a provider API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(5, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("vapi", "get")
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetCall fetches one call by id.
func (c *httpClient) GetCall(ctx context.Context, id string) (*Call, error) {
	var call Call
	if err := c.getJSON(ctx, "/call/"+url.PathEscape(id), nil, &call); err != nil {
		return nil, eris.Wrapf(err, "vapi: get call %s", id)
	}
	return &call, nil
}

// ListCalls fetches calls matching the filter, newest first.
func (c *httpClient) ListCalls(ctx context.Context, filter ListFilter) ([]Call, error) {
	params := url.Values{}
	if filter.AssistantID != "" {
		params.Set("assistantId", filter.AssistantID)
	}
	if !filter.CreatedAtGte.IsZero() {
		params.Set("createdAtGte", filter.CreatedAtGte.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	var calls []Call
	if err := c.getJSON(ctx, "/call", params, &calls); err != nil {
		return nil, eris.Wrap(err, "vapi: list calls")
	}
	return calls, nil
}

// getJSON performs a rate-limited, retried GET and decodes the response.
func (c *httpClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limit")
			}
		}

		u := c.baseURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, fmt.Sprintf("decode response from %s", path))
		}
		return nil
	})
}
