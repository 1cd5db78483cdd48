package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/skyanki/internal/shared"
)

// DefaultAPIBaseURL is the base relative targets of [RawClient.Get] resolve against.
const DefaultAPIBaseURL = "https://api-words.skyeng.ru/"

// RawResponse is an undecoded API response.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
	JSON   any // decoded body, nil when the body is not JSON
}

// OK reports whether the status is 2xx.
func (r *RawResponse) OK() bool { return r.Status >= 200 && r.Status < 300 }

// RawClient performs unprocessed GET requests against the Skyeng APIs for inspection.
//
// Authentication is the client's concern: pass one whose transport is an [oauth2.Transport]
// fed by [Session.TokenSource].
type RawClient struct {
	base   *url.URL
	client *http.Client
}

// NewRawClient creates a raw client resolving relative targets against base.
func NewRawClient(base string, client *http.Client) (*RawClient, error) {
	if base == "" {
		base = DefaultAPIBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api base url %q", shared.ErrInvalidConfig, base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RawClient{base: u, client: client}, nil
}

// Get fetches target, an absolute URL or a reference relative to the base URL, and returns
// the response whatever its status.
func (c *RawClient) Get(ctx context.Context, target string) (*RawResponse, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: target %q: %v", shared.ErrInvalidArgument, target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrTransport, err)
	}

	raw := &RawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}
	var decoded any
	if json.Unmarshal(body, &decoded) == nil {
		raw.JSON = decoded
	}
	return raw, nil
}
