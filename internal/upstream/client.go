// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package upstream talks to the instance source and the organization directory
over HTTP.

Client Features:
  - Bearer token authentication
  - Token bucket rate limiting shared by every call of one client
  - Circuit breaker that opens on consecutive server errors
  - Continuation-token paging

Query API:

	GET {instances_url}/instances?org=ttd&lastChanged=gte:2024-05-17T10:00:00Z&size=100
	GET {instances_url}/instances?org=ttd&created=gte:2024-05-17&created=lt:2024-05-18&size=100
	GET {directory_url}

Instance responses are {"instances": [...], "next": "<token>"}; an empty
"next" ends the listing. The directory response is {"orgs": {"<id>": {...}}}.
*/
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dialogsync/internal/breaker"
	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 4 * 1024

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client queries the instance source and the organization directory.
// It is safe for concurrent use.
type Client struct {
	http         *http.Client
	instancesURL string
	directoryURL string
	token        string
	pageSize     int
	limiter      *rate.Limiter
	cb           *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a client from configuration. directoryURL may be empty
// when the organization list is configured statically.
func NewClient(cfg config.UpstreamConfig, directoryURL string) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	bcfg := breaker.DefaultConfig("instance-source")
	bcfg.IsSuccessful = func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return !se.Temporary()
		}
		return err == nil || errors.Is(err, context.Canceled)
	}

	return &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		instancesURL: strings.TrimRight(cfg.InstancesURL, "/"),
		directoryURL: directoryURL,
		token:        cfg.Token,
		pageSize:     cfg.PageSize,
		limiter:      rate.NewLimiter(limit, max(cfg.Burst, 1)),
		cb:           breaker.New[[]byte](bcfg),
	}
}

// instanceListResponse is the wire form of one instance page.
type instanceListResponse struct {
	Instances []models.Instance `json:"instances"`
	Next      string            `json:"next"`
}

// ListChangedInstances returns the page of instances in org created or
// changed at or after since. The lower bound is inclusive.
func (c *Client) ListChangedInstances(ctx context.Context, org string, since time.Time, pageToken string) (models.InstancePage, error) {
	q := c.pageQuery(org, pageToken)
	q.Set("lastChanged", "gte:"+since.UTC().Format(time.RFC3339Nano))
	return c.listInstances(ctx, "changed_instances", q)
}

// ListCreatedInstances returns the page of instances in org created on day.
// A nonzero partyFilter restricts the listing to that instance owner.
func (c *Client) ListCreatedInstances(ctx context.Context, org string, day models.Day, partyFilter int64, pageToken string) (models.InstancePage, error) {
	q := c.pageQuery(org, pageToken)
	q.Add("created", "gte:"+day.String())
	q.Add("created", "lt:"+day.AddDays(1).String())
	if partyFilter != 0 {
		q.Set("instanceOwner.partyId", strconv.FormatInt(partyFilter, 10))
	}
	return c.listInstances(ctx, "created_instances", q)
}

func (c *Client) pageQuery(org, pageToken string) url.Values {
	q := url.Values{}
	q.Set("org", org)
	q.Set("size", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("continuationToken", pageToken)
	}
	return q
}

func (c *Client) listInstances(ctx context.Context, endpoint string, q url.Values) (models.InstancePage, error) {
	var resp instanceListResponse
	if err := c.getJSON(ctx, endpoint, c.instancesURL+"/instances?"+q.Encode(), &resp); err != nil {
		return models.InstancePage{}, err
	}
	return models.InstancePage{Instances: resp.Instances, NextPageToken: resp.Next}, nil
}

// ListOrganizations implements directory.Source.
func (c *Client) ListOrganizations(ctx context.Context) ([]string, error) {
	if c.directoryURL == "" {
		return nil, errors.New("organization directory URL is not configured")
	}

	var resp struct {
		Orgs map[string]json.RawMessage `json:"orgs"`
	}
	if err := c.getJSON(ctx, "organizations", c.directoryURL, &resp); err != nil {
		return nil, err
	}

	orgs := make([]string, 0, len(resp.Orgs))
	for id := range resp.Orgs {
		orgs = append(orgs, id)
	}
	return orgs, nil
}

// getJSON performs a rate-limited, breaker-protected GET and decodes the body.
func (c *Client) getJSON(ctx context.Context, endpoint, reqURL string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", endpoint, err)
	}

	body, err := breaker.Execute(c.cb, func() ([]byte, error) {
		return c.do(ctx, endpoint, reqURL)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	return body, nil
}
