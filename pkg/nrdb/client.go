// Package nrdb is a small client for the NerdGraph NRQL endpoint. Only the
// account-scoped query surface the verification framework needs is
// implemented.
package nrdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Region endpoints.
const (
	endpointUS = "https://api.newrelic.com/graphql"
	endpointEU = "https://api.eu.newrelic.com/graphql"
)

const maxResponseBytes = 10 * 1024 * 1024

// nrqlQuery wraps an NRQL string in the account-scoped NerdGraph query.
// Results are paged via nextCursor.
const nrqlQuery = `query($acct: Int!, $nrql: Nrql!, $cursor: String) {
  actor {
    account(id: $acct) {
      nrql(query: $nrql, cursor: $cursor) {
        results
        nextCursor
      }
    }
  }
}`

// Row is one result row of an NRQL query.
type Row map[string]any

// Client issues NRQL queries against NerdGraph for a single account.
type Client struct {
	apiKey     string
	accountID  int
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithRegion selects the regional endpoint ("US" or "EU", default US).
func WithRegion(region string) Option {
	return func(c *Client) {
		if strings.EqualFold(region, "EU") {
			c.endpoint = endpointEU
		}
	}
}

// WithEndpoint overrides the endpoint URL. Used by tests.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a NerdGraph client for the given credential and
// account.
func NewClient(apiKey, accountID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	acct, err := strconv.Atoi(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}

	c := &Client{
		apiKey:    apiKey,
		accountID: acct,
		endpoint:  endpointUS,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		Actor struct {
			Account struct {
				Nrql struct {
					Results    []Row   `json:"results"`
					NextCursor *string `json:"nextCursor"`
				} `json:"nrql"`
			} `json:"account"`
		} `json:"actor"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs one NRQL query and returns all result rows, following
// nextCursor paging until the backend reports no more pages. A non-2xx
// status or a backend errors array is returned as an error.
func (c *Client) Query(ctx context.Context, nrql string) ([]Row, error) {
	var rows []Row
	var cursor *string

	for {
		page, next, err := c.queryPage(ctx, nrql, cursor)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if next == nil || *next == "" {
			return rows, nil
		}
		cursor = next
	}
}

func (c *Client) queryPage(ctx context.Context, nrql string, cursor *string) ([]Row, *string, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: nrqlQuery,
		Variables: map[string]any{
			"acct":   c.accountID,
			"nrql":   nrql,
			"cursor": cursor,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("query nerdgraph: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("nerdgraph returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			msgs[i] = e.Message
		}
		return nil, nil, fmt.Errorf("nerdgraph errors: %s", strings.Join(msgs, "; "))
	}

	nrqlResult := parsed.Data.Actor.Account.Nrql
	return nrqlResult.Results, nrqlResult.NextCursor, nil
}

// truncate limits a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
