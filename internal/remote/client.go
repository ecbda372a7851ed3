// Package remote is the thin HTTP boundary to the authoritative fitness
// service: one stateless client per entity type, list/create/update/
// delete, bearer-authenticated. It carries no sync policy of its own.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound maps a 404. On delete the caller treats it as success:
	// the goal state, absent remotely, is already achieved.
	ErrNotFound = errors.New("remote: not found")
	// ErrUnauthorized maps a 401/403.
	ErrUnauthorized = errors.New("remote: unauthorized")
)

// StatusError reports a remote rejection (validation failure and the
// like). It is terminal for the push attempt that caused it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is a per-entity-type HTTP client against the remote service.
type Client[P Item] struct {
	http    *http.Client
	baseURL string
	path    string
	tokens  TokenProvider
	log     zerolog.Logger
}

// NewClient creates a client for one entity collection, e.g.
// NewClient[Exercise](hc, "https://api.example.com/api/v1", "exercises", tokens, logger).
func NewClient[P Item](hc *http.Client, baseURL, path string, tokens TokenProvider, logger zerolog.Logger) *Client[P] {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client[P]{
		http:    hc,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    strings.Trim(path, "/"),
		tokens:  tokens,
		log:     logger.With().Str("collection", path).Logger(),
	}
}

func (c *Client[P]) url(parts ...string) string {
	u := c.baseURL + "/" + c.path
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (c *Client[P]) do(ctx context.Context, method, url string, body, out any) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, url, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: timeout, unreachable host. The caller
		// leaves the affected record Dirty and retries next cycle.
		return fmt.Errorf("remote: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode %s %s: %w", method, url, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
}

// List fetches the full remote snapshot for the collection.
func (c *Client[P]) List(ctx context.Context) ([]P, error) {
	var items []P
	if err := c.do(ctx, http.MethodGet, c.url(), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create posts a new item and returns it with the server-assigned id.
func (c *Client[P]) Create(ctx context.Context, payload P) (P, error) {
	var created P
	if err := c.do(ctx, http.MethodPost, c.url(), payload, &created); err != nil {
		return created, err
	}
	return created, nil
}

// Update replaces the remote item's fields.
func (c *Client[P]) Update(ctx context.Context, id int64, payload P) error {
	return c.do(ctx, http.MethodPut, c.url(fmt.Sprintf("%d", id)), payload, nil)
}

// Delete removes the remote item. Returns ErrNotFound if it was already
// gone.
func (c *Client[P]) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, c.url(fmt.Sprintf("%d", id)), nil, nil)
}
