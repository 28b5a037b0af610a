// Package api is a thin JSON client for the game backend's HTTP endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cultivationworld.ai/internal/protocol"
)

const DefaultBaseURL = "http://127.0.0.1:8002"

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the server's error message when the body carried one.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: status=%d", e.Method, e.Path, e.StatusCode)
}

type Config struct {
	BaseURL string
	// Timeout bounds each request; zero leaves requests bounded only by ctx.
	Timeout time.Duration
}

type Client struct {
	base       string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{base: base, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// errorDetail extracts {"detail": "..."} bodies, falling back to raw text.
func errorDetail(raw []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(body.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) FetchInitialState(ctx context.Context) (protocol.InitialState, error) {
	var out protocol.InitialState
	err := c.do(ctx, http.MethodGet, "/api/state", nil, nil, &out)
	return out, err
}

func (c *Client) FetchMap(ctx context.Context) (protocol.MapResponse, error) {
	var out protocol.MapResponse
	err := c.do(ctx, http.MethodGet, "/api/map", nil, nil, &out)
	return out, err
}

func (c *Client) FetchPhenomena(ctx context.Context) ([]protocol.Phenomenon, error) {
	var out protocol.PhenomenaList
	if err := c.do(ctx, http.MethodGet, "/api/meta/phenomena", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Phenomena, nil
}

func (c *Client) SetPhenomenon(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPost, "/api/control/set_phenomenon", nil, map[string]int{"id": id}, nil)
}

func (c *Client) FetchRankings(ctx context.Context) (protocol.Rankings, error) {
	var out protocol.Rankings
	err := c.do(ctx, http.MethodGet, "/api/rankings", nil, nil, &out)
	return out, err
}

// FetchEvents loads one page of events, newest first. An empty cursor
// starts from the most recent event.
func (c *Client) FetchEvents(ctx context.Context, filter protocol.EventFilter, cursor string, limit int) (protocol.EventsPage, error) {
	q := url.Values{}
	if filter.AvatarID != "" {
		q.Set("avatar_id", filter.AvatarID)
	}
	if filter.AvatarID1 != "" {
		q.Set("avatar_id_1", filter.AvatarID1)
	}
	if filter.AvatarID2 != "" {
		q.Set("avatar_id_2", filter.AvatarID2)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out protocol.EventsPage
	err := c.do(ctx, http.MethodGet, "/api/events", q, nil, &out)
	return out, err
}

func (c *Client) FetchInitStatus(ctx context.Context) (protocol.InitStatus, error) {
	var out protocol.InitStatus
	err := c.do(ctx, http.MethodGet, "/api/init-status", nil, nil, &out)
	return out, err
}

func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/control/pause", nil, nil, nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/control/resume", nil, nil, nil)
}

// FetchDetail loads the structured detail of an avatar, region or sect.
func (c *Client) FetchDetail(ctx context.Context, kind, id string) (protocol.Detail, error) {
	q := url.Values{}
	q.Set("type", kind)
	q.Set("id", id)
	var out protocol.Detail
	err := c.do(ctx, http.MethodGet, "/api/detail", q, nil, &out)
	return out, err
}
