// Package remote 后端的 Go 客户端：HTTP 行存储与 WebSocket 实时频道
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pixelroom/presence"
)

// Rows 通过 /rest/players 访问行存储，实现 presence.RowStore
type Rows struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ presence.RowStore = (*Rows)(nil)

func NewRows(baseURL, apiKey string) *Rows {
	return &Rows{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Rows) Get(ctx context.Context, id string) (presence.PlayerState, error) {
	var p presence.PlayerState
	err := r.do(ctx, http.MethodGet, "/rest/players/"+url.PathEscape(id), nil, &p)
	return p, err
}

func (r *Rows) List(ctx context.Context) ([]presence.PlayerState, error) {
	var players []presence.PlayerState
	if err := r.do(ctx, http.MethodGet, "/rest/players", nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *Rows) Insert(ctx context.Context, p presence.PlayerState) error {
	return r.do(ctx, http.MethodPost, "/rest/players", p, nil)
}

func (r *Rows) Update(ctx context.Context, id string, patch presence.Patch) error {
	return r.do(ctx, http.MethodPatch, "/rest/players/"+url.PathEscape(id), patch, nil)
}

func (r *Rows) Delete(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/rest/players/"+url.PathEscape(id), nil, nil)
}

// do 发送请求；404 -> presence.ErrNotFound，
// 409 -> POST 时 presence.ErrAlreadyExists，其余 presence.ErrStale
func (r *Rows) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return presence.ErrNotFound
	case resp.StatusCode == http.StatusConflict && method == http.MethodPost:
		return fmt.Errorf("%s %s: %w", method, path, presence.ErrAlreadyExists)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, presence.ErrStale)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
