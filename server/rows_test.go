package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pixelroom/store"
)

func openTempStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "players.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newRowsServer(t *testing.T, st store.PlayerStore) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewRows(st).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRowsLifecycle(t *testing.T) {
	st := openTempStore(t)
	srv := newRowsServer(t, st)

	resp := do(t, http.MethodPost, srv.URL+"/rest/players",
		`{"id":"p1","x":10,"y":20,"color":"#ABCDEF","name":"ann","seq":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	resp = do(t, http.MethodPost, srv.URL+"/rest/players", `{"id":"p1","color":"#000000","name":"dup"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp = do(t, http.MethodPatch, srv.URL+"/rest/players/p1", `{"x":30,"y":40,"seq":2}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = do(t, http.MethodPatch, srv.URL+"/rest/players/p1", `{"x":0,"y":0,"seq":2}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale update status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp = do(t, http.MethodGet, srv.URL+"/rest/players/p1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got store.Player
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.X != 30 || got.Y != 40 || got.Name != "ann" {
		t.Fatalf("got %+v", got)
	}

	resp = do(t, http.MethodGet, srv.URL+"/rest/players", "")
	var all []store.Player
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("list len = %d, want 1", len(all))
	}

	resp = do(t, http.MethodDelete, srv.URL+"/rest/players/p1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/rest/players/p1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRowsRejectsBadInput(t *testing.T) {
	srv := newRowsServer(t, openTempStore(t))

	if resp := do(t, http.MethodPost, srv.URL+"/rest/players", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/rest/players", `{"name":"x"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPatch, srv.URL+"/rest/players/ghost", `{"x":1,"seq":1}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("patch missing status = %d", resp.StatusCode)
	}
}

func TestRequireAPIKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	h := RequireAPIKey("secret", ok)
	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong", header: "nope", want: http.StatusUnauthorized},
		{name: "header", header: "secret", want: http.StatusTeapot},
		{name: "query", query: "?apikey=secret", want: http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rest/players"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("apikey", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	RequireAPIKey("", ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("empty key should pass through, got %d", rec.Code)
	}
}

func TestHandleEvictDeletesRecord(t *testing.T) {
	st := openTempStore(t)
	if err := st.Insert(context.Background(), store.Player{ID: "p1", Color: "#000000", Name: "ann"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	h := HandleEvict(st, NewChannelManager())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/evict?id=p1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/evict?id=p1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}
	if _, err := st.Get(context.Background(), "p1"); err != store.ErrNotFound {
		t.Fatalf("get after evict = %v, want %v", err, store.ErrNotFound)
	}
}
