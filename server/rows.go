package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pixelroom/logging"
	"pixelroom/store"
)

// Rows 以 HTTP 暴露 players 表的增删改查
// GET    /rest/players        全部
// GET    /rest/players/{id}   单条，不存在 404
// POST   /rest/players        新增，冲突 409
// PATCH  /rest/players/{id}   部分更新（seq 守卫），过期 409
// DELETE /rest/players/{id}   删除，幂等
type Rows struct {
	store store.PlayerStore
}

func NewRows(st store.PlayerStore) *Rows {
	return &Rows{store: st}
}

// Register 挂载路由
func (h *Rows) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /rest/players", h.list)
	mux.HandleFunc("GET /rest/players/{id}", h.get)
	mux.HandleFunc("POST /rest/players", h.insert)
	mux.HandleFunc("PATCH /rest/players/{id}", h.update)
	mux.HandleFunc("DELETE /rest/players/{id}", h.delete)
}

func (h *Rows) list(w http.ResponseWriter, r *http.Request) {
	players, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *Rows) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Rows) insert(w http.ResponseWriter, r *http.Request) {
	var p store.Player
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(p.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := h.store.Insert(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Rows) update(w http.ResponseWriter, r *http.Request) {
	var patch store.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.store.Update(r.Context(), r.PathValue("id"), patch); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Rows) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError 存储错误到状态码的映射
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrStale):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logging.Log.Errorf("store: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
