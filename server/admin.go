package server

import (
	"encoding/json"
	"net/http"

	"pixelroom/logging"
	"pixelroom/protocol"
	"pixelroom/store"
)

// HandleMetrics 输出频道运行指标
// GET /metrics?channel=game_room  单个频道
// GET /metrics                    所有频道
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	rm := GetChannelManager()
	name := r.URL.Query().Get("channel")
	names := rm.Names()
	if name != "" {
		names = []string{name}
	}
	out := make(map[string]any, len(names))
	for _, n := range names {
		if ch, ok := rm.Lookup(n); ok {
			out[n] = ch.Metrics().Snapshot()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"channels": out})
}

// HandleEvict 外部删除玩家：删除存储记录并向频道广播 player_leave
// POST /admin/evict?id=<player>&channel=game_room
// 该玩家下次 restore 时会发现记录已不存在，回到未登录状态
func HandleEvict(st store.PlayerStore, m *ChannelManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			channel = protocol.ChannelGameRoom
		}
		if err := st.Delete(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		if ch, ok := m.Lookup(channel); ok {
			payload, _ := json.Marshal(protocol.LeavePayload{ID: id})
			ch.Publish("", protocol.Envelope{Event: protocol.EventPlayerLeave, Payload: payload})
		}
		logging.Log.Infof("evicted player %s from %s", id, channel)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
