package server

import (
	"crypto/subtle"
	"net/http"
)

// RequireAPIKey 校验 apikey 请求头（WebSocket 握手也可以用 ?apikey=）。key 为空时不校验
func RequireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("apikey")
		if got == "" {
			got = r.URL.Query().Get("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
