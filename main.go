package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixelroom/config"
	"pixelroom/logging"
	"pixelroom/protocol"
	"pixelroom/server"
	"pixelroom/store"
)

// pixelroom 后端入口：HTTP 行存储 + WebSocket 实时频道
func main() {
	var cfg config.ServerConfig
	if err := config.ParseEnv(&cfg); err != nil {
		panic(err)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :8080")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.Parse()

	log := logging.Init(cfg.LogFile)
	defer logging.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	rm := server.GetChannelManager()
	// 预创建唯一的共享房间
	_ = rm.GetOrCreateChannel(protocol.ChannelGameRoom)

	api := http.NewServeMux()
	server.NewRows(st).Register(api)
	api.HandleFunc("/realtime", server.HandleWS)

	mux := http.NewServeMux()
	mux.Handle("/rest/", server.RequireAPIKey(cfg.APIKey, api))
	mux.Handle("/realtime", server.RequireAPIKey(cfg.APIKey, api))
	// 管理与监控接口
	mux.Handle("/admin/evict", server.RequireAPIKey(cfg.APIKey, server.HandleEvict(st, rm)))
	mux.HandleFunc("/metrics", server.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Infof("pixelroom listening on %s (db=%s)", cfg.Addr, cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
