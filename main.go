package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoarena/config"
	"geoarena/logging"
	"geoarena/server"
)

// geoarena 服务端：WebSocket 会话以及管理与监控接口
func main() {
	var (
		envFile string
		addr    string
	)
	flag.StringVar(&envFile, "env", ".env", "optional .env file with GEOARENA_* settings")
	flag.StringVar(&addr, "addr", "", "listen address, overrides GEOARENA_ADDR")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	if err := logging.Init(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: cfg.LogConsole}); err != nil {
		panic(err)
	}
	defer logging.Sync()

	rm := server.NewRoomManager(cfg)
	_ = rm.GetOrCreateRoom(cfg.DefaultRoom)

	mux := http.NewServeMux()
	mux.Handle("/ws", server.NewWSHandler(rm, cfg.AllowedOrigins))
	mux.HandleFunc("/admin/rules", rm.HandleRules)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logging.Log.Infof("geoarena listening on %s (room %q)", cfg.Addr, cfg.DefaultRoom)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Log.Warnf("http shutdown: %v", err)
	}
	rm.Close()
}
