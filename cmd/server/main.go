package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mzhao/aapay/internal/auth"
	"github.com/mzhao/aapay/internal/config"
	"github.com/mzhao/aapay/internal/events"
	"github.com/mzhao/aapay/internal/server"
	"github.com/mzhao/aapay/internal/session"
	"github.com/mzhao/aapay/internal/storage/sqlite"
	"github.com/mzhao/aapay/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	admin, err := sqlite.OpenAdmin(cfg.AdminDBPath())
	if err != nil {
		slog.Error("Failed to initialize admin storage", "error", err)
		os.Exit(1)
	}
	defer admin.Close()
	slog.Info("Storage initialized", "database", cfg.AdminDBPath())

	ledgers := sqlite.NewLedgers(cfg.SessionsDir())
	defer ledgers.CloseAll()

	hub := events.NewHub()
	tokens := auth.NewJWTManager(cfg.JWTSecret)
	guard := auth.NewAdminGuard(cfg.AdminPasswordHash)
	if !guard.Enabled() {
		slog.Warn("Admin password not configured; admin surface must be protected by a proxy")
	}

	registry := session.NewRegistry(admin, ledgers, hub, tokens)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(registry, hub, tokens, guard, promReg)

	// Wrap with h2c so HTTP/2 works without TLS behind a plain proxy.
	handler := h2c.NewHandler(srv.Handler(), &http2.Server{})

	slog.Info("Server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
