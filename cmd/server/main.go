package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"civictrust/internal/app"
	govhandler "civictrust/internal/governance/handler"
	identityhandler "civictrust/internal/identity/handler"
	jwttoken "civictrust/internal/jwt_token"
	"civictrust/internal/platform/config"
	"civictrust/internal/platform/httpserver"
	"civictrust/internal/platform/logger"
	privhandler "civictrust/internal/privilege/handler"
	standinghandler "civictrust/internal/standing/handler"
	httptransport "civictrust/internal/transport/http"
	"civictrust/pkg/platform/middleware/admin"
	"civictrust/pkg/platform/middleware/auth"
)

// main wires configuration, backends and handlers, then serves until
// SIGINT or SIGTERM. Business logic lives in the internal service packages.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	governance := govhandler.New(a.Pools, log)
	identity := identityhandler.New(a.Identity, a.Standing, log)
	var revocations auth.RevocationChecker
	if a.Revocations != nil {
		revocations = a.Revocations
	}
	var revoker jwttoken.Revoker
	if a.Revocations != nil {
		revoker = a.Revocations
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Registry: a.Registry,
		Public: []httptransport.Module{
			privhandler.New(a.Privileges, log),
			standinghandler.New(a.Calculator, log),
			identity,
			governance,
		},
		Citizen: []httptransport.CitizenModule{governance},
		Admin: []httptransport.AdminModule{
			identity,
			governance,
			jwttoken.NewHandler(a.Tokens, revoker, log),
		},
		CitizenAuth:     auth.RequireCitizen(jwttoken.NewMiddlewareAdapter(a.Tokens), revocations, log),
		AdminAuth:       admin.RequireAdminToken(cfg.Auth.AdminTokenHash, log),
		WritesPerMinute: cfg.RateLimit.WritesPerMinute,
		Production:      cfg.IsProduction(),
		Health:          a.HealthChecks(),
	})

	srv := httpserver.New(cfg.Server, router)
	log.Info("starting civictrust",
		"addr", cfg.Server.Addr,
		"pool_backend", cfg.Governance.PoolBackend,
		"quorum_weight", cfg.Governance.QuorumWeight,
	)
	if err := httpserver.Run(ctx, srv, cfg.Server, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
