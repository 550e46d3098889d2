package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"dormlend/internal/servicetoken"
	"dormlend/internal/util"
	"dormlend/services/identity/internal/app"
	"dormlend/services/identity/internal/config"
	"dormlend/services/identity/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	refreshTTL, err := config.ParseRefreshTTL(cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:       cfg.DatabaseURL,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		SessionTTL:        sessionTTL,
		RefreshTTL:        refreshTTL,
		JWTPrivateKeyPath: cfg.JWTPrivateKeyPath,
		JWTPublicKeyPath:  cfg.JWTPublicKeyPath,
		JWTKeyID:          cfg.JWTKeyID,
		JWTIssuer:         cfg.JWTIssuer,
		JWTAudience:       cfg.JWTAudience,
		JWTLeeway:         jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	serviceVerifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeyPath:  cfg.InternalPublicKeyPath,
		KeyID:          cfg.InternalKeyID,
		Audience:       "identity",
		AllowedIssuers: config.SplitAllowedIssuers(cfg.InternalAllowedIssuers),
	})
	if err != nil {
		log.Fatalf("failed to init service token verifier: %v", err)
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		ServiceVerifier: serviceVerifier,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      util.WithRequestID(util.WithRequestLog("identity", util.WithSecurityHeaders(util.WithCORS(httpServer.Router())))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("identity server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
