package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"dormlend/internal/identitytoken"
	"dormlend/internal/servicetoken"
	"dormlend/internal/util"
	"dormlend/pkg/recordstore"
	"dormlend/pkg/storage"
	"dormlend/services/board/internal/app"
	"dormlend/services/board/internal/config"
	"dormlend/services/board/internal/identity"
	"dormlend/services/board/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	records, err := recordstore.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init record store: %v", err)
	}

	signer, err := servicetoken.NewSigner(servicetoken.SignerOptions{
		PrivateKeyPath: cfg.InternalPrivateKeyPath,
		KeyID:          cfg.InternalKeyID,
		Issuer:         cfg.InternalIssuer,
	})
	if err != nil {
		log.Fatalf("failed to init service token signer: %v", err)
	}
	providerClient := identity.NewClient(cfg.IdentityURL, signer)

	offline, err := identitytoken.NewVerifier(identitytoken.Config{
		JWKSURL:  cfg.JWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}
	verifier := identity.NewVerifier(offline, providerClient)

	var photos storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		photos, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init photo storage: %v", err)
		}
	}

	appCore := app.New(app.Config{
		Records:  records,
		Verifier: verifier,
		Provider: providerClient,
		Photos:   photos,
	})

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      util.WithRequestID(util.WithRequestLog("board", util.WithSecurityHeaders(util.WithCORS(httpServer.Router())))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("board server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
