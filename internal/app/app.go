// Package app wires configuration into stores, services and the HTTP handler.
// It is shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"safedrop-backend/internal/api"
	"safedrop-backend/internal/auth"
	"safedrop-backend/internal/blobstore"
	"safedrop-backend/internal/config"
	"safedrop-backend/internal/cryptox"
	"safedrop-backend/internal/repository"
	"safedrop-backend/internal/service"
)

// App holds the wired components
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  repository.Store
	Blobs  blobstore.Store
	Tokens *auth.TokenService
	Users  *service.UserService
	Files  *service.FileService

	pinger  api.Pinger
	closers []func()
}

// New builds every component from cfg. Postgres migrations are applied
// when migrate is true.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	// 1. Encryption key, derived once
	if cfg.UsesDevEncryptionKey() {
		logger.Warn("ENCRYPTION_KEY is not set, using the development key")
	}
	key, err := cryptox.DeriveKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	// 2. Metadata store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using the in-memory store, data is lost on restart")
		a.Store = repository.NewInMemoryStore()
	default:
		if migrate {
			if _, err := repository.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}
		pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.Store = pg
		a.pinger = pg
		a.closers = append(a.closers, pg.Close)
	}

	// 3. Blob store
	switch cfg.BlobBackend {
	case "s3":
		client, err := blobstore.NewS3Client(ctx, blobstore.S3Options{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Blobs = blobstore.NewS3Store(client, cfg.AWSBucketName, "uploads", logger)
		logger.Info("blob backend ready", "backend", "s3", "bucket", cfg.AWSBucketName)
	default:
		local, err := blobstore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Blobs = local
		logger.Info("blob backend ready", "backend", "local", "dir", local.Dir())
	}

	// 4. Auth and services
	a.Tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Users = service.NewUserService(a.Store, a.Blobs, a.Tokens, logger, cfg.AllowRegistration)
	a.Files = service.NewFileService(a.Store, a.Blobs, cipher, cfg.UploadPolicy(), logger)

	return a, nil
}

// Handler returns the HTTP router
func (a *App) Handler() http.Handler {
	h := api.NewHandler(a.Users, a.Files, a.Tokens, a.Logger, api.Options{
		PublicBaseURL:  a.Config.PublicBaseURL,
		MaxUploadSize:  a.Config.MaxContentLength,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		Pinger:         a.pinger,
	})
	return h.Routes()
}

// Close releases the resources opened by New
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
