// Package bootstrap provides dependency initialization for the video
// generation API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ovenai/adstudio-api/internal/artifact"
	"github.com/ovenai/adstudio-api/internal/config"
	"github.com/ovenai/adstudio-api/internal/generations"
	"github.com/ovenai/adstudio-api/internal/videogen"
	"github.com/ovenai/adstudio-api/internal/videogen/sora"
	"github.com/ovenai/adstudio-api/internal/videogen/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Engine     *generations.Engine
	Repository generations.Repository
	Store      artifact.Store
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Provider adapters are constructed lazily on first use, so a missing
	// key only fails requests that target that provider.
	svc := videogen.NewService(
		videogen.Credentials{
			SoraAPIKey: cfg.OpenAIAPIKey,
			VeoAPIKey:  cfg.GoogleAPIKey,
		},
		videogen.WithProviderFactory(videogen.ProviderSora, func(creds videogen.Credentials) (videogen.VideoProvider, error) {
			return sora.New(sora.WithAPIKey(creds.SoraAPIKey))
		}),
		videogen.WithProviderFactory(videogen.ProviderVeo, func(creds videogen.Credentials) (videogen.VideoProvider, error) {
			return veo.New(veo.WithAPIKey(creds.VeoAPIKey))
		}),
	)

	repo := generations.NewMemoryRepository()
	engine := generations.NewEngine(svc, store, logger,
		generations.WithPollSettings(
			time.Duration(cfg.PollIntervalSec)*time.Second,
			time.Duration(cfg.PollTimeoutSec)*time.Second,
		),
	)

	return &Dependencies{
		Engine:     engine,
		Repository: repo,
		Store:      store,
	}, nil
}

// initStore creates the appropriate artifact store based on configuration.
func initStore(cfg *config.Config, logger *slog.Logger) (artifact.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := artifact.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := artifact.NewS3Store(cfg.ArtifactRoot, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 artifact store: %w", err)
		}
		logger.Info("S3 artifact mirror configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := artifact.NewLocalStore(cfg.ArtifactRoot)
	if err != nil {
		return nil, fmt.Errorf("create local artifact store: %w", err)
	}
	logger.Info("local artifact store configured",
		slog.String("root", cfg.ArtifactRoot),
	)
	return localStore, nil
}
