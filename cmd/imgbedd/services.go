package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/imgbed"
	"github.com/dukerupert/imgbed/internal/metrics"
	"github.com/dukerupert/imgbed/memory"
	"github.com/dukerupert/imgbed/paste"
	"github.com/dukerupert/imgbed/postgres"
	"github.com/dukerupert/imgbed/s3"
	"github.com/dukerupert/imgbed/telegram"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Services holds all application services.
type Services struct {
	BlobStore       imgbed.BlobStore
	MetadataService imgbed.MetadataService

	// ReadyCheck probes the metadata database when there is one.
	ReadyCheck func(ctx context.Context) error

	// Close releases connections held by the services.
	Close func()
}

// initServices initializes all application services.
func initServices(ctx context.Context, cfg *Config, logger *slog.Logger, m *metrics.Metrics) (*Services, error) {
	services := &Services{Close: func() {}}

	// Initialize blob storage
	store, err := initBlobStore(cfg, logger, m)
	if err != nil {
		if !imgbed.IsErrorCode(err, imgbed.ECONFIG) || cfg.IsProduction() {
			return nil, err
		}
		// Requests report the configuration error until credentials are set.
		logger.Warn("blob storage not configured",
			slog.String("backend", cfg.StorageBackend),
			slog.String("error", imgbed.ErrorMessage(err)))
	} else {
		services.BlobStore = store
		logger.Info("blob storage initialized", slog.String("backend", store.Name()))
	}

	// Initialize metadata side-store
	if err := initMetadata(ctx, cfg, logger, services); err != nil {
		return nil, err
	}
	logger.Info("metadata service initialized", slog.String("provider", cfg.MetadataProvider))

	return services, nil
}

// initBlobStore creates the configured blob store implementation.
func initBlobStore(cfg *Config, logger *slog.Logger, m *metrics.Metrics) (imgbed.BlobStore, error) {
	logger.Debug("blob storage configuration",
		slog.String("backend", cfg.StorageBackend),
		slog.String("telegram_api_url", cfg.TelegramAPIURL),
		slog.Bool("preserve_images", cfg.PreserveImages),
		slog.String("paste_base_url", cfg.PasteBaseURL),
		slog.Duration("timeout", cfg.UpstreamTimeout))

	switch cfg.StorageBackend {
	case "paste":
		return paste.NewClient(paste.Config{
			BaseURL: cfg.PasteBaseURL,
			Timeout: cfg.UpstreamTimeout,
		}, logger, m)
	default:
		return telegram.NewClient(telegram.Config{
			Token:          cfg.TelegramToken,
			ChatID:         cfg.TelegramChatID,
			APIURL:         cfg.TelegramAPIURL,
			PreserveImages: cfg.PreserveImages,
			Timeout:        cfg.UpstreamTimeout,
		}, logger, m)
	}
}

// initMetadata creates the metadata service named by the provider setting.
func initMetadata(ctx context.Context, cfg *Config, logger *slog.Logger, services *Services) error {
	metadataCfg := imgbed.MetadataConfig{
		Provider: cfg.MetadataProvider,
		S3Bucket: cfg.MetadataS3Bucket,
		S3Region: cfg.MetadataS3Region,
		S3Prefix: cfg.MetadataS3Prefix,
	}

	logger.Debug("metadata configuration",
		slog.String("provider", metadataCfg.Provider),
		slog.String("s3_bucket", metadataCfg.S3Bucket),
		slog.String("s3_region", metadataCfg.S3Region),
		slog.String("s3_prefix", metadataCfg.S3Prefix))

	switch metadataCfg.Provider {
	case "memory":
		services.MetadataService = memory.NewMetadataService()

	case "postgres":
		pool, err := newDatabasePool(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("creating database pool: %w", err)
		}
		if err := runMigrations(pool, logger); err != nil {
			pool.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		db := postgres.NewDB(pool)
		services.MetadataService = db.MetadataService
		services.ReadyCheck = db.Ping
		services.Close = db.Close

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(metadataCfg.S3Region))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg)
		services.MetadataService = s3.NewMetadataService(client, metadataCfg.S3Bucket, metadataCfg.S3Prefix)
	}

	return nil
}
