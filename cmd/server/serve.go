package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NikunjBaldaniya/AnyviDow/internal/config"
	"github.com/NikunjBaldaniya/AnyviDow/internal/downloader"
	apphttp "github.com/NikunjBaldaniya/AnyviDow/internal/http"
	"github.com/NikunjBaldaniya/AnyviDow/internal/janitor"
	"github.com/NikunjBaldaniya/AnyviDow/internal/logging"
	"github.com/NikunjBaldaniya/AnyviDow/internal/merge"
	"github.com/NikunjBaldaniya/AnyviDow/internal/metrics"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/repository/sqlite"
	"github.com/NikunjBaldaniya/AnyviDow/internal/resolver"
	"github.com/NikunjBaldaniya/AnyviDow/internal/service"
	"github.com/NikunjBaldaniya/AnyviDow/internal/session"
	"github.com/NikunjBaldaniya/AnyviDow/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.LogLevel)

	if !cfg.Auth.Disabled && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required (set ANYVIDOW_AUTH_JWTSECRET or ANYVIDOW_AUTH_DISABLED=true)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var users service.UserService
	if !cfg.Auth.Disabled {
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		userRepo := sqlite.NewUserRepository(db)
		if err := userRepo.Init(ctx); err != nil {
			return fmt.Errorf("init user repository: %w", err)
		}
		users = service.NewUserService(userRepo)

		if cfg.Auth.AdminPassword != "" {
			if _, err := users.EnsureUser(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
				return fmt.Errorf("seed admin user: %w", err)
			}
			logger.Infof("admin account %q ready", cfg.Auth.AdminUsername)
		}
	}

	mirror, err := buildMirror(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	m := metrics.New()

	ytdlp := provider.NewYtdlp(provider.YtdlpConfig{
		UserAgent:        cfg.Download.UserAgent,
		ProgressInterval: cfg.Download.ProgressInterval,
		AutoInstall:      cfg.Provider.AutoInstall,
		Logger:           logger,
	})
	ytdlp.Install(ctx)

	res := resolver.New(resolver.Config{
		CacheTTL: cfg.Provider.CacheTTL,
		Logger:   logger,
	}, ytdlp)

	muxer := merge.NewEngine(merge.Config{
		FFmpeg:   cfg.Merge.FFmpeg,
		FFprobe:  cfg.Merge.FFprobe,
		Tiers:    merge.DefaultTiers(cfg.Merge.RemuxTimeout, cfg.Merge.ReencodeTimeout, cfg.Merge.BasicTimeout),
		Observer: m.MergeAttempt,
		Logger:   logger,
	}, merge.ExecRunner{})

	sessions := session.NewRegistry()
	manager := downloader.NewManager(downloader.Config{
		DownloadRoot:    cfg.Download.DataDir,
		MaxConcurrent:   cfg.Download.MaxConcurrent,
		QueueSize:       cfg.Download.QueueSize,
		PlaylistQuality: cfg.Download.PlaylistQuality,
		Logger:          logger,
		Metrics:         m,
	}, sessions, ytdlp, res, muxer, mirror)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	sweeper := janitor.New(janitor.Config{
		Root:     cfg.Download.DataDir,
		MaxAge:   cfg.Download.MaxAge,
		Schedule: cfg.Download.SweepSchedule,
		Logger:   logger,
		InUse:    sessions.Owns,
	})
	if err := sweeper.Start(); err != nil {
		manager.Shutdown()
		return fmt.Errorf("start janitor: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(apphttp.Config{
		Resolver:       res,
		Manager:        manager,
		Users:          users,
		Cleaner:        sweeper,
		Metrics:        m,
		Logger:         logger,
		DataRoot:       cfg.Download.DataDir,
		CleanupDelay:   cfg.Download.CleanupDelay,
		StreamInterval: cfg.Server.StreamInterval,
		CORSOrigins:    cfg.Server.CORSOrigins,
		FetchRate:      cfg.Server.FetchRate,
		FetchBurst:     cfg.Server.FetchBurst,
		AuthDisabled:   cfg.Auth.Disabled,
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
	}).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("http server: %v", err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()
	sweeper.Stop()

	logger.Info("bye")
	return nil
}

// buildMirror returns nil when no bucket is configured; archives are then
// only served locally.
func buildMirror(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.Mirror, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring archives to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewMirror(storage.MirrorConfig{
		Bucket:     cfg.Storage.Bucket,
		KeyPrefix:  cfg.Storage.KeyPrefix,
		PresignTTL: cfg.Storage.PresignTTL,
		Logger:     logger,
	}, storage.NewS3Service(client)), nil
}
