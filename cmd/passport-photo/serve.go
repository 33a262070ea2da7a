package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/passport-photo/internal/logging"
	"github.com/menta2k/passport-photo/internal/service"
	"github.com/menta2k/passport-photo/internal/utils"
	"github.com/menta2k/passport-photo/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP print service",
	Long: `Start the HTTP service that accepts uploads on /remove-bg/, stores every job
in its own folder and serves reprints and downloads.

Jobs are recorded in Postgres when DATABASE_DSN is set (cached in Redis when
REDIS_ADDR is set) and in memory otherwise.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address; config value when empty")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr := mustGetString(cmd, "addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	debug := mustGetBool(cmd, "debug")

	logger, err := logging.NewLogger(debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if err := utils.EnsureDir(cfg.Storage.JobsDir); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := newStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeStore()

	extractor, err := newExtractor(cfg.Matting)
	if err != nil {
		return fmt.Errorf("failed to create matting client: %w", err)
	}
	detector, err := newDetector(cfg.Vision)
	if err != nil {
		return fmt.Errorf("failed to create face detector: %w", err)
	}

	svc := service.New(service.Config{
		JobsDir:         cfg.Storage.JobsDir,
		CleanupDelay:    cfg.Storage.CleanupDelay.Std(),
		OriginalQuality: cfg.Storage.OriginalQuality,
		PricePerCopy:    cfg.Pricing.PricePerCopy,
		CustomerName:    cfg.Pricing.CustomerName,
	}, store, extractor, detector, newLoader(cfg.Upload), logger)

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	web.RegisterRoutes(router, svc, web.Options{
		PublicURL:      cfg.Server.PublicURL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		DefaultBGColor: cfg.Defaults.BGColor,
		DefaultPreset:  cfg.Defaults.Preset,
		DefaultCopies:  cfg.Defaults.Copies,
	}, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("jobs_dir", cfg.Storage.JobsDir),
		zap.String("vision_backend", cfg.Vision.Backend),
		zap.Bool("matting", cfg.Matting.URL != ""))

	return web.Serve(server, cfg.Server.ShutdownTimeout.Std(), logger)
}
