package main

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/internal/jobs"
	"github.com/menta2k/passport-photo/internal/utils"
	"github.com/menta2k/passport-photo/pkg/client"
	"github.com/menta2k/passport-photo/pkg/detection"
	"github.com/menta2k/passport-photo/pkg/imageio"
	"github.com/menta2k/passport-photo/pkg/llamacpp"
	"github.com/menta2k/passport-photo/pkg/matting"
	"github.com/menta2k/passport-photo/pkg/ollama"
	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
	"github.com/menta2k/passport-photo/pkg/types"
)

// loadConfig reads the config file when given, applies the environment and validates
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLoader builds the upload decoder from the upload settings
func newLoader(cfg config.UploadConfig) *imageio.Loader {
	return imageio.NewWithConfig(imageio.Config{
		SupportedFormats: cfg.SupportedFormats,
		MinImageSize:     cfg.MinImageSize,
	})
}

// newVisionClient creates the client for the configured backend
func newVisionClient(cfg config.VisionConfig) (client.VisionClient, error) {
	switch strings.ToLower(cfg.Backend) {
	case "ollama":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown vision backend: %s (use 'ollama' or 'llamacpp')", cfg.Backend)
	}
}

// newDetector returns a face detector for cfg, or detection.None when detection is off
func newDetector(cfg config.VisionConfig) (detection.FaceDetector, error) {
	if strings.EqualFold(cfg.Backend, "none") {
		return detection.None{}, nil
	}
	vc, err := newVisionClient(cfg)
	if err != nil {
		return nil, err
	}

	dc := detection.DefaultConfig()
	if cfg.Model != "" {
		dc.Model = cfg.Model
	}
	if cfg.MaxDim > 0 {
		dc.MaxDim = cfg.MaxDim
	}
	dc.RequestsPerMinute = cfg.RequestsPerMinute
	return detection.NewDetector(vc, dc), nil
}

// newExtractor returns the rembg client, or a passthrough when no server is configured
func newExtractor(cfg config.MattingConfig) (matting.Extractor, error) {
	if cfg.URL == "" {
		return matting.Passthrough{}, nil
	}
	c, err := matting.NewRembgClient(cfg.URL, cfg.Model)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newStore picks Postgres when a DSN is configured, fronted by Redis when an address
// is configured, and memory otherwise. The returned func releases connections.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (jobs.Store, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Info("no database configured, keeping jobs in memory")
		return jobs.NewMemoryStore(), func() {}, nil
	}

	db, err := jobs.OpenPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	pg := jobs.NewPostgresStore(db, logger)
	if err := pg.AutoMigrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("auto migrate failed: %w", err)
	}

	closers := []func(){func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var store jobs.Store = pg
	if cfg.Redis.Addr != "" {
		rdb, err := jobs.OpenRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { rdb.Close() })
		store = jobs.NewCachedStore(pg, jobs.NewRedisCache(rdb), cfg.Redis.TTL.Std(), logger)
	}
	return store, closeAll, nil
}

// checkOptions rejects sheet options that could never produce a sheet, before any
// image is loaded
func checkOptions(opts passportphoto.Options) error {
	p, err := passportphoto.LookupPreset(opts.Preset)
	if err != nil {
		return err
	}
	if _, err := sheet.ParseHexColor(opts.BGColor); err != nil {
		return err
	}
	_, err = passportphoto.PlanGrid(p.CanvasW, p.CanvasH, p.PhotoW, p.PhotoH, opts.Copies)
	return err
}

// sheetMaker runs the CLI pipeline on files
type sheetMaker struct {
	loader    *imageio.Loader
	extractor matting.Extractor
	detector  detection.FaceDetector
	opts      passportphoto.Options
}

// makeSheet builds the sheet for inPath and writes it to outPath. It returns the
// number of faces the detector reported.
func (m *sheetMaker) makeSheet(ctx context.Context, inPath, outPath string) (int, error) {
	img, err := m.loader.LoadImage(inPath)
	if err != nil {
		return 0, err
	}
	if err := m.loader.ValidateImage(img); err != nil {
		return 0, err
	}

	subject, err := m.extractor.Extract(ctx, img)
	if err != nil {
		return 0, fmt.Errorf("background removal failed: %w", err)
	}

	faces, err := m.faces(ctx, subject)
	if err != nil {
		return 0, err
	}

	s, err := passportphoto.BuildSheet(subject, faces, m.opts)
	if err != nil {
		return len(faces), err
	}
	return len(faces), passportphoto.WriteSheet(s, outPath)
}

func (m *sheetMaker) faces(ctx context.Context, subject image.Image) ([]types.BoundingBox, error) {
	p, err := preset.Lookup(m.opts.Preset)
	if err != nil {
		return nil, err
	}
	if p.FaceRatio == nil {
		return nil, nil
	}
	return m.detector.DetectFaces(ctx, subject)
}

// describeSheet returns the size of the sheet at path for progress output
func describeSheet(path string) string {
	size, err := utils.SheetSize(path)
	if err != nil {
		return "size unknown"
	}
	return size
}
