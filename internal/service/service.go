// Package service runs a print job end to end: it stores the upload, removes the
// background, builds the sheet and records the job.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/jobs"
	"github.com/menta2k/passport-photo/internal/logging"
	"github.com/menta2k/passport-photo/internal/utils"
	"github.com/menta2k/passport-photo/pkg/detection"
	"github.com/menta2k/passport-photo/pkg/imageio"
	"github.com/menta2k/passport-photo/pkg/layout"
	"github.com/menta2k/passport-photo/pkg/matting"
	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
	"github.com/menta2k/passport-photo/pkg/types"
)

// File names inside a job folder
const (
	OriginalFile    = "original.jpg"
	TransparentFile = "transparent.png"
	SheetFile       = "final_sheet.jpg"
	MetaFile        = "meta.json"
)

// DefaultListLimit caps List when the caller passes no limit
const DefaultListLimit = 100

var (
	// ErrInvalidRequest wraps request problems the caller can fix
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSheetNotFound is returned when a job has no sheet on disk
	ErrSheetNotFound = errors.New("sheet not found")
)

// Config holds the settings the service needs
type Config struct {
	JobsDir         string
	CleanupDelay    time.Duration
	OriginalQuality int
	PricePerCopy    int
	CustomerName    string
}

// Request is one upload
type Request struct {
	Image   []byte
	Preset  string
	BGColor string
	Copies  int
}

// Result describes a finished job
type Result struct {
	Job       *jobs.Job
	SheetPath string
	Faces     int
}

// Service processes print jobs
type Service struct {
	cfg       Config
	store     jobs.Store
	extractor matting.Extractor
	detector  detection.FaceDetector
	loader    *imageio.Loader
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a service. A nil extractor keeps the uploaded background and a nil
// detector skips face scaling.
func New(cfg Config, store jobs.Store, extractor matting.Extractor, detector detection.FaceDetector, loader *imageio.Loader, logger *zap.Logger) *Service {
	if extractor == nil {
		extractor = matting.Passthrough{}
	}
	if detector == nil {
		detector = detection.None{}
	}
	if loader == nil {
		loader = imageio.New()
	}
	if cfg.OriginalQuality == 0 {
		cfg.OriginalQuality = 90
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		detector:  detector,
		loader:    loader,
		logger:    logger.Named("job_service"),
		now:       time.Now,
	}
}

// Process runs the whole job for req and returns the stored record. Requests naming
// an unknown preset, a bad color or a copy count the layout cannot hold fail before
// anything is written.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	p, plan, err := s.checkRequest(req)
	if err != nil {
		return nil, err
	}

	img, _, err := s.loader.Decode(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.loader.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now()
	jobID := jobs.NewJobID(now)
	opLogger := logging.WithOperation(s.logger, "service.process", jobID)

	jobPath := filepath.Join(s.cfg.JobsDir, jobID)
	if err := utils.EnsureDir(jobPath); err != nil {
		return nil, logging.NewJobError("service.create_job_folder", jobID, p.Name, err)
	}

	// A job that fails past this point leaves no folder behind
	completed := false
	defer func() {
		if completed {
			return
		}
		if err := os.RemoveAll(jobPath); err != nil {
			opLogger.Warn("failed to remove job folder", zap.String("path", jobPath), zap.Error(err))
		}
	}()

	if plan.Len() < req.Copies {
		opLogger.Warn("copies capped to grid capacity",
			zap.Int("requested", req.Copies),
			zap.Int("printed", plan.Len()))
	}

	job := &jobs.Job{
		JobID:           jobID,
		Preset:          p.Name,
		BGColor:         req.BGColor,
		Copies:          req.Copies,
		CreatedAt:       now.UTC(),
		OriginalPath:    filepath.Join(jobPath, OriginalFile),
		TransparentPath: filepath.Join(jobPath, TransparentFile),
		FinalPath:       filepath.Join(jobPath, SheetFile),
		Price:           plan.Len() * s.cfg.PricePerCopy,
		CustomerName:    s.cfg.CustomerName,
	}

	if err := imageio.SaveJPEG(img, job.OriginalPath, s.cfg.OriginalQuality); err != nil {
		return nil, logging.NewJobError("service.save_original", jobID, p.Name, err)
	}

	subject, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, logging.NewJobError("service.extract_subject", jobID, p.Name, err)
	}
	if err := imageio.SavePNG(subject, job.TransparentPath); err != nil {
		return nil, logging.NewJobError("service.save_transparent", jobID, p.Name, err)
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		opLogger.Warn("could not count jobs", zap.Error(err))
		count = 0
	}
	job.JobNo = count + 1

	faces := s.detectFaces(ctx, subject, p, opLogger)

	built, err := passportphoto.BuildSheet(subject, faces, passportphoto.Options{
		Preset:  p.Name,
		BGColor: req.BGColor,
		Copies:  req.Copies,
	})
	if err != nil {
		return nil, logging.NewJobError("service.build_sheet", jobID, p.Name, err)
	}
	if err := passportphoto.WriteSheet(built, job.FinalPath); err != nil {
		return nil, logging.NewJobError("service.write_sheet", jobID, p.Name, err)
	}

	job.Status = jobs.StatusCompleted
	if err := writeMeta(job, filepath.Join(jobPath, MetaFile)); err != nil {
		return nil, logging.NewJobError("service.write_meta", jobID, p.Name, err)
	}
	completed = true
	if err := s.store.Put(ctx, job); err != nil {
		opLogger.Error("failed to persist job", zap.Error(err))
	}

	utils.RemoveAfter(job.TransparentPath, s.cfg.CleanupDelay, func(path string, err error) {
		if err != nil {
			opLogger.Warn("failed to remove intermediate file", zap.String("path", path), zap.Error(err))
			return
		}
		opLogger.Debug("removed intermediate file", zap.String("path", path))
	})

	opLogger.Info("job completed",
		zap.String("preset", p.Name),
		zap.Int("copies", plan.Len()),
		zap.Int("faces", len(faces)),
		zap.Int64("job_no", job.JobNo))

	return &Result{Job: job, SheetPath: job.FinalPath, Faces: len(faces)}, nil
}

// checkRequest rejects requests that could never produce a sheet and returns the
// preset and the planned grid
func (s *Service) checkRequest(req Request) (preset.Preset, layout.Plan, error) {
	if len(req.Image) == 0 {
		return preset.Preset{}, layout.Plan{}, fmt.Errorf("%w: empty upload", ErrInvalidRequest)
	}
	p, err := preset.Lookup(req.Preset)
	if err != nil {
		return preset.Preset{}, layout.Plan{}, err
	}
	if _, err := sheet.ParseHexColor(req.BGColor); err != nil {
		return preset.Preset{}, layout.Plan{}, err
	}
	plan, err := layout.New(p.CanvasW, p.CanvasH, p.PhotoW, p.PhotoH, req.Copies)
	if err != nil {
		return preset.Preset{}, layout.Plan{}, err
	}
	return p, plan, nil
}

// detectFaces asks the detector for faces when the preset scales by face. Detector
// failures fall back to no face.
func (s *Service) detectFaces(ctx context.Context, subject image.Image, p preset.Preset, opLogger *zap.Logger) []types.BoundingBox {
	if p.FaceRatio == nil {
		return nil
	}
	faces, err := s.detector.DetectFaces(ctx, subject)
	if err != nil {
		opLogger.Warn("face detection failed, keeping subject scale", zap.Error(err))
		return nil
	}
	if len(faces) == 0 {
		opLogger.Info("no face found, keeping subject scale")
	}
	return faces
}

func writeMeta(job *jobs.Job, path string) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Get returns the record of jobID
func (s *Service) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	return s.store.Get(ctx, jobID)
}

// List returns recent jobs, newest first
func (s *Service) List(ctx context.Context, limit int) ([]*jobs.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.List(ctx, limit)
}

// SheetPath returns the path of the sheet for jobID if it exists
func (s *Service) SheetPath(jobID string) (string, error) {
	dir, err := utils.SafeJoin(s.cfg.JobsDir, jobID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSheetNotFound, err)
	}
	path := filepath.Join(dir, SheetFile)
	if !utils.FileExists(path) {
		return "", ErrSheetNotFound
	}
	return path, nil
}
