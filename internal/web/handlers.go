// Package web exposes the job service over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/passport-photo/internal/jobs"
	"github.com/menta2k/passport-photo/internal/service"
	"github.com/menta2k/passport-photo/pkg/layout"
	"github.com/menta2k/passport-photo/pkg/normalize"
	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
)

// JobService is the part of the service the handlers use
type JobService interface {
	Process(ctx context.Context, req service.Request) (*service.Result, error)
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]*jobs.Job, error)
	SheetPath(jobID string) (string, error)
}

// Options holds request defaults and limits
type Options struct {
	PublicURL      string
	MaxUploadBytes int64
	DefaultBGColor string
	DefaultPreset  string
	DefaultCopies  int
}

type jobView struct {
	*jobs.Job
	DownloadURL string `json:"download_url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc JobService, opts Options, logger *zap.Logger) {
	h := &handler{svc: svc, opts: opts, logger: logger.Named("http")}
	router.MaxMultipartMemory = opts.MaxUploadBytes

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/presets", func(c *gin.Context) {
		c.JSON(http.StatusOK, preset.All())
	})

	router.POST("/remove-bg/", h.removeBackground)
	router.GET("/jobs", h.listJobs)
	router.GET("/job/:id", h.jobDetails)
	router.GET("/reprint/:id", h.reprint)
	router.GET("/download/:id", h.download)
}

type handler struct {
	svc    JobService
	opts   Options
	logger *zap.Logger
}

func (h *handler) removeBackground(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+1<<20)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.opts.MaxUploadBytes > 0 && file.Size > h.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}

	copies := h.opts.DefaultCopies
	if v := strings.TrimSpace(c.PostForm("copies")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "copies must be an integer"})
			return
		}
		copies = n
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	res, err := h.svc.Process(c.Request.Context(), service.Request{
		Image:   data,
		Preset:  c.DefaultPostForm("preset", h.opts.DefaultPreset),
		BGColor: c.DefaultPostForm("bg_color", h.opts.DefaultBGColor),
		Copies:  copies,
	})
	if err != nil {
		h.fail(c, "remove_bg", err)
		return
	}

	c.FileAttachment(res.SheetPath, res.Job.JobID+".jpg")
}

func (h *handler) listJobs(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	list, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "list_jobs", err)
		return
	}

	views := make([]jobView, 0, len(list))
	for _, job := range list {
		v := jobView{Job: job}
		if _, err := h.svc.SheetPath(job.JobID); err == nil {
			v.DownloadURL = h.downloadURL(job.JobID)
			v.PreviewURL = v.DownloadURL
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) jobDetails(c *gin.Context) {
	job, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "job_details", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handler) reprint(c *gin.Context) {
	path, err := h.svc.SheetPath(c.Param("id"))
	if err != nil {
		h.fail(c, "reprint", err)
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}

func (h *handler) download(c *gin.Context) {
	jobID := c.Param("id")
	path, err := h.svc.SheetPath(jobID)
	if err != nil {
		h.fail(c, "download", err)
		return
	}
	c.FileAttachment(path, fmt.Sprintf("passport_photo_%s.jpg", jobID))
}

func (h *handler) downloadURL(jobID string) string {
	return strings.TrimSuffix(h.opts.PublicURL, "/") + "/download/" + jobID
}

func (h *handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("operation", op), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, service.ErrSheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, preset.ErrUnknownPreset),
		errors.Is(err, sheet.ErrInvalidColor),
		errors.Is(err, layout.ErrLayoutOverflow),
		errors.Is(err, layout.ErrInvalidCopies),
		errors.Is(err, normalize.ErrInvalidBoundingBox),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
