package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/passport-photo/internal/jobs"
	"github.com/menta2k/passport-photo/internal/logging"
	"github.com/menta2k/passport-photo/pkg/layout"
	"github.com/menta2k/passport-photo/pkg/normalize"
	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
	"github.com/menta2k/passport-photo/pkg/types"
)

func uploadPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), 90, uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type stubExtractor struct {
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, img image.Image) (*image.NRGBA, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := b.Dx() / 4; x < 3*b.Dx()/4; x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out, nil
}

type stubDetector struct {
	faces []types.BoundingBox
	err   error
	calls int
}

func (s *stubDetector) DetectFaces(context.Context, image.Image) ([]types.BoundingBox, error) {
	s.calls++
	return s.faces, s.err
}

type failingStore struct {
	*jobs.MemoryStore
	putErr   error
	countErr error
}

func (f *failingStore) Put(ctx context.Context, job *jobs.Job) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, job)
}

func (f *failingStore) Count(ctx context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.MemoryStore.Count(ctx)
}

func newTestService(t *testing.T, store jobs.Store, det *stubDetector) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		JobsDir:         dir,
		CleanupDelay:    20 * time.Millisecond,
		OriginalQuality: 90,
		PricePerCopy:    10,
		CustomerName:    "Walk-in",
	}
	if det == nil {
		det = &stubDetector{}
	}
	return New(cfg, store, &stubExtractor{}, det, nil, zap.NewNop()), dir
}

func passportRequest(t *testing.T) Request {
	return Request{Image: uploadPNG(t, 200, 300), Preset: "passport", BGColor: "#ffffff", Copies: 6}
}

func TestProcessWritesJobFolder(t *testing.T) {
	store := jobs.NewMemoryStore()
	svc, dir := newTestService(t, store, nil)

	res, err := svc.Process(context.Background(), passportRequest(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	job := res.Job
	if job.Status != jobs.StatusCompleted || job.Price != 60 || job.CustomerName != "Walk-in" || job.JobNo != 1 {
		t.Errorf("unexpected job %+v", job)
	}
	if filepath.Dir(res.SheetPath) != filepath.Join(dir, job.JobID) {
		t.Errorf("expected sheet inside job folder, got %s", res.SheetPath)
	}

	for _, name := range []string{OriginalFile, SheetFile, MetaFile} {
		if _, err := os.Stat(filepath.Join(dir, job.JobID, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	f, err := os.Open(res.SheetPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := sheet.Decode(f)
	if err != nil {
		t.Fatalf("sheet does not decode: %v", err)
	}
	if s.Width() != 1772 || s.Height() != 1181 || sheet.ValidatePrintReady(s) != nil {
		t.Errorf("unexpected sheet %dx%d @ %dx%d DPI", s.Width(), s.Height(), s.DPIX, s.DPIY)
	}

	data, err := os.ReadFile(filepath.Join(dir, job.JobID, MetaFile))
	if err != nil {
		t.Fatal(err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("meta.json is not JSON: %v", err)
	}
	if meta["job_id"] != job.JobID || meta["status"] != "completed" || meta["price"] != float64(60) {
		t.Errorf("unexpected meta %v", meta)
	}

	stored, err := svc.Get(context.Background(), job.JobID)
	if err != nil || stored.JobID != job.JobID {
		t.Errorf("expected job in store, got %v, %v", stored, err)
	}
}

func TestProcessRemovesTransparentLater(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)

	res, err := svc.Process(context.Background(), passportRequest(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(res.Job.TransparentPath); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected transparent.png to be removed after the cleanup delay")
}

func TestProcessNumbersJobs(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)

	for want := int64(1); want <= 3; want++ {
		res, err := svc.Process(context.Background(), passportRequest(t))
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if res.Job.JobNo != want {
			t.Errorf("expected job_no %d, got %d", want, res.Job.JobNo)
		}
	}

	list, err := svc.List(context.Background(), 0)
	if err != nil || len(list) != 3 {
		t.Errorf("expected 3 jobs, got %d (%v)", len(list), err)
	}
}

func TestProcessUsesFirstFace(t *testing.T) {
	det := &stubDetector{faces: []types.BoundingBox{{X: 50, Y: 30, Width: 100, Height: 120}, {X: 0, Y: 0, Width: 5, Height: 5}}}
	svc, _ := newTestService(t, jobs.NewMemoryStore(), det)

	res, err := svc.Process(context.Background(), passportRequest(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if det.calls != 1 || res.Faces != 2 {
		t.Errorf("expected one detector call reporting 2 faces, got %d calls, %d faces", det.calls, res.Faces)
	}
}

func TestProcessSurvivesCollaboratorFailures(t *testing.T) {
	store := &failingStore{
		MemoryStore: jobs.NewMemoryStore(),
		putErr:      errors.New("database is down"),
		countErr:    errors.New("database is down"),
	}
	det := &stubDetector{err: errors.New("model not loaded")}
	svc, _ := newTestService(t, store, det)

	res, err := svc.Process(context.Background(), passportRequest(t))
	if err != nil {
		t.Fatalf("expected job to complete despite store and detector errors, got %v", err)
	}
	if res.Job.JobNo != 1 {
		t.Errorf("expected job_no to fall back to 1, got %d", res.Job.JobNo)
	}
	if _, err := os.Stat(res.SheetPath); err != nil {
		t.Errorf("expected sheet on disk: %v", err)
	}
}

func TestProcessRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"unknown preset", func(r *Request) { r.Preset = "drivers_license" }, preset.ErrUnknownPreset},
		{"bad color", func(r *Request) { r.BGColor = "blue" }, sheet.ErrInvalidColor},
		{"visa overflow", func(r *Request) { r.Preset = "visa"; r.Copies = 6 }, layout.ErrLayoutOverflow},
		{"zero copies", func(r *Request) { r.Copies = 0 }, layout.ErrInvalidCopies},
		{"empty upload", func(r *Request) { r.Image = nil }, ErrInvalidRequest},
		{"not an image", func(r *Request) { r.Image = []byte("hello") }, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &stubExtractor{}
			dir := t.TempDir()
			svc := New(Config{JobsDir: dir, PricePerCopy: 10}, jobs.NewMemoryStore(), ext, nil, nil, zap.NewNop())

			req := passportRequest(t)
			tt.mutate(&req)

			_, err := svc.Process(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 || ext.calls != 0 {
				t.Errorf("expected nothing written, found %d entries and %d extractor calls", len(entries), ext.calls)
			}
		})
	}
}

func TestProcessRejectsTinyImage(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)
	req := passportRequest(t)
	req.Image = uploadPNG(t, 40, 40)

	if _, err := svc.Process(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestProcessExtractorFailure(t *testing.T) {
	dir := t.TempDir()
	ext := &stubExtractor{err: errors.New("rembg unavailable")}
	svc := New(Config{JobsDir: dir}, jobs.NewMemoryStore(), ext, nil, nil, zap.NewNop())

	_, err := svc.Process(context.Background(), passportRequest(t))
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "service.extract_subject" {
		t.Fatalf("expected extract_subject OperationError, got %v", err)
	}
	if opErr.Preset != "passport" || opErr.JobID == "" {
		t.Errorf("expected job id and preset on the error, got %+v", opErr)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected failed job folder to be removed, found %s", entries[0].Name())
	}
}

func TestProcessBuildFailureRemovesJobFolder(t *testing.T) {
	det := &stubDetector{faces: []types.BoundingBox{{X: 10, Y: 10, Width: 40, Height: 0}}}
	store := jobs.NewMemoryStore()
	svc, dir := newTestService(t, store, det)

	_, err := svc.Process(context.Background(), passportRequest(t))
	if !errors.Is(err, normalize.ErrInvalidBoundingBox) {
		t.Fatalf("expected ErrInvalidBoundingBox, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no job folder, found %d entries", len(entries))
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("expected no stored job, got %d", n)
	}
}

func TestProcessPricesPrintedCopies(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)
	req := passportRequest(t)
	req.Copies = 10

	res, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Job.Price != 60 {
		t.Errorf("expected price for the 6 printed copies, got %d", res.Job.Price)
	}
	if res.Job.Copies != 10 {
		t.Errorf("expected requested copies to be recorded, got %d", res.Job.Copies)
	}
}

func TestSheetPath(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)

	res, err := svc.Process(context.Background(), passportRequest(t))
	if err != nil {
		t.Fatal(err)
	}

	path, err := svc.SheetPath(res.Job.JobID)
	if err != nil || path != res.SheetPath {
		t.Errorf("expected %s, got %s (%v)", res.SheetPath, path, err)
	}

	for _, id := range []string{"JOB_missing", "../" + res.Job.JobID, ""} {
		if _, err := svc.SheetPath(id); !errors.Is(err, ErrSheetNotFound) {
			t.Errorf("SheetPath(%q): expected ErrSheetNotFound, got %v", id, err)
		}
	}
}

func TestGetUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, jobs.NewMemoryStore(), nil)
	if _, err := svc.Get(context.Background(), "JOB_nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
