package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/menta2k/passport-photo/pkg/client"
	"github.com/menta2k/passport-photo/pkg/imageio"
	"github.com/menta2k/passport-photo/pkg/types"
)

// DefaultPrompt asks the vision model for every face in the image
const DefaultPrompt = `You are a face locator for ID photos.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box must cover the face from the top of the forehead to the bottom of the chin,
  ear to ear. Do not include hair above the forehead, neck or shoulders.
- List every human face you can see. If there is none, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FaceDetector locates faces and reports them as pixel boxes
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.BoundingBox, error)
}

// None is a FaceDetector that never finds a face
type None struct{}

// DetectFaces implements FaceDetector
func (None) DetectFaces(context.Context, image.Image) ([]types.BoundingBox, error) {
	return nil, nil
}

// Config controls how images are sent to the vision model
type Config struct {
	Model       string
	Prompt      string
	MaxDim      int
	JPEGQuality int
	// RequestsPerMinute limits calls to the backend; 0 disables the limit
	RequestsPerMinute int
}

// DefaultConfig returns the settings used when none are given
func DefaultConfig() Config {
	return Config{
		Model:       "openbmb/minicpm-v4.5",
		Prompt:      DefaultPrompt,
		MaxDim:      1024,
		JPEGQuality: 85,
	}
}

// Detector handles face detection using vision models
type Detector struct {
	client  client.VisionClient
	config  Config
	limiter *rate.Limiter
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, config Config) *Detector {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.JPEGQuality == 0 {
		config.JPEGQuality = 85
	}

	d := &Detector{client: client, config: config}
	if config.RequestsPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}
	return d
}

// DetectFaces sends img to the vision model and returns the faces it reported, in
// the order reported, converted to pixel coordinates of img. A reply that cannot be
// parsed counts as no face found.
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.BoundingBox, error) {
	imgB64, err := imageio.PrepareForModel(img, d.config.MaxDim, d.config.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	raw, err := d.client.SimpleQuery(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	result, ok := parseFaceResult(raw)
	if !ok {
		return nil, nil
	}

	b := img.Bounds()
	boxes := make([]types.BoundingBox, 0, len(result.Faces))
	for _, f := range result.Faces {
		box := f.Box.ToPixels(b.Dx(), b.Dy())
		if box.Width <= 0 || box.Height <= 0 {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// parseFaceResult parses the JSON reply from the vision model
func parseFaceResult(raw string) (*types.FaceResult, bool) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, false
	}

	var result types.FaceResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false
	}
	for i := range result.Faces {
		result.Faces[i].Box = normalizeBox(result.Faces[i].Box)
	}
	return &result, true
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	return types.Box{
		X: clamp(b.X, 0, 1),
		Y: clamp(b.Y, 0, 1),
		W: clamp(b.W, 0, 1),
		H: clamp(b.H, 0, 1),
	}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
