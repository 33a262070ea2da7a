// Package matting separates the person from the photo background. The result keeps
// the subject opaque and everything else transparent.
package matting

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/passport-photo/pkg/imageio"
)

// Extractor removes the background of an image
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (*image.NRGBA, error)
}

// Passthrough returns the input unchanged, fully opaque
type Passthrough struct{}

// Extract implements Extractor
func (Passthrough) Extract(_ context.Context, img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	return imageio.ToNRGBA(img), nil
}

// RembgClient talks to a rembg HTTP server
type RembgClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewRembgClient creates a client for the rembg server at serverURL. model may be
// empty to use the server default.
func NewRembgClient(serverURL, model string) (*RembgClient, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("rembg server URL is required")
	}
	return &RembgClient{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

// Extract uploads img as PNG and decodes the cut-out the server returns
func (c *RembgClient) Extract(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	body, contentType, err := c.buildForm(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/remove", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rembg returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rembg output: %w", err)
	}
	return imageio.ToNRGBA(out), nil
}

func (c *RembgClient) buildForm(img image.Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "upload.png")
	if err != nil {
		return nil, "", err
	}
	if err := imageio.EncodePNG(part, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode upload: %w", err)
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
