package sheet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// DefaultDPI is assumed for images that declare no density
const DefaultDPI = 72

const (
	markerSOI  = 0xD8
	markerAPP0 = 0xE0
	markerSOS  = 0xDA

	densityNone = 0
	densityInch = 1
	densityCM   = 2
)

var jfifIdent = []byte("JFIF\x00")

// Encode writes the sheet as a baseline JPEG at JPEGQuality with a JFIF header
// declaring the sheet's DPI.
func (s *PrintSheet) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, s.Image, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("failed to encode sheet: %w", err)
	}

	data, err := setDensity(buf.Bytes(), s.DPIX, s.DPIY)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Bytes returns the encoded sheet
func (s *PrintSheet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a JPEG sheet and its declared density. Images without a JFIF
// density report DefaultDPI.
func Decode(r io.Reader) (*PrintSheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode sheet: %w", err)
	}

	dpiX, dpiY := readDensity(data)

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return &PrintSheet{Image: rgba, DPIX: dpiX, DPIY: dpiY}, nil
}

// setDensity rewrites or inserts the JFIF APP0 segment right after SOI
func setDensity(data []byte, dpiX, dpiY int) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("not a JPEG stream")
	}
	if dpiX <= 0 || dpiY <= 0 || dpiX > math.MaxUint16 || dpiY > math.MaxUint16 {
		return nil, fmt.Errorf("density %dx%d out of range", dpiX, dpiY)
	}

	if seg, ok := jfifSegment(data, 2); ok {
		out := append([]byte(nil), data...)
		out[seg+7] = densityInch
		binary.BigEndian.PutUint16(out[seg+8:], uint16(dpiX))
		binary.BigEndian.PutUint16(out[seg+10:], uint16(dpiY))
		return out, nil
	}

	app0 := make([]byte, 0, 18)
	app0 = append(app0, 0xFF, markerAPP0, 0x00, 0x10)
	app0 = append(app0, jfifIdent...)
	app0 = append(app0, 0x01, 0x02, densityInch)
	app0 = binary.BigEndian.AppendUint16(app0, uint16(dpiX))
	app0 = binary.BigEndian.AppendUint16(app0, uint16(dpiY))
	app0 = append(app0, 0x00, 0x00)

	out := make([]byte, 0, len(data)+len(app0))
	out = append(out, data[:2]...)
	out = append(out, app0...)
	out = append(out, data[2:]...)
	return out, nil
}

// jfifSegment returns the offset of the JFIF payload (after the length field) of the
// APP0 segment starting at off
func jfifSegment(data []byte, off int) (int, bool) {
	if len(data) < off+18 || data[off] != 0xFF || data[off+1] != markerAPP0 {
		return 0, false
	}
	payload := off + 4
	if !bytes.Equal(data[payload:payload+5], jfifIdent) {
		return 0, false
	}
	return payload, true
}

// readDensity walks the marker segments before the scan data looking for a JFIF
// header with a physical density
func readDensity(data []byte) (int, int) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return DefaultDPI, DefaultDPI
	}

	for off := 2; off+4 <= len(data); {
		if data[off] != 0xFF {
			break
		}
		marker := data[off+1]
		if marker == 0xFF {
			off++
			continue
		}
		if marker == markerSOS {
			break
		}
		length := int(binary.BigEndian.Uint16(data[off+2:]))
		if length < 2 {
			break
		}

		if marker == markerAPP0 {
			if p, ok := jfifSegment(data, off); ok {
				units := data[p+7]
				x := int(binary.BigEndian.Uint16(data[p+8:]))
				y := int(binary.BigEndian.Uint16(data[p+10:]))
				switch units {
				case densityInch:
					return x, y
				case densityCM:
					return int(math.Round(float64(x) * 2.54)), int(math.Round(float64(y) * 2.54))
				case densityNone:
					return DefaultDPI, DefaultDPI
				}
			}
		}
		off += 2 + length
	}
	return DefaultDPI, DefaultDPI
}
