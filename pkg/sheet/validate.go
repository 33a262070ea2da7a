package sheet

import (
	"errors"
	"fmt"
)

// ErrLowResolution is returned when a sheet declares less than PrintDPI
var ErrLowResolution = errors.New("resolution too low for print")

// ValidatePrintReady checks that the sheet declares at least 300 DPI on both axes.
// Compose always stamps 300 DPI; this guards sheets decoded from elsewhere.
func ValidatePrintReady(s *PrintSheet) error {
	if s == nil || s.Image == nil {
		return fmt.Errorf("sheet is empty")
	}
	if s.DPIX < PrintDPI || s.DPIY < PrintDPI {
		return fmt.Errorf("%w: %dx%d DPI (must be %d)", ErrLowResolution, s.DPIX, s.DPIY, PrintDPI)
	}
	return nil
}
