package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an extension the upload decoder understands
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp":
		return true
	}
	return false
}

// SheetFilename returns the output path of the print sheet for inputFile
func SheetFilename(inputFile, outputDir, presetName string) string {
	baseName := filepath.Base(inputFile)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_sheet.jpg", nameWithoutExt, presetName))
}

// ListImageFiles lists image files directly inside dir, sorted by name. Files that
// look like sheets this tool produced are skipped.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) || strings.HasSuffix(e.Name(), "_sheet.jpg") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SafeJoin joins name onto base and fails if name is empty or would escape base
func SafeJoin(base, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid path component %q", name)
	}
	return filepath.Join(base, name), nil
}

// RemoveAfter deletes path once delay has passed. A missing file is not an error.
// onDone, when set, receives the outcome.
func RemoveAfter(path string, delay time.Duration, onDone func(path string, err error)) *time.Timer {
	return time.AfterFunc(delay, func() {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			err = nil
		}
		if onDone != nil {
			onDone(path, err)
		}
	})
}

var sizeUnits = []string{"KB", "MB", "GB"}

// FormatFileSize renders size in binary units, e.g. "1.4 MB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	v := float64(size) / 1024
	unit := 0
	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, sizeUnits[unit])
}

// SheetSize returns the formatted size of the written sheet at path
func SheetSize(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return FormatFileSize(info.Size()), nil
}
