package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"face.JPG":     true,
		"face.jpeg":    true,
		"scan.tif":     true,
		"photo.webp":   true,
		"notes.txt":    false,
		"no_extension": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSheetFilename(t *testing.T) {
	got := SheetFilename("/in/alice.png", "/out", "visa")
	if want := filepath.Join("/out", "alice_visa_sheet.jpg"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "a_passport_sheet.jpg", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.jpg" || filepath.Base(files[1]) != "b.png" {
		t.Errorf("Unexpected files %v", files)
	}

	if _, err := ListImageFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)

	if !FileExists(file) || FileExists(dir) || FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists gave wrong answer")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists gave wrong answer")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if !DirExists(dir) {
		t.Error("Expected directory to exist")
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("Expected second call to succeed: %v", err)
	}
}

func TestSafeJoin(t *testing.T) {
	if got, err := SafeJoin("/jobs", "JOB_20240101_120000_abcdef"); err != nil || got != filepath.Join("/jobs", "JOB_20240101_120000_abcdef") {
		t.Errorf("Unexpected result %q, %v", got, err)
	}
	for _, bad := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "x..y"} {
		if _, err := SafeJoin("/jobs", bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestRemoveAfter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transparent.png")
	os.WriteFile(path, []byte("x"), 0644)

	done := make(chan error, 1)
	RemoveAfter(path, 10*time.Millisecond, func(_ string, err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected removal to succeed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for removal")
	}
	if FileExists(path) {
		t.Error("Expected file to be removed")
	}

	// already gone is not an error
	RemoveAfter(path, 0, func(_ string, err error) { done <- err })
	if err := <-done; err != nil {
		t.Errorf("Expected nil for missing file, got %v", err)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:        "512 B",
		2048:       "2.0 KB",
		1536 << 10: "1.5 MB",
		5 << 30:    "5.0 GB",
		3 << 40:    "3072.0 GB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %s, want %s", size, got, want)
		}
	}
}

func TestSheetSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a_passport_sheet.jpg")
	if err := os.WriteFile(path, make([]byte, 3072), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := SheetSize(path)
	if err != nil || got != "3.0 KB" {
		t.Errorf("SheetSize = %q, %v; want 3.0 KB", got, err)
	}
	if _, err := SheetSize(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for missing sheet")
	}
}
