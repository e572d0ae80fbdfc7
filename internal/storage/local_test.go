package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/assets"

	s, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage() = %v", err)
	}
	if s.BaseDir() != dir {
		t.Errorf("BaseDir() = %v, want %v", s.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestLocalStorage_Upload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatal(err)
	}

	url, err := s.Upload(context.Background(), "scenario-assets/user-1/lottery.mp4", "video/mp4", bytes.NewReader([]byte("mp4")))
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}

	want := "file://" + filepath.Join(dir, "scenario-assets", "user-1", "lottery.mp4")
	if url != want {
		t.Errorf("Upload() url = %v, want %v", url, want)
	}

	data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(data) != "mp4" {
		t.Errorf("uploaded content = %q", data)
	}
}

func TestLocalStorage_Upload_CancelledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Upload(ctx, "x", "", bytes.NewReader(nil)); err == nil {
		t.Error("Upload() with cancelled context should fail")
	}
}
