package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeS3(t *testing.T, puts *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			_, _ = io.Copy(io.Discard, r.Body)
			*puts = append(*puts, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Storage(t *testing.T, srv *httptest.Server, cloudFrontURL string) *S3Storage {
	t.Helper()
	s, err := NewS3Storage(S3Config{
		Bucket:          "scenario-assets",
		Region:          "ap-northeast-2",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		CloudFrontURL:   cloudFrontURL,
	})
	if err != nil {
		t.Fatalf("NewS3Storage() = %v", err)
	}
	return s
}

func TestS3Storage_Upload(t *testing.T) {
	var puts []string
	srv := newFakeS3(t, &puts)
	s := newTestS3Storage(t, srv, "")

	url, err := s.Upload(context.Background(), "videos/user-1/lottery.mp4", "video/mp4", bytes.NewReader([]byte("mp4")))
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}

	want := "https://scenario-assets.s3.ap-northeast-2.amazonaws.com/videos/user-1/lottery.mp4"
	if url != want {
		t.Errorf("Upload() url = %v, want %v", url, want)
	}
	if len(puts) != 1 || puts[0] != "/scenario-assets/videos/user-1/lottery.mp4" {
		t.Errorf("unexpected PUT paths: %v", puts)
	}
}

func TestS3Storage_Upload_CloudFrontURL(t *testing.T) {
	var puts []string
	srv := newFakeS3(t, &puts)
	s := newTestS3Storage(t, srv, "https://dexample.cloudfront.net/")

	url, err := s.Upload(context.Background(), "audio/user-1/call.mp3", "audio/mpeg", bytes.NewReader([]byte("mp3")))
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}

	want := "https://dexample.cloudfront.net/audio/user-1/call.mp3"
	if url != want {
		t.Errorf("Upload() url = %v, want %v", url, want)
	}
}
