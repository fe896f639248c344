package playback

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type bytesContent struct {
	*bytes.Reader
}

func (b bytesContent) Size() int64 { return b.Reader.Size() }

func newContent(s string) bytesContent {
	return bytesContent{bytes.NewReader([]byte(s))}
}

func testServer() *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServe_FullBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/videos/v/content", nil)
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent("0123456789"), "clip.mp4", "video/mp4"); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=clip.mp4` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestServe_PartialContent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent("0123456789"), "clip.mp4", "video/mp4"); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("body = %q, want 2345", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestServe_Unsatisfiable(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=50-")
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent("0123456789"), "clip.mp4", "video/mp4"); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServe_InvalidRangeSendsFullBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "chars=0-1")
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent("abc"), "a.mp4", "video/mp4"); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "abc" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestServe_GuessesContentType(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent(png), "frame", ""); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if rec.Body.Len() != len(png) {
		t.Errorf("body length = %d, want %d after sniffing", rec.Body.Len(), len(png))
	}
}

func TestServe_Head(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()

	if err := testServer().Serve(rec, req, newContent("0123456789"), "clip.mp4", "video/mp4"); err != nil {
		t.Fatal(err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d bytes", rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Length"); got != "10" {
		t.Errorf("Content-Length = %q", got)
	}
}
