package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_CreateRecord_Success(t *testing.T) {
	var received createVideoRequest
	var secret, owner, requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		secret = r.Header.Get(HeaderAccessSecret)
		owner = r.Header.Get(HeaderOwnerID)
		requestID = r.Header.Get(HeaderRequestID)
		json.NewDecoder(r.Body).Decode(&received)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(media.Video{ID: "vid123", Status: media.StatusUploaded})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", "alice", testLogger())

	id, err := client.CreateRecord(context.Background(), "test-secret", "clip.mp4", "video/mp4", 2048)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "vid123" {
		t.Errorf("id = %q, want vid123", id)
	}
	if secret != "test-secret" {
		t.Errorf("secret header = %q", secret)
	}
	if owner != "alice" {
		t.Errorf("owner header = %q", owner)
	}
	if requestID == "" {
		t.Error("request id header missing")
	}
	if received.FileName != "clip.mp4" || received.ContentType != "video/mp4" || received.Size != 2048 {
		t.Errorf("payload = %+v", received)
	}
}

func TestHTTPClient_SendChunk(t *testing.T) {
	var path, contentType string
	var body []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method: %s", r.Method)
		}
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "alice", testLogger())
	if err := client.SendChunk(context.Background(), "s", "vid1", 3, []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/videos/vid1/chunks/3" {
		t.Errorf("path = %q", path)
	}
	if contentType != "application/octet-stream" {
		t.Errorf("content type = %q", contentType)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPClient_MarkRegionAndStatus(t *testing.T) {
	var region geometry.IntRect
	var status statusRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/vid1/region":
			json.NewDecoder(r.Body).Decode(&region)
		case "/videos/vid1/status":
			json.NewDecoder(r.Body).Decode(&status)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "alice", testLogger())
	want := geometry.IntRect{X: 672, Y: 432, Width: 576, Height: 216}
	if err := client.MarkRegion(context.Background(), "s", "vid1", want); err != nil {
		t.Fatal(err)
	}
	if err := client.SetStatus(context.Background(), "s", "vid1", media.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if region != want {
		t.Errorf("region = %+v, want %+v", region, want)
	}
	if status.Status != media.StatusProcessing {
		t.Errorf("status = %q", status.Status)
	}
}

func TestHTTPClient_ListVideos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("owner"); got != "alice" {
			t.Errorf("owner query = %q", got)
		}
		json.NewEncoder(w).Encode(listResponse{Videos: []*media.Video{{ID: "a"}, {ID: "b"}}})
	}))
	defer server.Close()

	videos, err := NewHTTPClient(server.URL, "alice", testLogger()).ListVideos(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 || videos[1].ID != "b" {
		t.Errorf("videos = %v", videos)
	}
}

func TestHTTPClient_AccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Invalid access secret","code":"ACCESS_DENIED"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "alice", testLogger())
	_, err := client.CreateRecord(context.Background(), "bad", "a.mp4", "video/mp4", 1)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if !remoteErr.AccessDenied() {
		t.Error("AccessDenied() = false for 403 ACCESS_DENIED")
	}
	if remoteErr.Code != CodeAccessDenied {
		t.Errorf("code = %q", remoteErr.Code)
	}
	if !strings.Contains(err.Error(), "Invalid access secret") {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestRemoteError_Classification(t *testing.T) {
	if (&RemoteError{StatusCode: http.StatusForbidden, Code: CodeForbidden}).AccessDenied() {
		t.Error("owner mismatch should not be access denied")
	}
	if !(&RemoteError{StatusCode: http.StatusUnauthorized}).AccessDenied() {
		t.Error("401 should be access denied")
	}
	if !(&RemoteError{StatusCode: http.StatusNotFound}).NotFound() {
		t.Error("404 should be not found")
	}
	if !(&RemoteError{StatusCode: http.StatusBadGateway}).IsRetryable() {
		t.Fatal("expected 5xx error to be retryable")
	}
	if (&RemoteError{StatusCode: http.StatusConflict}).IsRetryable() {
		t.Fatal("expected 4xx error to be permanent")
	}
	if got := (&RemoteError{StatusCode: 500, Body: "boom"}).Error(); got != "media service: HTTP 500: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewHTTPClient(url, "alice", testLogger()).SendChunk(context.Background(), "s", "v", 0, []byte("x"))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		t.Errorf("network failure should not be a RemoteError: %v", err)
	}
}
