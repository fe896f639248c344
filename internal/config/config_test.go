package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/eraser")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.MediaPort() != DefaultMediaPort {
		t.Errorf("MediaPort() = %d, want %d", cfg.MediaPort(), DefaultMediaPort)
	}
	if cfg.Storage() != StorageFS {
		t.Errorf("Storage() = %q, want fs", cfg.Storage())
	}
	if cfg.ProcessingDelay() != 3*time.Second {
		t.Errorf("ProcessingDelay() = %v, want 3s", cfg.ProcessingDelay())
	}
	if want := filepath.Join("/tmp/eraser", DBFilename); cfg.DBPath() != want {
		t.Errorf("DBPath() = %q, want %q", cfg.DBPath(), want)
	}
	if want := filepath.Join("/tmp/eraser", AgentDBFilename); cfg.AgentDBPath() != want {
		t.Errorf("AgentDBPath() = %q, want %q", cfg.AgentDBPath(), want)
	}
	if want := "http://127.0.0.1:8787/"; cfg.ShareURL() != want {
		t.Errorf("ShareURL() = %q, want %q", cfg.ShareURL(), want)
	}
	if want := filepath.Join("/tmp/eraser", "chunks"); cfg.ChunkDir() != want {
		t.Errorf("ChunkDir() = %q, want %q", cfg.ChunkDir(), want)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvAccessSecret, "s3cret")
	t.Setenv(EnvRemoteURL, "https://media.example.com/")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvProcessingDelayMS, "250")
	t.Setenv(EnvStorage, "S3")
	t.Setenv(EnvS3Bucket, "videos")
	t.Setenv(EnvS3Prefix, "/raw/")
	t.Setenv(EnvShareURL, "https://eraser.example.com/app")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.AccessSecret() != "s3cret" {
		t.Errorf("AccessSecret() = %q", cfg.AccessSecret())
	}
	if cfg.RemoteURL() != "https://media.example.com" {
		t.Errorf("RemoteURL() = %q, want trailing slash trimmed", cfg.RemoteURL())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
	if cfg.ProcessingDelay() != 250*time.Millisecond {
		t.Errorf("ProcessingDelay() = %v", cfg.ProcessingDelay())
	}
	if cfg.ShareURL() != "https://eraser.example.com/app" {
		t.Errorf("ShareURL() = %q", cfg.ShareURL())
	}
	if cfg.Storage() != StorageS3 || cfg.S3Bucket() != "videos" || cfg.S3Prefix() != "raw" {
		t.Errorf("s3 settings = %q %q %q", cfg.Storage(), cfg.S3Bucket(), cfg.S3Prefix())
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvMediaPort, "70000"},
		{"bad headless", EnvHeadless, "maybe"},
		{"negative delay", EnvProcessingDelayMS, "-1"},
		{"unknown storage", EnvStorage, "ftp"},
		{"relative remote", EnvRemoteURL, "media.local"},
		{"relative share url", EnvShareURL, "/eraser"},
		{"s3 without bucket", EnvStorage, "s3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestNew_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := EnvOwnerID + "=from-file\n" + EnvLogLevel + "=debug\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFile), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	// Real environment wins over the file.
	t.Setenv(EnvLogLevel, "warn")
	t.Cleanup(func() { os.Unsetenv(EnvOwnerID) })

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OwnerID() != "from-file" {
		t.Errorf("OwnerID() = %q, want from-file", cfg.OwnerID())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel() = %q, want warn", cfg.LogLevel())
	}
}

func TestNew_MissingDotEnvIsFine(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := New(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
