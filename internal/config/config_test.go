package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Media.TranscoderCommand != "ffmpeg" {
		t.Fatalf("expected default transcoder, got %q", cfg.Media.TranscoderCommand)
	}
	if cfg.Media.MaxUploadBytes != 715000 {
		t.Fatalf("expected default upload cap, got %d", cfg.Media.MaxUploadBytes)
	}
	if cfg.Bot.MaxVoiceBytes != 715000 {
		t.Fatalf("expected default voice cap, got %d", cfg.Bot.MaxVoiceBytes)
	}
	if cfg.Recognizer.Mode != "google" {
		t.Fatalf("expected google recognizer mode, got %q", cfg.Recognizer.Mode)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ovoz.yaml")
	body := `
http:
  port: 9000
recognizer:
  mode: mock
  mock_text: "9860123456789012"
store:
  path: /tmp/test-ovoz.db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Recognizer.Mode != "mock" || cfg.Recognizer.MockText != "9860123456789012" {
		t.Fatalf("expected recognizer override, got %+v", cfg.Recognizer)
	}
	if cfg.Store.Path != "/tmp/test-ovoz.db" {
		t.Fatalf("expected store override, got %q", cfg.Store.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OVOZ_HTTP_PORT", "8181")
	t.Setenv("OVOZ_MEDIA_TRANSCODER_COMMAND", "/usr/local/bin/ffmpeg -loglevel error")
	t.Setenv("OVOZ_MEDIA_MAX_UPLOAD_BYTES", "500000")
	t.Setenv("OVOZ_RECOGNIZER_MODE", "mock")
	t.Setenv("OVOZ_STORE_PATH", "./tmp.db")
	t.Setenv("OVOZ_BOT_ENABLED", "true")
	t.Setenv("OVOZ_BOT_TOKEN", "123:abc")
	t.Setenv("OVOZ_BOT_MAX_VOICE_BYTES", "600000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8181 {
		t.Fatalf("expected port 8181, got %d", cfg.HTTP.Port)
	}
	if cfg.Media.TranscoderCommand != "/usr/local/bin/ffmpeg -loglevel error" {
		t.Fatalf("expected transcoder override, got %q", cfg.Media.TranscoderCommand)
	}
	if cfg.Media.MaxUploadBytes != 500000 {
		t.Fatalf("expected upload cap override, got %d", cfg.Media.MaxUploadBytes)
	}
	if !cfg.Bot.Enabled || cfg.Bot.Token != "123:abc" {
		t.Fatalf("expected bot overrides, got %+v", cfg.Bot)
	}
	if cfg.Bot.MaxVoiceBytes != 600000 {
		t.Fatalf("expected voice cap override, got %d", cfg.Bot.MaxVoiceBytes)
	}
	if cfg.Store.Path != "./tmp.db" {
		t.Fatalf("expected store path override, got %q", cfg.Store.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("OVOZ_RECOGNIZER_MODE", "telepathy")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown recognizer mode")
	}
	t.Setenv("OVOZ_RECOGNIZER_MODE", "google")

	t.Setenv("OVOZ_BOT_ENABLED", "true")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for bot enabled without token")
	}
}
