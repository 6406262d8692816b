package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWithSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.API.Port)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Fatalf("expected 15s ai timeout, got %s", cfg.AI.Timeout)
	}
	if cfg.AI.MaxRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.AI.MaxRetries)
	}
	if cfg.Uploads.Dir != "static/uploads" {
		t.Fatalf("unexpected upload dir %q", cfg.Uploads.Dir)
	}
	if cfg.Database.DSN() != "resumify.db" {
		t.Fatalf("unexpected sqlite dsn %q", cfg.Database.DSN())
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without SECRET_KEY")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("UPLOAD_FOLDER", "/tmp/uploads")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Fatalf("api key not bound: %q", cfg.AI.APIKey)
	}
	if cfg.Uploads.Dir != "/tmp/uploads" {
		t.Fatalf("upload dir not bound: %q", cfg.Uploads.Dir)
	}
	if cfg.AI.Timeout != 5*time.Second {
		t.Fatalf("timeout not parsed: %s", cfg.AI.Timeout)
	}
	origins := cfg.API.Origins()
	if len(origins) != 2 || origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", origins)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("DATABASE_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestDSN_Postgres(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, Name: "n", User: "u", Password: "p", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}
