package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.ThumbDir != "_static/thumbs" || cfg.ThumbWidth != 400 || cfg.ThumbHeight != 280 {
		t.Errorf("unexpected thumbnail defaults: %s %dx%d", cfg.ThumbDir, cfg.ThumbWidth, cfg.ThumbHeight)
	}
	if cfg.IntroLimit != 195 {
		t.Errorf("expected intro limit 195, got %d", cfg.IntroLimit)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h job TTL, got %s", cfg.JobTTL)
	}
	if len(cfg.Tags) != 1 || cfg.Tags[0] != "html" {
		t.Errorf("expected html tag, got %v", cfg.Tags)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected server validation to require an API key")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "port: \"9000\"\nsource_dir: docs\nthumb_width: 200\nworker_count: 2\njob_ttl: 30m\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCGALLERY_PORT", "9100")
	t.Setenv("DOCGALLERY_API_KEY", "secret")
	t.Setenv("DOCGALLERY_TAGS", "html, internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("expected env to override file, got port %q", cfg.Port)
	}
	if cfg.SourceDir != "docs" || cfg.ThumbWidth != 200 || cfg.WorkerCount != 2 {
		t.Errorf("expected file values, got %+v", cfg)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %s", cfg.JobTTL)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[1] != "internal" {
		t.Errorf("expected tags from env, got %v", cfg.Tags)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_ExplicitConfigPath(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("output_dir: public\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCGALLERY_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "public" {
		t.Errorf("expected output_dir from explicit file, got %q", cfg.OutputDir)
	}
}

func TestLoad_MissingExplicitConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCGALLERY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := Config{SourceDir: ".", OutputDir: "out", ThumbDir: "_static/thumbs"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no source", func(c *Config) { c.SourceDir = "" }, true},
		{"no output", func(c *Config) { c.OutputDir = "" }, true},
		{"absolute thumb dir", func(c *Config) { c.ThumbDir = "/tmp/thumbs" }, true},
		{"escaping thumb dir", func(c *Config) { c.ThumbDir = "../thumbs" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithFlags_OverridesEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCGALLERY_OUTPUT_DIR", "from-env")
	t.Setenv("DOCGALLERY_SOURCE_DIR", "src-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output-dir", "", "")
	flags.String("source-dir", "", "")
	flags.Int("worker-count", 0, "")
	if err := flags.Parse([]string{"--output-dir", "from-flag", "--worker-count", "8"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "from-flag" {
		t.Errorf("expected flag to win, got %q", cfg.OutputDir)
	}
	if cfg.SourceDir != "src-env" {
		t.Errorf("unset flag should not override env, got %q", cfg.SourceDir)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.WorkerCount)
	}
}
