package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the config file looked up in the working directory.
const FileName = "docgallery.yaml"

// EnvPrefix prefixes every environment override, e.g. DOCGALLERY_PORT.
const EnvPrefix = "DOCGALLERY_"

type Config struct {
	Port string `koanf:"port"`

	// Auth
	APIKey string `koanf:"api_key"`

	// Build tree
	SourceDir string   `koanf:"source_dir"`
	OutputDir string   `koanf:"output_dir"`
	Tags      []string `koanf:"tags"`

	// Gallery thumbnails
	ThumbDir    string `koanf:"thumb_dir"`
	ThumbWidth  int    `koanf:"thumb_width"`
	ThumbHeight int    `koanf:"thumb_height"`
	IntroLimit  int    `koanf:"intro_limit"`

	// Worker pool
	WorkerCount  int `koanf:"worker_count"`
	MaxQueueSize int `koanf:"max_queue_size"`

	// Render API limits
	MaxRenderBytes int64 `koanf:"max_render_bytes"`

	// Job state
	JobTTL time.Duration `koanf:"job_ttl"`
}

var defaults = map[string]any{
	"port":             "8090",
	"source_dir":       ".",
	"output_dir":       "_build/html",
	"tags":             []string{"html"},
	"thumb_dir":        "_static/thumbs",
	"thumb_width":      400,
	"thumb_height":     280,
	"intro_limit":      195,
	"worker_count":     4,
	"max_queue_size":   100,
	"max_render_bytes": 1 << 20, // 1MB
	"job_ttl":          "1h",
}

// Load layers defaults, the optional YAML file and DOCGALLERY_* variables.
// The file is DOCGALLERY_CONFIG if set, else docgallery.yaml when present.
func Load() (Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load plus explicitly set command-line flags on top.
// Flag names are the config keys in kebab-case (--output-dir). A changed
// --config flag replaces the config file lookup.
func LoadWithFlags(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := configFile(flags); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// DOCGALLERY_OUTPUT_DIR -> output_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	// Comma-separated strings (DOCGALLERY_TAGS=html,internal) decode into slices.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result: &cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func configFile(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.ThumbWidth <= 0 {
		c.ThumbWidth = 400
	}
	if c.ThumbHeight <= 0 {
		c.ThumbHeight = 280
	}
	if c.IntroLimit <= 0 {
		c.IntroLimit = 195
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxRenderBytes <= 0 {
		c.MaxRenderBytes = 1 << 20
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.ThumbDir == "" {
		c.ThumbDir = "_static/thumbs"
	}
	c.ThumbDir = filepath.ToSlash(filepath.Clean(c.ThumbDir))
	for i, t := range c.Tags {
		c.Tags[i] = strings.TrimSpace(t)
	}
}

// Validate checks settings every entry point needs.
func (c Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if filepath.IsAbs(c.ThumbDir) || strings.HasPrefix(c.ThumbDir, "..") {
		return fmt.Errorf("thumb_dir must be relative to output_dir: %s", c.ThumbDir)
	}
	return nil
}

// ValidateServer additionally checks settings the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCGALLERY_API_KEY is required")
	}
	return nil
}
