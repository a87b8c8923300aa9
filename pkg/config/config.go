package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Config is parsed once at startup and shared read-only between projects.
type Config struct {
	IgnorePaths            []string `yaml:"ignore_paths,omitempty" hcl:"ignore_paths,optional"`
	EnableOtherStyleSheets bool     `yaml:"enable_other_stylesheets,omitempty" hcl:"enable_other_stylesheets,optional"`
	LogLevel               string   `yaml:"log_level,omitempty" hcl:"log_level,optional"`
	ManifestMarkers        []string `yaml:"manifest_markers,omitempty" hcl:"manifest_markers,optional"`
}

// FileNames are looked up in a workspace root, in order, when no config path is given.
var FileNames = []string{"wxls.yaml", "wxls.yml", "wxls.hcl"}

func Default() *Config {
	return &Config{
		IgnorePaths:     []string{"**/node_modules/**", "**/miniprogram_npm/**"},
		LogLevel:        "info",
		ManifestMarkers: []string{"app.json", "app.wxss"},
	}
}

// Load reads a YAML or HCL config, chosen by extension. Fields left empty keep their
// defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	return Parse(path, data)
}

// Find loads the first of FileNames present in dir, or returns Default.
func Find(fs afero.Fs, dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, path); ok {
			return Load(fs, path)
		}
	}
	return Default(), nil
}

func Parse(path string, data []byte) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
	case ".hcl":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, errors.Errorf("parsing HCL: %s", diags.Error())
		}
		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{},
		}
		if diags := gohcl.DecodeBody(file.Body, ctx, &cfg); diags.HasErrors() {
			return nil, errors.Errorf("decoding HCL: %s", diags.Error())
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	cfg.fill()
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, errors.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	return &cfg, nil
}

func (c *Config) fill() {
	def := Default()
	if c.IgnorePaths == nil {
		c.IgnorePaths = def.IgnorePaths
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if len(c.ManifestMarkers) == 0 {
		c.ManifestMarkers = def.ManifestMarkers
	}
}

func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
