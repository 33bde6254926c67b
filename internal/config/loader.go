package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/za7z/za7z/internal/model"
)

// fileRoot mirrors the attributes accepted in config.hcl. Every attribute is
// optional; absent ones keep their default.
type fileRoot struct {
	Archiver          *string  `hcl:"archiver,optional"`
	Format            *string  `hcl:"format,optional"`
	Level             *int     `hcl:"level,optional"`
	FastLevel         *int     `hcl:"fast_level,optional"`
	ArchiveExtensions []string `hcl:"archive_extensions,optional"`
	SizeThreshold     *float64 `hcl:"size_threshold,optional"`
	EncryptHeaders    *bool    `hcl:"encrypt_headers,optional"`
	HistoryLimit      *int     `hcl:"history_limit,optional"`
}

// Load returns the defaults for mode overlaid with <dir>/config.hcl when that
// file exists. A missing file is not an error.
func Load(dir string, mode model.Mode, log *zap.Logger) (Config, error) {
	cfg := Defaults(dir, mode)
	path := cfg.FilePath()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.Debug("no config file, using defaults", zap.String("path", path))
			return cfg, nil
		}
		return cfg, fmt.Errorf("error accessing config file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	root.apply(&cfg)
	log.Debug("config file loaded", zap.String("path", path), zap.String("format", cfg.Format), zap.Int("level", cfg.Level))
	return cfg, nil
}

// evalContext exposes a few host facts to expressions in config.hcl, e.g.
// archiver = os == "windows" ? "7z.exe" : "7z".
func evalContext() *hcl.EvalContext {
	home, _ := os.UserHomeDir()
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"home": cty.StringVal(home),
			"os":   cty.StringVal(runtime.GOOS),
		},
	}
}

func (r *fileRoot) apply(cfg *Config) {
	if r.Archiver != nil {
		cfg.Archiver = *r.Archiver
	}
	if r.Format != nil {
		cfg.Format = strings.ToLower(*r.Format)
	}
	if r.Level != nil {
		cfg.Level = *r.Level
	}
	if r.FastLevel != nil {
		cfg.FastLevel = *r.FastLevel
	}
	if len(r.ArchiveExtensions) > 0 {
		exts := make([]string, 0, len(r.ArchiveExtensions))
		for _, e := range r.ArchiveExtensions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
		cfg.ArchiveExtensions = exts
	}
	if r.SizeThreshold != nil {
		cfg.SizeThreshold = *r.SizeThreshold
	}
	if r.EncryptHeaders != nil {
		cfg.EncryptHeaders = *r.EncryptHeaders
	}
	if r.HistoryLimit != nil {
		cfg.HistoryLimit = *r.HistoryLimit
	}
}
