// Package config builds the immutable run configuration for za and zx.
//
// A Config is assembled once at startup from three layers: built-in defaults,
// the optional HCL file <configDir>/config.hcl, and command-line flags. The
// result is passed by value into every component; nothing reads global state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/za7z/za7z/internal/archiver"
	"github.com/za7z/za7z/internal/model"
)

const (
	// EnvConfigDir overrides the default configuration directory.
	EnvConfigDir = "ZA7Z_CONFIG_DIR"

	dirName        = ".za7z"
	fileName       = "config.hcl"
	credentialName = "password.enc"
	historyName    = "history.db"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrInvalidLevel      = errors.New("compression level must be between 0 and 9")
	ErrInvalidThreshold  = errors.New("size threshold must be between 0 and 1")
)

// DefaultArchiveExtensions are the suffixes treated as already-archived files.
var DefaultArchiveExtensions = []string{".zip", ".7z", ".rar", ".tar", ".gz", ".tgz", ".bz2", ".xz"}

// Config holds everything a batch run needs to know.
type Config struct {
	ConfigDir string
	Mode      model.Mode

	// Archiver settings.
	Archiver       string
	Format         string
	Level          int
	FastLevel      int
	Fast           bool
	EncryptHeaders bool

	// Selection settings.
	ArchiveExtensions []string
	SizeThreshold     float64
	Force             bool

	// Session settings.
	Password      string
	Delete        bool
	AutoConfirm   bool
	ResetPassword bool
	ShowPassword  bool
	Debug         bool
	NoColor       bool

	HistoryLimit int
}

// Defaults returns the built-in configuration for the given mode.
func Defaults(dir string, mode model.Mode) Config {
	return Config{
		ConfigDir:         dir,
		Mode:              mode,
		Archiver:          "7z",
		Format:            archiver.FormatZip,
		Level:             9,
		FastLevel:         0,
		ArchiveExtensions: append([]string(nil), DefaultArchiveExtensions...),
		SizeThreshold:     0.1,
		HistoryLimit:      10,
	}
}

// ResolveDir picks the configuration directory: the explicit flag value,
// then $ZA7Z_CONFIG_DIR, then ~/.za7z.
func ResolveDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// CredentialPath is the location of the encrypted password file.
func (c Config) CredentialPath() string {
	return filepath.Join(c.ConfigDir, credentialName)
}

// HistoryPath is the location of the run journal database.
func (c Config) HistoryPath() string {
	return filepath.Join(c.ConfigDir, historyName)
}

// FilePath is the location of the optional HCL config file.
func (c Config) FilePath() string {
	return filepath.Join(c.ConfigDir, fileName)
}

// CompressionLevel returns the -mx level for this run.
func (c Config) CompressionLevel() int {
	if c.Fast {
		return c.FastLevel
	}
	return c.Level
}

// ExcludeArchives reports whether already-archived files are filtered out of
// a compress run.
func (c Config) ExcludeArchives() bool {
	return c.Mode == model.ModeCompress && !c.Force
}

// ArchiveFormat returns the registered format selected by Format.
func (c Config) ArchiveFormat() (archiver.Format, error) {
	f, ok := archiver.LookupFormat(c.Format)
	if !ok {
		return archiver.Format{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, c.Format, strings.Join(archiver.FormatNames(), ", "))
	}
	return f, nil
}

// Validate checks the assembled configuration.
func (c Config) Validate() error {
	if _, err := c.ArchiveFormat(); err != nil {
		return err
	}
	if c.Level < 0 || c.Level > 9 || c.FastLevel < 0 || c.FastLevel > 9 {
		return ErrInvalidLevel
	}
	if c.SizeThreshold < 0 || c.SizeThreshold > 1 {
		return ErrInvalidThreshold
	}
	if strings.TrimSpace(c.Archiver) == "" {
		return errors.New("archiver binary name must not be empty")
	}
	return nil
}
