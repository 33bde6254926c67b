// Package cli implements the za and zx command-line interfaces.
// Built with cobra:
// - One root command per binary, targets as positional arguments
// - Exit codes are decided here and applied once in main
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/za7z/za7z/internal/archiver"
	"github.com/za7z/za7z/internal/model"
	"github.com/za7z/za7z/internal/session"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Env is the process environment a command runs in.
type Env struct {
	In  *os.File
	Out io.Writer
	Err io.Writer
	// Dir is the directory relative targets resolve against. Empty means the
	// working directory.
	Dir string
	// Archiver and Prompter replace the real 7z binary and terminal when set.
	Archiver archiver.Archiver
	Prompter session.Prompter
}

// DefaultEnv is the environment of a normal process.
func DefaultEnv() *Env {
	return &Env{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// options holds the decoded command-line flags.
type options struct {
	password      string
	del           bool
	sdel          bool
	yes           bool
	format        string
	fast          bool
	force         bool
	clearPassword bool
	passwordInfo  bool
	resetPassword bool
	showPassword  bool
	debug         bool
	version       bool
	configDir     string
	history       bool
	noColor       bool
}

// NewCompressCommand returns the za root command.
func NewCompressCommand(env *Env) *cobra.Command {
	return newCommand(model.ModeCompress, env)
}

// NewExtractCommand returns the zx root command.
func NewExtractCommand(env *Env) *cobra.Command {
	return newCommand(model.ModeExtract, env)
}

func newCommand(mode model.Mode, env *Env) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, env, mode, opts, args)
		},
	}

	if mode == model.ModeExtract {
		cmd.Use = "zx <archive|pattern>... [flags]"
		cmd.Short = "Extract password-protected archives with 7-Zip"
		cmd.Example = `  zx backup.zip             # Extract a single archive next to itself
  zx '*.zip'                # Extract every zip archive in this directory
  zx 'photos/**/*.7z' --del # Extract recursively and delete the archives`
	} else {
		cmd.Use = "za <file|directory|pattern>... [flags]"
		cmd.Short = "Compress files into password-protected archives with 7-Zip"
		cmd.Example = `  za .test          # Compress .test directory
  za '.test/*'      # Compress all files in .test directory
  za file.txt       # Compress single file`
	}

	verb := "compression"
	if mode == model.ModeExtract {
		verb = "extraction"
	}

	f := cmd.Flags()
	f.StringVarP(&opts.password, "password", "p", "", "Specify password (never saved)")
	f.BoolVar(&opts.del, "del", false, "Delete sources after successful "+verb)
	f.BoolVar(&opts.sdel, "sdel", false, "Alias of --del")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Auto-confirm all operations")
	f.BoolVar(&opts.clearPassword, "clear-password", false, "Clear saved password")
	f.BoolVar(&opts.passwordInfo, "password-info", false, "Show password storage info")
	f.BoolVar(&opts.resetPassword, "reset-password", false, "Ignore the saved password and prompt for a new one")
	f.BoolVar(&opts.debug, "debug", false, "Show debug information and archiver output")
	f.BoolVar(&opts.showPassword, "show-password", false, "With --debug, show the password in logged commands")
	f.BoolVarP(&opts.version, "version", "v", false, "Show version")
	f.StringVar(&opts.configDir, "config-dir", "", "Use alternate config directory")
	f.BoolVar(&opts.history, "history", false, "Show recent runs")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	if mode == model.ModeCompress {
		f.StringVarP(&opts.format, "format", "f", "", "Archive format: zip or 7z")
		f.BoolVar(&opts.fast, "fast", false, "Store without compression instead of maximum compression")
		f.BoolVar(&opts.force, "force", false, "Also compress files that are already archives")
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})
	if env.In != nil {
		cmd.SetIn(env.In)
	}
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Err)
	return cmd
}

// Execute runs cmd with args. Any error returned is an *ExitError.
func Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Message: "Error: " + err.Error()}
}
