package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/za7z/za7z/internal/archiver"
	"github.com/za7z/za7z/internal/config"
	"github.com/za7z/za7z/internal/credential"
	"github.com/za7z/za7z/internal/journal"
	"github.com/za7z/za7z/internal/logger"
	"github.com/za7z/za7z/internal/model"
	"github.com/za7z/za7z/internal/report"
	"github.com/za7z/za7z/internal/session"
)

// run is the RunE of both root commands.
func run(cmd *cobra.Command, env *Env, mode model.Mode, opts *options, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	printer := report.New(env.Out, opts.noColor)

	if opts.version {
		printer.Plain("za7z version %s", Version)
		return nil
	}

	log := logger.New(env.Err, opts.debug)
	defer log.Sync()

	cfg, err := buildConfig(cmd, mode, opts, log)
	if err != nil {
		return &ExitError{Code: 2, Message: "Error: " + err.Error()}
	}
	log.Debug("configuration loaded",
		zap.String("config_dir", cfg.ConfigDir),
		zap.String("mode", string(cfg.Mode)),
		zap.String("format", cfg.Format),
		zap.Int("level", cfg.CompressionLevel()),
		zap.Strings("targets", args))

	key := credential.DeriveMachineKey()
	store := credential.NewStore(cfg.CredentialPath(), key, log)

	switch {
	case opts.clearPassword:
		return runClearPassword(printer, store)
	case opts.passwordInfo:
		printer.PasswordInfo(store.Info())
		return nil
	case opts.history:
		return runHistory(ctx, printer, cfg, key, log)
	}

	if cfg.ShowPassword && !cfg.Debug {
		printer.Warn("--show-password has no effect without --debug")
	}

	arch := env.Archiver
	if arch == nil {
		var archOpts []archiver.Option
		if cfg.Debug {
			archOpts = append(archOpts, archiver.WithDebug(env.Out, env.Err))
			if cfg.ShowPassword {
				archOpts = append(archOpts, archiver.WithRevealedPassword())
			}
		}
		arch = archiver.NewSevenZip(cfg.Archiver, log, archOpts...)
	}

	prompter := env.Prompter
	if prompter == nil {
		prompter = session.NewTerminalPrompter(env.In, env.Out)
	}

	deps := session.Deps{
		Archiver: arch,
		Store:    store,
		Prompter: prompter,
		Printer:  printer,
		Dir:      env.Dir,
		Log:      log,
	}
	if len(args) > 0 {
		j, err := journal.Open(ctx, cfg.HistoryPath(), hex.EncodeToString(key[:]), log)
		if err != nil {
			log.Warn("run journal unavailable", zap.Error(err))
		} else {
			defer j.Close()
			deps.Recorder = j
		}
	}

	s, err := session.New(cfg, deps)
	if err != nil {
		return &ExitError{Code: 2, Message: "Error: " + err.Error()}
	}
	_, err = s.Run(ctx, args)
	return exitFor(cmd, printer, cfg, args, err)
}

// buildConfig layers command-line flags over the config file.
func buildConfig(cmd *cobra.Command, mode model.Mode, opts *options, log *zap.Logger) (config.Config, error) {
	cfg, err := config.Load(config.ResolveDir(opts.configDir), mode, log)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("format") {
		cfg.Format = strings.ToLower(opts.format)
	}
	cfg.Password = opts.password
	cfg.Delete = opts.del || opts.sdel
	cfg.AutoConfirm = opts.yes
	cfg.Fast = opts.fast
	cfg.Force = opts.force
	cfg.ResetPassword = opts.resetPassword
	cfg.ShowPassword = opts.showPassword
	cfg.Debug = opts.debug
	cfg.NoColor = opts.noColor

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runClearPassword(printer *report.Printer, store *credential.Store) error {
	removed, err := store.Clear()
	if err != nil {
		return &ExitError{Code: 1, Message: "Error: " + err.Error()}
	}
	if removed {
		printer.Success("Saved password cleared: %s", store.Path())
	} else {
		printer.Info("no saved credential found")
	}
	return nil
}

func runHistory(ctx context.Context, printer *report.Printer, cfg config.Config, key credential.Key, log *zap.Logger) error {
	j, err := journal.Open(ctx, cfg.HistoryPath(), hex.EncodeToString(key[:]), log)
	if err != nil {
		return &ExitError{Code: 1, Message: "Error: cannot read run history: " + err.Error()}
	}
	defer j.Close()

	runs, err := j.Recent(ctx, cfg.HistoryLimit)
	if err != nil {
		return &ExitError{Code: 1, Message: "Error: " + err.Error()}
	}
	printer.Detail("History: %s", j.Path())
	printer.History(runs)
	return nil
}

// exitFor maps the outcome of a session to the process exit decision.
func exitFor(cmd *cobra.Command, printer *report.Printer, cfg config.Config, args []string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNoTargets):
		subject := "file or directory to compress"
		if cfg.Mode == model.ModeExtract {
			subject = "archive to extract"
		}
		printer.Info("%s", strings.TrimRight(cmd.UsageString(), "\n"))
		return &ExitError{Code: 1, Message: "Error: Please specify a " + subject + "!"}
	case errors.Is(err, session.ErrArchiverMissing):
		return &ExitError{Code: 1, Message: "Error: Please install " + cfg.Archiver + " first!"}
	case errors.Is(err, session.ErrNothingResolved):
		return &ExitError{Code: 1, Message: "Error: No files found matching pattern: " + strings.Join(args, ", ")}
	case errors.Is(err, context.Canceled):
		return &ExitError{Code: 1, Message: "Operation interrupted!"}
	case errors.Is(err, session.ErrDeclined):
		return &ExitError{Code: 1, Message: "Operation cancelled by user!"}
	case errors.Is(err, session.ErrEmptyPassword):
		return &ExitError{Code: 1, Message: "Error: Password must not be empty!"}
	default:
		return &ExitError{Code: 1, Message: "Error: " + err.Error()}
	}
}
