// Package session drives one za or zx invocation from password acquisition
// to the final summary.
//
// INVARIANTS:
// - States only move forward or to Aborted
// - The archiver is checked once, before any target is resolved
// - One item's failure never stops the batch
// - A source is deleted only after its own archiver call succeeded
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/za7z/za7z/internal/archiver"
	"github.com/za7z/za7z/internal/config"
	"github.com/za7z/za7z/internal/model"
	"github.com/za7z/za7z/internal/report"
	"github.com/za7z/za7z/internal/resolver"
)

var (
	ErrNoTargets       = errors.New("no file, directory or pattern given")
	ErrArchiverMissing = errors.New("archiver is not installed")
	ErrNothingResolved = errors.New("no files found matching the given targets")
	ErrDeclined        = errors.New("operation cancelled by user")
	ErrEmptyPassword   = errors.New("password must not be empty")
)

// Recorder persists batch operation records. Errors are reported by the
// session as warnings only.
type Recorder interface {
	BeginRun(ctx context.Context, mode model.Mode, targets []string) (string, error)
	RecordItem(ctx context.Context, runID string, rec *model.ItemRecord) error
	FinishRun(ctx context.Context, summary *model.BatchSummary) error
}

// Deps are the collaborators of a session.
type Deps struct {
	Archiver archiver.Archiver
	Store    CredentialStore
	Prompter Prompter
	Printer  *report.Printer
	// Recorder is optional.
	Recorder Recorder
	// Remover defaults to a filesystem remover.
	Remover *Remover
	// Dir is the directory relative targets are resolved against. Empty
	// means the working directory.
	Dir string
	Log *zap.Logger
}

// Session is a single batch run.
type Session struct {
	cfg    config.Config
	deps   Deps
	log    *zap.Logger
	state  model.State
	now    func() time.Time
	format archiver.Format
}

// New creates a session for cfg. The configuration must already be valid.
func New(cfg config.Config, deps Deps) (*Session, error) {
	format, err := cfg.ArchiveFormat()
	if err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Remover == nil {
		deps.Remover = NewRemover(deps.Log)
	}
	return &Session{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Log,
		state:  model.StateIdle,
		now:    time.Now,
		format: format,
	}, nil
}

// State returns the current state.
func (s *Session) State() model.State { return s.state }

func (s *Session) transition(to model.State) {
	s.log.Debug("session state", zap.String("from", string(s.state)), zap.String("to", string(to)))
	s.state = to
}

func (s *Session) abort(summary *model.BatchSummary, err error) (*model.BatchSummary, error) {
	s.transition(model.StateAborted)
	summary.FinalState = model.StateAborted
	summary.FinishedAt = s.now()
	return summary, err
}

// Run executes the batch for targets. The returned summary is never nil; the
// error is non-nil exactly when the session ended in StateAborted.
func (s *Session) Run(ctx context.Context, targets []string) (*model.BatchSummary, error) {
	summary := &model.BatchSummary{
		Mode:      s.cfg.Mode,
		Targets:   targets,
		StartedAt: s.now(),
	}
	p := s.deps.Printer

	if len(targets) == 0 {
		return s.abort(summary, ErrNoTargets)
	}

	s.transition(model.StateAwaitingPassword)
	password, source, err := AcquirePassword(ctx, s.cfg.Password, s.cfg.ResetPassword, s.deps.Store, s.deps.Prompter, s.log)
	switch {
	case err == nil:
	case IsSaveFailure(err):
		p.Warn("%v", err)
	case ctx.Err() != nil:
		return s.abort(summary, interrupted(ctx))
	default:
		return s.abort(summary, err)
	}
	s.log.Debug("password acquired", zap.String("source", string(source)))
	if ctx.Err() != nil {
		return s.abort(summary, interrupted(ctx))
	}

	s.transition(model.StateResolvingTargets)
	if err := s.deps.Archiver.Check(); err != nil {
		return s.abort(summary, fmt.Errorf("%w: %v", ErrArchiverMissing, err))
	}

	files, err := s.resolve(summary, targets)
	if err != nil {
		return s.abort(summary, err)
	}

	s.transition(model.StateConfirmingBatch)
	p.Listing(s.cfg.Mode, files, s.cfg.Delete)
	if s.cfg.AutoConfirm {
		s.log.Debug("confirmation skipped")
	} else {
		answer, err := s.deps.Prompter.ReadLine(ctx, report.ConfirmQuestion(s.cfg.Mode, len(files), s.cfg.Delete))
		if ctx.Err() != nil {
			return s.abort(summary, interrupted(ctx))
		}
		if err != nil {
			return s.abort(summary, fmt.Errorf("%w: %v", ErrDeclined, err))
		}
		if !Accepts(answer) {
			return s.abort(summary, ErrDeclined)
		}
	}

	s.transition(model.StateProcessingItems)
	summary.RunID = s.beginRun(ctx, targets)
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		rec := s.process(ctx, i, len(files), f, password)
		summary.Items = append(summary.Items, rec)
		s.record(ctx, summary.RunID, rec)
	}

	if err := ctx.Err(); err != nil {
		s.abort(summary, err)
		s.finishRun(ctx, summary)
		p.Summary(summary)
		return summary, interrupted(ctx)
	}

	s.transition(model.StateDone)
	summary.FinalState = model.StateDone
	summary.FinishedAt = s.now()
	s.finishRun(ctx, summary)
	p.Summary(summary)
	return summary, nil
}

// resolve expands targets into the item list for this mode and reports what
// was filtered out.
func (s *Session) resolve(summary *model.BatchSummary, targets []string) ([]string, error) {
	r, err := resolver.New(resolver.Options{
		Dir:               s.deps.Dir,
		ArchiveExtensions: s.cfg.ArchiveExtensions,
		CompanionExt:      s.format.Ext,
		SizeThreshold:     s.cfg.SizeThreshold,
	}, s.log)
	if err != nil {
		return nil, err
	}

	res := r.Resolve(targets, s.cfg.ExcludeArchives())
	p := s.deps.Printer
	p.Invalid(res.Invalid)

	files := res.Files
	summary.Skipped = res.Skipped
	summary.Unchanged = res.Unchanged
	if s.cfg.Mode == model.ModeExtract {
		expanded := s.expandDirs(res.Files)
		files = resolver.FilterSupported(expanded, s.cfg.ArchiveExtensions)
		if n := len(expanded) - len(files); n > 0 {
			s.log.Debug("non-archive targets ignored", zap.Int("count", n))
		}
	}

	p.Skipped(summary.Skipped)
	p.Unchanged(summary.Unchanged, s.format.Ext)
	if len(files) == 0 {
		return nil, ErrNothingResolved
	}
	return files, nil
}

// expandDirs replaces each directory target with the archives directly
// inside it.
func (s *Session) expandDirs(files []string) []string {
	out := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil || !fi.IsDir() {
			add(f)
			continue
		}
		archives, err := resolver.ArchivesIn(f, s.cfg.ArchiveExtensions)
		if err != nil {
			s.deps.Printer.Warn("could not list %s: %v", f, err)
			continue
		}
		s.log.Debug("directory expanded", zap.String("dir", f), zap.Int("archives", len(archives)))
		for _, a := range archives {
			add(a)
		}
	}
	return out
}

// process runs the archiver for one item and deletes the source on success.
func (s *Session) process(ctx context.Context, i, total int, input, password string) *model.ItemRecord {
	p := s.deps.Printer
	rec := &model.ItemRecord{
		Index:     i,
		InputPath: input,
		Outcome:   model.OutcomePending,
		StartedAt: s.now(),
	}
	defer func() { rec.FinishedAt = s.now() }()

	p.Progress(i, total, s.cfg.Mode, input)

	var err error
	if s.cfg.Mode == model.ModeExtract {
		err = s.extract(ctx, rec, password)
	} else {
		err = s.compress(ctx, rec, password)
	}
	if err != nil {
		rec.Outcome = model.OutcomeFailed
		rec.Error = err.Error()
		p.Failure("Error %s %s: %v", lowerVerb(s.cfg.Mode), input, err)
		var toolErr *archiver.ToolError
		if s.cfg.Debug && errors.As(err, &toolErr) && toolErr.Detail() != "" {
			p.Detail("%s", toolErr.Detail())
		}
		return rec
	}

	rec.Outcome = model.OutcomeSuccess
	if s.cfg.Mode == model.ModeExtract {
		p.Success("Successfully extracted: %s", input)
	} else {
		p.Success("Successfully compressed: %s", rec.OutputPath)
	}

	if s.cfg.Delete {
		if err := s.deps.Remover.Remove(input); err != nil {
			rec.DeleteError = err.Error()
			p.Warn("could not delete source %s: %v", input, err)
		} else {
			rec.Deleted = true
			p.Deleted(input)
		}
	}
	return rec
}

func (s *Session) compress(ctx context.Context, rec *model.ItemRecord, password string) error {
	rec.OutputPath = rec.InputPath + s.format.Ext
	err := s.deps.Archiver.Compress(ctx, archiver.CompressRequest{
		Input:          rec.InputPath,
		Output:         rec.OutputPath,
		Password:       password,
		Level:          s.cfg.CompressionLevel(),
		Format:         s.format,
		EncryptHeaders: s.cfg.EncryptHeaders,
	})
	if err != nil {
		return err
	}
	if _, err := os.Stat(rec.OutputPath); err != nil {
		return fmt.Errorf("archive was not created: %s", rec.OutputPath)
	}
	return nil
}

func (s *Session) extract(ctx context.Context, rec *model.ItemRecord, password string) error {
	out, ok := resolver.StripArchiveExt(rec.InputPath, s.cfg.ArchiveExtensions)
	if !ok {
		return fmt.Errorf("not an archive: %s", rec.InputPath)
	}
	rec.OutputPath = out
	// Archives unpack next to themselves; the directory exists since the
	// archive was resolved in it.
	dir := filepath.Dir(out)
	return s.deps.Archiver.Extract(ctx, archiver.ExtractRequest{
		Input:     rec.InputPath,
		OutputDir: dir,
		Password:  password,
	})
}

func (s *Session) beginRun(ctx context.Context, targets []string) string {
	if s.deps.Recorder == nil {
		return uuid.New().String()
	}
	id, err := s.deps.Recorder.BeginRun(ctx, s.cfg.Mode, targets)
	if err != nil {
		s.log.Warn("run journal unavailable", zap.Error(err))
		s.deps.Recorder = nil
		return uuid.New().String()
	}
	return id
}

func (s *Session) record(ctx context.Context, runID string, rec *model.ItemRecord) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.RecordItem(context.WithoutCancel(ctx), runID, rec); err != nil {
		s.log.Warn("failed to journal item", zap.String("input", rec.InputPath), zap.Error(err))
	}
}

func (s *Session) finishRun(ctx context.Context, summary *model.BatchSummary) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
		s.log.Warn("failed to journal run", zap.Error(err))
	}
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("batch interrupted: %w", ctx.Err())
}

func lowerVerb(m model.Mode) string {
	if m == model.ModeExtract {
		return "extracting"
	}
	return "compressing"
}
