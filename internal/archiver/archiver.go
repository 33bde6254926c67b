// Package archiver drives the external 7-Zip binary.
//
// INVARIANTS:
// - The tool is invoked with an argument vector, never through a shell
// - One blocking invocation per call; callers serialize items
// - The password never appears in a logged command unless reveal is requested
// - Output is captured unless debug mode asks for inherited stdio
package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Check when the archiver binary is not on PATH.
var ErrNotFound = errors.New("archiver not found")

// Archiver is the collaborator the session uses to create and unpack archives.
type Archiver interface {
	// Check verifies the tool is available on this system.
	Check() error
	Compress(ctx context.Context, req CompressRequest) error
	Extract(ctx context.Context, req ExtractRequest) error
}

// CompressRequest describes one `7z a` call.
type CompressRequest struct {
	Input          string
	Output         string
	Password       string
	Level          int
	Format         Format
	EncryptHeaders bool
}

// ExtractRequest describes one `7z x` call.
type ExtractRequest struct {
	Input     string
	OutputDir string
	Password  string
}

// ToolError is a failed archiver invocation with its captured output.
type ToolError struct {
	Tool   string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Detail returns the error together with the tool output, for debug reports.
func (e *ToolError) Detail() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return e.Error()
	}
	return e.Error() + "\n" + out
}

// CompressArgs builds the argument vector for a compress call.
func CompressArgs(req CompressRequest) []string {
	args := []string{
		"a",
		req.Output,
		req.Input,
		"-p" + req.Password,
		"-mx" + strconv.Itoa(req.Level),
		"-t" + req.Format.Type,
	}
	if req.EncryptHeaders && req.Format.HeaderEncryption {
		args = append(args, headerEncrypt)
	}
	return args
}

// ExtractArgs builds the argument vector for an extract call.
func ExtractArgs(req ExtractRequest) []string {
	return []string{
		"x",
		req.Input,
		"-p" + req.Password,
		"-o" + req.OutputDir,
		"-y",
	}
}

// CommandString renders a command for display. Password arguments are
// replaced by -p*** unless reveal is set.
func CommandString(bin string, args []string, reveal bool) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, bin)
	for _, a := range args {
		if !reveal && strings.HasPrefix(a, "-p") {
			a = passwordMasked
		}
		if strings.ContainsAny(a, " \t\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// SevenZip runs a 7-Zip compatible binary (7z, 7zz, 7za).
type SevenZip struct {
	binary string
	debug  bool
	reveal bool
	stdout io.Writer
	stderr io.Writer
	log    *zap.Logger

	lookPath func(string) (string, error)
}

// Option configures a SevenZip.
type Option func(*SevenZip)

// WithDebug streams tool output to the given writers instead of capturing it.
func WithDebug(stdout, stderr io.Writer) Option {
	return func(s *SevenZip) {
		s.debug = true
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithRevealedPassword logs commands with the password in clear. Only
// honored together with WithDebug.
func WithRevealedPassword() Option {
	return func(s *SevenZip) { s.reveal = true }
}

// NewSevenZip creates an archiver for the given binary name.
func NewSevenZip(binary string, log *zap.Logger, opts ...Option) *SevenZip {
	s := &SevenZip{
		binary:   binary,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		log:      log,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.debug {
		s.reveal = false
	}
	return s
}

// Check verifies the binary is on PATH.
func (s *SevenZip) Check() error {
	path, err := s.lookPath(s.binary)
	if err != nil {
		return fmt.Errorf("%w: please install %s first", ErrNotFound, s.binary)
	}
	s.log.Debug("archiver found", zap.String("binary", s.binary), zap.String("path", path))
	return nil
}

// Compress runs `7z a`.
func (s *SevenZip) Compress(ctx context.Context, req CompressRequest) error {
	return s.run(ctx, CompressArgs(req))
}

// Extract runs `7z x`.
func (s *SevenZip) Extract(ctx context.Context, req ExtractRequest) error {
	return s.run(ctx, ExtractArgs(req))
}

func (s *SevenZip) run(ctx context.Context, args []string) error {
	s.log.Debug("running archiver", zap.String("command", CommandString(s.binary, args, s.reveal)))

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if s.debug {
		cmd.Stdout = s.stdout
		cmd.Stderr = s.stderr
		if err := cmd.Run(); err != nil {
			return &ToolError{Tool: s.binary, Err: err}
		}
		return nil
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return &ToolError{Tool: s.binary, Err: err, Output: string(output)}
	}
	return nil
}
