package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for input. Each call blocks until one line has
// been read or ctx is done.
type Prompter interface {
	// ReadLine shows prompt and returns the answer without its line ending.
	ReadLine(ctx context.Context, prompt string) (string, error)
	// ReadSecret is ReadLine without echo when the input is a terminal.
	ReadSecret(ctx context.Context, prompt string) (string, error)
}

// TerminalPrompter reads from a file (normally stdin) and writes prompts to out.
//
// A read abandoned because ctx was cancelled keeps running in the background,
// so the prompter must not be used again after a cancellation.
type TerminalPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminalPrompter creates a prompter over in and out.
func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, reader: bufio.NewReader(in)}
}

func (p *TerminalPrompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	return await(ctx, p.readLine)
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *TerminalPrompter) ReadSecret(ctx context.Context, prompt string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.ReadLine(ctx, prompt)
	}
	state, err := term.GetState(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(p.out, prompt)
	pw, err := await(ctx, func() (string, error) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	})
	if ctx.Err() != nil {
		// ReadPassword is still blocked with echo off.
		_ = term.Restore(fd, state)
	}
	fmt.Fprintln(p.out)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return pw, nil
}

type readResult struct {
	line string
	err  error
}

// await runs read in the background and returns its result, or ctx.Err()
// once ctx is done.
func await(ctx context.Context, read func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan readResult, 1)
	go func() {
		line, err := read()
		done <- readResult{line: line, err: err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Accepts reports whether a confirmation answer approves the batch: an empty
// answer or one starting with "y" (case-insensitive).
func Accepts(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "" || strings.HasPrefix(a, "y")
}
