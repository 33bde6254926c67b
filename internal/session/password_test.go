package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquirePassword_ExplicitWins(t *testing.T) {
	store := &fakeStore{saved: "stored", has: true}
	prompt := &fakePrompter{}

	pw, src, err := AcquirePassword(context.Background(), "given", false, store, prompt, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "given", pw)
	assert.Equal(t, SourceFlag, src)
	assert.Zero(t, store.saves, "explicit passwords are never persisted")
	assert.Empty(t, prompt.asked)
}

func TestAcquirePassword_UsesSaved(t *testing.T) {
	store := &fakeStore{saved: "stored", has: true}
	prompt := &fakePrompter{}

	pw, src, err := AcquirePassword(context.Background(), "", false, store, prompt, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "stored", pw)
	assert.Equal(t, SourceSaved, src)
	assert.Empty(t, prompt.asked)
}

func TestAcquirePassword_ResetPrompts(t *testing.T) {
	store := &fakeStore{saved: "stored", has: true}
	prompt := &fakePrompter{secrets: []string{"fresh"}, lines: []string{"n"}}

	pw, src, err := AcquirePassword(context.Background(), "", true, store, prompt, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "fresh", pw)
	assert.Equal(t, SourcePrompt, src)
	assert.Zero(t, store.saves)
	assert.Equal(t, "stored", store.saved)
}

func TestAcquirePassword_SaveAnswers(t *testing.T) {
	cases := map[string]bool{
		"y":     true,
		"yes":   true,
		" YES ": true,
		"yup":   true,
		"":      false,
		"n":     false,
		"no":    false,
		"y!":    false,
		"yes 1": false,
	}
	for answer, save := range cases {
		t.Run(answer, func(t *testing.T) {
			store := &fakeStore{}
			prompt := &fakePrompter{secrets: []string{"pw"}, lines: []string{answer}}

			pw, _, err := AcquirePassword(context.Background(), "", false, store, prompt, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, "pw", pw)
			if save {
				assert.Equal(t, 1, store.saves)
				assert.Equal(t, "pw", store.saved)
			} else {
				assert.Zero(t, store.saves)
			}
		})
	}
}

func TestAcquirePassword_Empty(t *testing.T) {
	prompt := &fakePrompter{secrets: []string{""}}
	_, _, err := AcquirePassword(context.Background(), "", false, &fakeStore{}, prompt, zap.NewNop())
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestAcquirePassword_UnansweredSaveKeepsPassword(t *testing.T) {
	store := &fakeStore{}
	prompt := &fakePrompter{secrets: []string{"pw"}}

	pw, _, err := AcquirePassword(context.Background(), "", false, store, prompt, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
	assert.Zero(t, store.saves)
}

func TestAccepts(t *testing.T) {
	for _, a := range []string{"", " ", "y", "Y", "yes", "YES", "yeah"} {
		assert.True(t, Accepts(a), "%q", a)
	}
	for _, a := range []string{"n", "no", "N", "quit", "ok"} {
		assert.False(t, Accepts(a), "%q", a)
	}
}

func TestTerminalPrompter_NonTerminal(t *testing.T) {
	in, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	_, err = in.WriteString("hunter2\r\nyes\nlast")
	require.NoError(t, err)
	_, err = in.Seek(0, 0)
	require.NoError(t, err)
	defer in.Close()

	var out bytes.Buffer
	p := NewTerminalPrompter(in, &out)
	ctx := context.Background()

	pw, err := p.ReadSecret(ctx, "Enter password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	line, err := p.ReadLine(ctx, "Save? ")
	require.NoError(t, err)
	assert.Equal(t, "yes", line)

	line, err = p.ReadLine(ctx, "More? ")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = p.ReadLine(ctx, "Again? ")
	require.Error(t, err)

	assert.Equal(t, "Enter password: Save? More? Again? ", out.String())
}

func TestTerminalPrompter_CancelledWhileWaiting(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := NewTerminalPrompter(r, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = p.ReadSecret(ctx, "Enter password: ")
	require.ErrorIs(t, err, context.Canceled)

	_, err = p.ReadLine(ctx, "Again? ")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAcquirePassword_InterruptedSaveQuestion(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	prompt := &fakePrompter{secrets: []string{"typed"}, blockOn: "Save this password", cancel: cancel}

	_, _, err := AcquirePassword(ctx, "", false, store, prompt, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.saves)
}

func TestRemover(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep", "g.txt"), []byte("y"), 0o644))

	r := NewRemover(zap.NewNop())
	require.NoError(t, r.Remove(f))
	require.NoError(t, r.Remove(sub))
	assert.NoFileExists(t, f)
	assert.NoDirExists(t, sub)

	require.Error(t, r.Remove(filepath.Join(dir, "gone")))
}
