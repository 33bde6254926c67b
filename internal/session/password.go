package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// CredentialStore is the subset of credential.Store the session needs.
type CredentialStore interface {
	Load() (string, bool)
	Save(password string) error
}

var saveAnswer = regexp.MustCompile(`^y[a-z]*$`)

// PasswordSource tells where the password of a run came from.
type PasswordSource string

const (
	SourceFlag   PasswordSource = "flag"
	SourceSaved  PasswordSource = "saved"
	SourcePrompt PasswordSource = "prompt"
)

// AcquirePassword applies the password policy: an explicit password wins and
// is never persisted; otherwise a saved credential is used unless reset is
// set; otherwise the operator is prompted and offered to save the answer.
// Cancelling ctx while a prompt is open returns ctx.Err().
func AcquirePassword(ctx context.Context, explicit string, reset bool, store CredentialStore, prompt Prompter, log *zap.Logger) (string, PasswordSource, error) {
	if explicit != "" {
		log.Debug("using password from command line")
		return explicit, SourceFlag, nil
	}

	if !reset {
		if pw, ok := store.Load(); ok && pw != "" {
			log.Debug("using saved password")
			return pw, SourceSaved, nil
		}
	}

	pw, err := prompt.ReadSecret(ctx, "Enter password: ")
	if err != nil {
		return "", "", err
	}
	if pw == "" {
		return "", "", ErrEmptyPassword
	}

	answer, err := prompt.ReadLine(ctx, "Save this password for future use? (y/n): ")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", "", ctxErr
	}
	if err != nil {
		// Not saving is always safe.
		log.Debug("save prompt unanswered", zap.Error(err))
		return pw, SourcePrompt, nil
	}
	if saveAnswer.MatchString(strings.ToLower(strings.TrimSpace(answer))) {
		if err := store.Save(pw); err != nil {
			return pw, SourcePrompt, fmt.Errorf("%w: %v", errSaveFailed, err)
		}
		log.Debug("password saved")
	}
	return pw, SourcePrompt, nil
}

var errSaveFailed = errors.New("failed to save password")

// IsSaveFailure reports whether err only means the password could not be
// persisted; the password itself is still usable.
func IsSaveFailure(err error) bool {
	return errors.Is(err, errSaveFailed)
}
