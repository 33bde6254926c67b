package session

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Remover deletes sources after a successful archiver call.
//
// INVARIANTS:
// - Sources are never deleted outside a Remover
// - Remove is only called for items whose archiver call succeeded
// - A failed removal is a warning, never a batch failure
type Remover struct {
	log *zap.Logger
	// remove and removeAll are replaceable in tests.
	remove    func(string) error
	removeAll func(string) error
}

// NewRemover creates a remover backed by the filesystem.
func NewRemover(log *zap.Logger) *Remover {
	return &Remover{log: log, remove: os.Remove, removeAll: os.RemoveAll}
}

// Remove deletes a file, or a directory with everything beneath it.
func (r *Remover) Remove(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if fi.IsDir() {
		err = r.removeAll(path)
	} else {
		err = r.remove(path)
	}
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	r.log.Debug("source deleted", zap.String("path", path), zap.Bool("dir", fi.IsDir()))
	return nil
}
