package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/za7z/za7z/internal/report"
)

// NewMinifyCommand returns the zajson root command, which rewrites a JSON
// file in place without insignificant whitespace.
func NewMinifyCommand(env *Env) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:           "zajson <file.json>",
		Short:         "Minify a JSON file in place",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := report.New(env.Out, noColor)
			if err := MinifyFile(args[0]); err != nil {
				return &ExitError{Code: 1, Message: "Error: " + err.Error()}
			}
			printer.Success("Minified and saved: %s", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Err)
	return cmd
}

// MinifyFile compacts the JSON document at path and writes it back with the
// same permissions. The file is left untouched when it is not valid JSON.
func MinifyFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), fi.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
