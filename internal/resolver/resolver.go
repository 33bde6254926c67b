// Package resolver turns operator-supplied paths and glob patterns into a
// deduplicated list of absolute file paths.
//
// INVARIANTS:
// - Every returned path existed when Resolve ran
// - Each path appears once, in first-seen order
// - Directories are opaque entries, never walked implicitly
// - Filtering is reported, never silent
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// globChars mark a pattern as a glob rather than a literal path.
const globChars = "*?{[!"

// Options configures a Resolver.
type Options struct {
	// Dir is the directory relative patterns are resolved against.
	// Empty means the process working directory.
	Dir string
	// ArchiveExtensions are the suffixes treated as already-archived files.
	ArchiveExtensions []string
	// CompanionExt is the extension a compress run would append. When set,
	// sources whose companion archive exists and has a similar size are
	// reported as unchanged instead of resolved.
	CompanionExt string
	// SizeThreshold is the relative size difference above which a source
	// with an existing companion archive is considered changed.
	SizeThreshold float64
}

// Result is the outcome of one resolution.
type Result struct {
	// Files is the resolved file set.
	Files []string
	// Skipped lists archives removed because exclusion was requested.
	Skipped []string
	// Unchanged lists sources whose existing archive is within the size
	// threshold.
	Unchanged []string
	// Invalid lists patterns that could not be parsed.
	Invalid []string
}

// Resolver expands target patterns.
type Resolver struct {
	opts Options
	log  *zap.Logger
}

// New creates a resolver.
func New(opts Options, log *zap.Logger) (*Resolver, error) {
	if opts.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Dir = wd
	}
	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}
	opts.Dir = abs
	return &Resolver{opts: opts, log: log}, nil
}

// IsGlob reports whether pattern contains any glob metacharacter.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, globChars)
}

// Resolve expands patterns into absolute paths. Patterns starting with "!"
// remove their matches from the union of the other patterns. When
// excludeArchives is set, archive files are moved to Result.Skipped and
// sources that already have a similar-sized archive to Result.Unchanged.
func (r *Resolver) Resolve(patterns []string, excludeArchives bool) *Result {
	res := &Result{}
	seen := make(map[string]struct{})
	var negated []string

	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") && len(p) > 1 {
			matches, ok := r.expand(p[1:])
			if !ok {
				res.Invalid = append(res.Invalid, p)
			}
			negated = append(negated, matches...)
			continue
		}

		matches, ok := r.expand(p)
		if !ok {
			res.Invalid = append(res.Invalid, p)
		}
		r.log.Debug("pattern expanded", zap.String("pattern", p), zap.Int("matches", len(matches)))
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			res.Files = append(res.Files, m)
		}
	}

	if len(negated) > 0 {
		res.Files = subtract(res.Files, negated)
	}

	if !excludeArchives {
		return res
	}

	res.Files, res.Skipped = FilterUnsupported(res.Files, r.opts.ArchiveExtensions)

	kept := res.Files[:0]
	for _, f := range res.Files {
		if unchanged(f, r.opts.CompanionExt, r.opts.SizeThreshold) {
			res.Unchanged = append(res.Unchanged, f)
			continue
		}
		kept = append(kept, f)
	}
	res.Files = kept
	return res
}

// expand resolves a single positive pattern. It reports false when the
// pattern is a glob that cannot be parsed.
func (r *Resolver) expand(pattern string) ([]string, bool) {
	abs := r.abs(pattern)

	// A path that exists as typed wins over glob interpretation, so names
	// like "data[1].zip" resolve to themselves.
	if _, err := os.Lstat(abs); err == nil {
		return []string{abs}, true
	}
	if !IsGlob(pattern) {
		r.log.Debug("literal path does not exist", zap.String("path", abs))
		return nil, true
	}

	slashed := filepath.ToSlash(pattern)
	base, rest := doublestar.SplitPattern(slashed)
	if !filepath.IsAbs(pattern) {
		base = filepath.Join(r.opts.Dir, filepath.FromSlash(base))
	} else {
		base = filepath.FromSlash(base)
	}
	if !doublestar.ValidatePattern(rest) {
		r.log.Warn("invalid glob pattern", zap.String("pattern", pattern))
		return nil, false
	}

	matches, err := doublestar.Glob(os.DirFS(base), rest, doublestar.WithFilesOnly())
	if err != nil {
		r.log.Warn("glob expansion failed", zap.String("pattern", pattern), zap.Error(err))
		return nil, false
	}

	allowDot := explicitDot(rest)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !allowDot && hasDotSegment(m) {
			continue
		}
		out = append(out, filepath.Join(base, filepath.FromSlash(m)))
	}
	return out, true
}

func (r *Resolver) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.opts.Dir, p)
}

// explicitDot reports whether any segment of the pattern starts with a dot,
// which opts the pattern into matching dotfiles.
func explicitDot(pattern string) bool {
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

func hasDotSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// subtract removes every path in drop, and everything below a dropped
// directory, from files.
func subtract(files, drop []string) []string {
	dropSet := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		dropSet[d] = struct{}{}
	}
	out := files[:0]
	for _, f := range files {
		if _, ok := dropSet[f]; ok || underAny(f, drop) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
