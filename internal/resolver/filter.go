package resolver

import (
	"math"
	"os"
	"path/filepath"
	"strings"
)

// HasArchiveExt reports whether the file name ends with one of exts,
// ignoring case.
func HasArchiveExt(path string, exts []string) bool {
	_, ok := matchExt(path, exts)
	return ok
}

// FilterSupported keeps only the paths that carry an archive extension.
func FilterSupported(files, exts []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if HasArchiveExt(f, exts) {
			out = append(out, f)
		}
	}
	return out
}

// FilterUnsupported splits files into those without an archive extension
// (kept) and those with one (skipped).
func FilterUnsupported(files, exts []string) (kept, skipped []string) {
	kept = make([]string, 0, len(files))
	for _, f := range files {
		if HasArchiveExt(f, exts) {
			skipped = append(skipped, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, skipped
}

// ArchivesIn lists the non-hidden files directly inside dir that carry an
// archive extension, in name order.
func ArchivesIn(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !HasArchiveExt(e.Name(), exts) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// StripArchiveExt removes the longest archive extension from path. It
// reports false when path carries none.
func StripArchiveExt(path string, exts []string) (string, bool) {
	ext, ok := matchExt(path, exts)
	if !ok {
		return path, false
	}
	return path[:len(path)-len(ext)], true
}

func matchExt(path string, exts []string) (string, bool) {
	name := strings.ToLower(filepath.Base(path))
	best := ""
	for _, ext := range exts {
		e := strings.ToLower(ext)
		if e == "" || len(e) >= len(name) {
			continue
		}
		if strings.HasSuffix(name, e) && len(e) > len(best) {
			best = e
		}
	}
	return best, best != ""
}

// unchanged reports whether src already has an archive at src+ext whose size
// is within threshold of the source size. Directories and sources without an
// archive are never unchanged.
func unchanged(src, ext string, threshold float64) bool {
	if ext == "" {
		return false
	}
	srcInfo, err := os.Stat(src)
	if err != nil || srcInfo.IsDir() {
		return false
	}
	archInfo, err := os.Stat(src + ext)
	if err != nil || archInfo.IsDir() {
		return false
	}
	return !sizeDiffExceeds(srcInfo.Size(), archInfo.Size(), threshold)
}

// sizeDiffExceeds compares |src-arch|/src against threshold. An empty source
// only matches an empty archive.
func sizeDiffExceeds(src, arch int64, threshold float64) bool {
	if src == 0 {
		return arch != 0
	}
	ratio := math.Abs(float64(src-arch)) / float64(src)
	return ratio > threshold
}
