package resolver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testExts = []string{".zip", ".7z", ".rar", ".tar", ".gz", ".tgz", ".bz2", ".xz"}

// tree creates files (with content) below root. Keys ending in "/" are
// directories.
func tree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newResolver(t *testing.T, dir string) *Resolver {
	t.Helper()
	r, err := New(Options{Dir: dir, ArchiveExtensions: testExts, CompanionExt: ".zip", SizeThreshold: 0.1}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func bases(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	sort.Strings(out)
	return out
}

func compressFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	tree(t, root, map[string]string{
		"test/file1.txt":            "content1",
		"test/file2.txt":            "content2",
		"test/data.json":            "{}",
		"test/script.js":            "console.log();",
		"test/song1.mp3":            "audio",
		"test/song2.mp3":            "audio",
		"test/video.mp4":            "video",
		"test/mp4file.mov":          "mov",
		"test/mp4video.mp4":         "mp4",
		"test/archive.zip":          "zip",
		"test/backup.7z":            "7z",
		"test/.hidden.txt":          "secret",
		"test/subdir/nested.txt":    "nested",
		"test/subdir/deep/file.txt": "deep",
		"test/.git/config.txt":      "git",
	})
	return root
}

func TestIsGlob(t *testing.T) {
	for _, p := range []string{"*.txt", "a?c", "{a,b}", "[ab]", "!x"} {
		assert.True(t, IsGlob(p), p)
	}
	for _, p := range []string{"file.txt", "dir/sub", "/abs/path", ""} {
		assert.False(t, IsGlob(p), p)
	}
}

func TestResolve_Globs(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	cases := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"star", []string{"test/*.txt"}, []string{"file1.txt", "file2.txt"}},
		{"suffix", []string{"test/*.mp3"}, []string{"song1.mp3", "song2.mp3"}},
		{"prefix", []string{"test/mp4*"}, []string{"mp4file.mov", "mp4video.mp4"}},
		{"recursive", []string{"test/**/*.txt"}, []string{"file.txt", "file1.txt", "file2.txt", "nested.txt"}},
		{"braces", []string{"test/*.{js,json}"}, []string{"data.json", "script.js"}},
		{"class", []string{"test/song[1-2].mp3"}, []string{"song1.mp3", "song2.mp3"}},
		{"negated class", []string{"test/song[!1].mp3"}, []string{"song2.mp3"}},
		{"multiple", []string{"test/*.mp3", "test/*.mp4"}, []string{"mp4video.mp4", "song1.mp3", "song2.mp3", "video.mp4"}},
		{"explicit dot", []string{"test/.*.txt"}, []string{".hidden.txt"}},
		{"literal", []string{"test/file1.txt"}, []string{"file1.txt"}},
		{"no match", []string{"test/*.xyz"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Resolve(tc.patterns, false)
			assert.Equal(t, tc.want, bases(res.Files))
			for _, f := range res.Files {
				assert.True(t, filepath.IsAbs(f), f)
			}
		})
	}
}

func TestResolve_GlobReturnsFilesOnly(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	res := r.Resolve([]string{"test/*"}, false)
	for _, f := range res.Files {
		fi, err := os.Stat(f)
		require.NoError(t, err)
		assert.False(t, fi.IsDir(), f)
	}
	assert.NotContains(t, bases(res.Files), "subdir")
	assert.NotContains(t, bases(res.Files), ".hidden.txt")
}

func TestResolve_LiteralDirectoryIsOpaque(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	res := r.Resolve([]string{"test/subdir"}, true)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(root, "test", "subdir"), res.Files[0])
}

func TestResolve_MissingLiteralDropped(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	res := r.Resolve([]string{"nope.txt", "test/file1.txt"}, false)
	assert.Equal(t, []string{filepath.Join(root, "test", "file1.txt")}, res.Files)
	assert.Empty(t, res.Invalid)
}

func TestResolve_AbsolutePatterns(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, t.TempDir())

	res := r.Resolve([]string{filepath.Join(root, "test", "*.mp3"), filepath.Join(root, "test", "video.mp4")}, false)
	assert.Equal(t, []string{"song1.mp3", "song2.mp3", "video.mp4"}, bases(res.Files))
}

func TestResolve_Deduplicates(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{"a/file1.txt": "1", "a/file2.txt": "2"})
	r := newResolver(t, root)

	res := r.Resolve([]string{"a/*.txt", "a/file1.txt", "a/../a/file1.txt"}, false)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "file1.txt"),
		filepath.Join(root, "a", "file2.txt"),
	}, res.Files)
}

func TestResolve_FirstSeenOrder(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{"b.txt": "b", "a.txt": "a", "c.txt": "c"})
	r := newResolver(t, root)

	res := r.Resolve([]string{"c.txt", "*.txt"}, false)
	assert.Equal(t, "c.txt", filepath.Base(res.Files[0]))
	assert.Len(t, res.Files, 3)
}

func TestResolve_Idempotent(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)
	patterns := []string{"test/**/*", "test/file1.txt", "test/*.{zip,7z}"}

	first := r.Resolve(patterns, true)
	second := r.Resolve(patterns, true)
	assert.ElementsMatch(t, first.Files, second.Files)
	assert.ElementsMatch(t, first.Skipped, second.Skipped)
}

func TestResolve_Negation(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	res := r.Resolve([]string{"test/**/*.txt", "!test/subdir"}, false)
	assert.Equal(t, []string{"file1.txt", "file2.txt"}, bases(res.Files))

	res = r.Resolve([]string{"test/*", "!test/*.mp?"}, false)
	assert.NotContains(t, bases(res.Files), "song1.mp3")
	assert.NotContains(t, bases(res.Files), "video.mp4")
	assert.Contains(t, bases(res.Files), "mp4file.mov")
}

func TestResolve_ExcludeArchives(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{"x.txt": "x", "y.zip": "y"})
	r := newResolver(t, root)

	res := r.Resolve([]string{"*"}, true)
	assert.Equal(t, []string{filepath.Join(root, "x.txt")}, res.Files)
	assert.Equal(t, []string{filepath.Join(root, "y.zip")}, res.Skipped)

	res = r.Resolve([]string{"*"}, false)
	assert.Len(t, res.Files, 2)
	assert.Empty(t, res.Skipped)
}

func TestResolve_FilterArchivesFromFixture(t *testing.T) {
	root := compressFixture(t)
	r := newResolver(t, root)

	res := r.Resolve([]string{"test/*"}, true)
	for _, f := range res.Files {
		assert.False(t, strings.HasSuffix(f, ".zip"), f)
		assert.False(t, strings.HasSuffix(f, ".7z"), f)
	}
	assert.Contains(t, bases(res.Files), "file1.txt")
	assert.Equal(t, []string{"archive.zip", "backup.7z"}, bases(res.Skipped))
}

func TestResolve_SizeDeltaSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{
		"d/f1.txt":     "0123456789",
		"d/f2.txt":     "abcdefghij",
		"d/f1.txt.zip": "9876543210",
	})
	r := newResolver(t, root)

	res := r.Resolve([]string{"d/*"}, true)
	assert.Equal(t, []string{filepath.Join(root, "d", "f2.txt")}, res.Files)
	assert.Equal(t, []string{filepath.Join(root, "d", "f1.txt")}, res.Unchanged)
	assert.Equal(t, []string{filepath.Join(root, "d", "f1.txt.zip")}, res.Skipped)
}

func TestResolve_SizeDeltaIncludesChanged(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{
		"d/f1.txt":     strings.Repeat("a", 100),
		"d/f1.txt.zip": strings.Repeat("z", 50),
	})
	r := newResolver(t, root)

	res := r.Resolve([]string{"d/*"}, true)
	assert.Equal(t, []string{filepath.Join(root, "d", "f1.txt")}, res.Files)
	assert.Empty(t, res.Unchanged)
}

func TestResolve_SizeDeltaDisabledWithoutExclusion(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{"d/f1.txt": "0123456789", "d/f1.txt.zip": "0123456789"})
	r := newResolver(t, root)

	res := r.Resolve([]string{"d/*"}, false)
	assert.Len(t, res.Files, 2)
	assert.Empty(t, res.Unchanged)
}

func TestSizeDiffExceeds(t *testing.T) {
	cases := []struct {
		src, arch int64
		want      bool
	}{
		{100, 100, false},
		{100, 110, false},
		{100, 90, false},
		{100, 111, true},
		{100, 89, true},
		{100, 10, true},
		{0, 0, false},
		{0, 5, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sizeDiffExceeds(tc.src, tc.arch, 0.1), "src=%d arch=%d", tc.src, tc.arch)
	}
}

func extractFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	tree(t, root, map[string]string{
		"test/archive1.zip":      "zip1",
		"test/archive2.zip":      "zip2",
		"test/backup.7z":         "7z",
		"test/data.txt":          "text",
		"test/script.js":         "code",
		"test/old-backup.zip":    "old",
		"test/data[1].zip":       "bracket",
		"test/subdir/nested.zip": "nested",
		"test/subdir/data.7z":    "nested7z",
		"test/subdir/file.txt":   "text",
	})
	return root
}

func TestResolve_ExtractPatterns(t *testing.T) {
	root := extractFixture(t)
	r := newResolver(t, root)

	cases := []struct {
		name     string
		patterns []string
		want     int
	}{
		{"all zip", []string{"test/*.zip"}, 4},
		{"all 7z", []string{"test/*.7z"}, 1},
		{"recursive zip", []string{"test/**/*.zip"}, 5},
		{"class", []string{"test/archive[1-2].zip"}, 2},
		{"braces", []string{"test/*.{zip,7z}"}, 5},
		{"bracket literal", []string{"test/data[1].zip"}, 1},
		{"everything", []string{"test/*"}, 5},
		{"two patterns", []string{"test/*.zip", "test/*.7z"}, 5},
		{"prefix", []string{"test/archive*.zip"}, 2},
		{"single", []string{"test/archive1.zip"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Resolve(tc.patterns, false)
			got := FilterSupported(res.Files, testExts)
			assert.Len(t, got, tc.want, "%v", bases(got))
		})
	}

	res := r.Resolve([]string{"test/data[1].zip"}, false)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "data[1].zip", filepath.Base(res.Files[0]))
}

func TestResolve_InvalidPatternReported(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, root)

	res := r.Resolve([]string{"file[.txt"}, false)
	assert.Empty(t, res.Files)
	assert.Equal(t, []string{"file[.txt"}, res.Invalid)
}

func TestFilterSupported(t *testing.T) {
	got := FilterSupported([]string{"/d/a.zip", "/d/b.7z", "/d/c.txt", "/d/D.ZIP"}, testExts)
	assert.Equal(t, []string{"/d/a.zip", "/d/b.7z", "/d/D.ZIP"}, got)
}

func TestFilterUnsupported(t *testing.T) {
	kept, skipped := FilterUnsupported([]string{"/d/x.txt", "/d/y.zip", "/d/z.tar.gz"}, testExts)
	assert.Equal(t, []string{"/d/x.txt"}, kept)
	assert.Equal(t, []string{"/d/y.zip", "/d/z.tar.gz"}, skipped)
}

func TestStripArchiveExt(t *testing.T) {
	exts := append([]string{".tar.gz"}, testExts...)
	cases := map[string]string{
		"/d/report.txt.zip": "/d/report.txt",
		"/d/a.7z":           "/d/a",
		"/d/b.tar.gz":       "/d/b",
		"/d/C.ZIP":          "/d/C",
	}
	for in, want := range cases {
		got, ok := StripArchiveExt(in, exts)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	got, ok := StripArchiveExt("/d/plain.txt", exts)
	assert.False(t, ok)
	assert.Equal(t, "/d/plain.txt", got)

	_, ok = StripArchiveExt("/d/.zip", exts)
	assert.False(t, ok)
}

func TestArchivesIn(t *testing.T) {
	root := t.TempDir()
	tree(t, root, map[string]string{
		"b.7z":        "7z",
		"a.zip":       "zip",
		"notes.txt":   "text",
		".hidden.zip": "zip",
		"sub/c.zip":   "zip",
	})

	got, err := ArchivesIn(root, testExts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.zip"), filepath.Join(root, "b.7z")}, got)

	_, err = ArchivesIn(filepath.Join(root, "missing"), testExts)
	assert.Error(t, err)
}
