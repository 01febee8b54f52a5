package scanner

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

type memWhitelist struct {
	entries map[string]string
	adds    int
}

func newMemWhitelist() *memWhitelist {
	return &memWhitelist{entries: make(map[string]string)}
}

func (w *memWhitelist) Lookup(path string) (string, bool) {
	d, ok := w.entries[path]
	return d, ok
}

func (w *memWhitelist) Add(_ context.Context, path, digest string) error {
	w.entries[path] = digest
	w.adds++
	return nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

func refsOf(files map[string]integrity.Digest) *integrity.ReferenceDigestSet {
	return integrity.NewReferenceDigestSet("wordpress-core", "6.4.2", files)
}

func scanOnce(t *testing.T, root string, refs *integrity.ReferenceDigestSet, wl Whitelist, opts Options) *Result {
	t.Helper()
	result, err := NewEngine(nil).Scan(context.Background(), root, refs, wl, opts)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return result
}

func assertFindings(t *testing.T, result *Result, want map[string]integrity.Reason) {
	t.Helper()
	if len(result.Findings) != len(want) {
		t.Fatalf("expected %d findings, got %d: %v", len(want), len(result.Findings), result.Sorted())
	}
	for path, reason := range want {
		got, ok := result.Findings[path]
		if !ok {
			t.Fatalf("missing finding for %s; have %v", path, result.Sorted())
		}
		if got.Reason != reason {
			t.Errorf("%s: reason %q, want %q", path, got.Reason, reason)
		}
	}
}

func TestScanWithoutModeIsNoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shell.php", "<?php eval($_POST['x']);")

	result := scanOnce(t, root, nil, nil, Options{})
	if len(result.Findings) != 0 || result.FilesChecked != 0 {
		t.Fatalf("expected no work without a mode, got %+v", result)
	}
}

func TestScanReportsUnexpectedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.php", "<?php // index")
	shell := writeFile(t, root, "shell.php", "<?php eval($_POST['x']);")

	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("<?php // index"))})
	result := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectNew})

	assertFindings(t, result, map[string]integrity.Reason{shell: integrity.ReasonUnexpected})
	if result.Findings[shell].Digest != md5Hex("<?php eval($_POST['x']);") {
		t.Errorf("unexpected digest %s", result.Findings[shell].Digest)
	}
}

func TestScanReportsModifiedFile(t *testing.T) {
	root := t.TempDir()
	index := writeFile(t, root, "index.php", "D2")

	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("D1"))})
	result := scanOnce(t, root, refs, newMemWhitelist(), Options{Mode: integrity.DetectModified})

	assertFindings(t, result, map[string]integrity.Reason{index: integrity.ReasonModified})
}

func TestScanWhitelistSuppressesMatchingDigest(t *testing.T) {
	root := t.TempDir()
	index := writeFile(t, root, "index.php", "D2")

	wl := newMemWhitelist()
	wl.entries[index] = md5Hex("D2")
	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("D1"))})

	result := scanOnce(t, root, refs, wl, Options{Mode: integrity.DetectModified})
	assertFindings(t, result, map[string]integrity.Reason{})
}

func TestScanEscalatesWhitelistedFileThatChanged(t *testing.T) {
	root := t.TempDir()
	index := writeFile(t, root, "index.php", "D3")
	extra := writeFile(t, root, "extra.php", "changed")

	wl := newMemWhitelist()
	wl.entries[index] = md5Hex("D2")
	wl.entries[extra] = md5Hex("original extra")
	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("D1"))})

	result := scanOnce(t, root, refs, wl, Options{Mode: integrity.DetectNew | integrity.DetectModified})
	assertFindings(t, result, map[string]integrity.Reason{
		index: integrity.ReasonWhitelistedModified,
		extra: integrity.ReasonWhitelistedModified,
	})
}

func TestScanNeverReportsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	modified := writeFile(t, root, "index.php", "")
	unexpected := writeFile(t, root, "blank.php", "")

	modes := []integrity.Mode{
		integrity.DetectNew,
		integrity.DetectModified,
		integrity.DetectNew | integrity.DetectModified,
	}
	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("<?php"))})

	for _, mode := range modes {
		wl := newMemWhitelist()
		wl.entries[modified] = md5Hex("something else")
		wl.entries[unexpected] = md5Hex("something else")

		for _, list := range []Whitelist{nil, wl} {
			result := scanOnce(t, root, refs, list, Options{Mode: mode})
			if len(result.Findings) != 0 {
				t.Fatalf("mode %b: empty files reported: %v", mode, result.Sorted())
			}
		}
	}
}

func TestScanOneOfDigest(t *testing.T) {
	root := t.TempDir()
	refs := refsOf(map[string]integrity.Digest{
		"wp-includes/class-json.php": integrity.OneOf(md5Hex("crlf"), md5Hex("lf"), md5Hex("latin1")),
	})

	for _, content := range []string{"crlf", "lf", "latin1"} {
		writeFile(t, root, "wp-includes/class-json.php", content)
		result := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectModified})
		if len(result.Findings) != 0 {
			t.Fatalf("content %q is an accepted variant but was reported", content)
		}
	}

	path := writeFile(t, root, "wp-includes/class-json.php", "tampered")
	result := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectModified})
	assertFindings(t, result, map[string]integrity.Reason{path: integrity.ReasonModified})
}

func TestScanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.php", "D2")
	writeFile(t, root, "wp-admin/admin.php", "patched")
	writeFile(t, root, "wp-admin/new.php", "dropped")

	refs := refsOf(map[string]integrity.Digest{
		"index.php":          integrity.Single(md5Hex("D1")),
		"wp-admin/admin.php": integrity.Single(md5Hex("admin")),
	})
	opts := Options{Mode: integrity.DetectModified | integrity.DetectNew, RestrictToReferenceDirs: true}

	first := scanOnce(t, root, refs, nil, opts)
	second := scanOnce(t, root, refs, nil, opts)
	if len(first.Findings) != 3 || len(first.Findings) != len(second.Findings) {
		t.Fatalf("finding counts differ: %d vs %d", len(first.Findings), len(second.Findings))
	}
	for path, f := range first.Findings {
		if second.Findings[path] != f {
			t.Errorf("%s: %v then %v", path, f, second.Findings[path])
		}
	}
}

func TestScanPromotionRoundTrip(t *testing.T) {
	root := t.TempDir()
	index := writeFile(t, root, "index.php", "D2")
	shell := writeFile(t, root, "shell.php", "payload")

	refs := refsOf(map[string]integrity.Digest{"index.php": integrity.Single(md5Hex("D1"))})
	wl := newMemWhitelist()
	opts := Options{Mode: integrity.DetectNew | integrity.DetectModified}

	promoteOpts := opts
	promoteOpts.Promote = true
	promoted := scanOnce(t, root, refs, wl, promoteOpts)
	if len(promoted.Findings) != 0 {
		t.Fatalf("promoted findings must not be reported: %v", promoted.Sorted())
	}
	if len(promoted.Promoted) != 2 || promoted.Promoted[0] != index || promoted.Promoted[1] != shell {
		t.Fatalf("unexpected promoted list %v", promoted.Promoted)
	}
	if wl.entries[shell] != md5Hex("payload") {
		t.Errorf("whitelist holds %q for shell.php", wl.entries[shell])
	}

	again := scanOnce(t, root, refs, wl, opts)
	if len(again.Findings) != 0 {
		t.Fatalf("re-scan after promotion reported %v", again.Sorted())
	}
}

func TestScanPromotionNeedsWhitelist(t *testing.T) {
	root := t.TempDir()
	_, err := NewEngine(nil).Scan(context.Background(), root, refsOf(nil), nil, Options{
		Mode:    integrity.DetectNew,
		Promote: true,
	})
	if err == nil {
		t.Fatal("expected promotion without a whitelist to fail")
	}
}

func TestScanAppliesIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "wp-content/uploads/photo.png", "png")
	writeFile(t, root, "wp-config.php", "<?php define('DB_NAME', 'x');")
	writeFile(t, root, ".htaccess", "RewriteEngine On")
	writeFile(t, root, "wp-content/cache/page.php", "cached")
	shell := writeFile(t, root, "wp-content/uploads/shell.php", "payload")

	matcher, err := ignore.Compile(ignore.Defaults(), ignore.Rules{
		Files: []string{"wp-config.php"},
		Paths: []string{"wp-content/cache/**"},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	result := scanOnce(t, root, refsOf(nil), nil, Options{Mode: integrity.DetectNew, Matcher: matcher})
	assertFindings(t, result, map[string]integrity.Reason{shell: integrity.ReasonUnexpected})
}

func TestScanIgnoredDirectoryAppliesToDescendants(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "language/en-GB/en-GB.xml", "<xml/>")
	writeFile(t, root, "language/overrides/evil.php", "payload")

	matcher := ignore.MustCompile(ignore.Defaults(), ignore.Rules{Dirs: []string{"language"}})
	result := scanOnce(t, root, refsOf(nil), nil, Options{Mode: integrity.DetectNew, Matcher: matcher})
	assertFindings(t, result, map[string]integrity.Reason{})
}

func TestScanIgnoredDirectoryIsRelativeToRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "files", "site")
	shell := writeFile(t, root, "shell.php", "payload")

	matcher := ignore.MustCompile(ignore.Defaults(), ignore.Rules{Dirs: []string{"files"}})
	result := scanOnce(t, root, refsOf(nil), nil, Options{Mode: integrity.DetectNew, Matcher: matcher})
	assertFindings(t, result, map[string]integrity.Reason{shell: integrity.ReasonUnexpected})
}

func TestScanRestrictsToReferenceDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.php", "index")
	writeFile(t, root, "wp-includes/js/utils.js", "utils")
	rootShell := writeFile(t, root, "shell.php", "payload")
	jsShell := writeFile(t, root, "wp-includes/js/shell.php", "payload")
	between := writeFile(t, root, "wp-includes/between.php", "payload")
	unrelated := writeFile(t, root, "backups/2023/dump.php", "payload")

	refs := refsOf(map[string]integrity.Digest{
		"index.php":               integrity.Single(md5Hex("index")),
		"wp-includes/js/utils.js": integrity.Single(md5Hex("utils")),
	})

	restricted := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectNew, RestrictToReferenceDirs: true})
	assertFindings(t, restricted, map[string]integrity.Reason{
		rootShell: integrity.ReasonUnexpected,
		jsShell:   integrity.ReasonUnexpected,
	})

	everything := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectNew})
	assertFindings(t, everything, map[string]integrity.Reason{
		rootShell: integrity.ReasonUnexpected,
		jsShell:   integrity.ReasonUnexpected,
		between:   integrity.ReasonUnexpected,
		unrelated: integrity.ReasonUnexpected,
	})
}

func TestScanReportsUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	link := filepath.Join(root, "dangling.php")
	if err := os.Symlink(filepath.Join(root, "missing-target"), link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	writeFile(t, root, "ok.php", "fine")

	refs := refsOf(map[string]integrity.Digest{"ok.php": integrity.Single(md5Hex("fine"))})
	result := scanOnce(t, root, refs, nil, Options{Mode: integrity.DetectModified})
	assertFindings(t, result, map[string]integrity.Reason{link: integrity.ReasonUnreadable})
	if result.Findings[link].Digest != integrity.UnreadableDigest {
		t.Errorf("unexpected digest %q", result.Findings[link].Digest)
	}

	// A promoted unreadable file stays quiet while it remains unreadable.
	wl := newMemWhitelist()
	scanOnce(t, root, refs, wl, Options{Mode: integrity.DetectModified, Promote: true})
	again := scanOnce(t, root, refs, wl, Options{Mode: integrity.DetectModified})
	assertFindings(t, again, map[string]integrity.Reason{})
}

func TestScanContinuesPastUnlistableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}
	root := t.TempDir()
	writeFile(t, root, "locked/inner.php", "payload")
	shell := writeFile(t, root, "open/shell.php", "payload")
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	result := scanOnce(t, root, refsOf(nil), nil, Options{Mode: integrity.DetectNew})
	assertFindings(t, result, map[string]integrity.Reason{shell: integrity.ReasonUnexpected})
	if len(result.SkippedDirs) != 1 || result.SkippedDirs[0] != locked {
		t.Fatalf("expected %s to be reported once, got %v", locked, result.SkippedDirs)
	}
}

func TestScanMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")
	_, err := NewEngine(nil).Scan(context.Background(), root, refsOf(nil), nil, Options{Mode: integrity.DetectNew})
	if !errors.Is(err, sharedErrors.ErrDirectoryUnlistable) {
		t.Fatalf("expected ErrDirectoryUnlistable, got %v", err)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.php", "index")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil).Scan(ctx, root, refsOf(nil), nil, Options{Mode: integrity.DetectNew})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
