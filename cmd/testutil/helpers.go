package testutil

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	jsonrepo "github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/security"
)

// TestEnv holds a data directory and one install root for a test.
type TestEnv struct {
	TmpDir       string
	DataDir      string
	Root         string
	cleanupFuncs []func()
	t            *testing.T
}

// NewTestEnv creates a new test environment with automatic cleanup.
// Usage:
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir() // Automatically cleaned up by Go test framework
	env := &TestEnv{
		TmpDir:       tmpDir,
		DataDir:      filepath.Join(tmpDir, "data"),
		Root:         filepath.Join(tmpDir, "site"),
		t:            t,
		cleanupFuncs: []func(){},
	}

	for _, dir := range []string{env.DataDir, env.Root} {
		if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
			t.Fatalf("Failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}

// WithWordPress writes the version marker of a WordPress install.
func (e *TestEnv) WithWordPress(version string) *TestEnv {
	e.t.Helper()
	e.CreateFile("site/wp-includes/version.php", []byte(WordPressVersionFile(version)))
	return e
}

// WithJoomla writes the version marker of a Joomla 4 install.
func (e *TestEnv) WithJoomla(major, minor, patch int) *TestEnv {
	e.t.Helper()
	content := fmt.Sprintf("<?php\nfinal class Version\n{\n    public const MAJOR_VERSION = %d;\n    public const MINOR_VERSION = %d;\n    public const PATCH_VERSION = %d;\n}\n", major, minor, patch)
	e.CreateFile("site/libraries/src/Version.php", []byte(content))
	return e
}

// WithDrupal writes the version marker of a Drupal 8+ install.
func (e *TestEnv) WithDrupal(version string) *TestEnv {
	e.t.Helper()
	content := fmt.Sprintf("<?php\nclass Drupal {\n  const VERSION = '%s';\n}\n", version)
	e.CreateFile("site/core/lib/Drupal.php", []byte(content))
	return e
}

// SiteFile creates a file under the install root and returns its absolute path.
func (e *TestEnv) SiteFile(rel, content string) string {
	e.t.Helper()
	return e.CreateFile(filepath.Join("site", rel), []byte(content))
}

// StoreChecksums persists a reference set for application and version,
// digesting the given file contents.
func (e *TestEnv) StoreChecksums(application, version string, files map[string]string) {
	e.t.Helper()

	repo, err := jsonrepo.NewChecksumRepository(e.DataDir)
	if err != nil {
		e.t.Fatalf("Failed to open checksum repository: %v", err)
	}
	digests := make(map[string]integrity.Digest, len(files))
	for rel, content := range files {
		digests[rel] = integrity.Single(MD5(content))
	}
	set := integrity.NewReferenceDigestSet(application, version, digests)
	if err := repo.Save(context.Background(), set); err != nil {
		e.t.Fatalf("Failed to store checksums: %v", err)
	}
}

// AddCleanup adds a cleanup function to be called when Cleanup() is called.
// Cleanup functions are called in reverse order (LIFO).
func (e *TestEnv) AddCleanup(fn func()) {
	e.cleanupFuncs = append([]func(){fn}, e.cleanupFuncs...)
}

// Cleanup runs all registered cleanup functions.
// Typically called with defer: defer env.Cleanup()
func (e *TestEnv) Cleanup() {
	for _, fn := range e.cleanupFuncs {
		fn()
	}
}

// CreateFile creates a file in the test environment with the given content.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) CreateFile(relativePath string, content []byte) string {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		e.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, constants.DefaultFilePerm); err != nil {
		e.t.Fatalf("Failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// ReadFile reads a file from the test environment.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) ReadFile(relativePath string) []byte {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", fullPath, err)
	}

	return content
}

// FileExists checks if a file exists in the test environment.
func (e *TestEnv) FileExists(relativePath string) bool {
	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	_, err := os.Stat(fullPath)
	return err == nil
}

// MustNotExist fails the test if the file exists.
func (e *TestEnv) MustNotExist(relativePath string) {
	e.t.Helper()
	if e.FileExists(relativePath) {
		e.t.Fatalf("File %s should not exist but does", relativePath)
	}
}

// MustExist fails the test if the file does not exist.
func (e *TestEnv) MustExist(relativePath string) {
	e.t.Helper()
	if !e.FileExists(relativePath) {
		e.t.Fatalf("File %s should exist but does not", relativePath)
	}
}

// WordPressVersionFile returns a wp-includes/version.php body.
func WordPressVersionFile(version string) string {
	return fmt.Sprintf("<?php\n$wp_version = '%s';\n", version)
}

// MD5 returns the hex MD5 of content.
func MD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func resolveTmpPath(baseDir, relativePath string, t *testing.T) string {
	t.Helper()
	path, err := security.ResolveWithin(baseDir, relativePath)
	if err != nil {
		t.Fatalf("invalid test path %s: %v", relativePath, err)
	}
	return path
}
