package webapp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

func writeMarker(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		files   map[string]string
		want    string
		found   bool
	}{
		{
			name:    "wordpress",
			adapter: WordPress{},
			files: map[string]string{
				"wp-includes/version.php": "<?php\n/**\n * The WordPress version string\n */\n$wp_version = '6.4.2';\n$wp_db_version = 56657;\n",
			},
			want:  "6.4.2",
			found: true,
		},
		{
			name:    "wordpress last assignment wins",
			adapter: WordPress{},
			files: map[string]string{
				"wp-includes/version.php": "<?php\n$wp_version = '6.4.1';\n$wp_version = '6.4.2';\n",
			},
			want:  "6.4.2",
			found: true,
		},
		{
			name:    "wordpress implausible major",
			adapter: WordPress{},
			files: map[string]string{
				"wp-includes/version.php": "$wp_version = '12.0';\n",
			},
		},
		{
			name:    "wordpress missing marker",
			adapter: WordPress{},
		},
		{
			name:    "wordpress marker without version line",
			adapter: WordPress{},
			files: map[string]string{
				"wp-includes/version.php": "<?php\n// nothing here\n",
			},
		},
		{
			name:    "joomla 4 constants",
			adapter: Joomla{},
			files: map[string]string{
				"libraries/src/Version.php": "final class Version\n{\n    public const MAJOR_VERSION = 4;\n    public const MINOR_VERSION = 3;\n    public const PATCH_VERSION = 4;\n    public const EXTRA_VERSION = '';\n",
			},
			want:  "4.3.4",
			found: true,
		},
		{
			name:    "joomla 3 public properties",
			adapter: Joomla{},
			files: map[string]string{
				"libraries/cms/version/version.php": "final class JVersion\n{\n\tpublic $RELEASE = '3.4';\n\tpublic $DEV_LEVEL = '8';\n\tpublic $DEV_STATUS = 'Stable';\n",
			},
			want:  "3.4.8",
			found: true,
		},
		{
			name:    "joomla 3 consts",
			adapter: Joomla{},
			files: map[string]string{
				"libraries/cms/version/version.php": "\tconst RELEASE = '3.6';\n\tconst DEV_LEVEL = '5';\n",
			},
			want:  "3.6.5",
			found: true,
		},
		{
			name:    "joomla 1.5",
			adapter: Joomla{},
			files: map[string]string{
				"libraries/joomla/version.php": "\tvar $RELEASE = '1.5';\n\tvar $DEV_LEVEL = '26';\n",
			},
			want:  "1.5.26",
			found: true,
		},
		{
			name:    "joomla missing dev level",
			adapter: Joomla{},
			files: map[string]string{
				"libraries/cms/version/version.php": "\tpublic $RELEASE = '3.4';\n",
			},
		},
		{
			name:    "drupal 7 changelog",
			adapter: Drupal{},
			files: map[string]string{
				"CHANGELOG.txt": "\nDrupal 7.98, 2023-06-07\n-----------------------\n- Fixed things.\n\nDrupal 7.97, 2023-04-21\n",
			},
			want:  "7.98",
			found: true,
		},
		{
			name:    "drupal 8 core changelog",
			adapter: Drupal{},
			files: map[string]string{
				"core/CHANGELOG.txt": "Drupal 8.0.0, 2015-11-19\n",
			},
			want:  "8.0.0",
			found: true,
		},
		{
			name:    "drupal 10 prefers Drupal.php over stale changelog",
			adapter: Drupal{},
			files: map[string]string{
				"core/CHANGELOG.txt":  "Drupal 8.0.0, 2015-11-19\n",
				"core/lib/Drupal.php": "class Drupal {\n  const VERSION = '10.1.5';\n",
			},
			want:  "10.1.5",
			found: true,
		},
		{
			name:    "drupal implausible major",
			adapter: Drupal{},
			files: map[string]string{
				"CHANGELOG.txt": "Drupal 4.7, 2006-05-01\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for rel, content := range tt.files {
				writeMarker(t, root, rel, content)
			}
			got, found := tt.adapter.DetectVersion(root)
			if found != tt.found || got != tt.want {
				t.Fatalf("DetectVersion() = (%q, %v), want (%q, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"wordpress", "Joomla", "drupal"} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
		}
	}
	if _, err := Lookup("typo3"); !errors.Is(err, sharedErrors.ErrUnknownApplication) {
		t.Fatalf("expected ErrUnknownApplication, got %v", err)
	}
	if names := Names(); len(names) != 3 || names[0] != "drupal" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestReferenceKeys(t *testing.T) {
	tests := []struct {
		adapter Adapter
		want    string
	}{
		{WordPress{}, "wordpress-core"},
		{Joomla{}, "joomla-core"},
		{Drupal{}, "drupal-core"},
		{Addon{Kind: AddonPlugin, Slug: "akismet", Version: "5.3"}, "wordpress-plugin-akismet"},
		{Addon{Kind: AddonTheme, Slug: "astra", Version: "4.5.2"}, "wordpress-theme-astra"},
	}
	for _, tt := range tests {
		if got := tt.adapter.ReferenceKey(); got != tt.want {
			t.Errorf("ReferenceKey() = %q, want %q", got, tt.want)
		}
	}
}

func TestAddonDetectVersion(t *testing.T) {
	v, ok := Addon{Kind: AddonPlugin, Slug: "akismet", Version: "5.3"}.DetectVersion("/ignored")
	if !ok || v != "5.3" {
		t.Fatalf("unexpected (%q, %v)", v, ok)
	}
	if _, ok := (Addon{Kind: AddonPlugin, Slug: "dev"}).DetectVersion("/ignored"); ok {
		t.Fatal("addon without version must report undetected")
	}
}

func TestParseAddonKind(t *testing.T) {
	if k, err := ParseAddonKind("theme"); err != nil || k != AddonTheme {
		t.Fatalf("unexpected (%v, %v)", k, err)
	}
	if _, err := ParseAddonKind("widget"); !errors.Is(err, sharedErrors.ErrUnknownAddonKind) {
		t.Fatalf("expected ErrUnknownAddonKind, got %v", err)
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		v, min string
		want   bool
	}{
		{"3.5.2", "3.5.2", true},
		{"3.5", "3.5.2", false},
		{"3.10", "3.5.2", true},
		{"6.4.2", "3.5.2", true},
		{"2.9.9", "3.5.2", false},
		{"4.9-RC1", "3.5.2", true},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.v, tt.min); got != tt.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tt.v, tt.min, got, tt.want)
		}
	}
}
