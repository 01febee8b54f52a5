package ignore

import "testing"

func TestSkipFileDefaults(t *testing.T) {
	m := MustCompile(Defaults())

	tests := []struct {
		relPath string
		want    bool
	}{
		{"index.php", false},
		{"wp-includes/version.php", false},
		{"wp-content/uploads/logo.png", true},
		{"wp-content/uploads/LOGO.PNG", true},
		{"wp-content/uploads/Logo.Png", false},
		{"backup.sql.gz", true},
		{"php.ini", true},
		{"custom-php.ini", true},
		{"README", true},
		{".DS_Store", true},
		{"google1a2b3c.html", true},
		{"webhits-2019.html", true},
		{"sitemap.xml.gz", true},
		{".htaccess", true},
		{".htaccess.bak", true},
		{"robots.txt", true},
		{"robots.php", false},
		{"shell.php", false},
	}

	for _, tt := range tests {
		t.Run(tt.relPath, func(t *testing.T) {
			if got := m.SkipFile(tt.relPath); got != tt.want {
				t.Errorf("SkipFile(%q) = %v, want %v (reason %q)", tt.relPath, got, tt.want, m.Reason(tt.relPath))
			}
		})
	}
}

func TestPatternsMatchBasenameOnly(t *testing.T) {
	m := MustCompile(Rules{Patterns: []string{`^robots\.txt$`}})
	if !m.SkipFile("deep/dir/robots.txt") {
		t.Error("pattern should match the basename of a nested file")
	}
	if m.SkipFile("robots.txt/evil.php") {
		t.Error("pattern must not match directory components")
	}
}

func TestSkipDirectorySegments(t *testing.T) {
	m := MustCompile(Defaults(), Rules{Dirs: []string{"language"}})

	tests := []struct {
		relDir string
		want   bool
	}{
		{"", false},
		{"administrator", false},
		{"language", true},
		{"language/en-GB", true},
		{"administrator/language/en-GB", true},
		{"languages", false},
		{".git/objects", true},
		{"wp-content/plugins/foo/.svn", true},
	}

	for _, tt := range tests {
		t.Run(tt.relDir, func(t *testing.T) {
			if got := m.SkipDirectory(tt.relDir); got != tt.want {
				t.Errorf("SkipDirectory(%q) = %v, want %v", tt.relDir, got, tt.want)
			}
		})
	}
}

func TestPathGlobs(t *testing.T) {
	m := MustCompile(Rules{Paths: []string{"wp-content/cache/**", "vendor/composer/autoload_*.php"}})

	if !m.SkipFile("wp-content/cache/page/index.php") {
		t.Error("expected cache subtree to be ignored")
	}
	if !m.SkipFile("vendor/composer/autoload_real.php") {
		t.Error("expected autoload file to be ignored")
	}
	if m.SkipFile("vendor/composer/sub/autoload_real.php") {
		t.Error("single star must not cross directories")
	}
	if m.SkipFile("wp-content/index.php") {
		t.Error("unexpected match outside the glob")
	}
}

func TestCompileRejectsInvalidRegexp(t *testing.T) {
	if _, err := Compile(Rules{Patterns: []string{"("}}); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

func TestBlankSuffixIsDropped(t *testing.T) {
	m := MustCompile(Rules{Suffixes: []string{"", "  "}})
	if m.SkipFile("index.php") {
		t.Fatal("blank suffix must not ignore every file")
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	base := Rules{Files: []string{"a"}}
	merged := base.Merge(Rules{Files: []string{"b"}})
	merged.Files[0] = "changed"
	if base.Files[0] != "a" {
		t.Fatal("Merge must not share backing arrays with its receiver")
	}
	if len(merged.Files) != 2 {
		t.Fatalf("expected 2 files, got %v", merged.Files)
	}
}

func TestNilMatcherIgnoresNothing(t *testing.T) {
	var m *Matcher
	if m.SkipFile("x.png") || m.SkipDirectory(".git") {
		t.Fatal("nil matcher must ignore nothing")
	}
}
