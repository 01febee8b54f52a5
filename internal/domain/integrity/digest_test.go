package integrity

import (
	"encoding/json"
	"testing"
)

func TestDigestMatches(t *testing.T) {
	tests := []struct {
		name   string
		digest Digest
		actual string
		want   bool
	}{
		{"single match", Single("aaa"), "aaa", true},
		{"single mismatch", Single("aaa"), "bbb", false},
		{"one of first", OneOf("aaa", "bbb", "ccc"), "aaa", true},
		{"one of last", OneOf("aaa", "bbb", "ccc"), "ccc", true},
		{"one of outside", OneOf("aaa", "bbb", "ccc"), "ddd", false},
		{"zero value", Digest{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.digest.Matches(tt.actual); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.actual, got, tt.want)
			}
		})
	}
}

func TestOneOfDropsRepeats(t *testing.T) {
	d := OneOf("a", "b", "a", "c", "b")
	got := d.Values()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if d.Kind() != DigestOneOf {
		t.Errorf("expected one-of kind, got %d", d.Kind())
	}
}

func TestDigestExtend(t *testing.T) {
	d := OneOf("legacy-1", "legacy-2").Extend("current")
	if !d.Matches("current") || !d.Matches("legacy-1") {
		t.Fatalf("extended digest lost a value: %v", d.Values())
	}
	if d.Kind() != DigestOneOf {
		t.Errorf("expected one-of kind after Extend")
	}
}

func TestDigestValuesIsCopy(t *testing.T) {
	d := OneOf("a", "b")
	vals := d.Values()
	vals[0] = "mutated"
	if !d.Matches("a") {
		t.Fatal("mutating Values() result changed the digest")
	}
}

func TestDigestJSON(t *testing.T) {
	files := map[string]Digest{
		"index.php":   Single("abc"),
		"wp-feed.php": OneOf("x", "y"),
	}
	data, err := json.Marshal(files)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"index.php":"abc","wp-feed.php":["x","y"]}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var decoded map[string]Digest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["index.php"].Kind() != DigestSingle {
		t.Errorf("expected single kind for index.php")
	}
	if decoded["wp-feed.php"].Kind() != DigestOneOf || !decoded["wp-feed.php"].Matches("y") {
		t.Errorf("expected one-of digest for wp-feed.php, got %v", decoded["wp-feed.php"])
	}
}

func TestDigestUnmarshalRejectsObjects(t *testing.T) {
	var d Digest
	if err := json.Unmarshal([]byte(`{"md5":"abc"}`), &d); err == nil {
		t.Fatal("expected error for object digest")
	}
}

func TestMarshalZeroDigestFails(t *testing.T) {
	if _, err := json.Marshal(Digest{}); err == nil {
		t.Fatal("expected error marshalling zero digest")
	}
}
