package integrity

import (
	"encoding/json"
	"fmt"
)

const (
	// EmptyFileDigest is the MD5 of zero bytes. Findings carrying it are never reported.
	EmptyFileDigest = "d41d8cd98f00b204e9800998ecf8427e"
	// UnreadableDigest stands in for the digest of a file that could not be read.
	UnreadableDigest = "# cannot read file #"
)

// DigestKind discriminates the Digest union.
type DigestKind uint8

const (
	// DigestSingle is one expected content digest.
	DigestSingle DigestKind = iota + 1
	// DigestOneOf is an ordered set of acceptable historical digests.
	DigestOneOf
)

// Digest is the expected digest of one reference file: either a single value
// or one of several acceptable values.
type Digest struct {
	kind   DigestKind
	values []string
}

// Single returns a digest expecting exactly value.
func Single(value string) Digest {
	return Digest{kind: DigestSingle, values: []string{value}}
}

// OneOf returns a digest accepting any of values, keeping their order and
// dropping repeats.
func OneOf(values ...string) Digest {
	seen := make(map[string]struct{}, len(values))
	uniq := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	return Digest{kind: DigestOneOf, values: uniq}
}

// Kind reports which variant d holds. The zero Digest has kind 0.
func (d Digest) Kind() DigestKind {
	return d.kind
}

// Matches reports whether actual is an acceptable digest.
func (d Digest) Matches(actual string) bool {
	for _, v := range d.values {
		if v == actual {
			return true
		}
	}
	return false
}

// Values returns a copy of the acceptable digests in order.
func (d Digest) Values() []string {
	return append([]string(nil), d.values...)
}

// Extend returns a one-of digest holding d's values followed by more.
func (d Digest) Extend(more ...string) Digest {
	return OneOf(append(d.Values(), more...)...)
}

func (d Digest) String() string {
	if d.kind == DigestSingle {
		return d.values[0]
	}
	return fmt.Sprintf("%v", d.values)
}

// MarshalJSON encodes a single digest as a string and a one-of digest as an array.
func (d Digest) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case DigestSingle:
		return json.Marshal(d.values[0])
	case DigestOneOf:
		return json.Marshal(d.values)
	}
	return nil, fmt.Errorf("marshal digest: zero value")
}

// UnmarshalJSON accepts either a string or an array of strings.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*d = Single(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("digest must be a string or a list of strings: %w", err)
	}
	*d = OneOf(many...)
	return nil
}
