// SPDX-License-Identifier: MIT

package path

import "testing"

func TestMatchName(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"a*", "abc", true},
		{"a*c", "abc", true},
		{"a*c", "abz", false},
		{"?", "a", true},
		{"??", "a", false},
		{"[abc]", "b", true},
		{"[!abc]", "b", false},
		{"[a-z]", "m", true},
		{"[a-z]", "M", false},
		{`\*`, "*", true},
		{`\*`, "a", false},
		{"[abc", "a", false}, // malformed: no closing bracket
		{"exact", "exact", true},
		{"exact", "exacto", false},
	}
	for _, tt := range tests {
		if got := MatchName(tt.pattern, tt.name); got != tt.want {
			t.Errorf("MatchName(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchPath(t *testing.T) {
	if !MatchPath("/a/*/c", "/a/b/c") {
		t.Fatal("expected match")
	}
	if MatchPath("/a/*/c", "/a/b/c/d") {
		t.Fatal("expected no match: extra component")
	}
}

func TestIsGlob(t *testing.T) {
	tests := []struct {
		p    string
		want bool
	}{
		{"/a/b/c", false},
		{"/a/*/c", true},
		{"/a/b?", true},
		{"/a/name[12]", false},
		{"/a/name[12]/b", false},
		{"/a/name[]", true},
		{"/a/name[12a]", true},
		{"/a/[abc]", true},
	}
	for _, tt := range tests {
		if got := IsGlob(tt.p); got != tt.want {
			t.Errorf("IsGlob(%q) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestParseAppendIndexRoundTrip(t *testing.T) {
	bases := []string{"node", "widget", "a"}
	for _, b := range bases {
		for n := 0; n < 5; n++ {
			suffixed := AppendIndexSuffix(b, n)
			got := ParseIndexedComponent(suffixed)
			if got.Base != b || got.Index != n || got.Malformed {
				t.Errorf("round trip failed for base=%q n=%d: got %+v", b, n, got)
			}
			if n == 0 && !IsConcrete(suffixed) {
				t.Errorf("base with n=0 must remain concrete: %q", suffixed)
			}
		}
	}
}

func TestParseIndexedComponentMalformed(t *testing.T) {
	tests := []string{"node[", "node[]", "node[1a]", "[1]", "node[1]tail"}
	for _, s := range tests {
		got := ParseIndexedComponent(s)
		if got.HasIndex && !got.Malformed {
			t.Errorf("expected %q to not be a clean index, got %+v", s, got)
		}
	}
}

func TestIteratorBasics(t *testing.T) {
	it := NewIterator("///a//b/c")
	if it.String() != "/a/b/c" {
		t.Fatalf("collapsed path = %q", it.String())
	}
	var seen []string
	for !it.IsAtEnd() {
		seen = append(seen, it.CurrentComponent())
		it = it.Next()
	}
	want := []string{"a", "b", "c"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestIteratorFinalComponent(t *testing.T) {
	it := NewIterator("/a/b")
	if it.IsAtFinalComponent() {
		t.Fatal("first of two components should not be final")
	}
	it = it.Next()
	if !it.IsAtFinalComponent() {
		t.Fatal("second of two components should be final")
	}
}
