// SPDX-License-Identifier: MIT

package path

import "strconv"

// MatchName implements shell-style glob matching of pattern against a
// concrete name: '*' matches any (possibly empty) run, '?' matches
// exactly one character, '[...]'/'[!...]' matches/negates a character
// class with 'a-z' ranges, and '\x' escapes the metacharacter x.
//
// A malformed class (no closing ']') never matches.
func MatchName(pattern, name string) bool {
	var ai, bi int

	for bi < len(name) {
		if ai >= len(pattern) {
			return false
		}

		switch {
		case pattern[ai] == '\\':
			ai++
			if ai < len(pattern) && pattern[ai] == name[bi] {
				ai++
				bi++
				continue
			}
			return false

		case pattern[ai] == '?':
			ai++
			bi++

		case pattern[ai] == '*':
			for ai < len(pattern) && pattern[ai] == '*' {
				ai++
			}
			if ai == len(pattern) {
				return true // trailing '*' matches the rest unconditionally
			}
			for m := bi; m <= len(name); m++ {
				if MatchName(pattern[ai:], name[m:]) {
					return true
				}
			}
			return false

		case pattern[ai] == '[':
			ai++
			invert := false
			if ai < len(pattern) && pattern[ai] == '!' {
				invert = true
				ai++
			}
			matched := false
			var prev byte
			havePrev := false
			for ai < len(pattern) && pattern[ai] != ']' {
				if pattern[ai] == '-' && havePrev && ai+1 < len(pattern) {
					rangeEnd := pattern[ai+1]
					if bi < len(name) && name[bi] >= prev && name[bi] <= rangeEnd {
						matched = true
					}
					ai += 2
					havePrev = false
					continue
				}
				if bi < len(name) && name[bi] == pattern[ai] {
					matched = true
				}
				prev = pattern[ai]
				havePrev = true
				ai++
			}
			if ai >= len(pattern) || pattern[ai] != ']' {
				return false // malformed: missing closing bracket
			}
			if (!invert && !matched) || (invert && matched) {
				return false
			}
			ai++
			bi++

		default:
			if bi < len(name) && pattern[ai] == name[bi] {
				ai++
				bi++
				continue
			}
			return false
		}
	}

	// Skip any remaining trailing wildcards.
	for ai < len(pattern) && pattern[ai] == '*' {
		ai++
	}

	return ai == len(pattern) && bi == len(name)
}

// MatchPath reports whether every component of patternPath matches the
// corresponding component of namePath, component-for-component, with
// both iterators exhausted at the same time.
func MatchPath(patternPath, namePath string) bool {
	a := NewIterator(patternPath)
	b := NewIterator(namePath)
	for !a.IsAtEnd() && !b.IsAtEnd() {
		if !MatchName(a.CurrentComponent(), b.CurrentComponent()) {
			return false
		}
		a = a.Next()
		b = b.Next()
	}
	return a.IsAtEnd() && b.IsAtEnd()
}

// IsGlob reports whether path contains any component with an unescaped
// '*', '?', or a '[...]' that is not a valid trailing numeric index
// ("name[12]" is an index, not a glob).
func IsGlob(p string) bool {
	escaped := false
	for i := 0; i < len(p); i++ {
		ch := p[i]
		if ch == '\\' && !escaped {
			escaped = true
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		if ch == '[' {
			rb := indexOfByte(p, ']', i+1)
			if rb >= 0 {
				digitsOnly := true
				for j := i + 1; j < rb; j++ {
					c := p[j]
					if c < '0' || c > '9' {
						digitsOnly = false
						break
					}
				}
				validIndex := digitsOnly && rb > i+1 && (rb+1 == len(p) || p[rb+1] == '/')
				if validIndex {
					i = rb
					continue
				}
			}
			return true
		}
		if ch == '*' || ch == '?' || ch == ']' {
			return true
		}
	}
	return false
}

// IsConcrete is the negation of IsGlob.
func IsConcrete(p string) bool { return !IsGlob(p) }

func indexOfByte(s string, c byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// IndexedComponent is the result of parsing a single path component for
// a trailing "[n]" index suffix.
type IndexedComponent struct {
	Base      string
	Index     int
	HasIndex  bool
	Malformed bool
}

// ParseIndexedComponent splits component into a base name and an
// optional numeric index suffix. A terminating bracket that is
// empty/non-numeric is reported as Malformed (and is therefore a glob,
// not an index, per IsGlob above). A component with no base before the
// bracket, no closing ']', or a ']' that does not end the component is
// returned whole as Base with neither HasIndex nor Malformed set.
func ParseIndexedComponent(component string) IndexedComponent {
	escaped := false
	lb := -1
	for i := 0; i < len(component); i++ {
		c := component[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '[' {
			lb = i
			break
		}
	}

	if lb < 0 {
		return IndexedComponent{Base: component}
	}

	basePresent := lb > 0

	escaped = false
	rb := -1
	for i := lb + 1; i < len(component); i++ {
		c := component[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == ']' {
			rb = i
			break
		}
	}

	if !basePresent || rb < 0 || rb != len(component)-1 {
		return IndexedComponent{Base: component}
	}

	indexView := component[lb+1 : rb]
	if indexView == "" {
		return IndexedComponent{Base: component, Malformed: true}
	}
	for i := 0; i < len(indexView); i++ {
		if indexView[i] < '0' || indexView[i] > '9' {
			return IndexedComponent{Base: component, Malformed: true}
		}
	}
	n, err := strconv.Atoi(indexView)
	if err != nil {
		return IndexedComponent{Base: component, Malformed: true}
	}
	return IndexedComponent{Base: component[:lb], Index: n, HasIndex: true}
}

// AppendIndexSuffix appends an "[n]" suffix to base, eliding it when
// n == 0 so that round-tripping an unindexed base is the identity.
func AppendIndexSuffix(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "[" + strconv.Itoa(n) + "]"
}
