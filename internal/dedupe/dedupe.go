// Package dedupe assigns collision-free names within logical namespaces.
//
// Source forums routinely contain names that collide once case is folded or
// once unicode is flattened to the restricted character set the target
// accepts. The pool normalizes each candidate and, on collision, appends an
// incrementing suffix until the name is free. Usernames and group names share
// one namespace; category names are scoped per parent category.
package dedupe

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameLength caps normalized names. Suffixes may not push a name past it;
// the base is shortened instead.
const maxNameLength = 60

// Pool tracks reserved names per namespace. Membership is checked on the
// lower-cased form; the returned name keeps the candidate's casing.
type Pool struct {
	taken map[string]map[string]struct{}
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{taken: make(map[string]map[string]struct{})}
}

// Preload marks name as already reserved in ns without normalizing it, for
// seeding the pool from names that exist in the target before a run.
func (p *Pool) Preload(ns, name string) {
	p.namespace(ns)[strings.ToLower(name)] = struct{}{}
}

// Reserve normalizes candidate and reserves a collision-free variant of it in
// ns. The result is never empty: a candidate that normalizes to nothing is
// replaced with a randomized placeholder drawn from a space large enough that
// collisions are negligible (the placeholder is not deduplicated further).
func (p *Pool) Reserve(ns, candidate string) string {
	name := Normalize(candidate)
	if name == "" {
		name = placeholder()
		p.namespace(ns)[strings.ToLower(name)] = struct{}{}
		return name
	}

	set := p.namespace(ns)
	if _, ok := set[strings.ToLower(name)]; !ok {
		set[strings.ToLower(name)] = struct{}{}
		return name
	}

	suffix := "1"
	for {
		attempt := truncate(name, maxNameLength-len(suffix)-1) + "_" + suffix
		if _, ok := set[strings.ToLower(attempt)]; !ok {
			set[strings.ToLower(attempt)] = struct{}{}
			return attempt
		}
		suffix = nextString(suffix)
	}
}

// Taken reports whether name (in any casing) is reserved in ns.
func (p *Pool) Taken(ns, name string) bool {
	_, ok := p.namespace(ns)[strings.ToLower(name)]
	return ok
}

func (p *Pool) namespace(ns string) map[string]struct{} {
	set, ok := p.taken[ns]
	if !ok {
		set = make(map[string]struct{})
		p.taken[ns] = set
	}
	return set
}

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize flattens candidate to the restricted character set accepted for
// names: diacritics stripped, remaining characters outside [A-Za-z0-9._-]
// replaced with underscores, repeated punctuation collapsed, leading and
// trailing punctuation trimmed, length capped.
func Normalize(candidate string) string {
	flat, _, err := transform.String(asciiFold, candidate)
	if err != nil {
		flat = candidate
	}

	var b strings.Builder
	for _, r := range flat {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ' || unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			b.WriteRune('_')
		}
	}

	name := collapsePunct(b.String())
	name = strings.Trim(name, "._-")
	return truncate(name, maxNameLength)
}

// collapsePunct reduces any run of [._-] to its first character.
func collapsePunct(s string) string {
	var b strings.Builder
	var last rune
	for _, r := range s {
		if (r == '.' || r == '-' || r == '_') && (last == '.' || last == '-' || last == '_') {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

func truncate(s string, n int) string {
	if n < 1 {
		n = 1
	}
	if len(s) <= n {
		return s
	}
	return strings.Trim(s[:n], "._-")
}

// nextString increments s the way a lexical counter rolls over: the rightmost
// alphanumeric is advanced, carrying left, growing the string when every
// position carries ("9"->"10", "z"->"aa", "az"->"ba").
func nextString(s string) string {
	if s == "" {
		return "1"
	}
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		switch {
		case b[i] >= '0' && b[i] <= '8', b[i] >= 'a' && b[i] <= 'y', b[i] >= 'A' && b[i] <= 'Y':
			b[i]++
			return string(b)
		case b[i] == '9':
			b[i] = '0'
		case b[i] == 'z':
			b[i] = 'a'
		case b[i] == 'Z':
			b[i] = 'A'
		default:
			// non-alphanumeric: grow to the left of it
			return string(b[:i+1]) + grownDigit(b[i+1]) + string(b[i+1:])
		}
	}
	return grownDigit(b[0]) + string(b)
}

func grownDigit(after byte) string {
	switch {
	case after >= 'a' && after <= 'z':
		return "a"
	case after >= 'A' && after <= 'Z':
		return "A"
	default:
		return "1"
	}
}

func placeholder() string {
	return "anon_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
