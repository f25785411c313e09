package dedupe

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      string
	}{
		{"plain", "alice", "alice"},
		{"keeps case", "Alice", "Alice"},
		{"spaces", "bob the builder", "bob_the_builder"},
		{"diacritics", "józsef", "jozsef"},
		{"umlaut", "Müller", "Muller"},
		{"symbols", "mr|pipe!", "mr_pipe"},
		{"collapsed punctuation", "a..__--b", "a.b"},
		{"trimmed punctuation", "__alice__", "alice"},
		{"digits kept", "user2000", "user2000"},
		{"cjk replaced", "用户名", ""},
		{"mixed cjk", "abc用户", "abc"},
		{"length cap", strings.Repeat("x", 80), strings.Repeat("x", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.candidate); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestReserveCollision(t *testing.T) {
	p := NewPool()

	first := p.Reserve(NamespaceUsers, "Alice")
	second := p.Reserve(NamespaceUsers, "Alice")

	if first != "Alice" {
		t.Fatalf("first Reserve = %q, want Alice", first)
	}
	if second == first {
		t.Fatalf("second Reserve returned the same name %q", second)
	}
	if !strings.HasPrefix(second, "Alice_") {
		t.Errorf("second Reserve = %q, want Alice_<suffix>", second)
	}
}

func TestReserveCaseInsensitive(t *testing.T) {
	p := NewPool()

	p.Reserve(NamespaceUsers, "alice")
	got := p.Reserve(NamespaceUsers, "ALICE")
	if got == "ALICE" {
		t.Fatalf("case-folded collision not detected, got %q", got)
	}
}

func TestReserveSuffixSequence(t *testing.T) {
	p := NewPool()

	p.Reserve(NamespaceUsers, "bob")
	want := []string{"bob_1", "bob_2", "bob_3"}
	for _, w := range want {
		if got := p.Reserve(NamespaceUsers, "bob"); got != w {
			t.Fatalf("Reserve(bob) = %q, want %q", got, w)
		}
	}
}

func TestReserveNeverEmpty(t *testing.T) {
	p := NewPool()

	for _, candidate := range []string{"", "___", "!!!", "用户名"} {
		got := p.Reserve(NamespaceUsers, candidate)
		if got == "" {
			t.Fatalf("Reserve(%q) returned empty string", candidate)
		}
	}
}

func TestReserveSeparateNamespaces(t *testing.T) {
	p := NewPool()

	a := p.Reserve(NamespaceCategory(1), "General")
	b := p.Reserve(NamespaceCategory(2), "General")
	if a != "General" || b != "General" {
		t.Fatalf("same name in different parents should not collide: %q, %q", a, b)
	}
	c := p.Reserve(NamespaceCategory(1), "General")
	if c == "General" {
		t.Fatalf("same name under one parent must collide, got %q", c)
	}
}

func TestPreload(t *testing.T) {
	p := NewPool()
	p.Preload(NamespaceUsers, "admin")

	if got := p.Reserve(NamespaceUsers, "Admin"); got == "Admin" {
		t.Fatalf("preloaded name not honored, got %q", got)
	}
}

func TestNextString(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1", "2"},
		{"9", "10"},
		{"19", "20"},
		{"99", "100"},
		{"a", "b"},
		{"z", "aa"},
		{"az", "ba"},
		{"zz", "aaa"},
		{"Z", "AA"},
		{"", "1"},
	}
	for _, tt := range tests {
		if got := nextString(tt.in); got != tt.want {
			t.Errorf("nextString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
