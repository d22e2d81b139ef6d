package keys

import (
	"strings"
	"testing"
)

func TestMakePhrase(t *testing.T) {
	p := MakePhrase(2, 4)
	parts := strings.Split(p, "-")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 parts, got %q", p)
	}
	if len(parts[2]) != 4 {
		t.Errorf("Expected 4 digit suffix, got %q", parts[2])
	}
	if got := MakePhrase(3, 0); len(strings.Split(got, "-")) != 3 {
		t.Errorf("Expected 3 words without suffix, got %q", got)
	}
}

func TestGenerateUniquePhraseAvoidsTaken(t *testing.T) {
	calls := 0
	// Every short phrase is taken: generation must grow the phrase.
	taken := func(p string) bool {
		calls++
		return len(strings.Split(p, "-")) < 4
	}
	p := GenerateUniquePhrase(taken, 2, 1)
	if len(strings.Split(p, "-")) != 4 {
		t.Errorf("Expected expanded phrase, got %q", p)
	}
	if calls != 11 {
		t.Errorf("Expected 11 lookups, got %d", calls)
	}
}

func TestGenerateUniquePhraseNilLookup(t *testing.T) {
	if p := GenerateUniquePhrase(nil, 2, 3); p == "" {
		t.Error("Expected a phrase")
	}
}
