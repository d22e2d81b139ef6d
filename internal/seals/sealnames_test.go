package seals

import (
	"strings"
	"testing"

	"github.com/javanhut/helio-vcs/internal/cas"
)

func TestNameIsDeterministic(t *testing.T) {
	h := cas.SumB3([]byte("revision payload"))
	a, b := Name(h), Name(h)
	if a != b {
		t.Fatalf("Name not deterministic: %q vs %q", a, b)
	}
	if parts := strings.Split(a, "-"); len(parts) != 5 {
		t.Fatalf("Name %q should have 5 parts", a)
	}
	if !strings.HasSuffix(a, ShortHash(h)) {
		t.Fatalf("Name %q should end with %s", a, ShortHash(h))
	}
	if other := Name(cas.SumB3([]byte("other payload"))); other == a {
		t.Fatal("different hashes produced the same name")
	}
}

func TestCustomName(t *testing.T) {
	h := cas.SumB3([]byte("x"))
	got := CustomName("Verse Two!", h)
	if want := "verse-two-" + ShortHash(h); got != want {
		t.Fatalf("CustomName = %q, want %q", got, want)
	}
	if BaseName(got) != "verse-two" {
		t.Fatalf("BaseName = %q", BaseName(got))
	}
}

func TestShortHashOf(t *testing.T) {
	tests := []struct {
		name  string
		short string
		ok    bool
	}{
		{"bright-cello-swells-softly-447abe9b", "447abe9b", true},
		{"verse-0011aabb", "0011aabb", true},
		{"verse-xyz", "", false},
		{"447abe9b", "", false},
		{"verse-447abe9", "", false},
	}
	for _, tt := range tests {
		got, ok := ShortHashOf(tt.name)
		if got != tt.short || ok != tt.ok {
			t.Errorf("ShortHashOf(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.short, tt.ok)
		}
		if Valid(tt.name) != tt.ok {
			t.Errorf("Valid(%q) = %v", tt.name, !tt.ok)
		}
	}
}

func TestMatches(t *testing.T) {
	h := cas.SumB3([]byte("rev"))
	if !Matches(Name(h), h) || !Matches(ShortHash(h), h) {
		t.Fatal("name and short hash should match")
	}
	other := cas.SumB3([]byte("other"))
	if Matches(Name(other), h) {
		t.Fatal("unrelated name matched")
	}
}
