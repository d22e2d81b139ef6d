// Package seals gives revisions memorable names derived from their content
// hash, e.g. "bright-cello-swells-softly-447abe9b". The same hash always
// yields the same name.
package seals

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/javanhut/helio-vcs/internal/cas"
)

// Word lists for generating memorable names
var (
	adjectives = []string{
		"swift", "brave", "bold", "clever", "gentle", "noble", "calm", "bright",
		"dark", "ancient", "young", "quick", "silent", "loud", "warm", "cool",
		"sharp", "smooth", "rough", "soft", "light", "heavy", "deep", "wide",
		"golden", "silver", "crystal", "velvet", "hollow", "vivid", "pale", "wild",
		"major", "minor", "lydian", "dorian", "muted", "open", "bowed", "plucked",
		"dotted", "tied", "syncopated", "staccato", "legato", "swung", "tender", "brassy",
	}

	instruments = []string{
		"piano", "cello", "violin", "viola", "harp", "flute", "oboe", "clarinet",
		"bassoon", "horn", "trumpet", "trombone", "tuba", "organ", "lute", "guitar",
		"banjo", "mandolin", "sitar", "koto", "marimba", "vibraphone", "celesta", "timpani",
		"snare", "cymbal", "gong", "tabla", "conga", "bongo", "kalimba", "accordion",
		"harmonica", "bagpipe", "recorder", "piccolo", "synth", "sampler", "theremin", "choir",
	}

	verbs = []string{
		"sings", "hums", "swells", "fades", "rings", "echoes", "resonates", "whispers",
		"roars", "soars", "dives", "glides", "drifts", "pulses", "sways", "dances",
		"climbs", "falls", "rises", "turns", "spins", "flows", "shines", "glows",
		"calls", "answers", "wanders", "returns", "rests", "waits", "leaps", "breathes",
	}

	adverbs = []string{
		"softly", "loudly", "slowly", "gently", "boldly", "brightly", "sweetly", "freely",
		"quietly", "warmly", "wildly", "calmly", "lightly", "deeply", "proudly", "swiftly",
		"tenderly", "sharply", "smoothly", "briskly", "lazily", "evenly", "steadily", "again",
	}
)

// Name creates a memorable name from a content hash.
func Name(hash cas.Hash) string {
	seed := binary.LittleEndian.Uint64(hash[:8])
	r := rand.New(rand.NewSource(int64(seed)))

	adj := adjectives[r.Intn(len(adjectives))]
	inst := instruments[r.Intn(len(instruments))]
	verb := verbs[r.Intn(len(verbs))]
	adv := adverbs[r.Intn(len(adverbs))]

	return fmt.Sprintf("%s-%s-%s-%s-%s", adj, inst, verb, adv, ShortHash(hash))
}

// ShortHash is the 8 character hex suffix used in names.
func ShortHash(hash cas.Hash) string {
	return hex.EncodeToString(hash[:4])
}

// CustomName builds a name from user text and the hash suffix. Characters
// other than lowercase letters, digits and dashes are dropped.
func CustomName(base string, hash cas.Hash) string {
	sanitized := strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	var b strings.Builder
	for _, r := range sanitized {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s-%s", b.String(), ShortHash(hash))
}

// ShortHashOf extracts the 8-character hash from a name.
func ShortHashOf(name string) (string, bool) {
	i := strings.LastIndexByte(name, '-')
	if i < 1 {
		return "", false
	}
	last := name[i+1:]
	if len(last) != 8 {
		return "", false
	}
	if _, err := hex.DecodeString(last); err != nil {
		return "", false
	}
	return last, true
}

// Valid checks if a name ends with a hash suffix.
func Valid(name string) bool {
	_, ok := ShortHashOf(name)
	return ok
}

// BaseName returns the name without the hash suffix
func BaseName(name string) string {
	if _, ok := ShortHashOf(name); !ok {
		return name
	}
	return name[:strings.LastIndexByte(name, '-')]
}

// Matches reports whether query names hash, either as a full name or as
// its short hash.
func Matches(query string, hash cas.Hash) bool {
	short := ShortHash(hash)
	if query == short {
		return true
	}
	got, ok := ShortHashOf(query)
	return ok && got == short
}
