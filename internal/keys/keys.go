// Package keys generates short, human-readable phrases such as
// "copper-meadow-0421", used as default stash names.
package keys

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// Taken reports whether a phrase is already in use.
type Taken func(phrase string) bool

var words = []string{
	"amber", "bison", "copper", "drift", "ember", "flint", "grove", "harbor", "ivory", "juniper",
	"kestrel", "lilac", "meadow", "nectar", "onyx", "prairie", "quartz", "river", "sage", "tundra",
	"umber", "violet", "willow", "xenon", "yarrow", "zephyr",
}

func randUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func randChoice(n int) int {
	return int(randUint32() % uint32(n))
}

// MakePhrase joins numWords random words and an optional zero-padded number
// of suffixDigits digits with dashes.
func MakePhrase(numWords int, suffixDigits int) string {
	parts := make([]string, 0, numWords+1)
	for i := 0; i < numWords; i++ {
		parts = append(parts, words[randChoice(len(words))])
	}
	if suffixDigits > 0 {
		max := 1
		for i := 0; i < suffixDigits; i++ {
			max *= 10
		}
		parts = append(parts, fmt.Sprintf("%0*d", suffixDigits, int(randUint32()%uint32(max))))
	}
	return strings.Join(parts, "-")
}

// GenerateUniquePhrase returns a phrase for which taken reports false.
// After ten collisions the phrase grows by one word and two digits.
func GenerateUniquePhrase(taken Taken, numWords, suffixDigits int) string {
	const maxAttempts = 10
	for {
		for i := 0; i < maxAttempts; i++ {
			k := MakePhrase(numWords, suffixDigits)
			if taken == nil || !taken(k) {
				return k
			}
		}
		numWords++
		suffixDigits += 2
	}
}
