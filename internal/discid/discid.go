// Package discid guesses the disc number of a multi-disc title from
// its filename.
package discid

import (
	"regexp"
	"strings"
)

// Ordered from most to least specific so "Game (Disc 2)" is not
// shadowed by the bare "d2" pattern.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\(disc[\s_]*(\d)\)`),
	regexp.MustCompile(`\[disc[\s_]*(\d)\]`),
	regexp.MustCompile(`\(cd[\s_]*(\d)\)`),
	regexp.MustCompile(`\[cd[\s_]*(\d)\]`),
	regexp.MustCompile(`\(d[\s_]*(\d)\)`),
	regexp.MustCompile(`\[d[\s_]*(\d)\]`),
	regexp.MustCompile(`disc[\s_-]*(\d)`),
	regexp.MustCompile(`disk[\s_-]*(\d)`),
	regexp.MustCompile(`cd[\s_-]*(\d)`),
	regexp.MustCompile(`d[\s_-]*(\d)`),
}

// Detect returns the disc number (1-9) found in filename, or 1 when no
// pattern matches.
func Detect(filename string) int {
	lower := strings.ToLower(filename)
	for _, re := range patterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		n := int(m[1][0] - '0')
		if n >= 1 && n <= 9 {
			return n
		}
	}
	return 1
}
