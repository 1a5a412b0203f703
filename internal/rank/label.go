package rank

import (
	"strings"
	"unicode/utf8"
)

// maxLabelLen is the longest name shown on a single chart label line.
const maxLabelLen = 15

// Label splits long place names across two lines for the chart axis. Names
// longer than 15 characters that contain a space break after the first
// ceil(words/2) words; everything else stays on one line.
func Label(name string) []string {
	if utf8.RuneCountInString(name) <= maxLabelLen || !strings.Contains(name, " ") {
		return []string{name}
	}
	words := strings.Fields(name)
	if len(words) < 2 {
		return []string{name}
	}
	mid := (len(words) + 1) / 2
	return []string{
		strings.Join(words[:mid], " "),
		strings.Join(words[mid:], " "),
	}
}
