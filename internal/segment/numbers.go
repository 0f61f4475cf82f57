package segment

import (
	"strconv"
	"strings"
)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50,
}

var tensNumbers = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40,
}

// parseChapterNumber converts a chapter identifier to an integer. It accepts
// numerals and spelled-out numbers up to fifty ("seven", "twenty-one",
// "twenty one").
func parseChapterNumber(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 999 {
			return 0, false
		}
		return n, true
	}

	if n, ok := wordNumbers[s]; ok {
		return n, true
	}

	// Compound forms: "twenty-one" / "twenty one" .. "forty-nine".
	var parts []string
	if strings.Contains(s, "-") {
		parts = strings.SplitN(s, "-", 2)
	} else {
		parts = strings.SplitN(s, " ", 2)
	}
	if len(parts) == 2 {
		tens, okT := tensNumbers[parts[0]]
		ones, okO := wordNumbers[parts[1]]
		if okT && okO && ones >= 1 && ones <= 9 {
			return tens + ones, true
		}
	}

	return 0, false
}
