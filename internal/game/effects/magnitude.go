package effects

import (
	"regexp"
	"strconv"
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

const num = `(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten)`

var magnitudePatterns = map[OperationKind][]*regexp.Regexp{
	OpDamage: {
		regexp.MustCompile(`\bdeals? ` + num + ` damage\b`),
		regexp.MustCompile(`\b` + num + ` damage\b`),
	},
	OpBuff: {
		regexp.MustCompile(`\+(\d+) might\b`),
		regexp.MustCompile(`\bbuff ` + num + `\b`),
	},
	OpDebuff: {
		regexp.MustCompile(`-(\d+) might\b`),
		regexp.MustCompile(`\bloses? ` + num + ` might\b`),
	},
	OpDraw:         {regexp.MustCompile(`\bdraws? ` + num + `\b`)},
	OpDiscard:      {regexp.MustCompile(`\bdiscards? ` + num + `\b`)},
	OpSummon:       {regexp.MustCompile(`\b(?:play|create|summon)s? ` + num + `\b`)},
	OpResourceGain: {regexp.MustCompile(`\b(?:channel|add|gain)s? ` + num + `\b`)},
	OpChannel:      {regexp.MustCompile(`\bchannels? ` + num + `\b`)},
	OpShield: {
		regexp.MustCompile(`\bprevent(?:s)? (?:the next )?` + num + ` damage\b`),
		regexp.MustCompile(`\b` + num + ` shield\b`),
	},
	OpSearch: {regexp.MustCompile(`\btop ` + num + ` cards?\b`)},
	OpHeal:   {regexp.MustCompile(`\bheals? (\d+)\b`)},
	OpMove: {
		regexp.MustCompile(`\bup to ` + num + ` units?\b`),
	},
	OpRemoval: {
		regexp.MustCompile(`\bup to ` + num + ` units?\b`),
	},
}

// extractMagnitude runs the kind-specific patterns over clause and returns
// the first number found, nil if the size is contextual.
func extractMagnitude(kind OperationKind, clause string) *int {
	for _, re := range magnitudePatterns[kind] {
		m := re.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		if v, ok := parseNumber(m[len(m)-1]); ok {
			return &v
		}
	}
	return nil
}

func parseNumber(s string) (int, bool) {
	if v, ok := numberWords[s]; ok {
		return v, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
