package resolver

import (
	"strings"
	"unicode"
)

// chineseDigits maps the Chinese numerals this alias lexicon recognizes (1
// through 10 covers every grade level the product supports) to their
// Arabic-digit string, per §4.3's "Chinese numeral mapping".
var chineseDigits = map[rune]string{
	'一': "1", '二': "2", '三': "3", '四': "4", '五': "5",
	'六': "6", '七': "7", '八': "8", '九': "9", '十': "10",
}

// normalize lowercases, strips whitespace and punctuation, and rewrites any
// Chinese numeral to its Arabic digit, so "1A班" and "中一A班" both become
// "1a", and "Form 1A" and "F1A" become "form1a" and "f1a", which contain it.
func normalize(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if digit, ok := chineseDigits[r]; ok {
			b.WriteString(digit)
			continue
		}
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		// Drop the locale-specific "class" markers ("班", "级") entirely;
		// they carry no discriminating information once digits+letters match.
		if r == '班' || r == '级' {
			continue
		}
		// "中" directly before a Chinese numeral is the secondary-form prefix
		// ("中一" is Form 1), so it is dropped the same way.
		if r == '中' && i+1 < len(rs) {
			if _, ok := chineseDigits[rs[i+1]]; ok {
				continue
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// classKey extracts the canonical "<digit><letter>" key from a class name
// like "Form 1A". It scans
// for the first run of digits and the letter immediately following it
// (ignoring separating whitespace), which covers every observed naming
// convention ("Form 1A", "F1A", "1A").
func classKey(name string) string {
	norm := normalize(name)
	var digits, letter string
	i := 0
	for i < len(norm) && !unicode.IsDigit(rune(norm[i])) {
		i++
	}
	for i < len(norm) && unicode.IsDigit(rune(norm[i])) {
		digits += string(norm[i])
		i++
	}
	if i < len(norm) && unicode.IsLetter(rune(norm[i])) {
		letter = string(norm[i])
	}
	return digits + letter
}

// aliasVariants generates the locale-variant spellings of a class key
// ("1a") that §4.3 names explicitly: "1A", "F1A", "Form 1A", "1A班",
// "中一A班". All variants are returned pre-normalized so they compare
// directly against normalize(freeText).
func aliasVariants(key string) []string {
	if key == "" {
		return nil
	}
	digits, letter := splitKey(key)
	variants := []string{
		key,
		"f" + key,
		"form" + digits + letter,
	}
	return variants
}

func splitKey(key string) (digits, letter string) {
	i := 0
	for i < len(key) && unicode.IsDigit(rune(key[i])) {
		digits += string(key[i])
		i++
	}
	letter = key[i:]
	return digits, letter
}

// gradeTriggers are the collective-reference phrases §4.3 names for grade
// expansion ("whole grade", "全年级").
var gradeTriggers = []string{"whole grade", "wholegrade", "全年级", "entire grade"}

// hasGradeTrigger reports whether freeText contains a collective-grade
// trigger phrase.
func hasGradeTrigger(freeText string) bool {
	norm := normalize(freeText)
	for _, trigger := range gradeTriggers {
		if strings.Contains(norm, normalize(trigger)) {
			return true
		}
	}
	return false
}

// gradeDigitsFromText extracts the first run of digits (after Chinese
// numeral normalization) from freeText, e.g. "Form 1 全年级" -> "1".
func gradeDigitsFromText(freeText string) string {
	norm := normalize(freeText)
	var digits string
	for _, r := range norm {
		if unicode.IsDigit(r) {
			digits += string(r)
		} else if digits != "" {
			break
		}
	}
	return digits
}
