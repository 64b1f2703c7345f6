package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KebabCase lowercases s and joins its words with hyphens.
//
// Words break on any non-alphanumeric run, on lower-to-upper transitions
// ("fooBar"), before the last capital of an acronym followed by lowercase
// ("HTMLParser") and between letters and digits ("post2" -> "post-2"),
// except that an ordinal stays whole ("2nd-post", "21ST").
// Diacritics are stripped and apostrophes dropped so "Don't café" becomes
// "dont-cafe".
func KebabCase(s string) string {
	words := Words(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-")
}

// Words splits s into the words KebabCase joins.
func Words(s string) []string {
	rs := []rune(deburr(s))

	var (
		out  []string
		word []rune
	)
	flush := func() {
		if len(word) > 0 {
			out = append(out, string(word))
			word = word[:0]
		}
	}

	for i, r := range rs {
		if r == '\'' || r == '’' {
			continue
		}
		if !isWordRune(r) {
			flush()
			continue
		}
		if len(word) > 0 && breaksBefore(word[len(word)-1], r, next(rs, i)) && !ordinalAt(rs, i) {
			flush()
		}
		word = append(word, r)
	}
	flush()
	return out
}

func breaksBefore(prev, cur, after rune) bool {
	switch {
	case unicode.IsDigit(prev) != unicode.IsDigit(cur):
		return true
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(after):
		return true
	}
	return false
}

// ordinalAt reports whether rs[i:i+2] is the suffix of an ordinal number:
// "st", "nd" or "rd" after 1, 2 or 3, "th" after any other digit, in one
// case and not followed by more letters of that case.
func ordinalAt(rs []rune, i int) bool {
	if i == 0 || i+1 >= len(rs) || !unicode.IsDigit(rs[i-1]) {
		return false
	}
	a, b := rs[i], rs[i+1]
	var sameCase func(rune) bool
	switch {
	case unicode.IsLower(a) && unicode.IsLower(b):
		sameCase = unicode.IsLower
	case unicode.IsUpper(a) && unicode.IsUpper(b):
		sameCase = unicode.IsUpper
	default:
		return false
	}
	if i+2 < len(rs) {
		if after := rs[i+2]; sameCase(after) || unicode.IsDigit(after) {
			return false
		}
	}

	switch suffix := strings.ToLower(string([]rune{a, b})); rs[i-1] {
	case '1':
		return suffix == "st"
	case '2':
		return suffix == "nd"
	case '3':
		return suffix == "rd"
	default:
		return suffix == "th"
	}
}

func next(rs []rune, i int) rune {
	for j := i + 1; j < len(rs); j++ {
		if rs[j] != '\'' && rs[j] != '’' {
			return rs[j]
		}
	}
	return 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// deburr strips combining marks. Transformers carry state, so each call
// builds its own chain.
func deburr(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
