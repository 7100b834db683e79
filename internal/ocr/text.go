package ocr

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls text post-processing behavior.
type CleanOptions struct {
	NormalizeForm      string            // "NFC" (default), "NFKC", "NFD", "NFKD"
	CollapseWhitespace bool              // collapse runs of whitespace to a single space
	Trim               bool              // trim leading/trailing whitespace
	RemoveControlChars bool              // remove non-printable control characters
	RemoveZeroWidth    bool              // remove zero-width spaces/joiners
	ReplaceMap         map[string]string // replacements applied after normalization
}

// DefaultCleanOptions returns the cleanup applied to every extracted field.
// NFKC folds full-width digits and ligatures that recognisers emit for
// printed dates.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFKC",
		CollapseWhitespace: true,
		Trim:               true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
		ReplaceMap:         DefaultReplaceMap(),
	}
}

// Clean applies normalization and cleanup to recognised text.
func Clean(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	s = normalize(s, opts.NormalizeForm)
	if opts.RemoveZeroWidth {
		s = removeZeroWidth(s)
	}
	if opts.RemoveControlChars {
		s = removeControlChars(s)
	}
	if len(opts.ReplaceMap) > 0 {
		s = applyReplaceMap(s, opts.ReplaceMap)
	}
	if opts.CollapseWhitespace {
		s = wsRe.ReplaceAllString(s, " ")
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

func normalize(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFC":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

// DefaultReplaceMap maps typographic punctuation to ASCII.
func DefaultReplaceMap() map[string]string {
	return map[string]string{
		"\u2018": "'",
		"\u2019": "'",
		"\u201C": "\"",
		"\u201D": "\"",
		"\u201E": "\"",
		"\u2010": "-",
		"\u2012": "-",
		"\u2013": "-",
		"\u2014": "-",
		"\u2212": "-",
		"\u00A0": " ",
		"\u2009": " ",
	}
}

func applyReplaceMap(s string, m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// longer keys first to avoid partial overlaps
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		s = strings.ReplaceAll(s, k, m[k])
	}
	return s
}

var wsRe = regexp.MustCompile(`\s+`)

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func removeZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
