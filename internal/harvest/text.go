package harvest

import (
	"net/url"
	"strings"
	"unicode"
)

// clean turns element text into a single trimmed line. Fields also splits
// on no-break spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "‟", `"`, "〝", `"`, "〞", `"`,
	"‘", "'", "’", "'", "‛", "'", "‚", "'", "‹", "'", "›", "'",
)

func sanitizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// guessNameFromURL builds a display name from a profile slug such as
// /in/jane-doe-1a2b3c, dropping the parts that contain digits.
func guessNameFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := u.Path
	if idx := strings.Index(seg, "/in/"); idx >= 0 {
		seg = seg[idx+len("/in/"):]
	}
	seg = strings.Trim(seg, "/")
	if j := strings.Index(seg, "/"); j >= 0 {
		seg = seg[:j]
	}
	if seg == "" {
		return ""
	}

	kept := make([]string, 0, 4)
	for _, p := range strings.Split(seg, "-") {
		p = strings.TrimSpace(p)
		if p == "" || hasDigit(p) {
			continue
		}
		kept = append(kept, p)
	}
	return toTitleCase(strings.Join(kept, " "))
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

var lowerParticles = map[string]bool{
	"de": true, "da": true, "do": true, "dos": true, "das": true, "e": true,
	"van": true, "von": true, "der": true,
}

func toTitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if i > 0 && lowerParticles[w] {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// dumpName derives a file name for a page dump from its URL.
func dumpName(raw string) string {
	name := raw
	if u, err := url.Parse(raw); err == nil {
		name = strings.Trim(u.Path, "/")
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
	if name == "" {
		name = "page"
	}
	return name + ".html"
}
