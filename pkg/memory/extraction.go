package memory

import (
	"regexp"
	"strings"
)

var (
	prefRegex                = regexp.MustCompile(`(?i)\b(i (?:really )?(?:like|love|prefer|hate|dislike)\b[^.!?\n]*)`)
	identityRegex            = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([A-Za-z0-9 _\-]{2,50})`)
	rememberRegex            = regexp.MustCompile(`(?i)\b(?:please\s+)?(?:remember|note)\s+(?:that\s+)?([^.!?\n]{4,180})`)
	firstPersonVerbFactRegex = regexp.MustCompile(`(?i)\b(i (?:am|have|use|work on|work with|build|maintain|live in|need|want|prefer|like|love|hate|dislike|own|run|study)\b[^.!?\n]{4,180})`)
	questionLeadRegex        = regexp.MustCompile(`(?i)^\s*(?:what|why|how|when|where|who|can|could|would|do|does|did|is|are|am|if|whether)\b`)
	hedgedLeadRegex          = regexp.MustCompile(`(?i)^i (?:think|guess|wonder|hope|suppose|feel)\b`)
	sentenceSplitRegex       = regexp.MustCompile(`[.!?\n;]+`)
)

const maxFactsPerText = 8

// ExtractFactSignals pulls durable first-person statements out of user text.
// Questions and hedged statements yield nothing.
func ExtractFactSignals(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	seen := map[string]struct{}{}
	out := []string{}
	add := func(value string) {
		value = normalizeFactPhrase(value)
		if value == "" || hedgedLeadRegex.MatchString(value) {
			return
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}

	for _, sentence := range sentenceSplitRegex.Split(content, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" || questionLeadRegex.MatchString(sentence) {
			continue
		}
		if m := identityRegex.FindStringSubmatch(sentence); len(m) >= 2 {
			add("User's name is " + strings.TrimSpace(m[1]))
			continue
		}
		if m := rememberRegex.FindStringSubmatch(sentence); len(m) >= 2 {
			add(m[1])
			continue
		}
		if m := prefRegex.FindStringSubmatch(sentence); len(m) >= 2 {
			add(m[1])
			continue
		}
		if m := firstPersonVerbFactRegex.FindStringSubmatch(sentence); len(m) >= 2 {
			add(m[1])
		}
	}

	if len(out) > maxFactsPerText {
		out = out[:maxFactsPerText]
	}
	return out
}

func normalizeFactPhrase(in string) string {
	in = strings.Trim(strings.TrimSpace(in), " .,!?:;\"'")
	if len(in) < 2 {
		return ""
	}
	if clipped, cut := clipRunes(in, 180); cut {
		in = strings.TrimSpace(clipped)
	}
	return in
}

// clipRunes keeps the first n characters of s and reports whether anything
// was cut.
func clipRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
