package thinkdemux

import (
	"regexp"
	"strings"
)

// stripLiterals are cosmetic markers stripped verbatim from user-visible
// text, in order, per §4.7.
var stripLiterals = []string{
	`\boxed{`,
	`\text{`,
	`\<strong>`,
	`\</strong>`,
	"**Final Answer:**",
	"**",
}

// metaPrefixes are meta-commentary openers elided up to the next blank line.
var metaPrefixes = []string{
	"The user's input is",
	"The appropriate response",
	"Final Answer:",
	"In response to",
	"I'll respond with",
}

var blankLineRun = regexp.MustCompile(`\n{3,}`)

// CleanupText applies the cosmetic-cleanup pass to model output destined
// for a partial frame or the cache: strip known LaTeX/markdown artifacts,
// elide a leading meta-commentary paragraph, collapse blank-line runs, and
// trim trailing whitespace.
func CleanupText(s string) string {
	for _, lit := range stripLiterals {
		s = strings.ReplaceAll(s, lit, "")
	}
	s = elideMetaPrefix(s)
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimRight(s, " \t\r\n")
}

// elideMetaPrefix drops a leading meta-commentary paragraph (up to the next
// blank line) when the trimmed text opens with one of metaPrefixes.
func elideMetaPrefix(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	for _, prefix := range metaPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			if idx := strings.Index(trimmed, "\n\n"); idx >= 0 {
				return trimmed[idx+2:]
			}
			return ""
		}
	}
	return s
}
