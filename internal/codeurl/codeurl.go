// Package codeurl extracts GitHub repository links from paper abstracts.
package codeurl

import (
	"regexp"
	"strings"
)

// githubURLPattern matches GitHub repository URLs of the form
// https://github.com/owner/repo, with an optional www prefix.
var githubURLPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/[\w\-.]+/[\w\-.]+`)

// Extract returns the first GitHub repository URL found in the given text.
// Trailing punctuation commonly adjacent to URLs in prose is stripped from
// the match. The second return value reports whether a URL was found.
func Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	match := githubURLPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.TrimRight(match, ".,;:)"), true
}
