package game

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxUsernameLength = 32

var policy = bluemonday.StrictPolicy()

// SanitizeUsername strips any HTML and surrounding whitespace from a
// display name. The result is plain text; entities the policy emits are
// decoded so "O'Brien" stays "O'Brien".
func SanitizeUsername(username string) string {
	cleaned := html.UnescapeString(policy.Sanitize(username))
	return strings.TrimSpace(cleaned)
}

func validateUsername(username string) (string, error) {
	cleaned := SanitizeUsername(username)
	if cleaned == "" || utf8.RuneCountInString(cleaned) > maxUsernameLength {
		return "", ErrInvalidUsername
	}
	return cleaned, nil
}
