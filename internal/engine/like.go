package engine

import (
	"regexp"
	"strings"
)

// likeToRegexp translates a SQL LIKE pattern into an anchored regular
// expression: `%` becomes `.*`, `_` becomes `.`, and every other regex
// metacharacter is escaped.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}
