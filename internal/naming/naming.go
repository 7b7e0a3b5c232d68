// Package naming turns free-form API names into identifiers usable for tools,
// services, Python modules and project directories.
package naming

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymEnd    = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	spaceOrHyphen = regexp.MustCompile(`[\s\-]+`)
	nonIdentChar  = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Normalize converts s into lowercase_with_underscores form:
//
//	camelCase boundaries become separators, whitespace and hyphens become
//	underscores, any other non-identifier character becomes an underscore,
//	runs of underscores collapse and leading/trailing ones are trimmed.
//
// Normalize is idempotent. The result may be empty.
func Normalize(s string) string {
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = spaceOrHyphen.ReplaceAllString(s, "_")
	s = nonIdentChar.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// Underscore splits acronym runs the way openapi-generator names Python
// methods before normalizing, so "getHTTPStatus" becomes "get_http_status"
// where Normalize gives "get_httpstatus".
func Underscore(s string) string {
	return Normalize(acronymEnd.ReplaceAllString(s, "${1}_${2}"))
}

// Sanitize normalizes name and applies a fallback for empty results and a
// prefix for results that begin with a digit.
func Sanitize(name, fallback, digitPrefix string) string {
	n := Normalize(name)
	if n == "" {
		return fallback
	}
	if n[0] >= '0' && n[0] <= '9' {
		return digitPrefix + n
	}
	return n
}

// Snake is Normalize under the name templates use.
func Snake(s string) string { return Normalize(s) }

// Kebab is Normalize with dashes instead of underscores.
func Kebab(s string) string { return strings.ReplaceAll(Normalize(s), "_", "-") }

// Pascal renders s as PascalCase, e.g. "pet store" -> "PetStore".
func Pascal(s string) string {
	parts := strings.Split(Normalize(s), "_")
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(caser.String(p))
	}
	return b.String()
}

// ErrEmptyProjectName is returned when a project name has no usable characters.
var ErrEmptyProjectName = errors.New("project name must contain alphanumeric characters")

// ProjectName lowercases name and joins its alphanumeric runs with dashes:
// "My API Server" -> "my-api-server".
func ProjectName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("project name cannot be empty")
	}
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "", ErrEmptyProjectName
	}
	return strings.Join(fields, "-"), nil
}

// ServiceName derives the Python-facing service identifier from a project name.
func ServiceName(name string) string {
	return Sanitize(name, "api_service", "service_")
}
