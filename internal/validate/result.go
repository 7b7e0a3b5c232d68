// Package validate checks OpenAPI documents before generation and generated
// projects after it. Validators never fail: every problem becomes an entry in
// one of the three lists of a Result.
package validate

import "fmt"

// Result is the outcome of one validation pass.
type Result struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

type collector struct {
	errors      []string
	warnings    []string
	suggestions []string
}

func (c *collector) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *collector) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *collector) suggest(s string) { c.suggestions = append(c.suggestions, s) }

func (c *collector) result() Result {
	return Result{
		IsValid:     len(c.errors) == 0,
		Errors:      nonNil(c.errors),
		Warnings:    nonNil(c.warnings),
		Suggestions: nonNil(c.suggestions),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
