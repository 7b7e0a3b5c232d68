// Package pipeline runs the OpenAPI to MCP project phases in order and
// accumulates their outcomes.
package pipeline

import "fmt"

// Result is the outcome of one phase. Results are values: phases build
// their own and Combine merges them.
type Result struct {
	Phase        string   `json:"phase"`
	Success      bool     `json:"success"`
	Critical     bool     `json:"critical"`
	FilesCreated []string `json:"files_created"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// OK is a successful critical phase result.
func OK(phase string, files []string, warnings ...string) Result {
	return Result{
		Phase:        phase,
		Success:      true,
		Critical:     true,
		FilesCreated: nonNil(files),
		Errors:       []string{},
		Warnings:     nonNil(warnings),
	}
}

// Failed is a failed critical phase result.
func Failed(phase string, errs ...string) Result {
	return Result{
		Phase:        phase,
		Critical:     true,
		FilesCreated: []string{},
		Errors:       nonNil(errs),
		Warnings:     []string{},
	}
}

// Optional marks r as non-critical: its failure does not fail the run.
func (r Result) Optional() Result {
	r.Critical = false
	return r
}

// WithWarnings returns r with more warnings appended.
func (r Result) WithWarnings(w ...string) Result {
	r.Warnings = append(append([]string{}, r.Warnings...), w...)
	return r
}

// Combine merges results in order. Files, errors and warnings are
// concatenated; the combination succeeds when every critical result does.
// A failed non-critical result contributes its errors as warnings.
func Combine(results ...Result) Result {
	out := Result{
		Phase:        "combined",
		Success:      true,
		Critical:     true,
		FilesCreated: []string{},
		Errors:       []string{},
		Warnings:     []string{},
	}
	for _, r := range results {
		out.FilesCreated = append(out.FilesCreated, r.FilesCreated...)
		if r.Critical || r.Success {
			out.Errors = append(out.Errors, r.Errors...)
		} else {
			for _, e := range r.Errors {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s skipped: %s", r.Phase, e))
			}
		}
		out.Warnings = append(out.Warnings, r.Warnings...)
		if r.Critical && !r.Success {
			out.Success = false
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
