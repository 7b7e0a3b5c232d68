package clientgen

// Kind classifies generator failures.
type Kind string

const (
	// ToolNotFound means the pre-flight version check failed; no generation
	// was attempted.
	ToolNotFound Kind = "ToolNotFound"
	Timeout      Kind = "Timeout"
	NonZeroExit  Kind = "NonZeroExit"
	ExecFailed   Kind = "ExecFailed"
)

// Error is a generator failure. Output holds the tool's combined stdout and
// stderr verbatim, which is the only diagnostic the tool offers.
type Error struct {
	Kind    Kind
	Message string
	Output  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Output
}

func (e *Error) Unwrap() error { return e.Cause }
