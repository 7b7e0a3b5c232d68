package clientgen

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

type execInput struct {
	Command string
	Args    []string
	WorkDir string
	Timeout time.Duration
}

type execOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error // set when the process could not run or was killed
}

// combined returns stdout followed by stderr.
func (o execOutput) combined() string {
	switch {
	case o.Stdout == "":
		return o.Stderr
	case o.Stderr == "":
		return o.Stdout
	default:
		return o.Stdout + "\n" + o.Stderr
	}
}

// runFunc executes a command; tests replace it.
type runFunc func(ctx context.Context, in execInput) execOutput

func execute(ctx context.Context, in execInput) execOutput {
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, in.Command, in.Args...)
	if in.WorkDir != "" {
		cmd.Dir = in.WorkDir
	}
	// Child processes may keep the pipes open after the tool is killed.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	out := execOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		out.TimedOut = true
		out.Err = ctx.Err()
		return out
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
			out.Err = err
		}
	}
	return out
}
