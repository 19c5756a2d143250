// Package cmdrun runs external tools (yt-dlp, ffmpeg, whisper, pyannote) and
// captures their output.
package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Result is one finished process execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec executes commands via os/exec. Env entries are appended to the
// current process environment.
type Exec struct {
	Env []string
}

func (r Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, &Error{Name: name, Result: res, Err: err}
	}
	return res, nil
}

// Error is a failed execution. Its message carries the tail of stderr so
// that callers can classify the failure by its text.
type Error struct {
	Name   string
	Result Result
	Err    error
}

func (e *Error) Error() string {
	msg := Tail(e.Result.Stderr, 8)
	if msg == "" {
		msg = Tail(e.Result.Stdout, 4)
	}
	if msg == "" {
		return fmt.Sprintf("%s exited %d: %v", e.Name, e.Result.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Name, e.Result.ExitCode, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Tail returns the last n non-empty lines of s joined by " | ".
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append(out, l)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return strings.Join(out, " | ")
}
