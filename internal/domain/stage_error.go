package domain

import (
	"fmt"
	"strings"
)

// StageError carries the pipeline stage and operation that failed alongside
// one of the failure kind markers.
type StageError struct {
	Kind    error
	Stage   string
	Op      string
	Message string
	Err     error
}

// NewStageError tags err with a failure kind marker.
func NewStageError(kind error, stage, op, message string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Op: op, Message: message, Err: err}
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Stage, e.Op, e.Message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "stage failure"
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, detail)
}

// Is lets errors.Is match on the kind marker as well as the wrapped cause.
func (e *StageError) Is(target error) bool {
	return e != nil && e.Kind != nil && e.Kind == target
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
