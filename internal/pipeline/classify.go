package pipeline

import (
	"context"
	"errors"
	"strings"
)

type Verdict int

const (
	// VerdictTerminal fails the video.
	VerdictTerminal Verdict = iota
	// VerdictRetryFallback retries the chunk once on the fallback engine.
	VerdictRetryFallback
)

func (v Verdict) String() string {
	if v == VerdictRetryFallback {
		return "retry_fallback"
	}
	return "terminal"
}

// hardwareFaultSignatures are lower-cased fragments of accelerator failures
// that a CPU or remote engine does not share.
var hardwareFaultSignatures = []string{
	"cuda out of memory",
	"cuda error",
	"cuda failed with error",
	"cublas_status_",
	"cudnn_status_",
	"no cuda-capable device",
	"cuda driver version is insufficient",
	"device-side assert triggered",
	"an illegal memory access was encountered",
	"nvml",
	"driver/library version mismatch",
	"libcublas",
	"libcudnn",
	"mps backend",
}

// ClassifyTranscriptionFailure maps a raw engine failure to a verdict.
// Cancellation and deadline errors are never retried.
func ClassifyTranscriptionFailure(err error) Verdict {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return VerdictTerminal
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range hardwareFaultSignatures {
		if strings.Contains(msg, sig) {
			return VerdictRetryFallback
		}
	}
	return VerdictTerminal
}
