package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrClaimLost          = errors.New("video claim no longer held by this worker")
	ErrInvalidExecContext = errors.New("invalid execution context for repository call")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// Pipeline failure kinds. A stage error wraps exactly one of these markers so
// callers can classify with errors.Is.
var (
	ErrExtraction             = errors.New("extraction error")
	ErrDownload               = errors.New("download error")
	ErrTranscode              = errors.New("transcode error")
	ErrTranscription          = errors.New("transcription error")
	ErrDiarization            = errors.New("diarization error")
	ErrDiarizationUnavailable = errors.New("diarization unavailable")
	ErrPersistence            = errors.New("persistence error")
)
