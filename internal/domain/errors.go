package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrEmbedderMismatch = errors.New("embedder does not match the one used to build the index")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrNoGenerator      = errors.New("no generator configured")
)

// UnsupportedFormatError reports a file type no extractor handles.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: only pdf, docx and txt are accepted", e.Ext)
}

// ExtractionError reports a corrupt or unreadable document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ClassificationError aborts tagging of a clause.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string { return "classify clause: " + e.Err.Error() }

func (e *ClassificationError) Unwrap() error { return e.Err }

// ScoringError aborts tagging of a clause.
type ScoringError struct {
	Err error
}

func (e *ScoringError) Error() string { return "score clause: " + e.Err.Error() }

func (e *ScoringError) Unwrap() error { return e.Err }

// GenerationError is absorbed by the tagger into an error marker; it is only returned to
// callers from answer mode.
type GenerationError struct {
	Task string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Task, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ClauseError names the clause whose tagging failed and aborted the batch.
type ClauseError struct {
	Index int
	Err   error
}

func (e *ClauseError) Error() string {
	return fmt.Sprintf("clause %d: %v", e.Index, e.Err)
}

func (e *ClauseError) Unwrap() error { return e.Err }

// IndexBuildError reports a failed build; the session must be rebuilt from scratch.
type IndexBuildError struct {
	SessionID string
	Err       error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("build index for session %q: %v", e.SessionID, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// UninitializedSessionError reports a query against a session with no built index.
type UninitializedSessionError struct {
	SessionID string
}

func (e *UninitializedSessionError) Error() string {
	return fmt.Sprintf("session %q has no index; build vectors first", e.SessionID)
}
