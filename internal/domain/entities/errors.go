package entities

import (
	"fmt"
	"time"
)

// DuplicateArtifactError is returned when a binary with the same hash is
// already stored and overwrite was not requested
type DuplicateArtifactError struct {
	Hash        ContentHash
	ExistingDir string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact %s already stored at %s (overwrite not requested)", e.Hash, e.ExistingDir)
}

// UnsupportedTensorTypeError is returned for a tensor that is not dense, tabular or a row sequence
type UnsupportedTensorTypeError struct {
	Shape string
}

func (e *UnsupportedTensorTypeError) Error() string {
	return fmt.Sprintf("unsupported tensor type: %s", e.Shape)
}

// AnalyzerInvocationError wraps a failed or timed out analyzer subprocess
type AnalyzerInvocationError struct {
	Binary   string
	ExitCode int
	TimedOut bool
	Timeout  time.Duration
	Stderr   string
	Err      error
}

func (e *AnalyzerInvocationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("analyzer timed out after %v on %s", e.Timeout, e.Binary)
	}
	msg := fmt.Sprintf("analyzer failed on %s (exit %d)", e.Binary, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnalyzerInvocationError) Unwrap() error {
	return e.Err
}

// MalformedMetadataError marks a store record whose metadata is missing or corrupt
type MalformedMetadataError struct {
	Dir string
	Err error
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed metadata in %s: %v", e.Dir, e.Err)
}

func (e *MalformedMetadataError) Unwrap() error {
	return e.Err
}

// ParseWarning describes a report line that was skipped. Never fatal.
type ParseWarning struct {
	Line   int
	Text   string
	Reason string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s: %q", w.Line, w.Reason, w.Text)
}
