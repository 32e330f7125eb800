package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRemoteUnavailable = errors.New("remote feedback source unavailable")
	ErrRunInProgress     = errors.New("ingestion run already in progress")
	ErrMissingAPIKey     = errors.New("analysis API key is required")
	// ErrNotAttempted marks a classification that was never sent.
	ErrNotAttempted = errors.New("classification not attempted")
)
