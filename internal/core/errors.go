package core

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class in the error taxonomy.
type Kind string

const (
	// Input errors.
	KindInvalidRequest    Kind = "InvalidRequest"
	KindKeywordEmpty      Kind = "KeywordEmpty"
	KindNoFeedsConfigured Kind = "NoFeedsConfigured"
	KindConfigError       Kind = "ConfigError"

	// Transient I/O errors.
	KindNetworkError Kind = "NetworkError"
	KindTimeout      Kind = "Timeout"
	KindHTTPError    Kind = "HTTPError"
	KindRateLimited  Kind = "RateLimited"

	// Permanent I/O errors.
	KindNotFound Kind = "NotFound"

	// Content errors.
	KindParseError          Kind = "ParseError"
	KindCharsetUnresolvable Kind = "CharsetUnresolvable"
	KindBodyTooShort        Kind = "BodyTooShort"
	KindUnparseable         Kind = "Unparseable"

	// LLM errors.
	KindLLMUnavailable Kind = "LLMUnavailable"
	KindSummaryInvalid Kind = "SummaryInvalid"
	KindInputTooLarge  Kind = "InputTooLarge"

	// Persistence.
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindDuplicateIgnored Kind = "DuplicateIgnored"

	// Aggregate outcomes.
	KindNoResults      Kind = "NoResults"
	KindPartialResults Kind = "PartialResults"

	// Mail dispatch.
	KindMailError Kind = "MailError"
)

// Pipeline stage names used in StageError.Stage and log fields.
const (
	StageKeywords  = "keywords"
	StageFeed      = "feed"
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StagePersist   = "persist"
	StageMail      = "mail"
)

// PipelineError is the error value carried through the pipeline. Message is a
// safe user-facing string; Err holds the internal cause for logging only.
type PipelineError struct {
	Kind    Kind   // Failure class
	Stage   string // Pipeline stage, empty for request-level errors
	URL     string // Offending URL, empty when not applicable
	Status  int    // HTTP status for KindHTTPError, zero otherwise
	Message string // Safe user-facing message
	Err     error  // Wrapped cause
}

func (e *PipelineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is makes errors.Is match on the Kind of a target *PipelineError.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind
	}
	return false
}

// NewError builds a PipelineError with just a kind and a safe message.
func NewError(kind Kind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// WrapError attaches a kind and safe message to an underlying cause.
func WrapError(kind Kind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// HTTPStatusError builds an HTTPError carrying the response status.
func HTTPStatusError(status int, message string) *PipelineError {
	return &PipelineError{Kind: KindHTTPError, Status: status, Message: message}
}

// KindOf extracts the Kind from err, unwrapping as needed. Errors that carry
// no PipelineError yield the empty Kind.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Transient reports whether err is worth retrying: network failures,
// timeouts, rate limits and 5xx responses.
func Transient(err error) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case KindNetworkError, KindRateLimited, KindLLMUnavailable:
		return true
	case KindTimeout:
		// A blown per-call deadline may succeed on retry; the caller's ctx
		// still bounds the total budget.
		return true
	case KindHTTPError:
		return pe.Status == 429 || pe.Status >= 500
	}
	return false
}

// StageError is the JSON shape of one collected per-item failure.
type StageError struct {
	Stage   string `json:"stage"`          // Pipeline stage that failed
	URL     string `json:"url,omitempty"`  // Offending URL, when applicable
	Kind    Kind   `json:"kind"`           // Failure class
	Message string `json:"message"`        // Safe user-facing message
}

// ToStageError converts err into the collectible response shape. The stage and
// url arguments win over whatever the error itself carries.
func ToStageError(stage, url string, err error) StageError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		se := StageError{Stage: stage, URL: url, Kind: pe.Kind, Message: pe.Message}
		if se.Stage == "" {
			se.Stage = pe.Stage
		}
		if se.URL == "" {
			se.URL = pe.URL
		}
		if se.Message == "" {
			se.Message = string(pe.Kind)
		}
		return se
	}
	return StageError{Stage: stage, URL: url, Kind: KindNetworkError, Message: "request failed"}
}
