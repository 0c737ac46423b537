// Package errors provides standardized error handling for the marketing platform.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Campaign delivery
	ErrCodeCacheFetchFailed ErrorCode = "CACHE_FETCH_FAILED"
	ErrCodeCampaignNotFound ErrorCode = "CAMPAIGN_NOT_FOUND"

	// Assessment flow
	ErrCodeConfigNotFound     ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeMalformedCondition ErrorCode = "MALFORMED_CONDITION"
	ErrCodeBrokenReference    ErrorCode = "BROKEN_REFERENCE"
	ErrCodeNavigationDeadEnd  ErrorCode = "NAVIGATION_DEAD_END"
	ErrCodeSubmissionFailed   ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"

	// Refinement pipeline
	ErrCodePipelineStageFailed ErrorCode = "PIPELINE_STAGE_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCallFailed       ErrorCode = "LLM_CALL_FAILED"

	// Notifications
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is reports whether target carries the same error code. Lets callers use
// errors.Is against a constructed sentinel.
func (e *StandardError) Is(target error) bool {
	se, ok := target.(*StandardError)
	return ok && se.Code == e.Code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCacheFetchError creates a retryable campaign fetch error. Widgets fall
// back to the zone fallback; the error itself is logged, never rendered.
func NewCacheFetchError(tenantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheFetchFailed,
		Message:   "Failed to fetch campaigns for tenant",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"tenantId": tenantID},
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigNotFoundError creates a non-retryable assessment config error.
func NewConfigNotFoundError(slug string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigNotFound,
		Message:   "Assessment config not found or has no questions",
		Details:   fmt.Sprintf("slug: %s", slug),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBrokenReferenceError creates an internal, log-only reference error.
func NewBrokenReferenceError(questionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrokenReference,
		Message:   "Question reference points to a non-existent question",
		Details:   fmt.Sprintf("questionId: %s", questionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNavigationDeadEndError creates the internal dead-end marker. The
// navigator recovers by resetting the session; this never fails a request.
func NewNavigationDeadEndError(configSlug string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNavigationDeadEnd,
		Message:   "Decision tree exhausted with no result bucket",
		Details:   fmt.Sprintf("configSlug: %s", configSlug),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionError creates a retryable scoring submission error. Unlike
// navigation errors this one is surfaced to the user.
func NewSubmissionError(sessionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "Assessment submission failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"sessionId": sessionID},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreError creates a retryable session persistence error.
func NewSessionStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineStageError creates a non-retryable pipeline error. The whole
// refinement run is discarded; the caller falls back to the unrefined draft.
func NewPipelineStageError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineStageFailed,
		Message:   "Refinement pipeline stage failed",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError(stage string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM call timed out",
		Details:   fmt.Sprintf("stage: %s", stage),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send notification",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}
