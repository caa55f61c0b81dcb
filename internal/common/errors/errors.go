// Package errors provides the structured error type shared by the HTTP API and
// the Zeebe workers, plus its mapping to HTTP statuses and BPMN errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeApplicationNotFound         ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeMeetingNotFound             ErrorCode = "MEETING_NOT_FOUND"
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeInvalidDates                ErrorCode = "INVALID_DATES"
	ErrCodeStatusNotApproved           ErrorCode = "STATUS_NOT_APPROVED"
	ErrCodeApplicationLocked           ErrorCode = "APPLICATION_LOCKED"

	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"

	ErrCodeImportParseFailed ErrorCode = "IMPORT_PARSE_FAILED"
	ErrCodeExportNoRecords   ErrorCode = "EXPORT_NO_RECORDS"

	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateInvalid        ErrorCode = "TEMPLATE_INVALID"
	ErrCodeLetterGenerationFailed ErrorCode = "LETTER_GENERATION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalServiceFailed    ErrorCode = "EXTERNAL_SERVICE_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	Err error `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// As extracts a *StandardError from anywhere in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewMeetingNotFoundError(ref string) *StandardError {
	return newError(ErrCodeMeetingNotFound, "Meeting not found", ref, false, nil)
}

func NewApplicationValidationFailedError(details string) *StandardError {
	return newError(ErrCodeApplicationValidationFailed, "Application data validation failed", details, false, nil)
}

func NewInvalidDatesError(err error) *StandardError {
	return newError(ErrCodeInvalidDates, "Application dates are inconsistent", err.Error(), false, err)
}

func NewStatusNotApprovedError(applicationID, status string) *StandardError {
	return newError(ErrCodeStatusNotApproved, "Visa letters are only available for approved applications",
		fmt.Sprintf("applicationId: %s, status: %s", applicationID, status), false, nil)
}

func NewApplicationLockedError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationLocked, "Application can no longer be edited by its owner",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Access denied", details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Authentication failed", details, false, nil)
}

func NewRateLimitedError(details string) *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", details, true, nil)
}

func NewImportParseFailedError(err error) *StandardError {
	return newError(ErrCodeImportParseFailed, "Uploaded file could not be parsed", err.Error(), false, err)
}

func NewExportNoRecordsError(meetingID string) *StandardError {
	return newError(ErrCodeExportNoRecords, "No applications found for this meeting",
		fmt.Sprintf("meetingId: %s", meetingID), false, nil)
}

func NewTemplateNotFoundError(path string, err error) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Letter template not found",
		fmt.Sprintf("path: %s", path), false, err)
}

func NewTemplateInvalidError(err error) *StandardError {
	return newError(ErrCodeTemplateInvalid, "Letter template could not be parsed", err.Error(), false, err)
}

func NewLetterGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeLetterGenerationFailed, "Visa letter generation failed", err.Error(), true, err)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true, err)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceFailed, fmt.Sprintf("%s request failed", service), err.Error(), true, err)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", err.Error(), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion
// ==========================

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeApplicationValidationFailed, ErrCodeInvalidDates, ErrCodeImportParseFailed:
		return http.StatusBadRequest
	case ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeApplicationNotFound, ErrCodeMeetingNotFound, ErrCodeExportNoRecords:
		return http.StatusNotFound
	case ErrCodeStatusNotApproved, ErrCodeApplicationLocked:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeExternalServiceFailed, ErrCodeSearchQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalServiceFailed,
		ErrCodeSearchQueryFailed:
		return 3
	case ErrCodeLetterGenerationFailed:
		return 2
	default:
		return 0 // business errors are thrown, never retried
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "LETTER"):
		return "LETTER"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "IMPORT") || strings.Contains(codeStr, "EXPORT"):
		return "TRANSFER"
	case strings.Contains(codeStr, "AUTH") || codeStr == string(ErrCodeForbidden):
		return "AUTH"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
