package core

// # Error Codes Reference
//
// This file defines user-facing error messages with codes for support
// reference. Operators and dataset producers can quote the code when
// reporting a problem.
//
// Classification happens in two passes. First the error chain is checked
// with errors.Is / errors.As against the package sentinels and error types.
// If nothing matches, the message is matched case-insensitively against
// known collaborator patterns. The first hit wins.
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found
//	        Action: Check the dataset id
//	DS002 - Robot type not found
//	        Action: Register the robot type before creating the dataset
//	DS003 - Skill not found
//	        Action: Register the skill or omit it
//	DS004 - Wrong lifecycle state for the operation
//	        Action: Check the dataset status; re-create it to upload again
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Dataset failed validation (list of problems)
//	VAL002 - Manifest has missing or invalid fields
//	VAL003 - Manifest missing
//	         Patterns: "missing required manifest"
//	VAL004 - Manifest is not valid JSON
//	         Patterns: "invalid manifest json"
//
// # Storage Errors (STO001-STO099)
//
//	STO001 - Storage not configured or unreachable
//	STO002 - Bucket missing
//	         Patterns: "nosuchbucket", "bucket does not exist"
//	STO003 - Access denied by storage
//	         Patterns: "access denied", "accessdenied"
//
// # Broker Errors (BRK001-BRK099)
//
//	BRK001 - Queue not connected
//	BRK002 - Queue rejected the job
//	         Patterns: "publish validation job"
//
// # Progress Store Errors (KV001-KV099)
//
//	KV001 - Progress store unreachable
//	        Patterns: "redis", "progress store"
//
// # Processing Errors (ERR001-ERR099)
//
//	ERR001 - Internal failure during validation
//	ERR002 - Too many validations running
//	ERR003 - Request was cancelled
//	         Patterns: "context canceled"
//	ERR004 - Request timed out
//	         Patterns: "context deadline exceeded", "timeout"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorTarget maps a sentinel in the error chain to a user message.
type errorTarget struct {
	target error
	msg    UserMessage
}

// errorTargets is checked in order, so specific causes precede the
// categories they wrap.
var errorTargets = []errorTarget{
	{ErrDatasetNotFound, UserMessage{
		Message: "Dataset not found",
		Action:  "Check the dataset id",
		Code:    "DS001",
	}},
	{ErrRobotTypeNotFound, UserMessage{
		Message: "Robot type not found",
		Action:  "Register the robot type before creating the dataset",
		Code:    "DS002",
	}},
	{ErrSkillNotFound, UserMessage{
		Message: "Skill not found",
		Action:  "Register the skill or omit it",
		Code:    "DS003",
	}},
	{ErrNotFound, UserMessage{
		Message: "Dataset not found",
		Action:  "Check the dataset id",
		Code:    "DS001",
	}},
	{ErrInvalidState, UserMessage{
		Message: "Dataset is not in the right state for this operation",
		Action:  "Check the dataset status; create a new dataset to upload again",
		Code:    "DS004",
	}},
	{ErrStorageUnavailable, UserMessage{
		Message: "Object storage is not available",
		Action:  "Please try again in a few moments",
		Code:    "STO001",
	}},
	{ErrBrokerUnavailable, UserMessage{
		Message: "Validation queue is not connected",
		Action:  "Please try again in a few moments",
		Code:    "BRK001",
	}},
	{ErrUnavailable, UserMessage{
		Message: "A required service is not available",
		Action:  "Please try again in a few moments",
		Code:    "STO001",
	}},
	{ErrTooManyValidations, UserMessage{
		Message: "Too many validations are running",
		Action:  "Please wait a moment and try again",
		Code:    "ERR002",
	}},
	{ErrInternal, UserMessage{
		Message: "Validation failed unexpectedly",
		Action:  "Re-upload the dataset or contact support",
		Code:    "ERR001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "ERR003",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again later",
		Code:    "ERR004",
	}},
}

var (
	validationFailedMessage = UserMessage{
		Message: "Dataset failed validation",
		Action:  "Review the listed problems and re-upload",
		Code:    "VAL001",
	}
	fieldErrorsMessage = UserMessage{
		Message: "Manifest has missing or invalid fields",
		Action:  "Fix the listed fields in meta/info.json",
		Code:    "VAL002",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages
// for errors that arrive from collaborators without a sentinel.
// Patterns are matched using strings.Contains; the first match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Manifest problems reported as plain text (VAL003-VAL004)
	// =========================================================================
	{
		pattern: "missing required manifest",
		msg: UserMessage{
			Message: "Dataset has no manifest",
			Action:  "Upload meta/info.json alongside the episode data",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid manifest json",
		msg: UserMessage{
			Message: "Manifest is not valid JSON",
			Action:  "Check meta/info.json for syntax errors",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// Storage (STO002-STO003)
	// =========================================================================
	{
		pattern: "nosuchbucket",
		msg: UserMessage{
			Message: "Storage bucket does not exist",
			Action:  "Contact an administrator to create the bucket",
			Code:    "STO002",
		},
	},
	{
		pattern: "bucket does not exist",
		msg: UserMessage{
			Message: "Storage bucket does not exist",
			Action:  "Contact an administrator to create the bucket",
			Code:    "STO002",
		},
	},
	{
		pattern: "access denied",
		msg: UserMessage{
			Message: "Storage refused access",
			Action:  "Contact an administrator to check storage credentials",
			Code:    "STO003",
		},
	},
	{
		pattern: "accessdenied",
		msg: UserMessage{
			Message: "Storage refused access",
			Action:  "Contact an administrator to check storage credentials",
			Code:    "STO003",
		},
	},

	// =========================================================================
	// Broker and progress store (BRK002, KV001)
	// =========================================================================
	{
		pattern: "publish validation job",
		msg: UserMessage{
			Message: "Validation queue rejected the job",
			Action:  "Please try again",
			Code:    "BRK002",
		},
	},
	{
		pattern: "progress store",
		msg: UserMessage{
			Message: "Progress is temporarily unavailable",
			Action:  "Poll again shortly",
			Code:    "KV001",
		},
	},
	{
		pattern: "redis",
		msg: UserMessage{
			Message: "Progress is temporarily unavailable",
			Action:  "Poll again shortly",
			Code:    "KV001",
		},
	},

	// =========================================================================
	// Request lifecycle (ERR003-ERR004)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "ERR003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "ERR004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "ERR004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := svc.CompleteUpload(ctx, id)
//	msg := MapError(err)
//	// msg.Code == "DS004" when the dataset already left uploading
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	var fe FieldErrors
	if errors.As(err, &fe) {
		return fieldErrorsMessage
	}

	var vf *ValidationFailedError
	if errors.As(err, &vf) {
		return validationFailedMessage
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}
