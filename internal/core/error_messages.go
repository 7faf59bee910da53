// Package core provides the session layer over the dataset engine.
//
// # Error Codes Reference
//
// User-facing errors carry a code that can be quoted to support staff.
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Parse error: The file could not be read as CSV
//	        Action: Check the delimiter and that every row has the same number of fields
//	        Patterns: "parse error"
//
//	DS002 - Schema mismatch: The dataset changed since it was last viewed
//	        Action: Reload the dashboard and try again
//	        Patterns: "schema mismatch"
//
//	DS003 - Invalid operation: The operation does not fit this dataset
//	        Action: Check the column name and operation parameters
//	        Patterns: "invalid operation"
//
// # Cleaning Errors (CLN001-CLN099)
//
//	CLN001 - All columns removed: The operation would remove every column
//	         Action: Impute missing values or drop rows instead
//	         Patterns: "all columns removed"
//
// # Chart Errors (CHT001-CHT099)
//
//	CHT001 - Invalid chart: The selected columns do not fit this chart type
//	         Action: Pick numeric columns matching the chart's requirements
//	         Patterns: "invalid chart request"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: The dataset session has expired
//	         Action: Upload the file again
//	         Patterns: "session not found"
//
// # File and Upload Errors
//
//	FILE001 - File too large          Patterns: "file too large"
//	FILE002 - Not a CSV file          Patterns: "only csv files"
//	FILE004 - No file                 Patterns: "no file provided"
//	FILE005 - Empty file              Patterns: "empty file"
//	UPL002  - System busy             Patterns: "too many uploads"
//	UPL004  - Request cancelled       Patterns: "context canceled"
//	UPL005  - Request timeout         Patterns: "context deadline exceeded"
//	RATE001 - Rate limited            Patterns: "rate limit"
//	REQ001  - Malformed request       Patterns: "invalid request"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the application log for the
// technical error, which is logged with the request id.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Support reference
	Detail  string `json:"detail,omitempty"` // Engine explanation, safe to show
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Dataset engine
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "The file could not be read as CSV",
			Action:  "Check the delimiter and that every row has the same number of fields",
			Code:    "DS001",
		},
	},
	{
		pattern: "schema mismatch",
		msg: UserMessage{
			Message: "The dataset changed since it was last viewed",
			Action:  "Reload the dashboard and try again",
			Code:    "DS002",
		},
	},
	{
		pattern: "all columns removed",
		msg: UserMessage{
			Message: "This operation would remove every column",
			Action:  "Impute missing values or drop rows instead",
			Code:    "CLN001",
		},
	},
	{
		pattern: "invalid operation",
		msg: UserMessage{
			Message: "The operation does not fit this dataset",
			Action:  "Check the column name and operation parameters",
			Code:    "DS003",
		},
	},
	{
		pattern: "invalid chart request",
		msg: UserMessage{
			Message: "The selected columns do not fit this chart type",
			Action:  "Pick columns matching the chart's requirements",
			Code:    "CHT001",
		},
	},

	// Sessions
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Dataset session not found",
			Action:  "The session may have expired. Please upload the file again",
			Code:    "SES001",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "only csv files",
		msg: UserMessage{
			Message: "Only CSV files are allowed",
			Action:  "Save the sheet as .csv and upload it again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},

	// Requests
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and parameters",
			Code:    "REQ001",
		},
	},

	// Upload pipeline
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Engine
// errors also fill Detail with their own explanation.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	msg := defaultMessage
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			msg = ep.msg
			break
		}
	}

	if detail := engineDetail(err); detail != "" {
		msg.Detail = detail
	}
	return msg
}

func engineDetail(err error) string {
	var (
		pe  *engine.ParseError
		sme *engine.SchemaMismatchError
		ioe *engine.InvalidOperationError
		ace *engine.AllColumnsRemovedError
		ice *engine.InvalidChartRequestError
	)
	switch {
	case errors.As(err, &pe):
		return pe.Error()
	case errors.As(err, &sme):
		return sme.Reason
	case errors.As(err, &ioe):
		return ioe.Reason
	case errors.As(err, &ace):
		return ace.Error()
	case errors.As(err, &ice):
		return ice.Reason
	}
	return ""
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Detail != "" {
		return fmt.Sprintf("%s: %s (Code: %s). %s", msg.Message, msg.Detail, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
