package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InputError indicates a missing or unreadable wordlist or input stream
	InputError ErrorCode = "INPUT_ERROR"
	// MatrixMissing indicates --precomputed was requested but no matrix file exists
	MatrixMissing ErrorCode = "MATRIX_MISSING"
	// MatrixMismatch indicates a persisted matrix does not fit the wordlist
	MatrixMismatch ErrorCode = "MATRIX_MISMATCH"
	// ClusterPayloadInvalid indicates malformed external clustering JSON
	ClusterPayloadInvalid ErrorCode = "CLUSTER_PAYLOAD_INVALID"
	// ConfigInvalid indicates an invalid configuration value
	ConfigInvalid ErrorCode = "CONFIG_ERROR"
	// NoClusterMethod indicates no clustering method was selected
	NoClusterMethod ErrorCode = "NO_CLUSTER_METHOD"
	// SynthesisDeadEnd indicates no catalog rule moved a password closer to its target
	SynthesisDeadEnd ErrorCode = "SYNTHESIS_DEAD_END"
	// PositionOverflow indicates a rule position outside the encodable 0-35 range
	PositionOverflow ErrorCode = "POSITION_OVERFLOW"
	// StorageError indicates the run history database failed
	StorageError ErrorCode = "STORAGE_ERROR"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description"`
}

// RfError represents a RuleForge error with code, message, and suggestions
type RfError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new RfError with the default suggested fixes for its code
func New(code ErrorCode, message string, cause error) *RfError {
	return &RfError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf creates a new RfError without a cause and a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RfError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *RfError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RfError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RfError) WithDetails(details interface{}) *RfError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first RfError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var rf *RfError
	if stderrors.As(err, &rf) {
		return rf.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsFatal reports whether an error with this code must stop the run.
// Dead ends and position overflows only affect a single password pair.
func IsFatal(code ErrorCode) bool {
	switch code {
	case SynthesisDeadEnd, PositionOverflow:
		return false
	default:
		return true
	}
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case ConfigInvalid, NoClusterMethod:
		return 2
	default:
		return 1
	}
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	InputError: {
		{
			Description: "Check that the wordlist path exists and is readable",
		},
	},
	MatrixMissing: {
		{
			Command:     "ruleforge matrix ${wordlist}",
			Description: "Precompute the distance matrix for this wordlist",
		},
	},
	MatrixMismatch: {
		{
			Command:     "ruleforge matrix --force ${wordlist}",
			Description: "Regenerate the stale distance matrix",
		},
	},
	ClusterPayloadInvalid: {
		{
			Command:     "ruleforge cluster --dbscan ${wordlist}",
			Description: "Produce a well-formed clustering payload",
		},
	},
	NoClusterMethod: {
		{
			Command:     "ruleforge generate --method hac",
			Description: "Select a clustering method (hac, ap, dbscan, mdbscan, external)",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
