package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound   = fmt.Errorf("llm provider not found")
	ErrToolNotFound       = fmt.Errorf("tool not found")
	ErrToolExecution      = fmt.Errorf("tool execution failed")
	ErrEmptyToolName      = fmt.Errorf("tool call has no function name")
	ErrPathOutsideSandbox = fmt.Errorf("path is outside sandbox boundary")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")

	// Argument decoding errors.
	ErrArgumentsRequired = fmt.Errorf("tool arguments are required")
	ErrParameterNotFound = fmt.Errorf("required parameter not found in arguments")
	ErrJSONDecode        = fmt.Errorf("could not decode tool arguments")
	ErrSchemaViolation   = fmt.Errorf("tool arguments do not match schema")

	// Agent errors.
	ErrAgentNotFound     = fmt.Errorf("agent not found")
	ErrMissingMetadata   = fmt.Errorf("agent metadata is missing required keys")
	ErrEntryPointMissing = fmt.Errorf("agent entry point is missing")

	// Resilience errors.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrServerError     = fmt.Errorf("upstream server error")

	ErrVectorStoreUnavailable = fmt.Errorf("vector store unavailable")
	ErrRegistryUnavailable    = fmt.Errorf("agent registry unavailable")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Registry.Call")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "agent", "sandbox")
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// JSONDecodeError reports tool-call arguments that no decoding strategy could
// recover. Raw is the original argument string; Offset is the byte position
// reported by the strict decoder.
type JSONDecodeError struct {
	Raw    string
	Offset int64
	Err    error
}

func (e *JSONDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %v (raw: %q)", ErrJSONDecode, e.Offset, e.Err, e.Raw)
	}
	return fmt.Sprintf("%s at offset %d (raw: %q)", ErrJSONDecode, e.Offset, e.Raw)
}

// Is matches ErrJSONDecode so callers can use errors.Is.
func (e *JSONDecodeError) Is(target error) bool { return target == ErrJSONDecode }

func (e *JSONDecodeError) Unwrap() error { return e.Err }

// ToolExecutionError carries the failing tool name and the arguments it was
// invoked with.
type ToolExecutionError struct {
	Tool      string
	Arguments map[string]any
	Err       error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed with arguments %v: %v", e.Tool, e.Arguments, e.Err)
}

// Is matches ErrToolExecution so callers can use errors.Is.
func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrServerError)
}

// ErrorCode is a machine-parseable error category for monitoring and reporting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
	CodeProviderNotFound   ErrorCode = "PROVIDER_NOT_FOUND"
	CodeToolNotFound       ErrorCode = "TOOL_NOT_FOUND"
	CodeToolExecution      ErrorCode = "TOOL_EXECUTION"
	CodeEmptyToolName      ErrorCode = "EMPTY_TOOL_NAME"
	CodePathOutsideSandbox ErrorCode = "PATH_OUTSIDE_SANDBOX"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeArgumentsRequired  ErrorCode = "ARGUMENTS_REQUIRED"
	CodeParameterNotFound  ErrorCode = "PARAMETER_NOT_FOUND"
	CodeJSONDecode         ErrorCode = "JSON_DECODE"
	CodeSchemaViolation    ErrorCode = "SCHEMA_VIOLATION"
	CodeAgentNotFound      ErrorCode = "AGENT_NOT_FOUND"
	CodeMissingMetadata    ErrorCode = "MISSING_METADATA"
	CodeEntryPointMissing  ErrorCode = "ENTRY_POINT_MISSING"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeContextOverflow    ErrorCode = "CONTEXT_OVERFLOW"
	CodeServerError        ErrorCode = "SERVER_ERROR"
	CodeVectorStore        ErrorCode = "VECTOR_STORE"
	CodeRegistry           ErrorCode = "REGISTRY"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeAgentTimeout   ErrorCode = "AGENT_TIMEOUT"
	CodeCommandTimeout ErrorCode = "COMMAND_TIMEOUT"
	CodeSnapshotInput  ErrorCode = "SNAPSHOT_INVALID"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	ErrProviderNotFound:       CodeProviderNotFound,
	ErrToolNotFound:           CodeToolNotFound,
	ErrToolExecution:          CodeToolExecution,
	ErrEmptyToolName:          CodeEmptyToolName,
	ErrPathOutsideSandbox:     CodePathOutsideSandbox,
	ErrConfigLoad:             CodeConfigLoad,
	ErrArgumentsRequired:      CodeArgumentsRequired,
	ErrParameterNotFound:      CodeParameterNotFound,
	ErrJSONDecode:             CodeJSONDecode,
	ErrSchemaViolation:        CodeSchemaViolation,
	ErrAgentNotFound:          CodeAgentNotFound,
	ErrMissingMetadata:        CodeMissingMetadata,
	ErrEntryPointMissing:      CodeEntryPointMissing,
	ErrRateLimit:              CodeRateLimit,
	ErrAuthInvalid:            CodeAuthInvalid,
	ErrContextOverflow:        CodeContextOverflow,
	ErrServerError:            CodeServerError,
	ErrVectorStoreUnavailable: CodeVectorStore,
	ErrRegistryUnavailable:    CodeRegistry,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"agent": CodeAgentNotFound,
		"tool":  CodeToolNotFound,
	},
	ErrTimeout: {
		"agent": CodeAgentTimeout,
		"exec":  CodeCommandTimeout,
	},
	ErrInvalidInput: {
		"snapshot": CodeSnapshotInput,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Typed errors first: they match their sentinel via Is and would otherwise
	// race with whatever they wrap during the map walk below.
	var jde *JSONDecodeError
	if errors.As(err, &jde) {
		return CodeJSONDecode
	}
	var tee *ToolExecutionError
	if errors.As(err, &tee) {
		return CodeToolExecution
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
