package errors

import (
	"fmt"
	"net/http"
	"time"

	"codebase-context-server/internal/models"
)

// JSON-RPC error codes (as per the JSON-RPC 2.0 specification).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	// CodeFileSystemError is a generic code for filesystem related issues.
	// The data payload carries a "type" field distinguishing file_not_found,
	// permission_denied, and so on.
	CodeFileSystemError = -32001

	// CodeOperationLockFailed indicates a lock on the target file could not
	// be acquired within the timeout.
	CodeOperationLockFailed = -32002

	// CodeFileTooLarge indicates the file exceeds the configured size limit.
	CodeFileTooLarge = -32003

	// CodeAccessDenied indicates the resolved path lies outside every
	// configured sandbox root. Terminal for the request; never retried.
	CodeAccessDenied = -32010

	// CodeTextNotFound indicates the old_text of an edit_file request does
	// not occur in the target file.
	CodeTextNotFound = -32011

	// CodeTokenizerError covers tokenizer load and runtime failures. The
	// data payload names the offending model identifier.
	CodeTokenizerError = -32012
)

// NewErrorDetail creates a new ErrorDetail.
func NewErrorDetail(code int, message string, data interface{}) *models.ErrorDetail {
	return &models.ErrorDetail{Code: code, Message: message, Data: data}
}

// NewParseError creates an ErrorDetail for JSON parsing errors.
func NewParseError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeParseError, "Parse error", map[string]interface{}{"details": details})
}

// NewInvalidRequestError creates an ErrorDetail for invalid JSON-RPC request objects.
func NewInvalidRequestError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInvalidRequest, "Invalid Request", map[string]interface{}{"details": details})
}

// NewMethodNotFoundError creates an ErrorDetail for an unknown JSON-RPC method.
func NewMethodNotFoundError(methodName string) *models.ErrorDetail {
	return NewErrorDetail(CodeMethodNotFound, "Method not found", map[string]interface{}{"method": methodName})
}

// NewInvalidParamsError creates an ErrorDetail for invalid method parameters.
func NewInvalidParamsError(message string, data map[string]interface{}) *models.ErrorDetail {
	if message == "" {
		message = "Invalid params"
	}
	return NewErrorDetail(CodeInvalidParams, message, data)
}

// NewInternalError creates an ErrorDetail for unexpected server errors.
func NewInternalError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInternalError, "Internal error", map[string]interface{}{"details": details})
}

// NewAccessDeniedError creates an ErrorDetail for paths outside the sandbox.
func NewAccessDeniedError(path, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeAccessDenied,
		fmt.Sprintf("Access denied: path '%s' is outside the allowed directories", path),
		map[string]interface{}{
			"path":      path,
			"operation": operation,
			"type":      "access_denied",
		})
}

// NewFileNotFoundError creates an ErrorDetail for missing files.
func NewFileNotFoundError(path, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError,
		fmt.Sprintf("File '%s' not found", path),
		map[string]interface{}{
			"path":      path,
			"operation": operation,
			"type":      "file_not_found",
		})
}

// NewPermissionDeniedError creates an ErrorDetail for permission failures.
func NewPermissionDeniedError(path, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError,
		fmt.Sprintf("Permission denied for '%s'", path),
		map[string]interface{}{
			"path":      path,
			"operation": operation,
			"type":      "permission_denied",
		})
}

// NewFileSystemError creates a generic filesystem ErrorDetail.
func NewFileSystemError(path, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, "File system error", map[string]interface{}{
		"path":      path,
		"operation": operation,
		"details":   details,
	})
}

// NewFileTooLargeError creates an ErrorDetail for files exceeding the size limit.
func NewFileTooLargeError(path string, size int64, maxSizeMB int) *models.ErrorDetail {
	return NewErrorDetail(CodeFileTooLarge,
		fmt.Sprintf("File '%s' exceeds maximum allowed size of %d MB", path, maxSizeMB),
		map[string]interface{}{
			"path":        path,
			"size":        size,
			"max_size_mb": maxSizeMB,
			"type":        "file_too_large",
		})
}

// NewTextNotFoundError creates an ErrorDetail when the old_text of an edit
// does not occur in the file.
func NewTextNotFoundError(path string) *models.ErrorDetail {
	return NewErrorDetail(CodeTextNotFound,
		fmt.Sprintf("old_text not found in file '%s'", path),
		map[string]interface{}{
			"path": path,
			"type": "text_not_found",
		})
}

// NewTokenizerLoadError creates an ErrorDetail for tokenizer load failures,
// including unknown model identifiers.
func NewTokenizerLoadError(model, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeTokenizerError,
		fmt.Sprintf("Failed to load tokenizer for model '%s'", model),
		map[string]interface{}{
			"model":   model,
			"details": details,
			"type":    "tokenizer_load_error",
		})
}

// NewTokenizerRuntimeError creates an ErrorDetail for tokenizer encode failures.
func NewTokenizerRuntimeError(model, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeTokenizerError,
		fmt.Sprintf("Tokenizer for model '%s' failed to encode input", model),
		map[string]interface{}{
			"model":   model,
			"details": details,
			"type":    "tokenizer_runtime_error",
		})
}

// NewOperationLockFailedError creates an ErrorDetail for lock acquisition failures.
func NewOperationLockFailedError(path, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeOperationLockFailed,
		fmt.Sprintf("Could not acquire lock for operation '%s' on '%s'", operation, path),
		map[string]interface{}{
			"path":      path,
			"operation": operation,
			"details":   details,
		})
}

// ToErrorResponse converts an ErrorDetail to an HTTP models.ErrorResponse.
func ToErrorResponse(errDetail *models.ErrorDetail) *models.ErrorResponse {
	if errDetail == nil {
		return nil
	}
	return &models.ErrorResponse{Error: *errDetail}
}

// ToJSONRPCError converts an ErrorDetail to a models.JSONRPCError, mapping
// the structured Data payload into the JSON-RPC error data object.
func ToJSONRPCError(errDetail *models.ErrorDetail) *models.JSONRPCError {
	if errDetail == nil {
		return nil
	}
	rpcErr := &models.JSONRPCError{
		Code:    errDetail.Code,
		Message: errDetail.Message,
	}
	if errDetail.Data != nil {
		data := &models.JSONRPCErrorData{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if dataMap, ok := errDetail.Data.(map[string]interface{}); ok {
			if v, ok := dataMap["path"].(string); ok {
				data.Path = v
			}
			if v, ok := dataMap["operation"].(string); ok {
				data.Operation = v
			}
			if v, ok := dataMap["details"].(string); ok {
				data.Details = v
			}
		} else {
			data.Details = fmt.Sprintf("%v", errDetail.Data)
		}
		rpcErr.Data = data
	}
	return rpcErr
}

// errorType extracts the "type" discriminator from an ErrorDetail data payload.
func errorType(errDetail *models.ErrorDetail) string {
	if errDetail == nil || errDetail.Data == nil {
		return ""
	}
	if dataMap, ok := errDetail.Data.(map[string]interface{}); ok {
		if t, ok := dataMap["type"].(string); ok {
			return t
		}
	}
	return ""
}

// MapErrorToHTTPStatus maps an internal error code to an HTTP status code.
func MapErrorToHTTPStatus(errorCode int, errDetail *models.ErrorDetail) int {
	switch errorCode {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound:
		return http.StatusNotFound
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeTextNotFound:
		return http.StatusUnprocessableEntity
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeOperationLockFailed:
		return http.StatusConflict
	case CodeTokenizerError:
		return http.StatusInternalServerError
	case CodeFileSystemError:
		switch errorType(errDetail) {
		case "file_not_found":
			return http.StatusNotFound
		case "permission_denied":
			return http.StatusForbidden
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
