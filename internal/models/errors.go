package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by the feed engine and the API server.
const (
	CodeNetworkFailure = "NETWORK_FAILURE"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so wrapped failures still
// compare equal to the package sentinels.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for the client-side failure taxonomy.
var (
	// ErrNetworkFailure is transient; re-invoking the same operation is safe.
	ErrNetworkFailure = &AppError{Code: CodeNetworkFailure, Message: "Failed to reach the server, please try again"}
	// ErrSessionExpired is fatal to the current screen and is never retried.
	ErrSessionExpired = &AppError{Code: CodeSessionExpired, Message: "Your session has expired. Please login again."}
	// ErrNotFound marks a mutation target that is no longer in the local list.
	ErrNotFound = &AppError{Code: CodeNotFound, Message: "Post not found"}
)

// NewNetworkFailure wraps a transport or server failure.
func NewNetworkFailure(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNetworkFailure,
		Message: message,
		Err:     err,
	}
}

// NewSessionExpiredError wraps the failure that revealed the expired session.
// Classifications already on err are dropped so the result matches no other
// code.
func NewSessionExpiredError(err error) *AppError {
	var app *AppError
	for errors.As(err, &app) && app.Code != CodeSessionExpired {
		err = app.Err
	}
	return &AppError{
		Code:    CodeSessionExpired,
		Message: ErrSessionExpired.Message,
		Err:     err,
	}
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsSessionExpired reports whether err carries the session-expired code.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsNetworkFailure reports whether err carries the network-failure code.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
