// Package core provides shared utilities for the ecoroute service.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode defines standard error codes returned to API and MCP clients
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidMode      ErrorCode = "INVALID_MODE"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrNoResults     ErrorCode = "NO_RESULTS"
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError is the structured error returned by tools and the service layer
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

// HTTPStatus maps the error code onto a response status for the REST API.
func (e *MCPError) HTTPStatus() int {
	switch ErrorCode(e.Code) {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude, ErrInvalidMode,
		ErrEmptyParameter, ErrMissingParameter, ErrInvalidParameter:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrNoResults:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *MCPError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The provider is rate-limiting requests. Wait a moment before trying again."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The provider timed out."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The provider rejected the request. Check the addresses and coordinates."
	case http.StatusUnauthorized, http.StatusForbidden:
		code = ErrServiceUnavailable
		guidance = "The provider refused the API key. Check the maps API key configuration."
	default:
		code = ErrServiceUnavailable
		guidance = "The provider is unavailable. Please try again later."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// FromError converts domain and service errors into an MCPError. Errors
// that are already MCPErrors pass through unchanged.
func FromError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return NewError(ErrorCode(valErr.Code), valErr.Message).WithGuidance(valErr.Guidance)
	}

	switch {
	case errors.Is(err, emissions.ErrInvalidInput):
		return NewValidationError(ErrInvalidInput, err.Error())
	case errors.Is(err, ranking.ErrEmptyInput):
		return NewError(ErrNoResults, "No routes found").
			WithGuidance("Try a different origin, destination or travel mode.")
	}
	return NewError(ErrInternalError, err.Error())
}
