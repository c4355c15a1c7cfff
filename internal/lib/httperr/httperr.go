// Package httperr defines the closed error taxonomy of the dashboard API and
// the only mapping from error codes to HTTP status codes.
package httperr

import (
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeInvalidClusterName       Code = "INVALID_CLUSTER_NAME"
	CodeInvalidResourceName      Code = "INVALID_RESOURCE_NAME"
	CodeValidation               Code = "VALIDATION_ERROR"
	CodeAuthenticationRequired   Code = "AUTHENTICATION_REQUIRED"
	CodePermissionDenied         Code = "PERMISSION_DENIED"
	CodeInsufficientPermissions  Code = "INSUFFICIENT_PERMISSIONS"
	CodeClusterAccessDenied      Code = "CLUSTER_ACCESS_DENIED"
	CodeOrganizationAccessDenied Code = "ORGANIZATION_ACCESS_DENIED"
	CodeClusterNotFound          Code = "CLUSTER_NOT_FOUND"
	CodeResourceNotFound         Code = "RESOURCE_NOT_FOUND"
	CodeOrganizationNotFound     Code = "ORGANIZATION_NOT_FOUND"
	CodeInviteNotFound           Code = "INVITE_NOT_FOUND"
	CodeResourceConflict         Code = "RESOURCE_CONFLICT"
	CodeOrphanedResource         Code = "ORPHANED_RESOURCE"
	CodeInviteExpired            Code = "INVITE_EXPIRED"
	CodeRateLimited              Code = "RATE_LIMITED"
	CodeKubernetes               Code = "KUBERNETES_ERROR"
	CodeInternal                 Code = "INTERNAL_ERROR"
	CodeTimeout                  Code = "TIMEOUT_ERROR"
)

var statuses = map[Code]int{
	CodeInvalidClusterName:       http.StatusBadRequest,
	CodeInvalidResourceName:      http.StatusBadRequest,
	CodeValidation:               http.StatusBadRequest,
	CodeAuthenticationRequired:   http.StatusUnauthorized,
	CodePermissionDenied:         http.StatusForbidden,
	CodeInsufficientPermissions:  http.StatusForbidden,
	CodeClusterAccessDenied:      http.StatusForbidden,
	CodeOrganizationAccessDenied: http.StatusForbidden,
	CodeClusterNotFound:          http.StatusNotFound,
	CodeResourceNotFound:         http.StatusNotFound,
	CodeOrganizationNotFound:     http.StatusNotFound,
	CodeInviteNotFound:           http.StatusNotFound,
	CodeResourceConflict:         http.StatusConflict,
	CodeOrphanedResource:         http.StatusConflict,
	CodeInviteExpired:            http.StatusGone,
	CodeRateLimited:              http.StatusTooManyRequests,
	CodeKubernetes:               http.StatusInternalServerError,
	CodeInternal:                 http.StatusInternalServerError,
	CodeTimeout:                  http.StatusGatewayTimeout,
}

// Status returns the HTTP status for the code. Codes outside the taxonomy map to 500.
func (c Code) Status() int {
	if s, ok := statuses[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// SecuritySensitive reports whether failures with this code are audited.
func (c Code) SecuritySensitive() bool {
	switch c {
	case CodePermissionDenied, CodeInsufficientPermissions, CodeClusterAccessDenied,
		CodeOrganizationAccessDenied, CodeRateLimited:
		return true
	}
	return false
}

// Error is the canonical failure shape. Message and Details are safe to
// return to clients; Cause is kept for server-side logs only.
type Error struct {
	Code    Code
	Message string
	Details any
	Context map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status derived from the code.
func (e *Error) Status() int { return e.Code.Status() }

// New builds an Error with a client-facing message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that keeps cause for logging.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithContext returns a copy of e with extra context entries.
func (e *Error) WithContext(kv ...string) *Error {
	cp := *e
	cp.Context = make(map[string]string, len(e.Context)+len(kv)/2)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		cp.Context[kv[i]] = kv[i+1]
	}
	return &cp
}

// FieldError describes one failed input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

// ValidationErrors collects field failures; it classifies to VALIDATION_ERROR.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, f := range v {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field failure.
func (v *ValidationErrors) Add(field, msg string) {
	*v = append(*v, FieldError{Field: field, Message: msg})
}

// Err returns nil when no failures were recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
