package httperr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/rbac"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Coder is implemented by domain errors that know their taxonomy code. The
// public message is what clients see; Error() stays in server-side logs.
type Coder interface {
	error
	ErrorCode() Code
	PublicMessage() string
}

// statusCoder is implemented by transport errors that only expose a numeric code.
type statusCoder interface {
	StatusCode() int
}

// Classify maps any error onto the taxonomy. It is pure: the same input
// always yields an equal result, and timestamps are added only when responding.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var c Coder
	if errors.As(err, &c) {
		e := &Error{Code: c.ErrorCode(), Message: c.PublicMessage(), Cause: err}
		if cx, ok := c.(interface{ ErrorContext() map[string]string }); ok {
			e.Context = cx.ErrorContext()
		}
		return e
	}
	if errors.Is(err, rbac.ErrSoleOwner) {
		return Wrap(CodeResourceConflict, rbac.ErrSoleOwner.Error(), err)
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return &Error{Code: CodeValidation, Message: "request validation failed", Details: []FieldError(ve), Cause: err}
	}
	var ne *names.InvalidNameError
	if errors.As(err, &ne) {
		code := CodeInvalidResourceName
		if ne.Field == "cluster" {
			code = CodeInvalidClusterName
		}
		return &Error{
			Code:    code,
			Message: ne.Error(),
			Details: []FieldError{{Field: fieldOr(ne.Field), Message: ne.Error(), Rule: string(ne.Rule)}},
			Cause:   err,
		}
	}
	return ClassifyUpstream(err)
}

// ClassifyUpstream maps a Kubernetes capability error. Checks run in order:
// not found, forbidden, timeout or connection reset, then write conflicts and
// rejected input; anything else is an opaque upstream failure.
func ClassifyUpstream(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return Wrap(CodeResourceNotFound, "resource not found", err)
	case isForbidden(err):
		return Wrap(CodePermissionDenied, "the dashboard is not permitted to perform this operation", err)
	case isTimeout(err):
		return Wrap(CodeTimeout, "the Kubernetes API did not respond in time", err)
	case apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) || hasCode(err, http.StatusConflict):
		return Wrap(CodeResourceConflict, "resource already exists or was modified concurrently", err)
	case apierrors.IsInvalid(err) || apierrors.IsBadRequest(err):
		return &Error{Code: CodeValidation, Message: "the Kubernetes API rejected the request", Details: causes(err), Cause: err}
	}
	if _, _, ok := upstreamStatus(err); ok {
		return Wrap(CodeKubernetes, "the Kubernetes API request failed", err)
	}
	return Wrap(CodeInternal, "internal error", err)
}

// upstreamStatus extracts the numeric code and reason from whichever shape the
// transport produced.
func upstreamStatus(err error) (int32, metav1.StatusReason, bool) {
	var st apierrors.APIStatus
	if errors.As(err, &st) {
		s := st.Status()
		return s.Code, s.Reason, true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return int32(sc.StatusCode()), "", true
	}
	return 0, "", false
}

func hasCode(err error, codes ...int) bool {
	code, _, ok := upstreamStatus(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if int(code) == c {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	if apierrors.IsNotFound(err) {
		return true
	}
	_, reason, _ := upstreamStatus(err)
	return reason == metav1.StatusReasonNotFound || hasCode(err, http.StatusNotFound)
}

func isForbidden(err error) bool {
	if apierrors.IsForbidden(err) {
		return true
	}
	_, reason, _ := upstreamStatus(err)
	return reason == metav1.StatusReasonForbidden || hasCode(err, http.StatusForbidden)
}

func isTimeout(err error) bool {
	if apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return hasCode(err, http.StatusGatewayTimeout, http.StatusRequestTimeout)
}

func causes(err error) []FieldError {
	var st apierrors.APIStatus
	if !errors.As(err, &st) {
		return nil
	}
	d := st.Status().Details
	if d == nil || len(d.Causes) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(d.Causes))
	for _, c := range d.Causes {
		out = append(out, FieldError{Field: c.Field, Message: c.Message, Rule: string(c.Type)})
	}
	return out
}

func fieldOr(f string) string {
	if f == "" {
		return "name"
	}
	return f
}
