package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/metrics"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error     string            `json:"error"`
	Code      Code              `json:"code"`
	Details   any               `json:"details,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Envelope is the JSON shape of every success response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries pagination for list responses.
type Meta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Responder writes classified errors and records security-sensitive ones.
type Responder struct {
	Sink audit.Sink
	Now  func() time.Time
}

// Respond classifies err, logs it according to its code, and writes the error body.
func (rs *Responder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	e := Classify(err)
	if e == nil {
		e = New(CodeInternal, "internal error")
	}
	now := time.Now().UTC()
	if rs != nil && rs.Now != nil {
		now = rs.Now().UTC()
	}
	metrics.ErrorsTotal.WithLabelValues(string(e.Code)).Inc()
	rs.log(r, e, now)
	if e.Code.SecuritySensitive() {
		rs.record(r, e, now)
	}
	WriteJSON(w, e.Status(), Body{
		Error:     e.Message,
		Code:      e.Code,
		Details:   e.Details,
		Context:   e.Context,
		Timestamp: now,
	})
}

func (rs *Responder) log(r *http.Request, e *Error, now time.Time) {
	ctx := r.Context()
	actor := audit.ActorFrom(ctx)
	fields := []zap.Field{
		zap.String("code", string(e.Code)),
		zap.Int("status", e.Status()),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(ctx)),
	}
	if e.Cause != nil {
		fields = append(fields, zap.Error(e.Cause))
	}
	l := logging.FromContext(ctx)
	switch {
	case e.Code.SecuritySensitive():
		fields = append(fields,
			zap.String("organizationId", actor.OrganizationID),
			zap.String("userId", actor.UserID),
			zap.Time("timestamp", now),
		)
		l.Warn("security_denial", fields...)
	case e.Status() >= http.StatusInternalServerError:
		l.Error("request_failed", fields...)
	default:
		l.Debug("request_rejected", fields...)
	}
}

func (rs *Responder) record(r *http.Request, e *Error, now time.Time) {
	if rs == nil || rs.Sink == nil {
		return
	}
	actor := audit.ActorFrom(r.Context())
	ev := audit.Event{
		Code:           string(e.Code),
		Status:         e.Status(),
		Message:        e.Message,
		UserID:         actor.UserID,
		OrganizationID: actor.OrganizationID,
		Method:         r.Method,
		Path:           r.URL.Path,
		RequestID:      middleware.GetReqID(r.Context()),
		Timestamp:      now,
	}
	if err := rs.Sink.Record(context.WithoutCancel(r.Context()), ev); err != nil {
		logging.FromContext(r.Context()).Warn("audit_record_failed", zap.Error(err))
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// Page writes a paginated success envelope.
func Page(w http.ResponseWriter, data any, meta Meta) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: &meta})
}
