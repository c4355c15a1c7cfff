package manager

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/ratelimit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/rbac"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	maxBodyBytes       int64 = 1 << 20 // 1MB
	otelServiceName          = "langop-dashboard"
	headerOrganization       = "X-Organization-ID"
	headerUserID             = "X-User-ID"
	headerUserEmail          = "X-User-Email"
	defaultInviteTTL         = 7 * 24 * time.Hour
)

// Options carries the dependencies of a Server. Store and Kube are required.
type Options struct {
	Store    store.Store
	Kube     ctrlclient.Client
	Failures ratelimit.FailureCounter
	Audit    audit.Sink

	RequireAuth       bool
	SigningKey        []byte
	RequestsPerMinute int
	InviteTTL         time.Duration
	Version           string
	Now               func() time.Time
}

// Server exposes the dashboard API. Every cluster-scoped request runs through
// authentication, organization resolution, name validation, the role table and
// the cluster gate before a handler touches Kubernetes.
type Server struct {
	store    store.Store
	kube     ctrlclient.Client
	gate     *cluster.Gate
	resolver *tenancy.Resolver
	failures ratelimit.FailureCounter
	audit    audit.Sink
	errs     *httperr.Responder

	requireAuth bool
	signingKey  []byte
	rpm         int
	inviteTTL   time.Duration
	version     string
	now         func() time.Time
}

// NewServer builds a Server. Missing optional dependencies fall back to
// in-memory implementations.
func NewServer(opts Options) *Server {
	if opts.Failures == nil {
		opts.Failures = ratelimit.NewMemory(ratelimit.DefaultThreshold, ratelimit.DefaultWindow)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewMemory(audit.DefaultRetention)
	}
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = defaultInviteTTL
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		store:       opts.Store,
		kube:        opts.Kube,
		gate:        &cluster.Gate{Client: opts.Kube},
		resolver:    &tenancy.Resolver{Store: opts.Store},
		failures:    opts.Failures,
		audit:       opts.Audit,
		errs:        &httperr.Responder{Sink: opts.Audit, Now: opts.Now},
		requireAuth: opts.RequireAuth,
		signingKey:  opts.SigningKey,
		rpm:         opts.RequestsPerMinute,
		inviteTTL:   opts.InviteTTL,
		version:     opts.Version,
		now:         opts.Now,
	}
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware(otelServiceName))
	r.Use(s.logMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", s.healthz)
		api.Get("/readyz", s.readyz)
		api.Get("/version", s.versionInfo)

		api.Group(func(api chi.Router) {
			if s.rpm > 0 {
				api.Use(httprate.Limit(s.rpm, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						s.fail(w, r, httperr.New(httperr.CodeRateLimited, "too many requests"))
					}),
				))
			}
			api.Use(s.authMiddleware)

			api.Get("/organizations", s.listOrganizations)
			api.Post("/organizations", s.createOrganization)
			api.Post("/invites/{token}/accept", s.acceptInvite)

			api.Route("/organizations/{orgID}", func(r chi.Router) {
				r.Use(s.orgScope(orgFromPath))
				r.With(s.require(rbac.View)).Get("/", s.getOrganization)
				r.With(s.require(rbac.DeleteOrg)).Delete("/", s.deleteOrganization)

				r.With(s.require(rbac.View)).Get("/members", s.listMembers)
				r.With(s.require(rbac.ManageMembers)).Patch("/members/{userID}", s.updateMember)
				// Leaving is allowed to everyone; removing others is checked inside.
				r.Delete("/members/{userID}", s.removeMember)

				r.With(s.require(rbac.ManageMembers)).Get("/invites", s.listInvites)
				r.With(s.require(rbac.ManageMembers)).Post("/invites", s.createInvite)
				r.With(s.require(rbac.ManageMembers)).Delete("/invites/{inviteID}", s.cancelInvite)

				r.With(s.require(rbac.ManageMembers)).Get("/audit-events", s.listAuditEvents)
			})

			api.Route("/clusters", func(r chi.Router) {
				r.Use(s.orgScope(orgFromHeader))
				r.With(s.require(rbac.View)).Get("/", s.listClusters)
				r.With(s.require(rbac.Create)).Post("/", s.createCluster)

				r.Route("/{cluster}", func(r chi.Router) {
					// A cluster in any phase can be read or deleted.
					r.Group(func(r chi.Router) {
						r.Use(s.clusterScope(false))
						r.Get("/", s.getCluster)
						r.Delete("/", s.deleteCluster)
					})
					r.Group(func(r chi.Router) {
						r.Use(s.clusterScope(true))
						r.Get("/stats", s.clusterStats)
						r.Get("/{kind}", s.listResources)
						r.Post("/{kind}", s.createResource)
						r.Get("/{kind}/{name}", s.getResource)
						r.Patch("/{kind}/{name}", s.patchResource)
						r.Delete("/{kind}/{name}", s.deleteResource)
					})
				})
			})
		})
	})
	return r
}

// StartHTTP listens and serves until the context is canceled.
func StartHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		spanCtx := trace.SpanContextFromContext(r.Context())
		if spanCtx.IsValid() {
			fields = append(fields, zap.String("trace_id", spanCtx.TraceID().String()))
		}
		logging.L.Info("http_request", fields...)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "store not ready", err))
		return
	}
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) versionInfo(w http.ResponseWriter, r *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.errs.Respond(w, r, err)
}

// Helpers
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badBody(err)
	}
	if dec.More() {
		return badBody(errors.New("unexpected trailing data"))
	}
	return nil
}

func badBody(err error) error {
	return httperr.Wrap(httperr.CodeValidation, "invalid request body", err).
		WithDetails([]httperr.FieldError{{Field: "body", Message: err.Error()}})
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}
