package manager

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/metrics"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/ratelimit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/rbac"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/api/v1alpha1"
	"go.uber.org/zap"
)

type clusterKey struct{}

func withCluster(ctx context.Context, c *v1alpha1.LanguageCluster) context.Context {
	return context.WithValue(ctx, clusterKey{}, c)
}

func clusterFrom(ctx context.Context) *v1alpha1.LanguageCluster {
	c, _ := ctx.Value(clusterKey{}).(*v1alpha1.LanguageCluster)
	return c
}

func orgFromPath(r *http.Request, _ Identity) string {
	return chi.URLParam(r, "orgID")
}

func orgFromHeader(r *http.Request, id Identity) string {
	if v := strings.TrimSpace(r.Header.Get(headerOrganization)); v != "" {
		return v
	}
	return id.OrganizationID
}

func failureKey(ctx context.Context) ratelimit.Key {
	a := audit.ActorFrom(ctx)
	return ratelimit.Key{UserID: a.UserID, OrganizationID: a.OrganizationID}
}

// orgScope resolves the caller's membership in the organization chosen by
// pick and stores the resulting tenancy.Scope in the request context.
func (s *Server) orgScope(pick func(*http.Request, Identity) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identityFrom(r.Context())
			orgID := strings.TrimSpace(pick(r, id))
			ctx := audit.WithActor(r.Context(), audit.Actor{UserID: id.UserID, OrganizationID: orgID})
			ctx = logging.With(ctx, zap.String("organizationId", orgID))
			r = r.WithContext(ctx)

			if orgID != "" && s.blocked(ctx) {
				metrics.AuthzDenialsTotal.WithLabelValues("rate_limit").Inc()
				s.fail(w, r, httperr.New(httperr.CodeRateLimited, "too many failed authorization attempts, try again later"))
				return
			}
			scope, err := s.resolver.Resolve(ctx, id.UserID, orgID, id.Email)
			if err != nil {
				var he *httperr.Error
				if errors.As(err, &he) && he.Code == httperr.CodeOrganizationAccessDenied {
					s.denied(ctx, "organization")
				}
				s.fail(w, r, err)
				return
			}
			ctx = tenancy.WithScope(ctx, scope)
			ctx = logging.With(ctx,
				zap.String("namespace", scope.Namespace),
				zap.String("role", string(scope.Role)),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// require checks the role table for perm. It must run after orgScope.
func (s *Server) require(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.allow(w, r, perm) {
				return
			}
			s.authorized(r.Context())
			next.ServeHTTP(w, r)
		})
	}
}

// clusterScope validates the cluster name, checks the permission implied by
// the HTTP method, then runs the gate. With guardMutations set, writes are
// refused on clusters that are not accessible.
func (s *Server) clusterScope(guardMutations bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			name := chi.URLParam(r, "cluster")
			if err := names.ValidateField("cluster", name); err != nil {
				s.fail(w, r, err)
				return
			}
			if !s.allow(w, r, rbac.ActionForMethod(r.Method)) {
				return
			}
			scope, _ := tenancy.ScopeFrom(ctx)
			opts := cluster.GateOptions{ValidateAccess: guardMutations && mutating(r.Method)}
			c, err := s.gate.EnsureOwnedBy(ctx, scope.Namespace, name, scope.OrganizationID, opts)
			if err != nil {
				var denied *cluster.AccessDeniedError
				if errors.As(err, &denied) {
					s.denied(ctx, "cluster")
				}
				s.fail(w, r, err)
				return
			}
			s.authorized(ctx)
			ctx = withCluster(ctx, c)
			ctx = logging.With(ctx, zap.String("cluster", name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// allow writes an INSUFFICIENT_PERMISSIONS response when the scope's role
// lacks perm.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, perm rbac.Permission) bool {
	scope, _ := tenancy.ScopeFrom(r.Context())
	if rbac.Has(scope.Role, perm) {
		return true
	}
	s.denied(r.Context(), "permission")
	s.fail(w, r, httperr.Newf(httperr.CodeInsufficientPermissions, "role %q does not grant %s", scope.Role, perm).
		WithContext("required", string(perm), "role", string(scope.Role)))
	return false
}

// blocked fails open: an unreachable counter must not lock everyone out.
func (s *Server) blocked(ctx context.Context) bool {
	b, err := s.failures.Blocked(ctx, failureKey(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("auth_failure_counter_unavailable", zap.Error(err))
		return false
	}
	return b
}

func (s *Server) denied(ctx context.Context, stage string) {
	metrics.AuthzDenialsTotal.WithLabelValues(stage).Inc()
	n, err := s.failures.RecordFailure(ctx, failureKey(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("auth_failure_counter_unavailable", zap.Error(err))
		return
	}
	logging.FromContext(ctx).Debug("authz_failure_recorded", zap.String("stage", stage), zap.Int("failures", n))
}

func (s *Server) authorized(ctx context.Context) {
	if err := s.failures.Reset(ctx, failureKey(ctx)); err != nil {
		logging.FromContext(ctx).Warn("auth_failure_counter_unavailable", zap.Error(err))
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
