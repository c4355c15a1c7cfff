package manager

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"go.uber.org/zap"
)

// Identity is the authenticated caller. OrganizationID is the organization
// selected in the token, if any; the X-Organization-ID header overrides it.
type Identity struct {
	UserID         string
	Email          string
	OrganizationID string
}

type identityKey struct{}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authenticate(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = audit.WithActor(ctx, audit.Actor{UserID: id.UserID})
		ctx = logging.With(ctx,
			zap.String("request_id", middleware.GetReqID(ctx)),
			zap.String("userId", id.UserID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate reads a bearer token when auth is required. In development
// mode the caller is taken from the X-User-ID and X-User-Email headers.
func (s *Server) authenticate(r *http.Request) (Identity, error) {
	if !s.requireAuth {
		id := Identity{
			UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
			Email:  strings.TrimSpace(r.Header.Get(headerUserEmail)),
		}
		if id.UserID == "" {
			return Identity{}, httperr.New(httperr.CodeAuthenticationRequired, "missing "+headerUserID+" header")
		}
		return id, nil
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return Identity{}, httperr.New(httperr.CodeAuthenticationRequired, "missing bearer token")
	}
	tokenStr := strings.TrimPrefix(authz, "Bearer ")
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, httperr.Wrap(httperr.CodeAuthenticationRequired, "invalid token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, httperr.New(httperr.CodeAuthenticationRequired, "invalid token claims")
	}
	subject, _ := claims.GetSubject()
	if subject == "" {
		return Identity{}, httperr.New(httperr.CodeAuthenticationRequired, "token has no subject")
	}
	email, _ := claims["email"].(string)
	org, _ := claims["org"].(string)
	return Identity{UserID: subject, Email: email, OrganizationID: org}, nil
}
