package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/auth"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func okHandler(captured *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	orgID := uuid.New()

	t.Run("valid token passes claims through", func(t *testing.T) {
		validator := &stubValidator{claims: &auth.Claims{OrgID: orgID.String()}}
		m := NewAuthMiddleware(validator, zap.NewNop())

		var ctx context.Context
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		m.RequireAuth(okHandler(&ctx)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		claims := GetClaimsFromContext(ctx)
		require.NotNil(t, claims)
		assert.Equal(t, orgID.String(), claims.OrgID)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		validator := &stubValidator{err: errors.New("bad signature")}
		m := NewAuthMiddleware(validator, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestExtractOrg(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())

	t.Run("org and user extracted", func(t *testing.T) {
		var ctx context.Context
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &auth.Claims{
			OrgID:  orgID.String(),
			UserID: userID.String(),
		}))
		rec := httptest.NewRecorder()

		m.ExtractOrg(okHandler(&ctx)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, orgID, GetOrgIDFromContext(ctx))
		require.NotNil(t, GetUserIDFromContext(ctx))
		assert.Equal(t, userID, *GetUserIDFromContext(ctx))
	})

	t.Run("missing user id tolerated", func(t *testing.T) {
		var ctx context.Context
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &auth.Claims{OrgID: orgID.String()}))
		rec := httptest.NewRecorder()

		m.ExtractOrg(okHandler(&ctx)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, orgID, GetOrgIDFromContext(ctx))
		assert.Nil(t, GetUserIDFromContext(ctx))
	})

	t.Run("no claims rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.ExtractOrg(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed org id rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &auth.Claims{OrgID: "not-a-uuid"}))
		rec := httptest.NewRecorder()

		m.ExtractOrg(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
