package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, signed, err := tm.GenerateToken("admin", domain.SubjectTypeAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), token.ExpiresAt, time.Second)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeAdmin, claims.Subject)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	_, signed, err := NewTokenManager("one", 5).GenerateToken("admin", domain.SubjectTypeAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(signed)
	assert.Error(t, err)
}

func TestTokenManager_RequiresSecret(t *testing.T) {
	tm := NewTokenManager("", 5)
	_, _, err := tm.GenerateToken("admin", domain.SubjectTypeAdmin)
	assert.ErrorIs(t, err, ErrNoSigningSecret)

	// a token signed with any key is refused by an unconfigured manager
	_, forged, err := NewTokenManager("dev-secret", 5).GenerateToken("admin", domain.SubjectTypeAdmin)
	require.NoError(t, err)
	_, err = tm.ParseToken(forged)
	assert.ErrorIs(t, err, ErrNoSigningSecret)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3"))

	_, err = HashPassword("", 4)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func newProtectedApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fiberErr, ok := err.(*fiber.Error); ok {
				return c.Status(fiberErr.Code).SendString(fiberErr.Message)
			}
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Get("/admin", NewAuthMiddleware(tm).Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.SubjectID)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	_, signed, err := tm.GenerateToken("admin", domain.SubjectTypeAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "valid", header: "Bearer " + signed, status: http.StatusOK, body: "admin"},
	}

	app := newProtectedApp(tm)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
