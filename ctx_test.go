package auth_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/holymark/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContext(t *testing.T) {
	_, ok := auth.SessionFromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.SessionFromContext(auth.WithSessionContext(context.Background(), nil))
	assert.False(t, ok)

	view := &auth.SessionView{User: auth.SessionUser{ID: "u-1", Username: "ada"}}
	got, ok := auth.SessionFromContext(auth.WithSessionContext(context.Background(), view))
	require.True(t, ok)
	assert.Same(t, view, got)
}

func TestProtectedRouteStoresSessionInUserContext(t *testing.T) {
	f := newHTTPFixture(t)
	f.app.Get("/api/whoami", f.routes.ProtectedRoute(nil), func(c *fiber.Ctx) error {
		session, ok := auth.SessionFromContext(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(session.User.Username)
	})
	token := f.register(t)

	resp := f.do(t, withSession(httptest.NewRequest(http.MethodGet, "/api/whoami", nil), token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ada", string(body))
}
