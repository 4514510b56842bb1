package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bizportal/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		if user != nil {
			SetCurrentUser(c, user)
		}
		c.Next()
	})
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r.GET("/api/thing", RequireAuth(), ok)
	r.GET("/page", RequireAuth(), ok)
	r.GET("/api/admin", RequireAuth(), RequireRole(models.RoleOwner, models.RoleAdmin), ok)
	r.GET("/api/tenant", RequireAuth(), RequireOrganization(), ok)
	return r
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newEngine(nil)

	w := do(r, "/api/thing")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(r, "/page")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequireRole(t *testing.T) {
	orgID := uint(1)
	member := newEngine(&models.User{Role: models.RoleMember, OrganizationID: &orgID})
	w := do(member, "/api/admin")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())

	owner := newEngine(&models.User{Role: models.RoleOwner, OrganizationID: &orgID})
	assert.Equal(t, http.StatusOK, do(owner, "/api/admin").Code)
}

func TestRequireOrganization(t *testing.T) {
	w := do(newEngine(&models.User{Role: models.RoleMember}), "/api/tenant")
	assert.Equal(t, http.StatusForbidden, w.Code)

	orgID := uint(3)
	assert.Equal(t, http.StatusOK, do(newEngine(&models.User{Role: models.RoleMember, OrganizationID: &orgID}), "/api/tenant").Code)
}
