package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizportal/internal/billing"
	"bizportal/internal/config"
	"bizportal/internal/database/dbtest"
	"bizportal/internal/handlers"
	"bizportal/internal/models"
	"bizportal/internal/ratelimit"
	"bizportal/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type app struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

type opts struct {
	webhookSecret string
	apiLimit      int
}

func newApp(t *testing.T, o opts) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)

	cfg := &config.Config{
		Env:           "test",
		AppURL:        "http://localhost:8080",
		SessionSecret: "test-session-secret-32-bytes-long",
		Stripe:        config.StripeConfig{WebhookSecret: o.webhookSecret},
		OTel:          config.OTelConfig{ServiceName: "bizportal"},
	}
	handlers.Configure(handlers.Deps{
		Config:   cfg,
		Webhooks: &billing.Processor{DB: db, Cfg: cfg.Stripe},
		Now:      func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})

	limit := o.apiLimit
	if limit == 0 {
		limit = 1000
	}
	r, err := server.NewRouter(cfg, ratelimit.Limiters{
		API:  ratelimit.NewMemory(limit, time.Minute),
		Chat: ratelimit.NewMemory(limit, time.Minute),
	})
	require.NoError(t, err)
	return &app{t: t, db: db, router: r}
}

// session carries cookies between requests like a browser would.
type session struct {
	app     *app
	cookies []*http.Cookie
}

func (a *app) session() *session {
	return &session{app: a}
}

func (s *session) do(method, path string, body any) *httptest.ResponseRecorder {
	s.app.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.app.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.app.router.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		s.cookies = set
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *session) register(email string) {
	s.app.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "name": "Test User", "password": "password123",
	})
	require.Equal(s.app.t, http.StatusCreated, w.Code, w.Body.String())
}

// onboard registers a user and creates their organization through a first project.
func (a *app) onboard(email string) *session {
	s := a.session()
	s.register(email)
	w := s.do(http.MethodPost, "/api/projects", map[string]any{
		"name": "Marketing site", "organization_name": "Acme Studio",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return s
}

func TestHealth(t *testing.T) {
	a := newApp(t, opts{})
	w := a.session().do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAPIRequiresAuthentication(t *testing.T) {
	a := newApp(t, opts{})
	s := a.session()
	for _, path := range []string{"/api/me", "/api/invoices", "/api/cashflow/summary"} {
		w := s.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRegisterValidationReportsFields(t *testing.T) {
	a := newApp(t, opts{})
	w := a.session().do(http.MethodPost, "/api/auth/register", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, "validation failed", body["error"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	a := newApp(t, opts{})
	a.session().register("jane@example.com")

	w := a.session().do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "jane@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s := a.session()
	w = s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "jane@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/me", nil).Code)
}

func TestUserWithoutOrganizationIsBlockedFromTenantRoutes(t *testing.T) {
	a := newApp(t, opts{})
	s := a.session()
	s.register("solo@example.com")

	w := s.do(http.MethodGet, "/api/invoices", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "organization required", decode(t, w)["error"])
}

func TestFirstProjectCreatesExactlyOneOrganization(t *testing.T) {
	a := newApp(t, opts{})
	s := a.onboard("owner@example.com")

	w := s.do(http.MethodPost, "/api/projects", map[string]any{"name": "Second site"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var orgs, projects int64
	a.db.Model(&models.Organization{}).Count(&orgs)
	a.db.Model(&models.WebsiteProject{}).Count(&projects)
	assert.Equal(t, int64(1), orgs)
	assert.Equal(t, int64(2), projects)

	var user models.User
	require.NoError(t, a.db.Where("email = ?", "owner@example.com").First(&user).Error)
	assert.Equal(t, models.RoleOwner, user.Role)
	require.NotNil(t, user.OrganizationID)

	w = s.do(http.MethodGet, "/api/organizations/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProjectValidation(t *testing.T) {
	a := newApp(t, opts{})
	s := a.session()
	s.register("dates@example.com")

	w := s.do(http.MethodPost, "/api/projects", map[string]any{"name": "Site", "launch_date": "June 1st"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "launch_date")

	var orgs int64
	a.db.Model(&models.Organization{}).Count(&orgs)
	assert.Zero(t, orgs)
}

func TestMemberCannotReachManagerRoutes(t *testing.T) {
	a := newApp(t, opts{})
	a.onboard("owner@example.com")

	var owner models.User
	require.NoError(t, a.db.Where("email = ?", "owner@example.com").First(&owner).Error)
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, a.db.Create(&models.User{
		OrganizationID: owner.OrganizationID,
		Email:          "member@example.com",
		PasswordHash:   string(hash),
		Role:           models.RoleMember,
	}).Error)

	s := a.session()
	w := s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "member@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/invoices", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/audit", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/integrations", nil).Code)
}

func TestAccountingIntegrationsAreNotImplemented(t *testing.T) {
	a := newApp(t, opts{})
	s := a.onboard("owner@example.com")

	w := s.do(http.MethodPost, "/api/integrations/quickbooks/connect", map[string]string{"access_token": "tok"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = s.do(http.MethodPost, "/api/integrations/sage/connect", map[string]string{"access_token": "tok"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBillingWithoutStripeIsUnavailable(t *testing.T) {
	a := newApp(t, opts{})
	s := a.onboard("owner@example.com")

	w := s.do(http.MethodPost, "/api/billing/checkout", map[string]string{"plan": "pro"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStripeWebhookRejectsBadSignatureBeforeTouchingData(t *testing.T) {
	a := newApp(t, opts{webhookSecret: "whsec_test"})

	var auditBefore int64
	a.db.Model(&models.AuditLog{}).Count(&auditBefore)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe",
		bytes.NewBufferString(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{}}}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var auditAfter, payments int64
	a.db.Model(&models.AuditLog{}).Count(&auditAfter)
	a.db.Model(&models.Payment{}).Count(&payments)
	assert.Equal(t, auditBefore, auditAfter)
	assert.Zero(t, payments)
}

func TestStripeWebhookWithoutSecret(t *testing.T) {
	a := newApp(t, opts{})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIRateLimit(t *testing.T) {
	a := newApp(t, opts{apiLimit: 2})
	s := a.session()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/me", nil).Code)
	}
	w := s.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// health checks sit outside the limited group
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
}

func TestLoginPageRenders(t *testing.T) {
	a := newApp(t, opts{})
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<form")
}

func TestDashboardRedirectsAnonymousBrowser(t *testing.T) {
	a := newApp(t, opts{})
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}
