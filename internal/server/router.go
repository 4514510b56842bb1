package server

import (
	"html/template"
	"net/http"
	"time"

	"bizportal/internal/config"
	"bizportal/internal/database"
	"bizportal/internal/handlers"
	"bizportal/internal/metrics"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/ratelimit"
	"bizportal/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func maskEmail(email string) string {
	runes := []rune(email)
	atIdx := -1
	for i, r := range runes {
		if r == '@' {
			atIdx = i
			break
		}
	}
	if atIdx <= 0 {
		return "***"
	}
	prefix := string(runes[:atIdx])
	domain := string(runes[atIdx:])
	if len(prefix) <= 2 {
		return prefix + "***" + domain
	}
	return string(runes[0:2]) + "***" + domain
}

func maskPhone(phone string) string {
	runes := []rune(phone)
	n := len(runes)
	if n <= 4 {
		return "***"
	}
	masked := make([]rune, n)
	for i := range runes {
		if i >= n-2 {
			masked[i] = runes[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}

var funcs = template.FuncMap{
	"maskEmail": maskEmail,
	"maskPhone": maskPhone,
	"money":     func(v float64) string { return formatMoney(v) },
	"date":      func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"statuses": func() []models.InvoiceStatus {
		return []models.InvoiceStatus{
			models.InvoiceDraft, models.InvoiceSent, models.InvoiceViewed, models.InvoicePartial,
			models.InvoicePaid, models.InvoiceOverdue, models.InvoiceWrittenOff,
		}
	},
}

// userOrIP keys rate limits by the signed-in user, falling back to the client IP.
func userOrIP(c *gin.Context) string {
	if u, ok := middleware.CurrentUser(c); ok {
		return "user:" + uintString(u.ID)
	}
	return "ip:" + c.ClientIP()
}

func NewRouter(cfg *config.Config, limiters ratelimit.Limiters) (*gin.Engine, error) {
	r := gin.New()

	if cfg.OTel.Enabled() {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())

	tmpl, err := web.Templates(funcs)
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("bizportal_session", store))
	r.Use(middleware.InjectUser())

	// ops
	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// pages
	r.GET("/", handlers.IndexPage)
	r.GET("/register", handlers.ShowRegister)
	r.POST("/register", handlers.Register)
	r.GET("/login", handlers.ShowLogin)
	r.POST("/login", handlers.Login)
	r.GET("/logout", handlers.Logout)
	r.GET("/auth/oauth/login", handlers.OAuthLogin)
	r.GET("/auth/oauth/callback", handlers.OAuthCallback)

	staff := middleware.RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleMember)
	managers := middleware.RequireRole(models.RoleOwner, models.RoleAdmin)

	pages := r.Group("/")
	pages.Use(middleware.RequireAuth())
	pages.GET("/dashboard", handlers.DashboardPage)
	tenantPages := pages.Group("/", middleware.RequireOrganization())
	tenantPages.GET("/clients", staff, handlers.ClientsPage)
	tenantPages.GET("/invoices", staff, handlers.InvoicesPage)
	tenantPages.GET("/insights", staff, handlers.InsightsPage)
	tenantPages.GET("/audit", managers, handlers.AuditPage)
	tenantPages.GET("/portal", handlers.PortalPage)

	// Stripe signs its requests; they are neither session-authenticated nor rate limited.
	r.POST("/api/webhooks/stripe", handlers.StripeWebhook)

	api := r.Group("/api")
	api.Use(ratelimit.Middleware(limiters.API, "api", userOrIP))

	api.POST("/auth/register", handlers.APIRegister)
	api.POST("/auth/login", handlers.APILogin)
	api.POST("/auth/logout", handlers.APILogout)

	authed := api.Group("", middleware.RequireAuth())
	authed.GET("/me", handlers.Me)
	authed.POST("/organizations", staff, handlers.CreateOrganization)
	authed.POST("/projects", staff, handlers.CreateProject)

	tenant := authed.Group("", middleware.RequireOrganization())
	tenant.GET("/organizations/current", handlers.CurrentOrganization)

	tenant.GET("/clients", staff, handlers.ListClients)
	tenant.POST("/clients", staff, handlers.CreateClient)
	tenant.GET("/clients/:id", staff, handlers.GetClient)
	tenant.PUT("/clients/:id", staff, handlers.UpdateClient)
	tenant.POST("/clients/:id/portal-access", managers, handlers.GrantPortalAccess)

	// portal users reach invoices and projects too; services scope them to their client
	tenant.GET("/invoices", handlers.ListInvoices)
	tenant.POST("/invoices", staff, handlers.CreateInvoice)
	tenant.GET("/invoices/:id", handlers.GetInvoice)
	tenant.PATCH("/invoices/:id/status", staff, handlers.UpdateInvoiceStatus)
	tenant.POST("/invoices/:id/payments", staff, handlers.RecordPayment)
	tenant.POST("/invoices/:id/send", staff, handlers.SendInvoice)
	tenant.POST("/invoices/:id/pay-link", handlers.InvoicePayLink)
	tenant.GET("/invoices/:id/pdf", handlers.InvoicePDF)

	tenant.GET("/projects", handlers.ListProjects)
	tenant.GET("/projects/:id", handlers.GetProject)
	tenant.PATCH("/projects/:id/status", staff, handlers.ChangeProjectStatus)
	tenant.DELETE("/projects/:id", managers, handlers.DeleteProject)
	tenant.GET("/projects/:id/change-requests", handlers.ListChangeRequests)
	tenant.POST("/projects/:id/change-requests", handlers.CreateChangeRequest)
	tenant.PATCH("/change-requests/:id/status", managers, handlers.UpdateChangeRequestStatus)

	tenant.GET("/cashflow/summary", staff, handlers.CashflowSummary)
	tenant.GET("/cashflow/forecast", staff, handlers.CashflowForecast)
	tenant.GET("/cashflow/health", staff, handlers.CashflowHealth)
	tenant.GET("/cashflow/recommendations", staff, handlers.CashflowRecommendations)

	tenant.GET("/insights", staff, handlers.ListInsights)
	tenant.POST("/insights/refresh", staff, handlers.RefreshInsights)
	tenant.POST("/insights/:id/dismiss", staff, handlers.DismissInsight)

	chat := tenant.Group("/chat", staff, ratelimit.Middleware(limiters.Chat, "chat", userOrIP))
	chat.POST("", handlers.PostChat)
	chat.GET("/:conversation_id", handlers.GetConversation)

	tenant.GET("/integrations", managers, handlers.ListIntegrations)
	tenant.POST("/integrations/:provider/connect", managers, handlers.ConnectIntegration)
	tenant.POST("/integrations/:provider/sync", managers, handlers.SyncIntegration)
	tenant.DELETE("/integrations/:provider", managers, handlers.DisconnectIntegration)

	tenant.POST("/billing/checkout", managers, handlers.BillingCheckout)
	tenant.POST("/billing/portal", managers, handlers.BillingPortal)
	tenant.GET("/billing/subscription", managers, handlers.BillingSubscription)

	tenant.GET("/audit", managers, handlers.ListAuditLogs)

	return r, nil
}

func health(c *gin.Context) {
	sqlDB, err := database.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
