package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/middleware"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

func IndexPage(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if ok {
		c.Redirect(http.StatusFound, landing(u))
		return
	}
	render(c, http.StatusOK, "index.html", gin.H{})
}

// PortalPage shows a client its invoices and projects.
func PortalPage(c *gin.Context) {
	a := actor(c)
	ctx := c.Request.Context()
	invoices, err := services.ListInvoices(ctx, database.DB, a, services.InvoiceFilter{})
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load invoices")
		return
	}
	projects, err := services.ListProjects(ctx, database.DB, a)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load projects")
		return
	}
	render(c, http.StatusOK, "portal.html", gin.H{
		"invoices":   invoices,
		"projects":   projects,
		"PaidNotice": c.Query("paid") != "",
		"CanPay":     deps.Billing != nil,
	})
}
