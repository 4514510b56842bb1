package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/models"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

func providerParam(c *gin.Context) (models.IntegrationProvider, bool) {
	p := models.IntegrationProvider(c.Param("provider"))
	if !p.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return "", false
	}
	if !p.Supported() {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "integration not available yet"})
		return "", false
	}
	return p, true
}

func ListIntegrations(c *gin.Context) {
	out, err := services.ListIntegrations(c.Request.Context(), database.DB, actor(c).OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": out})
}

type connectRequest struct {
	AccessToken       string `json:"access_token" binding:"required"`
	ExternalCompanyID string `json:"company_id"`
}

func ConnectIntegration(c *gin.Context) {
	p, ok := providerParam(c)
	if !ok {
		return
	}
	var req connectRequest
	if !bindJSON(c, &req) {
		return
	}
	integ, err := services.ConnectIntegration(c.Request.Context(), database.DB, actor(c), p,
		services.ConnectInput{AccessToken: req.AccessToken, ExternalCompanyID: req.ExternalCompanyID})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": integ})
}

func SyncIntegration(c *gin.Context) {
	if _, ok := providerParam(c); !ok {
		return
	}
	if deps.Payroll == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payroll sync is not configured"})
		return
	}
	res, err := services.SyncPayroll(c.Request.Context(), database.DB, deps.Payroll, actor(c).OrganizationID, now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func DisconnectIntegration(c *gin.Context) {
	p, ok := providerParam(c)
	if !ok {
		return
	}
	if err := services.DisconnectIntegration(c.Request.Context(), database.DB, actor(c), p); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
