package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/middleware"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

type organizationRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Industry string `json:"industry" binding:"max=100"`
}

// CreateOrganization is onboarding; a user that already has one gets it back with 200.
func CreateOrganization(c *gin.Context) {
	var req organizationRequest
	if !bindJSON(c, &req) {
		return
	}
	u, _ := middleware.CurrentUser(c)
	org, created, err := services.CreateOrganization(c.Request.Context(), database.DB, u.ID,
		services.OrganizationInput{Name: req.Name, Industry: req.Industry})
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"organization": org})
}

func CurrentOrganization(c *gin.Context) {
	a := actor(c)
	org, err := services.GetOrganization(c.Request.Context(), database.DB, a.OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	sub, err := services.GetSubscription(c.Request.Context(), database.DB, a.OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": org, "subscription": sub})
}
