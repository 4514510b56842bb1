package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

func ListInsights(c *gin.Context) {
	all := c.Query("include_dismissed") == "1"
	out, err := services.ListInsights(c.Request.Context(), database.DB, actor(c).OrganizationID, all)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": out})
}

func RefreshInsights(c *gin.Context) {
	out, err := services.RefreshInsights(c.Request.Context(), database.DB, actor(c).OrganizationID, now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": out})
}

func DismissInsight(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := services.DismissInsight(c.Request.Context(), database.DB, actor(c).OrganizationID, id, now()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func InsightsPage(c *gin.Context) {
	out, err := services.ListInsights(c.Request.Context(), database.DB, actor(c).OrganizationID, false)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load insights")
		return
	}
	render(c, http.StatusOK, "insights.html", gin.H{"insights": out})
}
