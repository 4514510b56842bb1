package handlers

import (
	"net/http"
	"strconv"

	"bizportal/internal/database"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

func ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := services.ListAuditLogs(c.Request.Context(), database.DB, actor(c).OrganizationID, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

func AuditPage(c *gin.Context) {
	logs, err := services.ListAuditLogs(c.Request.Context(), database.DB, actor(c).OrganizationID, 200)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load audit log")
		return
	}
	render(c, http.StatusOK, "audit.html", gin.H{"logs": logs})
}
