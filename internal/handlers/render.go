package handlers

import (
	"bizportal/internal/middleware"

	"github.com/gin-gonic/gin"
)

// render wraps c.HTML and passes the current user to every template.
func render(c *gin.Context, status int, tmpl string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	if u, ok := middleware.CurrentUser(c); ok {
		data["CurrentUser"] = u
		data["CurrentUserRole"] = string(u.Role)
		if u.Organization != nil {
			data["CurrentOrganization"] = u.Organization
		}
	}

	c.HTML(status, tmpl, data)
}
