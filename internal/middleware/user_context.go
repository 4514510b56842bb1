package middleware

import (
	"bizportal/internal/database"
	"bizportal/internal/logger"
	"bizportal/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const currentUserKey = "CurrentUser"

// InjectUser loads the session's user on every request and tags the request
// context with its tenant for logging.
func InjectUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(SessionUserID).(uint); ok && uid > 0 {
			var user models.User
			if err := database.DB.WithContext(c.Request.Context()).Preload("Organization").First(&user, uid).Error; err == nil {
				c.Set(currentUserKey, &user)
				ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
					UserID:         logger.Ptr(user.ID),
					OrganizationID: user.OrganizationID,
				})
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// SetCurrentUser is used after login so the same request sees the user.
func SetCurrentUser(c *gin.Context, u *models.User) {
	c.Set(currentUserKey, u)
}
