package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"bizportal/internal/billing"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/payroll"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// actor builds the service actor from the authenticated user. Routes that call it
// sit behind RequireAuth and RequireOrganization.
func actor(c *gin.Context) services.Actor {
	u, _ := middleware.CurrentUser(c)
	a := services.Actor{UserID: u.ID, Role: u.Role}
	if u.OrganizationID != nil {
		a.OrganizationID = *u.OrganizationID
	}
	return a
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the body and answers 400 with per-field messages on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[jsonField(fe)] = fieldMessage(fe)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func validationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

func init() {
	// report json names rather than Go field names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func jsonField(fe validator.FieldError) string {
	if fe.Field() == "" {
		return "body"
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

// fail maps service errors onto status codes; anything unknown is a 500.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrNoOrganization):
		c.JSON(http.StatusForbidden, gin.H{"error": "organization required"})
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrOverpayment),
		errors.Is(err, services.ErrDuplicatePayment),
		errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotSupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "integration not available yet"})
	case errors.Is(err, billing.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing is not configured"})
	case errors.Is(err, payroll.ErrUnauthorized):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payroll provider rejected the stored credentials"})
	case errors.Is(err, billing.ErrUnknownPlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func isManager(c *gin.Context) bool {
	u, ok := middleware.CurrentUser(c)
	return ok && u.Role.IsManager()
}

func isPortalUser(c *gin.Context) bool {
	u, ok := middleware.CurrentUser(c)
	return ok && u.Role == models.RoleClient
}
