package handlers

import (
	"net/http"
	"strings"
	"time"

	"bizportal/internal/database"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type projectRequest struct {
	Name             string          `json:"name" binding:"required,min=2,max=255"`
	Domain           string          `json:"domain" binding:"max=255"`
	Description      string          `json:"description"`
	ClientID         *uint           `json:"client_id"`
	Budget           decimal.Decimal `json:"budget"`
	StartDate        string          `json:"start_date"`
	LaunchDate       string          `json:"launch_date"`
	OrganizationName string          `json:"organization_name" binding:"max=255"`
}

func parseOptionalDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func ListProjects(c *gin.Context) {
	projects, err := services.ListProjects(c.Request.Context(), database.DB, actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// CreateProject also onboards users without an organization: the organization and
// the project are created together or not at all.
func CreateProject(c *gin.Context) {
	if isPortalUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req projectRequest
	if !bindJSON(c, &req) {
		return
	}
	fields := map[string]string{}
	start, ok := parseOptionalDate(req.StartDate)
	if !ok {
		fields["start_date"] = "must be YYYY-MM-DD"
	}
	launch, ok := parseOptionalDate(req.LaunchDate)
	if !ok {
		fields["launch_date"] = "must be YYYY-MM-DD"
	}
	if req.Budget.IsNegative() {
		fields["budget"] = "must not be negative"
	}
	if len(fields) > 0 {
		validationError(c, fields)
		return
	}

	u, _ := middleware.CurrentUser(c)
	project, err := services.CreateProject(c.Request.Context(), database.DB, u.ID, services.ProjectInput{
		Name:             strings.TrimSpace(req.Name),
		Domain:           strings.TrimSpace(req.Domain),
		Description:      req.Description,
		ClientID:         req.ClientID,
		Budget:           req.Budget,
		StartDate:        start,
		LaunchDate:       launch,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func GetProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := services.GetProject(c.Request.Context(), database.DB, actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func ChangeProjectStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	next := models.ProjectStatus(req.Status)
	if !next.Valid() {
		validationError(c, map[string]string{"status": "unknown status"})
		return
	}
	p, err := services.ChangeProjectStatus(c.Request.Context(), database.DB, actor(c), id, next)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

func DeleteProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := services.DeleteProject(c.Request.Context(), database.DB, actor(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changeRequestRequest struct {
	Title          string          `json:"title" binding:"required,min=3,max=255"`
	Description    string          `json:"description"`
	Priority       string          `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	EstimatedHours float64         `json:"estimated_hours" binding:"gte=0"`
	Cost           decimal.Decimal `json:"cost"`
}

func ListChangeRequests(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	out, err := services.ListChangeRequests(c.Request.Context(), database.DB, actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"change_requests": out})
}

func CreateChangeRequest(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req changeRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	cr, err := services.CreateChangeRequest(c.Request.Context(), database.DB, actor(c), id, services.ChangeRequestInput{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Priority:       models.ChangeRequestPriority(req.Priority),
		EstimatedHours: req.EstimatedHours,
		Cost:           req.Cost,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"change_request": cr})
}

func UpdateChangeRequestStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	next := models.ChangeRequestStatus(req.Status)
	if !next.Valid() {
		validationError(c, map[string]string{"status": "unknown status"})
		return
	}
	cr, err := services.ChangeRequestStatus(c.Request.Context(), database.DB, actor(c), id, next)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"change_request": cr})
}
