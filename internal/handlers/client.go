package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

type clientRequest struct {
	Name    string `json:"name" form:"name" binding:"required,min=2,max=255"`
	Email   string `json:"email" form:"email" binding:"omitempty,email"`
	Phone   string `json:"phone" form:"phone" binding:"max=50"`
	Company string `json:"company" form:"company" binding:"max=255"`
	Notes   string `json:"notes" form:"notes"`
}

func (r clientRequest) input() services.ClientInput {
	return services.ClientInput(r)
}

func ListClients(c *gin.Context) {
	clients, err := services.ListClients(c.Request.Context(), database.DB, actor(c).OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func CreateClient(c *gin.Context) {
	var req clientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := services.CreateClient(c.Request.Context(), database.DB, actor(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client})
}

func GetClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	client, err := services.GetClient(c.Request.Context(), database.DB, a.OrganizationID, id)
	if err != nil {
		fail(c, err)
		return
	}
	invoices, err := services.ListInvoices(c.Request.Context(), database.DB, a, services.InvoiceFilter{ClientID: id})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client, "invoices": invoices})
}

func UpdateClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req clientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := services.UpdateClient(c.Request.Context(), database.DB, actor(c), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client})
}

type portalAccessRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// GrantPortalAccess creates the login a client uses for /portal.
func GrantPortalAccess(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req portalAccessRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := services.CreatePortalUser(c.Request.Context(), database.DB, actor(c), id, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ClientsPage is the server-rendered client list.
func ClientsPage(c *gin.Context) {
	clients, err := services.ListClients(c.Request.Context(), database.DB, actor(c).OrganizationID)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load clients")
		return
	}
	render(c, http.StatusOK, "clients.html", gin.H{
		"clients":   clients,
		"IsManager": isManager(c),
	})
}
