package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bizportal/internal/billing"
	"bizportal/internal/database"
	"bizportal/internal/models"
	"bizportal/internal/pdf"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type invoiceRequest struct {
	ClientID    uint            `json:"client_id" binding:"required"`
	Number      string          `json:"number" binding:"max=50"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	IssueDate   string          `json:"issue_date" binding:"required"`
	DueDate     string          `json:"due_date" binding:"required"`
}

func (r invoiceRequest) input() (services.InvoiceInput, map[string]string) {
	fields := map[string]string{}
	issue, err := time.Parse(dateLayout, r.IssueDate)
	if err != nil {
		fields["issue_date"] = "must be YYYY-MM-DD"
	}
	due, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		fields["due_date"] = "must be YYYY-MM-DD"
	}
	if len(fields) == 0 && due.Before(issue) {
		fields["due_date"] = "must not be before issue_date"
	}
	if !r.Amount.IsPositive() {
		fields["amount"] = "must be greater than 0"
	}
	return services.InvoiceInput{
		ClientID:    r.ClientID,
		Number:      strings.TrimSpace(r.Number),
		Description: r.Description,
		Amount:      r.Amount,
		Currency:    strings.ToUpper(r.Currency),
		IssueDate:   issue,
		DueDate:     due,
	}, fields
}

func ListInvoices(c *gin.Context) {
	f := services.InvoiceFilter{Status: models.InvoiceStatus(c.Query("status"))}
	if f.Status != "" && !f.Status.Valid() {
		validationError(c, map[string]string{"status": "unknown status"})
		return
	}
	if raw := c.Query("client_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			validationError(c, map[string]string{"client_id": "must be a number"})
			return
		}
		f.ClientID = uint(id)
	}

	invoices, err := services.ListInvoices(c.Request.Context(), database.DB, actor(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func CreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	in, fields := req.input()
	if len(fields) > 0 {
		validationError(c, fields)
		return
	}
	inv, err := services.CreateInvoice(c.Request.Context(), database.DB, actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": inv})
}

func GetInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, err := services.GetInvoiceFor(c.Request.Context(), database.DB, actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv, "outstanding": inv.Outstanding()})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func UpdateInvoiceStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	next := models.InvoiceStatus(req.Status)
	if !next.Valid() {
		validationError(c, map[string]string{"status": "unknown status"})
		return
	}
	inv, err := services.ChangeInvoiceStatus(c.Request.Context(), database.DB, actor(c), id, next)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv})
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" binding:"required,oneof=stripe bank_transfer check cash other"`
	PaidAt string          `json:"paid_at"`
	Note   string          `json:"note" binding:"max=1000"`
}

func RecordPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.PaymentInput{Amount: req.Amount, Method: models.PaymentMethod(req.Method), Note: req.Note, PaidAt: now()}
	if !req.Amount.IsPositive() {
		validationError(c, map[string]string{"amount": "must be greater than 0"})
		return
	}
	if req.PaidAt != "" {
		t, err := time.Parse(dateLayout, req.PaidAt)
		if err != nil {
			validationError(c, map[string]string{"paid_at": "must be YYYY-MM-DD"})
			return
		}
		in.PaidAt = t
	}

	payment, inv, err := services.RecordPayment(c.Request.Context(), database.DB, actor(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment, "invoice": inv})
}

// payLink creates a Stripe checkout for the outstanding balance.
func payLink(c *gin.Context, inv *models.Invoice) (string, error) {
	if deps.Billing == nil {
		return "", billing.ErrNotConfigured
	}
	base := appURL()
	return deps.Billing.CreateInvoiceCheckout(c.Request.Context(), billing.InvoiceCheckout{
		OrganizationID: inv.OrganizationID,
		InvoiceID:      inv.ID,
		InvoiceNumber:  inv.Number,
		ClientEmail:    inv.Client.Email,
		Amount:         inv.Outstanding(),
		Currency:       inv.Currency,
		SuccessURL:     fmt.Sprintf("%s/portal?paid=%d", base, inv.ID),
		CancelURL:      base + "/portal",
	})
}

func SendInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	ctx := c.Request.Context()
	inv, err := services.GetInvoice(ctx, database.DB, a.OrganizationID, id)
	if err != nil {
		fail(c, err)
		return
	}

	url := appURL() + "/portal"
	if deps.Billing != nil {
		if link, err := payLink(c, inv); err == nil {
			url = link
		} else {
			slog.WarnContext(ctx, "pay link unavailable, sending portal link", "error", err, "invoice_id", inv.ID)
		}
	}

	inv, err = services.SendInvoice(ctx, database.DB, deps.Mailer, a, id, url)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv})
}

func InvoicePayLink(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, err := services.GetInvoiceFor(c.Request.Context(), database.DB, actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !inv.Status.Open() {
		c.JSON(http.StatusConflict, gin.H{"error": "invoice is not open"})
		return
	}
	url, err := payLink(c, inv)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func InvoicePDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	inv, err := services.GetInvoiceFor(c.Request.Context(), database.DB, a, id)
	if err != nil {
		fail(c, err)
		return
	}
	org, err := services.GetOrganization(c.Request.Context(), database.DB, a.OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	doc, err := pdf.Invoice(*org, *inv)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, inv.Number))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func InvoicesPage(c *gin.Context) {
	status := models.InvoiceStatus(c.Query("status"))
	if !status.Valid() {
		status = ""
	}
	invoices, err := services.ListInvoices(c.Request.Context(), database.DB, actor(c), services.InvoiceFilter{Status: status})
	if err != nil {
		c.String(http.StatusInternalServerError, "could not load invoices")
		return
	}
	render(c, http.StatusOK, "invoices.html", gin.H{
		"invoices":     invoices,
		"FilterStatus": string(status),
		"IsManager":    isManager(c),
	})
}
