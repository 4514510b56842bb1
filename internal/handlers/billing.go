package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"bizportal/internal/billing"
	"bizportal/internal/database"
	"bizportal/internal/logger"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody matches Stripe's documented upper bound for event payloads.
const maxWebhookBody = 65536

type checkoutRequest struct {
	Plan string `json:"plan" binding:"required,oneof=starter pro"`
}

func BillingCheckout(c *gin.Context) {
	if deps.Billing == nil {
		fail(c, billing.ErrNotConfigured)
		return
	}
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}
	a := actor(c)
	org, err := services.GetOrganization(c.Request.Context(), database.DB, a.OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	u, _ := middleware.CurrentUser(c)

	url, err := deps.Billing.CreateSubscriptionCheckout(c.Request.Context(), billing.SubscriptionCheckout{
		OrganizationID: org.ID,
		CustomerID:     org.StripeCustomerID,
		CustomerEmail:  u.Email,
		Plan:           models.Plan(req.Plan),
		SuccessURL:     appURL() + "/dashboard?billing=success",
		CancelURL:      appURL() + "/dashboard?billing=canceled",
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func BillingPortal(c *gin.Context) {
	if deps.Billing == nil {
		fail(c, billing.ErrNotConfigured)
		return
	}
	org, err := services.GetOrganization(c.Request.Context(), database.DB, actor(c).OrganizationID)
	if err != nil {
		fail(c, err)
		return
	}
	if org.StripeCustomerID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no billing account yet; start a subscription first"})
		return
	}
	url, err := deps.Billing.CreatePortalSession(c.Request.Context(), org.StripeCustomerID, appURL()+"/dashboard")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func BillingSubscription(c *gin.Context) {
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
	c.JSON(http.StatusOK, gin.H{"plan": org.Plan, "subscription": sub})
}

// StripeWebhook verifies the signature before anything touches the database.
func StripeWebhook(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "billing.webhook"})

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	secret := ""
	if deps.Config != nil {
		secret = deps.Config.Stripe.WebhookSecret
	}
	event, err := billing.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), secret)
	if errors.Is(err, billing.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhooks are not configured"})
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "rejected stripe webhook", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if deps.Webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhooks are not configured"})
		return
	}
	outcome, err := deps.Webhooks.Handle(ctx, event)
	if err != nil {
		// a 5xx makes Stripe retry the event
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
