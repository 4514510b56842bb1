// Package billing wraps Stripe checkout, the customer portal and webhook processing.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bizportal/internal/config"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrNotConfigured    = errors.New("billing: stripe is not configured")
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrUnknownPlan      = errors.New("billing: unknown plan")
)

// Gateway is the part of Stripe the handlers use.
type Gateway interface {
	CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CreateInvoiceCheckout(ctx context.Context, in InvoiceCheckout) (string, error)
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

type SubscriptionCheckout struct {
	OrganizationID uint
	CustomerID     string // empty before the first checkout
	CustomerEmail  string
	Plan           models.Plan
	SuccessURL     string
	CancelURL      string
}

type InvoiceCheckout struct {
	OrganizationID uint
	InvoiceID      uint
	InvoiceNumber  string
	ClientEmail    string
	Amount         decimal.Decimal
	Currency       string
	SuccessURL     string
	CancelURL      string
}

type StripeGateway struct {
	api *client.API
	cfg config.StripeConfig
}

// NewStripe returns nil when no secret key is configured.
func NewStripe(cfg config.StripeConfig) *StripeGateway {
	if !cfg.Enabled() {
		return nil
	}
	return &StripeGateway{api: client.New(cfg.SecretKey, nil), cfg: cfg}
}

// PriceFor maps a paid plan to its configured Stripe price.
func PriceFor(cfg config.StripeConfig, plan models.Plan) (string, error) {
	switch plan {
	case models.PlanStarter:
		if cfg.PriceStarter != "" {
			return cfg.PriceStarter, nil
		}
	case models.PlanPro:
		if cfg.PricePro != "" {
			return cfg.PricePro, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
}

// PlanForPrice is the inverse of PriceFor; unknown prices map to free.
func PlanForPrice(cfg config.StripeConfig, priceID string) models.Plan {
	switch {
	case priceID == "":
		return models.PlanFree
	case priceID == cfg.PriceStarter:
		return models.PlanStarter
	case priceID == cfg.PricePro:
		return models.PlanPro
	}
	return models.PlanFree
}

func (g *StripeGateway) CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (string, error) {
	price, err := PriceFor(g.cfg, in.Plan)
	if err != nil {
		return "", err
	}
	orgID := strconv.FormatUint(uint64(in.OrganizationID), 10)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(orgID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"organization_id": orgID, "plan": string(in.Plan)},
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	params.AddMetadata("organization_id", orgID)
	params.AddMetadata("plan", string(in.Plan))
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// CreateInvoiceCheckout opens a one-off payment for an invoice's outstanding balance.
// The payment intent carries the invoice id so the webhook can record the payment.
func (g *StripeGateway) CreateInvoiceCheckout(ctx context.Context, in InvoiceCheckout) (string, error) {
	meta := map[string]string{
		"organization_id": strconv.FormatUint(uint64(in.OrganizationID), 10),
		"invoice_id":      strconv.FormatUint(uint64(in.InvoiceID), 10),
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(lowerCurrency(in.Currency)),
				UnitAmount: stripe.Int64(ToMinorUnits(in.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Invoice " + in.InvoiceNumber),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
	}
	if in.ClientEmail != "" {
		params.CustomerEmail = stripe.String(in.ClientEmail)
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create invoice checkout: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	return ParseWebhook(payload, signature, g.cfg.WebhookSecret)
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func ParseWebhook(payload []byte, signature, secret string) (stripe.Event, error) {
	if secret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// ToMinorUnits converts an amount to cents.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents to an amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func lowerCurrency(c string) string {
	if c == "" {
		return "usd"
	}
	return strings.ToLower(c)
}
