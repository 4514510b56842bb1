package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"bizportal/internal/config"
	"bizportal/internal/database"
	"bizportal/internal/logger"
	"bizportal/internal/metrics"
	"bizportal/internal/models"
	"bizportal/internal/services"

	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcomes reported for each processed event.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected" // verified but not applicable; Stripe must not retry
	OutcomeFailed    = "failed"
)

// Processor applies verified Stripe events to the database.
type Processor struct {
	DB  *gorm.DB
	Cfg config.StripeConfig
}

// Handle dispatches one event. Replays of an already applied event are harmless.
func (p *Processor) Handle(ctx context.Context, event stripe.Event) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "billing.webhook"})
	eventType := string(event.Type)

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case "checkout.session.completed":
		outcome, err = p.checkoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		outcome, err = p.subscriptionChanged(ctx, event)
	case "invoice.payment_failed":
		outcome, err = p.invoicePaymentFailed(ctx, event)
	case "payment_intent.succeeded":
		outcome, err = p.paymentSucceeded(ctx, event)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		outcome = OutcomeFailed
		slog.ErrorContext(ctx, "stripe webhook failed", "error", err, "event_id", event.ID, "event_type", eventType)
	} else {
		slog.InfoContext(ctx, "stripe webhook handled", "event_id", event.ID, "event_type", eventType, "outcome", outcome)
	}
	metrics.RecordWebhookEvent(eventType, outcome)
	return outcome, err
}

func (p *Processor) checkoutCompleted(ctx context.Context, event stripe.Event) (string, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	// invoice payments are recorded from payment_intent.succeeded
	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		return OutcomeIgnored, nil
	}

	orgID, err := parseID(firstNonEmpty(sess.ClientReferenceID, sess.Metadata["organization_id"]))
	if err != nil {
		return "", fmt.Errorf("checkout session %s: %w", sess.ID, err)
	}
	plan := models.Plan(sess.Metadata["plan"])
	if plan != models.PlanStarter && plan != models.PlanPro {
		plan = models.PlanStarter
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	subID := ""
	if sess.Subscription != nil {
		subID = sess.Subscription.ID
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgUpdates := map[string]any{"plan": plan}
		if customerID != "" {
			orgUpdates["stripe_customer_id"] = customerID
		}
		res := tx.Model(&models.Organization{}).Where("id = ?", orgID).Updates(orgUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("organization %d: %w", orgID, services.ErrNotFound)
		}

		sub := models.Subscription{
			OrganizationID:       orgID,
			StripeSubscriptionID: subID,
			Plan:                 plan,
			Status:               models.SubscriptionActive,
		}
		if price, err := PriceFor(p.Cfg, plan); err == nil {
			sub.StripePriceID = price
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stripe_subscription_id", "stripe_price_id", "plan", "status", "updated_at"}),
		}).Create(&sub).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, orgID, nil, "subscription", sub.ID, "checkout_completed", string(plan))
		return nil
	})
	if err != nil {
		return "", err
	}
	return OutcomeProcessed, nil
}

func (p *Processor) subscriptionChanged(ctx context.Context, event stripe.Event) (string, error) {
	var s stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return "", fmt.Errorf("decode subscription: %w", err)
	}

	var sub models.Subscription
	err := p.DB.WithContext(ctx).Where("stripe_subscription_id = ?", s.ID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		orgID, perr := parseID(s.Metadata["organization_id"])
		if perr != nil {
			return OutcomeIgnored, nil
		}
		sub = models.Subscription{OrganizationID: orgID, StripeSubscriptionID: s.ID}
	} else if err != nil {
		return "", err
	}

	status := mapSubscriptionStatus(s.Status)
	if event.Type == "customer.subscription.deleted" {
		status = models.SubscriptionCanceled
	}
	priceID := sub.StripePriceID
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		priceID = s.Items.Data[0].Price.ID
	}
	plan := PlanForPrice(p.Cfg, priceID)
	if plan == models.PlanFree && sub.Plan != "" {
		plan = sub.Plan
	}
	orgPlan := plan
	if status == models.SubscriptionCanceled {
		orgPlan = models.PlanFree
	}

	var periodEnd *time.Time
	if s.CurrentPeriodEnd > 0 {
		t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub.Status = status
		sub.Plan = plan
		sub.StripePriceID = priceID
		sub.CurrentPeriodEnd = periodEnd
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stripe_subscription_id", "stripe_price_id", "plan", "status", "current_period_end", "updated_at"}),
		}).Save(&sub).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Organization{}).Where("id = ?", sub.OrganizationID).Update("plan", orgPlan).Error; err != nil {
			return err
		}
		database.WriteAuditLog(tx, sub.OrganizationID, nil, "subscription", sub.ID, "status_change", string(status))
		return nil
	})
	if err != nil {
		return "", err
	}
	return OutcomeProcessed, nil
}

func (p *Processor) invoicePaymentFailed(ctx context.Context, event stripe.Event) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("decode invoice: %w", err)
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return OutcomeIgnored, nil
	}

	var sub models.Subscription
	err := p.DB.WithContext(ctx).Where("stripe_subscription_id = ?", inv.Subscription.ID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if sub.Status == models.SubscriptionPastDue {
		return OutcomeDuplicate, nil
	}

	if err := p.DB.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Update("status", models.SubscriptionPastDue).Error; err != nil {
		return "", err
	}
	database.CreateAuditLog(sub.OrganizationID, nil, "subscription", sub.ID, "payment_failed", inv.ID)
	return OutcomeProcessed, nil
}

func (p *Processor) paymentSucceeded(ctx context.Context, event stripe.Event) (string, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", fmt.Errorf("decode payment intent: %w", err)
	}
	invoiceID, err := parseID(pi.Metadata["invoice_id"])
	if err != nil {
		// not one of our invoice pay links
		return OutcomeIgnored, nil
	}
	orgID, err := parseID(pi.Metadata["organization_id"])
	if err != nil {
		return "", fmt.Errorf("payment intent %s: %w", pi.ID, err)
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	paidAt := time.Now().UTC()
	if event.Created > 0 {
		paidAt = time.Unix(event.Created, 0).UTC()
	}

	_, _, err = services.RecordPayment(ctx, p.DB, services.Actor{OrganizationID: orgID}, invoiceID, services.PaymentInput{
		Amount:     FromMinorUnits(amount),
		Method:     models.MethodStripe,
		PaidAt:     paidAt,
		ExternalID: pi.ID,
		Note:       "Stripe checkout",
	})
	switch {
	case errors.Is(err, services.ErrDuplicatePayment):
		return OutcomeDuplicate, nil
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrOverpayment):
		// the money was collected; keep it visible for manual reconciliation
		slog.WarnContext(ctx, "stripe payment not applied to invoice",
			"error", err, "invoice_id", invoiceID, "payment_intent", pi.ID, "amount", FromMinorUnits(amount).StringFixed(2))
		database.WriteAuditLog(p.DB.WithContext(ctx), orgID, nil, "invoice", invoiceID, "payment_unapplied",
			fmt.Sprintf("%s %s: %v", pi.ID, FromMinorUnits(amount).StringFixed(2), err))
		return OutcomeRejected, nil
	case err != nil:
		return "", err
	}
	return OutcomeProcessed, nil
}

func mapSubscriptionStatus(s stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionTrialing
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	}
	return models.SubscriptionIncomplete
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
