package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bizportal/internal/ai"
	"bizportal/internal/cashflow"
	"bizportal/internal/metrics"
	"bizportal/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Completer is the subset of ai.Client the assistant uses.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message, maxTokens int) (string, error)
}

type ChatReply struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Source         string `json:"source"` // "ai" or "fallback"
}

// chatHistoryLimit caps how many earlier turns are replayed to the model.
const chatHistoryLimit = 12

const chatSystemPrompt = `You are a helpful assistant inside a small-business management app.
Answer questions about the user's invoices, cash flow and clients using only the figures provided.
Be concise. Use hedged language, never promise outcomes, and remind the user that you do not give financial, legal or tax advice when they ask for it.`

// Chat stores the user's message, answers it, and stores the answer.
// Without a working model the reply is a deterministic snapshot of the numbers.
func Chat(ctx context.Context, db *gorm.DB, c Completer, actor Actor, conversationID, message string, now time.Time) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	} else if _, err := uuid.Parse(conversationID); err != nil {
		return nil, ErrNotFound
	}

	history, err := ConversationMessages(ctx, db, actor, conversationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	report, err := LoadCashflow(ctx, db, actor.OrganizationID, now, cashflow.DefaultHorizonDays)
	if err != nil {
		return nil, err
	}
	facts := describeReport(report)

	reply := ChatReply{ConversationID: conversationID, Source: "ai"}
	if c == nil {
		reply.Reply, reply.Source = fallbackReply(facts), "fallback"
	} else {
		msgs := []ai.Message{{Role: "system", Content: chatSystemPrompt + "\n\nCurrent figures:\n" + facts}}
		if len(history) > chatHistoryLimit {
			history = history[len(history)-chatHistoryLimit:]
		}
		for _, h := range history {
			msgs = append(msgs, ai.Message{Role: string(h.Role), Content: h.Content})
		}
		msgs = append(msgs, ai.Message{Role: "user", Content: message})

		text, err := c.Complete(ctx, msgs, 600)
		if err != nil || strings.TrimSpace(text) == "" {
			slog.WarnContext(ctx, "chat completion failed, using fallback", "error", err)
			metrics.RecordAIFallback("chat")
			reply.Reply, reply.Source = fallbackReply(facts), "fallback"
		} else {
			reply.Reply = strings.TrimSpace(text)
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := []models.ChatMessage{
			{OrganizationID: actor.OrganizationID, UserID: actor.UserID, ConversationID: conversationID, Role: models.ChatUser, Content: message, CreatedAt: now},
			{OrganizationID: actor.OrganizationID, UserID: actor.UserID, ConversationID: conversationID, Role: models.ChatAssistant, Content: reply.Reply, CreatedAt: now.Add(time.Millisecond)},
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save chat: %w", err)
	}
	return &reply, nil
}

// ConversationMessages returns a conversation of the actor, oldest first.
func ConversationMessages(ctx context.Context, db *gorm.DB, actor Actor, conversationID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ? AND conversation_id = ?", actor.OrganizationID, actor.UserID, conversationID).
		Order("created_at, id").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs, nil
}

func describeReport(r *CashflowReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- outstanding receivables: %.2f across %d open invoices\n", r.Summary.TotalOutstanding, r.Summary.OpenCount)
	fmt.Fprintf(&b, "- overdue: %.2f across %d invoices\n", r.Summary.OverdueAmount, r.Summary.OverdueCount)
	fmt.Fprintf(&b, "- expected collections next %d days: %.2f (%s confidence)\n", r.Forecast.HorizonDays, r.Forecast.Expected, r.Forecast.Confidence)
	fmt.Fprintf(&b, "- payments received last 30 days: %.2f\n", r.Revenue30)
	fmt.Fprintf(&b, "- cash-flow health score: %d/100 (%s)\n", r.Health.Score, r.Health.Grade)
	if r.AvgToPay > 0 {
		fmt.Fprintf(&b, "- clients pay on average %.0f days after issue\n", r.AvgToPay)
	}
	return b.String()
}

func fallbackReply(facts string) string {
	return "The assistant is unavailable right now, but here is a snapshot of your numbers:\n" + facts +
		"This is an automated summary, not financial advice."
}
