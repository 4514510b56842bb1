package mailer

import (
	"context"
	"testing"
	"time"

	"bizportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutKeyIsNoop(t *testing.T) {
	m := New(config.ResendConfig{})
	_, ok := m.(Noop)
	require.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), Message{To: []string{"a@b.c"}, Template: "test"}))
}

func TestRenderReminder(t *testing.T) {
	msg, err := Render(TemplatePaymentReminder, InvoiceEmail{
		OrganizationName: "Acme",
		ClientName:       "Globex <Ops>",
		ClientEmail:      "ap@globex.test",
		InvoiceNumber:    "INV-0007",
		Outstanding:      "120.00",
		Currency:         "USD",
		DueDate:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DaysOverdue:      12,
		PayURL:           "https://pay.test/x",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ap@globex.test"}, msg.To)
	assert.Equal(t, "Reminder: invoice INV-0007 from Acme", msg.Subject)
	assert.Contains(t, msg.HTML, "was due on May 1, 2024")
	assert.Contains(t, msg.HTML, "Globex &lt;Ops&gt;")
	assert.Contains(t, msg.HTML, `href="https://pay.test/x"`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", InvoiceEmail{})
	assert.Error(t, err)
}
