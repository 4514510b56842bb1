package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const (
	TemplateInvoiceSent     = "invoice_sent"
	TemplatePaymentReminder = "payment_reminder"
	TemplatePaymentReceived = "payment_received"
)

// InvoiceEmail carries what every invoice email shows.
type InvoiceEmail struct {
	OrganizationName string
	ClientName       string
	ClientEmail      string
	InvoiceNumber    string
	Amount           string
	Outstanding      string
	Currency         string
	DueDate          time.Time
	PayURL           string
	DaysOverdue      int
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
}).Parse(`
{{define "invoice_sent"}}<p>Hello {{.ClientName}},</p>
<p>{{.OrganizationName}} has sent you invoice <strong>{{.InvoiceNumber}}</strong> for {{.Currency}} {{.Amount}}, due {{date .DueDate}}.</p>
{{if .PayURL}}<p><a href="{{.PayURL}}">Pay online</a></p>{{end}}
<p>Thank you for your business.</p>{{end}}

{{define "payment_reminder"}}<p>Hello {{.ClientName}},</p>
{{if gt .DaysOverdue 0}}<p>This is a friendly reminder that invoice <strong>{{.InvoiceNumber}}</strong> from {{.OrganizationName}} was due on {{date .DueDate}} and {{.Currency}} {{.Outstanding}} is still outstanding.</p>
{{else}}<p>Invoice <strong>{{.InvoiceNumber}}</strong> from {{.OrganizationName}} for {{.Currency}} {{.Outstanding}} is due on {{date .DueDate}}.</p>{{end}}
{{if .PayURL}}<p><a href="{{.PayURL}}">Pay online</a></p>{{end}}
<p>If you have already paid, please ignore this message.</p>{{end}}

{{define "payment_received"}}<p>Hello {{.ClientName}},</p>
<p>We received your payment for invoice <strong>{{.InvoiceNumber}}</strong>. Remaining balance: {{.Currency}} {{.Outstanding}}.</p>
<p>Thank you.</p>{{end}}
`))

var subjects = map[string]string{
	TemplateInvoiceSent:     "Invoice %s from %s",
	TemplatePaymentReminder: "Reminder: invoice %s from %s",
	TemplatePaymentReceived: "Payment received for invoice %s from %s",
}

// Render builds a ready-to-send message for one of the invoice templates.
func Render(name string, data InvoiceEmail) (Message, error) {
	subject, ok := subjects[name]
	if !ok {
		return Message{}, fmt.Errorf("mailer: unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}

	return Message{
		To:       []string{data.ClientEmail},
		Subject:  fmt.Sprintf(subject, data.InvoiceNumber, data.OrganizationName),
		HTML:     buf.String(),
		Template: name,
	}, nil
}
