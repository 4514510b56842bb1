// Package pdf renders invoices as PDF documents.
package pdf

import (
	"fmt"

	"bizportal/internal/models"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const dateLayout = "Jan 2, 2006"

var (
	heading = props.Text{Size: 18, Style: fontstyle.Bold}
	label   = props.Text{Size: 9, Style: fontstyle.Bold}
	body    = props.Text{Size: 9}
	right   = props.Text{Size: 9, Align: align.Right}
	total   = props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right}
)

// Invoice renders a single invoice with its payments.
func Invoice(org models.Organization, inv models.Invoice) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(
		text.NewRow(12, org.Name, heading),
		text.NewRow(6, "Invoice "+inv.Number, body),
		line.NewRow(4),
	)

	m.AddRow(6,
		text.NewCol(6, "Bill to", label),
		text.NewCol(3, "Issued", label),
		text.NewCol(3, "Due", label),
	)
	m.AddRow(6,
		text.NewCol(6, inv.Client.Name, body),
		text.NewCol(3, inv.IssueDate.Format(dateLayout), body),
		text.NewCol(3, inv.DueDate.Format(dateLayout), body),
	)
	if inv.Client.Email != "" {
		m.AddRow(6, text.NewCol(12, inv.Client.Email, body))
	}
	m.AddRows(line.NewRow(6))

	m.AddRow(6,
		text.NewCol(8, "Description", label),
		text.NewCol(4, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	desc := inv.Description
	if desc == "" {
		desc = "Services"
	}
	m.AddRow(8,
		text.NewCol(8, desc, body),
		text.NewCol(4, money(inv.Currency, inv.Amount.StringFixed(2)), right),
	)

	for _, p := range inv.Payments {
		m.AddRow(6,
			text.NewCol(8, fmt.Sprintf("Payment %s (%s)", p.PaidAt.Format(dateLayout), p.Method), body),
			text.NewCol(4, "-"+money(inv.Currency, p.Amount.StringFixed(2)), right),
		)
	}

	m.AddRows(line.NewRow(4))
	m.AddRow(8,
		text.NewCol(8, "Balance due", props.Text{Size: 11, Style: fontstyle.Bold}),
		text.NewCol(4, money(inv.Currency, inv.Outstanding().StringFixed(2)), total),
	)
	m.AddRow(6, text.NewCol(12, "Status: "+string(inv.Status), body))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func money(currency, amount string) string {
	return currency + " " + amount
}
