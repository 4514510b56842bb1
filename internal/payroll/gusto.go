// Package payroll pulls processed pay runs and employees from Gusto.
package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnauthorized = errors.New("payroll: access token rejected")

type Payroll struct {
	ExternalID    string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	CheckDate     time.Time
	GrossPay      decimal.Decimal
	NetPay        decimal.Decimal
	EmployerTaxes decimal.Decimal
	Entries       []Entry
}

type Entry struct {
	EmployeeExternalID string
	GrossPay           decimal.Decimal
	NetPay             decimal.Decimal
}

type Employee struct {
	ExternalID string
	FirstName  string
	LastName   string
	Title      string
	Department string
	Active     bool
}

// Provider is a payroll system for one connected company.
type Provider interface {
	ListPayrolls(ctx context.Context, companyID string, since time.Time) ([]Payroll, error)
	ListEmployees(ctx context.Context, companyID string) ([]Employee, error)
}

// Factory builds a Provider from an integration's stored access token.
type Factory func(accessToken string) Provider

type GustoClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewGusto(baseURL, accessToken string) *GustoClient {
	return &GustoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   accessToken,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GustoFactory returns a Factory bound to baseURL.
func GustoFactory(baseURL string) Factory {
	return func(token string) Provider {
		return NewGusto(baseURL, token)
	}
}

const dateLayout = "2006-01-02"

type gustoPayroll struct {
	UUID      string `json:"payroll_uuid"`
	Processed bool   `json:"processed"`
	CheckDate string `json:"check_date"`
	PayPeriod struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	} `json:"pay_period"`
	Totals struct {
		GrossPay      decimal.Decimal `json:"gross_pay"`
		NetPay        decimal.Decimal `json:"net_pay"`
		EmployerTaxes decimal.Decimal `json:"employer_taxes"`
	} `json:"totals"`
	EmployeeCompensations []struct {
		EmployeeUUID string          `json:"employee_uuid"`
		GrossPay     decimal.Decimal `json:"gross_pay"`
		NetPay       decimal.Decimal `json:"net_pay"`
	} `json:"employee_compensations"`
}

func (c *GustoClient) ListPayrolls(ctx context.Context, companyID string, since time.Time) ([]Payroll, error) {
	q := url.Values{}
	q.Set("processing_statuses", "processed")
	q.Set("include", "totals")
	if !since.IsZero() {
		q.Set("start_date", since.Format(dateLayout))
	}

	var raw []gustoPayroll
	if err := c.get(ctx, fmt.Sprintf("/v1/companies/%s/payrolls", url.PathEscape(companyID)), q, &raw); err != nil {
		return nil, err
	}

	out := make([]Payroll, 0, len(raw))
	for _, p := range raw {
		if !p.Processed {
			continue
		}
		checkDate, err := parseDate(p.CheckDate)
		if err != nil {
			return nil, fmt.Errorf("payroll %s check_date: %w", p.UUID, err)
		}
		start, _ := parseDate(p.PayPeriod.StartDate)
		end, _ := parseDate(p.PayPeriod.EndDate)

		entries := make([]Entry, 0, len(p.EmployeeCompensations))
		for _, ec := range p.EmployeeCompensations {
			entries = append(entries, Entry{
				EmployeeExternalID: ec.EmployeeUUID,
				GrossPay:           ec.GrossPay,
				NetPay:             ec.NetPay,
			})
		}

		out = append(out, Payroll{
			ExternalID:    p.UUID,
			PeriodStart:   start,
			PeriodEnd:     end,
			CheckDate:     checkDate,
			GrossPay:      p.Totals.GrossPay,
			NetPay:        p.Totals.NetPay,
			EmployerTaxes: p.Totals.EmployerTaxes,
			Entries:       entries,
		})
	}
	return out, nil
}

type gustoEmployee struct {
	UUID       string `json:"uuid"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Department string `json:"department"`
	Terminated bool   `json:"terminated"`
	Jobs       []struct {
		Title   string `json:"title"`
		Primary bool   `json:"primary"`
	} `json:"jobs"`
}

func (c *GustoClient) ListEmployees(ctx context.Context, companyID string) ([]Employee, error) {
	var raw []gustoEmployee
	if err := c.get(ctx, fmt.Sprintf("/v1/companies/%s/employees", url.PathEscape(companyID)), nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Employee, 0, len(raw))
	for _, e := range raw {
		title := ""
		for i, j := range e.Jobs {
			if j.Primary || i == 0 {
				title = j.Title
			}
		}
		out = append(out, Employee{
			ExternalID: e.UUID,
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			Title:      title,
			Department: e.Department,
			Active:     !e.Terminated,
		})
	}
	return out, nil
}

func (c *GustoClient) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gusto %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gusto %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gusto %s: %w", path, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
