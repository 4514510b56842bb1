package payroll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPayrolls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/companies/co-1/payrolls", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "processed", r.URL.Query().Get("processing_statuses"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"payroll_uuid":"p1","processed":true,"check_date":"2024-05-31",
			 "pay_period":{"start_date":"2024-05-16","end_date":"2024-05-31"},
			 "totals":{"gross_pay":"12000.50","net_pay":"9000.25","employer_taxes":"950.00"},
			 "employee_compensations":[{"employee_uuid":"e1","gross_pay":"6000.25","net_pay":"4500.00"}]},
			{"payroll_uuid":"p2","processed":false,"check_date":"2024-06-15","totals":{"gross_pay":"1","net_pay":"1","employer_taxes":"0"}}
		]`))
	}))
	defer srv.Close()

	c := NewGusto(srv.URL+"/", "tok")
	got, err := c.ListPayrolls(context.Background(), "co-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "p1", p.ExternalID)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), p.CheckDate)
	assert.True(t, p.GrossPay.Equal(decimal.RequireFromString("12000.50")))
	assert.True(t, p.EmployerTaxes.Equal(decimal.NewFromInt(950)))
	require.Len(t, p.Entries, 1)
	assert.Equal(t, "e1", p.Entries[0].EmployeeExternalID)
}

func TestListEmployees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"uuid":"e1","first_name":"Ada","last_name":"L","department":"Eng","terminated":false,"jobs":[{"title":"Engineer","primary":true}]},
			{"uuid":"e2","first_name":"Bob","last_name":"K","terminated":true,"jobs":[]}
		]`))
	}))
	defer srv.Close()

	got, err := NewGusto(srv.URL, "tok").ListEmployees(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Engineer", got[0].Title)
	assert.True(t, got[0].Active)
	assert.False(t, got[1].Active)
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewGusto(srv.URL, "bad").ListEmployees(context.Background(), "co-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
