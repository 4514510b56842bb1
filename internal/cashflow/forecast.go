package cashflow

import (
	"math"
	"sort"
	"time"
)

// DefaultHorizonDays is the forecast window used by the dashboard and the health score.
const DefaultHorizonDays = 30

type ForecastItem struct {
	InvoiceID     uint      `json:"invoice_id"`
	ClientID      uint      `json:"client_id"`
	Outstanding   float64   `json:"outstanding"`
	ExpectedDate  time.Time `json:"expected_date"`
	Probability   float64   `json:"probability"`
	Expected      float64   `json:"expected"`
	HistoryBacked bool      `json:"history_backed"`
}

type WeekBucket struct {
	Week     int       `json:"week"`
	Start    time.Time `json:"start"`
	Expected float64   `json:"expected"`
}

type Forecast struct {
	HorizonDays int            `json:"horizon_days"`
	Expected    float64        `json:"expected"`
	Weekly      []WeekBucket   `json:"weekly"`
	Confidence  Confidence     `json:"confidence"`
	Items       []ForecastItem `json:"items"`
}

// CollectionProbability is the chance an open invoice is collected given how late it is.
func CollectionProbability(daysPastDue int) float64 {
	switch {
	case daysPastDue <= 0:
		return 0.95
	case daysPastDue <= 30:
		return 0.85
	case daysPastDue <= 60:
		return 0.65
	case daysPastDue <= 90:
		return 0.45
	default:
		return 0.20
	}
}

// ForecastInflow projects collections from open invoices over the next horizonDays.
func ForecastInflow(invoices []Invoice, histories map[uint]History, now time.Time, horizonDays int) Forecast {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	today := startOfDay(now)
	weeks := int(math.Ceil(float64(horizonDays) / 7))
	f := Forecast{
		HorizonDays: horizonDays,
		Weekly:      make([]WeekBucket, weeks),
		Confidence:  ConfidenceLow,
		Items:       []ForecastItem{},
	}
	for i := range f.Weekly {
		f.Weekly[i] = WeekBucket{Week: i, Start: today.AddDate(0, 0, i*7)}
	}

	var backed float64
	for _, inv := range invoices {
		out := Outstanding(inv)
		if out <= 0 {
			continue
		}

		h, hasHistory := histories[inv.ClientID]
		hasHistory = hasHistory && h.PaidCount > 0

		expected := startOfDay(inv.DueDate)
		if hasHistory {
			expected = startOfDay(inv.IssueDate).AddDate(0, 0, int(math.Round(h.AvgDaysToPay)))
		}
		if expected.Before(today) {
			expected = today.AddDate(0, 0, 7)
		}

		offset := dayDiff(today, expected)
		if offset < 0 || offset > horizonDays {
			continue
		}

		p := CollectionProbability(DaysPastDue(inv, now))
		if hasHistory && h.PaidCount >= 3 {
			p *= 0.7 + 0.3*h.OnTimeRatio
		}

		amount := out * p
		f.Expected += amount
		week := min(offset/7, weeks-1)
		f.Weekly[week].Expected += amount
		if hasHistory {
			backed += amount
		}

		f.Items = append(f.Items, ForecastItem{
			InvoiceID:     inv.ID,
			ClientID:      inv.ClientID,
			Outstanding:   round2(out),
			ExpectedDate:  expected,
			Probability:   round2(p),
			Expected:      round2(amount),
			HistoryBacked: hasHistory,
		})
	}

	if f.Expected > 0 {
		share := backed / f.Expected
		switch {
		case share >= 0.7:
			f.Confidence = ConfidenceHigh
		case share >= 0.4:
			f.Confidence = ConfidenceMedium
		}
	}

	f.Expected = round2(f.Expected)
	for i := range f.Weekly {
		f.Weekly[i].Expected = round2(f.Weekly[i].Expected)
	}
	sort.SliceStable(f.Items, func(i, j int) bool {
		return f.Items[i].ExpectedDate.Before(f.Items[j].ExpectedDate)
	})
	return f
}
