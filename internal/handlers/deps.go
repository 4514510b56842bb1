package handlers

import (
	"time"

	"bizportal/internal/ai"
	"bizportal/internal/auth"
	"bizportal/internal/billing"
	"bizportal/internal/config"
	"bizportal/internal/mailer"
	"bizportal/internal/payroll"
)

// Deps are the collaborators the package-level handlers use. Optional ones are nil
// when their integration is not configured.
type Deps struct {
	Config   *config.Config
	Billing  billing.Gateway
	Webhooks *billing.Processor
	Mailer   mailer.Mailer
	AI       ai.Client
	OAuth    auth.Provider
	Payroll  payroll.Factory
	Now      func() time.Time
}

var deps Deps

// Configure must be called before the router serves requests.
func Configure(d Deps) {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Mailer == nil {
		d.Mailer = mailer.Noop{}
	}
	deps = d
}

func now() time.Time {
	return deps.Now()
}

func appURL() string {
	if deps.Config == nil {
		return ""
	}
	return deps.Config.AppURL
}
