package handlers

import (
	"net/http"
	"strconv"

	"bizportal/internal/cashflow"
	"bizportal/internal/database"
	"bizportal/internal/recommend"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

func loadReport(c *gin.Context, horizon int) (*services.CashflowReport, bool) {
	report, err := services.LoadCashflow(c.Request.Context(), database.DB, actor(c).OrganizationID, now(), horizon)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return report, true
}

func CashflowSummary(c *gin.Context) {
	report, ok := loadReport(c, cashflow.DefaultHorizonDays)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":         report.Summary,
		"revenue_30d":     report.Revenue30,
		"avg_days_to_pay": report.AvgToPay,
		"generated_at":    report.GeneratedAt,
	})
}

func CashflowForecast(c *gin.Context) {
	days := cashflow.DefaultHorizonDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			validationError(c, map[string]string{"days": "must be between 1 and 365"})
			return
		}
		days = n
	}
	report, ok := loadReport(c, days)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"forecast": report.Forecast})
}

func CashflowHealth(c *gin.Context) {
	report, ok := loadReport(c, cashflow.DefaultHorizonDays)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"health": report.Health, "disclaimer": recommend.Disclaimer})
}

func CashflowRecommendations(c *gin.Context) {
	useAI := c.Query("ai") == "1" || c.Query("ai") == "true"
	var gen recommend.Generator
	if deps.AI != nil {
		gen = deps.AI
	}
	res, err := services.Recommendations(c.Request.Context(), database.DB, gen, actor(c).OrganizationID, useAI, now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func DashboardPage(c *gin.Context) {
	if isPortalUser(c) {
		c.Redirect(http.StatusFound, "/portal")
		return
	}
	data := gin.H{}
	if a := actor(c); a.OrganizationID != 0 {
		report, err := services.LoadCashflow(c.Request.Context(), database.DB, a.OrganizationID, now(), cashflow.DefaultHorizonDays)
		if err != nil {
			c.String(http.StatusInternalServerError, "could not load dashboard")
			return
		}
		data["report"] = report
		data["recommendations"] = recommend.GenerateRuleBasedRecommendations(report.RecommendationInputs(), now())
	} else {
		data["NeedsOnboarding"] = true
	}
	render(c, http.StatusOK, "dashboard.html", data)
}
