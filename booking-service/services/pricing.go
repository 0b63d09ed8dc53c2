package services

import (
	"math"

	"gear-rental/shared/models"
)

const (
	shortRentalDays = 2
	weekRentalDays  = 7
	monthRentalDays = 30

	shortRentalRate   = 0.4
	extraWeekDiscount = 0.8
)

// Price maps a rental length to a total price from the product's weekly and
// monthly rates.
//
//	days <= 2   round(weekly * 0.4)
//	3..7        weekly
//	8..30       monthly
//	> 30        monthly + floor((days-30)/7) * weekly * 0.8
//
// Price is total: zero and negative lengths fall into the first tier. Callers
// that take user input reject such ranges before pricing.
func Price(weekly, monthly, days int) int {
	switch {
	case days <= shortRentalDays:
		return int(math.Round(float64(weekly) * shortRentalRate))
	case days <= weekRentalDays:
		return weekly
	case days <= monthRentalDays:
		return monthly
	default:
		extraWeeks := (days - monthRentalDays) / weekRentalDays
		// Prices are whole rupees; the discounted weeks round to nearest.
		return monthly + int(math.Round(float64(extraWeeks*weekly)*extraWeekDiscount))
	}
}

type PlanName string

const (
	PlanWeekend PlanName = "weekend"
	PlanWeek    PlanName = "week"
	PlanMonth   PlanName = "month"
)

// Plan is one of the fixed rental tiers offered on a product page.
type Plan struct {
	Name  PlanName `json:"name"`
	Label string   `json:"label"`
	Days  int      `json:"days"`
	Price int      `json:"price"`
}

// Plans returns the weekend, week and month tiers priced for product.
func Plans(product models.Product) []Plan {
	tiers := []struct {
		name  PlanName
		label string
		days  int
	}{
		{PlanWeekend, "Weekend", shortRentalDays},
		{PlanWeek, "1 Week", weekRentalDays},
		{PlanMonth, "1 Month", monthRentalDays},
	}

	plans := make([]Plan, 0, len(tiers))
	for _, t := range tiers {
		plans = append(plans, Plan{
			Name:  t.name,
			Label: t.label,
			Days:  t.days,
			Price: Price(product.WeeklyPrice, product.MonthlyPrice, t.days),
		})
	}
	return plans
}
