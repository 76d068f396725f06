package entitlements

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// Plan is the marketing view of a purchasable tier, served by the plan
// catalog endpoint. Prices are display-only; billing is owned by the
// storefronts.
type Plan struct {
	ProductID    string          `json:"productId"`
	Tier         enums.Tier      `json:"tier"`
	Name         string          `json:"name"`
	Interval     string          `json:"interval"`
	PriceAmount  decimal.Decimal `json:"priceAmount"`
	CurrencyCode string          `json:"currencyCode"`
	Features     pq.StringArray  `json:"features"`
	Limits       TierLimits      `json:"limits"`
}

var planCatalog = []Plan{
	{
		ProductID:    "com.app.basic",
		Tier:         enums.TierBasic,
		Name:         "Basic",
		Interval:     "month",
		PriceAmount:  decimal.NewFromFloat(2.99),
		CurrencyCode: "USD",
		Features:     pq.StringArray{"25 recipes per month", "4 meal plans", "10 price alerts"},
	},
	{
		ProductID:    "com.app.premium",
		Tier:         enums.TierPremium,
		Name:         "Premium",
		Interval:     "month",
		PriceAmount:  decimal.NewFromFloat(5.99),
		CurrencyCode: "USD",
		Features:     pq.StringArray{"100 recipes per month", "12 meal plans", "50 price alerts", "50 collections"},
	},
	{
		ProductID:    "com.app.professional",
		Tier:         enums.TierProfessional,
		Name:         "Professional",
		Interval:     "month",
		PriceAmount:  decimal.NewFromFloat(11.99),
		CurrencyCode: "USD",
		Features:     pq.StringArray{"Unlimited recipes", "Unlimited meal plans", "Unlimited price alerts", "Unlimited collections"},
	},
}

// Plans returns the plan catalog with limits resolved from the
// entitlement table.
func Plans() []Plan {
	out := make([]Plan, len(planCatalog))
	copy(out, planCatalog)
	for i := range out {
		out[i].Limits = LimitsFor(out[i].Tier)
	}
	return out
}
