// Package pricing creates the recurring Stripe prices checkout sells.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/price"

	"nimble.viom.tech/site/internal/config"
	"nimble.viom.tech/site/internal/logger"
)

const Currency = "usd"

// Monthly amounts in cents.
var DefaultAmounts = map[string]int64{
	config.VersionWeb:    9900,
	config.VersionMobile: 9900,
	config.VersionCombo:  14900,
	config.VersionCross:  19900,
}

type Plan struct {
	Version    string
	ProductID  string
	UnitAmount int64
}

type Created struct {
	Version string
	PriceID string
}

// Plans pairs each version's Stripe product with its default amount.
func Plans(cfg *config.Config) ([]Plan, error) {
	products := cfg.StripeProductIDs()

	var (
		plans  []Plan
		result *multierror.Error
	)
	for _, v := range config.Versions {
		if products[v] == "" {
			result = multierror.Append(result, fmt.Errorf("STRIPE_PRODUCT_%s_ID is not set", strings.ToUpper(v)))
			continue
		}
		plans = append(plans, Plan{Version: v, ProductID: products[v], UnitAmount: DefaultAmounts[v]})
	}
	return plans, result.ErrorOrNil()
}

type Creator struct {
	newPrice func(*stripe.PriceParams) (*stripe.Price, error)
}

func NewCreator() *Creator {
	return &Creator{newPrice: price.New}
}

// CreateMonthlyPrices creates one monthly price per plan. It stops at the
// first failure and returns what was created so far.
func (c *Creator) CreateMonthlyPrices(ctx context.Context, plans []Plan) ([]Created, error) {
	if len(plans) == 0 {
		return nil, errors.New("no plans to create")
	}

	created := make([]Created, 0, len(plans))
	for _, p := range plans {
		params := &stripe.PriceParams{
			Product:    stripe.String(p.ProductID),
			UnitAmount: stripe.Int64(p.UnitAmount),
			Currency:   stripe.String(Currency),
			Recurring: &stripe.PriceRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			},
		}
		params.Context = ctx

		pr, err := c.newPrice(params)
		if err != nil {
			return created, fmt.Errorf("failed to create price for %s: %w", p.Version, err)
		}

		logger.Info("Created price", map[string]interface{}{
			"version":  p.Version,
			"price_id": pr.ID,
			"amount":   p.UnitAmount,
		})
		created = append(created, Created{Version: p.Version, PriceID: pr.ID})
	}
	return created, nil
}
