package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"nimble.viom.tech/site/internal/config"
)

func TestPlans(t *testing.T) {
	cfg := &config.Config{
		StripeProductWebID:    "prod_web",
		StripeProductMobileID: "prod_mobile",
		StripeProductComboID:  "prod_combo",
		StripeProductCrossID:  "prod_cross",
	}

	plans, err := Plans(cfg)
	require.NoError(t, err)
	assert.Equal(t, []Plan{
		{Version: "web", ProductID: "prod_web", UnitAmount: 9900},
		{Version: "mobile", ProductID: "prod_mobile", UnitAmount: 9900},
		{Version: "combo", ProductID: "prod_combo", UnitAmount: 14900},
		{Version: "cross", ProductID: "prod_cross", UnitAmount: 19900},
	}, plans)
}

func TestPlans_ListsEveryMissingProduct(t *testing.T) {
	_, err := Plans(&config.Config{StripeProductWebID: "prod_web"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_PRODUCT_MOBILE_ID is not set")
	assert.Contains(t, err.Error(), "STRIPE_PRODUCT_COMBO_ID is not set")
	assert.Contains(t, err.Error(), "STRIPE_PRODUCT_CROSS_ID is not set")
	assert.NotContains(t, err.Error(), "WEB")
}

func TestCreateMonthlyPrices(t *testing.T) {
	var got []*stripe.PriceParams
	c := &Creator{newPrice: func(p *stripe.PriceParams) (*stripe.Price, error) {
		got = append(got, p)
		return &stripe.Price{ID: "price_" + *p.Product}, nil
	}}

	created, err := c.CreateMonthlyPrices(context.Background(), []Plan{
		{Version: "web", ProductID: "prod_web", UnitAmount: 9900},
		{Version: "cross", ProductID: "prod_cross", UnitAmount: 19900},
	})
	require.NoError(t, err)
	assert.Equal(t, []Created{
		{Version: "web", PriceID: "price_prod_web"},
		{Version: "cross", PriceID: "price_prod_cross"},
	}, created)

	require.Len(t, got, 2)
	assert.Equal(t, int64(19900), *got[1].UnitAmount)
	assert.Equal(t, "usd", *got[1].Currency)
	assert.Equal(t, "month", *got[1].Recurring.Interval)
}

func TestCreateMonthlyPrices_StopsOnFailure(t *testing.T) {
	calls := 0
	c := &Creator{newPrice: func(p *stripe.PriceParams) (*stripe.Price, error) {
		calls++
		if *p.Product == "prod_mobile" {
			return nil, errors.New("No such product: 'prod_mobile'")
		}
		return &stripe.Price{ID: "price_1"}, nil
	}}

	created, err := c.CreateMonthlyPrices(context.Background(), []Plan{
		{Version: "web", ProductID: "prod_web"},
		{Version: "mobile", ProductID: "prod_mobile"},
		{Version: "combo", ProductID: "prod_combo"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create price for mobile")
	assert.Len(t, created, 1)
	assert.Equal(t, 2, calls)
}

func TestCreateMonthlyPrices_NoPlans(t *testing.T) {
	_, err := NewCreator().CreateMonthlyPrices(context.Background(), nil)
	assert.Error(t, err)
}
