package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v82"

	"nimble.viom.tech/site/internal/config"
	"nimble.viom.tech/site/internal/fulfillment"
	"nimble.viom.tech/site/internal/pricing"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage Stripe prices",
}

var pricesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the monthly price for every product version",
	Long: `Creates one recurring monthly USD price per product version using
STRIPE_PRODUCT_<VERSION>_ID. Put the printed ids into STRIPE_PRICE_<VERSION>_ID.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := stripeConfig()
		if err != nil {
			return err
		}

		plans, err := pricing.Plans(cfg)
		if err != nil {
			return err
		}

		created, err := pricing.NewCreator().CreateMonthlyPrices(cmd.Context(), plans)
		for _, c := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.Version, c.PriceID)
		}
		return err
	},
}

var stripeCmd = &cobra.Command{
	Use:   "stripe",
	Short: "Stripe account setup",
}

var registerWebhookCmd = &cobra.Command{
	Use:   "register-webhook",
	Short: "Register the fulfilment webhook endpoint at CLOUDFLARE_WORKER_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := stripeConfig()
		if err != nil {
			return err
		}

		id, secret, err := fulfillment.NewEndpoints().Register(cmd.Context(), cfg.WorkerURL)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Webhook endpoint: %s\n", id)
		fmt.Fprintf(cmd.OutOrStdout(), "Set STRIPE_WEBHOOK_SECRET=%s\n", secret)
		return nil
	},
}

func init() {
	pricesCmd.AddCommand(pricesCreateCmd)
	stripeCmd.AddCommand(registerWebhookCmd)
}

// stripeConfig loads the environment for the maintenance commands, which
// only need the Stripe secret key.
func stripeConfig() (*config.Config, error) {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not set")
	}

	stripe.Key = cfg.StripeSecretKey
	return cfg, nil
}
