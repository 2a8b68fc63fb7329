package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Product versions sold through checkout.
const (
	VersionWeb    = "web"
	VersionMobile = "mobile"
	VersionCombo  = "combo"
	VersionCross  = "cross"
)

var Versions = []string{VersionWeb, VersionMobile, VersionCombo, VersionCross}

type Config struct {
	Port      string `env:"PORT" envDefault:"4242"`
	StaticDir string `env:"STATIC_DIR" envDefault:"public"`
	// Overrides the scheme://host used for checkout return URLs.
	PublicBaseURL string `env:"DOMAIN_URL"`

	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceWebID     string `env:"STRIPE_PRICE_WEB_ID"`
	StripePriceMobileID  string `env:"STRIPE_PRICE_MOBILE_ID"`
	StripePriceComboID   string `env:"STRIPE_PRICE_COMBO_ID"`
	StripePriceCrossID   string `env:"STRIPE_PRICE_CROSS_ID"`

	// Only used by the prices command.
	StripeProductWebID    string `env:"STRIPE_PRODUCT_WEB_ID"`
	StripeProductMobileID string `env:"STRIPE_PRODUCT_MOBILE_ID"`
	StripeProductComboID  string `env:"STRIPE_PRODUCT_COMBO_ID"`
	StripeProductCrossID  string `env:"STRIPE_PRODUCT_CROSS_ID"`

	CryptlexToken           string        `env:"CRYPTLEX_TOKEN"`
	CryptlexAPIURL          string        `env:"CRYPTLEX_API_URL" envDefault:"https://api.eu.cryptlex.com"`
	CryptlexTimeout         time.Duration `env:"CRYPTLEX_TIMEOUT" envDefault:"30s"`
	CryptlexProductID       string        `env:"CRYPTLEX_PRODUCT_ID"`
	CryptlexVersionWebID    string        `env:"CRYPTLEX_VERSION_WEB_ID"`
	CryptlexVersionMobileID string        `env:"CRYPTLEX_VERSION_MOBILE_ID"`
	CryptlexVersionComboID  string        `env:"CRYPTLEX_VERSION_COMBO_ID"`
	CryptlexVersionCrossID  string        `env:"CRYPTLEX_VERSION_CROSS_ID"`

	WorkerURL string `env:"CLOUDFLARE_WORKER_URL"`

	MailTransport        string `env:"MAIL_TRANSPORT" envDefault:"smtp"`
	SMTPHost             string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	EmailUsername        string `env:"EMAIL_USERNAME"`
	EmailPassword        string `env:"EMAIL_PASSWORD"`
	EmailFrom            string `env:"EMAIL_FROM"`
	EmailFromName        string `env:"EMAIL_FROM_NAME" envDefault:"NIMBLE Website"`
	AdminEmail           string `env:"ADMIN_EMAIL"`
	ContactRecipient     string `env:"CONTACT_RECIPIENT" envDefault:"nimble@viom.tech"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	SubscriberStore string `env:"SUBSCRIBER_STORE" envDefault:"file"`
	SubscribersFile string `env:"SUBSCRIBERS_FILE" envDefault:"subscribers.txt"`
	DatabasePath    string `env:"DATABASE_PATH" envDefault:"subscribers.db"`

	FormRateLimit  int           `env:"FORM_RATE_LIMIT" envDefault:"10"`
	FormRateWindow time.Duration `env:"FORM_RATE_WINDOW" envDefault:"1m"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	SentryDSN      string `env:"SENTRY_DSN"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
}

var ErrMissingEnv = errors.New("missing required environment variables")

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	return Parse()
}

// LoadUnvalidated is Load without Validate. The maintenance commands use it
// and check the few variables they need themselves.
func LoadUnvalidated() (*Config, error) {
	_ = godotenv.Load()

	return parse()
}

// Parse builds a Config from the process environment without touching .env.
func Parse() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	required := []struct {
		name  string
		value string
	}{
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_PUBLISHABLE_KEY", c.StripePublishableKey},
		{"CRYPTLEX_TOKEN", c.CryptlexToken},
		{"CLOUDFLARE_WORKER_URL", c.WorkerURL},
		{"STRIPE_PRICE_WEB_ID", c.StripePriceWebID},
		{"STRIPE_PRICE_MOBILE_ID", c.StripePriceMobileID},
		{"STRIPE_PRICE_COMBO_ID", c.StripePriceComboID},
		{"STRIPE_PRICE_CROSS_ID", c.StripePriceCrossID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrMissingEnv, r.name))
		}
	}

	switch c.MailTransport {
	case "smtp", "postmark", "log":
	default:
		result = multierror.Append(result, fmt.Errorf("MAIL_TRANSPORT must be smtp, postmark or log, got %q", c.MailTransport))
	}

	switch c.SubscriberStore {
	case "file", "sqlite":
	default:
		result = multierror.Append(result, fmt.Errorf("SUBSCRIBER_STORE must be file or sqlite, got %q", c.SubscriberStore))
	}

	if result != nil {
		result.ErrorFormat = listFormat
	}

	return result.ErrorOrNil()
}

func listFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// MissingOptional lists optional mail settings that are not set.
func (c *Config) MissingOptional() []string {
	var missing []string

	switch c.MailTransport {
	case "smtp":
		if c.EmailUsername == "" {
			missing = append(missing, "EMAIL_USERNAME")
		}
		if c.EmailPassword == "" {
			missing = append(missing, "EMAIL_PASSWORD")
		}
	case "postmark":
		if c.PostmarkServerToken == "" {
			missing = append(missing, "POSTMARK_SERVER_TOKEN")
		}
	}
	if c.EmailFrom == "" {
		missing = append(missing, "EMAIL_FROM")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	return missing
}

// SenderAddress is EMAIL_FROM, falling back to the SMTP username.
func (c *Config) SenderAddress() string {
	if c.EmailFrom != "" {
		return c.EmailFrom
	}
	return c.EmailUsername
}

// AdminAddress is where newsletter notices go.
func (c *Config) AdminAddress() string {
	if c.AdminEmail != "" {
		return c.AdminEmail
	}
	return c.SenderAddress()
}

// PriceTable maps licensing product version ids to Stripe price ids.
// Versions without a configured id are left out.
func (c *Config) PriceTable() map[string]string {
	pairs := [][2]string{
		{c.CryptlexVersionWebID, c.StripePriceWebID},
		{c.CryptlexVersionMobileID, c.StripePriceMobileID},
		{c.CryptlexVersionComboID, c.StripePriceComboID},
		{c.CryptlexVersionCrossID, c.StripePriceCrossID},
	}

	table := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p[0] == "" || p[1] == "" {
			continue
		}
		table[p[0]] = p[1]
	}
	return table
}

// VersionIDs returns the licensing version id per product version.
func (c *Config) VersionIDs() map[string]string {
	return map[string]string{
		VersionWeb:    c.CryptlexVersionWebID,
		VersionMobile: c.CryptlexVersionMobileID,
		VersionCombo:  c.CryptlexVersionComboID,
		VersionCross:  c.CryptlexVersionCrossID,
	}
}

// StripeProductIDs returns the Stripe product id per product version.
func (c *Config) StripeProductIDs() map[string]string {
	return map[string]string{
		VersionWeb:    c.StripeProductWebID,
		VersionMobile: c.StripeProductMobileID,
		VersionCombo:  c.StripeProductComboID,
		VersionCross:  c.StripeProductCrossID,
	}
}
