package licensing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"

	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
	"nimble.viom.tech/site/models"
)

// GateError means the active license lookup could not be answered.
type GateError struct {
	Detail string
	Err    error
}

func (e *GateError) Error() string {
	return "license check failed: " + e.Detail
}

func (e *GateError) Unwrap() error {
	return e.Err
}

type LicenseLister interface {
	ListLicenses(ctx context.Context, filter LicenseFilter) ([]models.License, error)
}

// Gate decides whether a user may start a new checkout. Nothing is cached.
type Gate struct {
	licenses LicenseLister
}

func NewGate(licenses LicenseLister) *Gate {
	return &Gate{licenses: licenses}
}

func (g *Gate) HasActiveLicense(ctx context.Context, userEmail string) (models.LicenseLookupResult, error) {
	ctx, span := tracer.Start(ctx, "Gate.HasActiveLicense")
	defer span.End()

	licenses, err := g.licenses.ListLicenses(ctx, LicenseFilter{
		UserEmail:  userEmail,
		ActiveOnly: true,
		Limit:      1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")

		detail := err.Error()
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			detail = apiErr.Body
		}
		logger.Error("Active license lookup failed", map[string]interface{}{
			"user_email": userEmail,
			"error":      err.Error(),
		})
		metrics.LicenseChecks.WithLabelValues("error").Inc()
		return models.LicenseLookupResult{}, &GateError{Detail: detail, Err: err}
	}

	if len(licenses) > 0 {
		logger.Info("Active license found", map[string]interface{}{
			"user_email": userEmail,
			"license_id": licenses[0].ID,
		})
		metrics.LicenseChecks.WithLabelValues("active").Inc()
		return models.LicenseLookupResult{
			HasActiveLicense: true,
			Message:          models.MessageActiveLicense,
		}, nil
	}

	metrics.LicenseChecks.WithLabelValues("none").Inc()
	return models.LicenseLookupResult{HasActiveLicense: false}, nil
}
