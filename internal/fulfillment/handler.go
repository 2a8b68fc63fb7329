package fulfillment

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
)

const (
	maxBodyBytes = int64(65536)

	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.payment_succeeded"
)

// Handler is the Stripe webhook endpoint.
type Handler struct {
	secret  string
	service *Service
}

func NewHandler(secret string, service *Service) *Handler {
	return &Handler{secret: secret, service: service}
}

type response struct {
	Success        bool    `json:"success"`
	OrganizationID string  `json:"organizationId,omitempty"`
	UserID         string  `json:"userId,omitempty"`
	LicenseID      *string `json:"licenseId,omitempty"`
	LicenseKey     string  `json:"licenseKey,omitempty"`
	Error          string  `json:"error,omitempty"`
	Message        string  `json:"message"`
}

// invoice carries the fields read from invoice events. The subscription id
// moved under parent.subscription_details in newer API versions.
type invoice struct {
	ID            string `json:"id"`
	BillingReason string `json:"billing_reason"`
	Subscription  string `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i invoice) subscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequests.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(h.secret) == "" {
		logger.Error("STRIPE_WEBHOOK_SECRET not set, rejecting webhook")
		status = http.StatusServiceUnavailable
		writeJSON(w, status, response{Error: "webhook secret not configured", Message: "Failed to process webhook"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		status = http.StatusBadRequest
		writeJSON(w, status, response{Error: "failed to read request body", Message: "Failed to process webhook"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, signature, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		logger.Warn("Webhook signature verification failed", map[string]interface{}{
			"error":       err.Error(),
			"remote_addr": r.RemoteAddr,
		})
		status = http.StatusBadRequest
		writeJSON(w, status, response{Error: "invalid Stripe signature", Message: "Failed to process webhook"})
		return
	}
	eventType = string(event.Type)

	logger.Info("Stripe event received", map[string]interface{}{
		"event_type": eventType,
		"event_id":   event.ID,
	})

	resp, err := h.handle(r, &event)
	if err != nil {
		logger.Error("Failed to process webhook", map[string]interface{}{
			"event_type": eventType,
			"event_id":   event.ID,
			"error":      err.Error(),
		})
		status = http.StatusInternalServerError
		writeJSON(w, status, response{Error: err.Error(), Message: "Failed to process webhook"})
		return
	}

	writeJSON(w, status, resp)
}

func (h *Handler) handle(r *http.Request, event *stripe.Event) (response, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return response{}, fmt.Errorf("failed to decode checkout session: %w", err)
		}

		var subscriptionID string
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}

		p, err := h.service.Provision(r.Context(), subscriptionID, session.Metadata)
		if err != nil {
			return response{}, err
		}
		return response{
			Success:        true,
			OrganizationID: p.Organization.ID,
			UserID:         p.User.ID,
			LicenseID:      &p.License.ID,
			LicenseKey:     p.License.Key,
			Message:        "License created successfully",
		}, nil

	case EventInvoicePaid:
		var inv invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return response{}, fmt.Errorf("failed to decode invoice: %w", err)
		}

		renewal, err := h.service.Renew(r.Context(), inv.subscriptionID(), inv.BillingReason)
		if err != nil {
			return response{}, err
		}
		resp := response{Success: true, Message: renewal.Message}
		if renewal.LicenseID != "" {
			resp.LicenseID = &renewal.LicenseID
		}
		return resp, nil

	default:
		return response{
			Success: true,
			Message: fmt.Sprintf("Event type %s received but not processed", event.Type),
		}, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode webhook response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
