package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
	"nimble.viom.tech/site/models"
)

const maxJSONBytes = 1 << 20

type ProductIDsResponse struct {
	ProductID string            `json:"productId"`
	Versions  map[string]string `json:"versions"`
}

func (s *Server) GetStripeKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.deps.Config.StripePublishableKey})
}

func (s *Server) GetProductIds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProductIDsResponse{
		ProductID: s.deps.Config.CryptlexProductID,
		Versions:  s.deps.Config.VersionIDs(),
	})
}

// CheckActiveLicense reports whether the user already holds a live license.
// A malformed body is treated the same as a missing email. Lookup outcomes
// are counted by the licensing gate.
func (s *Server) CheckActiveLicense(w http.ResponseWriter, r *http.Request) {
	var req models.LicenseQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(&req); err != nil {
		logger.Debug("Unreadable license check body", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if req.UserEmail == "" {
		metrics.LicenseChecks.WithLabelValues("invalid").Inc()
		writeErrorResponse(w, http.StatusBadRequest, "User email is required")
		return
	}

	result, err := s.deps.Licenses.HasActiveLicense(r.Context(), req.UserEmail)
	if err != nil {
		logger.Error("Error checking license", map[string]interface{}{
			"user_email": req.UserEmail,
			"error":      err.Error(),
		})
		reportError(r, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to check license status")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.deps.Checkout.CreateSession(r.Context(), req, s.baseURL(r))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// baseURL is DOMAIN_URL when configured, otherwise the scheme and host the
// request arrived on.
func (s *Server) baseURL(r *http.Request) string {
	if s.deps.Config.PublicBaseURL != "" {
		return strings.TrimRight(s.deps.Config.PublicBaseURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
