package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"nimble.viom.tech/site/internal/leads"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/validation"
	"nimble.viom.tech/site/models"
)

const (
	maxFormBytes = 1 << 20

	contactSuccessURL = "/thankyou.html"
	newsletterURL     = "/index.html"
)

var errUnexpected = errors.New("An unexpected error occurred")

// contactErrorURL puts the query before the fragment so the page script can
// read it from location.search.
func contactErrorURL(message string) string {
	return "/index.html?error=" + url.QueryEscape(message) + "#contact"
}

func (s *Server) ContactSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		logger.Error("Failed to parse contact form", map[string]interface{}{
			"error": err.Error(),
		})
		http.Redirect(w, r, contactErrorURL(errUnexpected.Error()), http.StatusFound)
		return
	}

	sub := models.FormSubmission{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Message: r.PostFormValue("message"),
	}

	if err := s.deps.Contact.Submit(r.Context(), sub); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			reportError(r, err)
		}
		http.Redirect(w, r, contactErrorURL(leads.UserMessage(err)), http.StatusFound)
		return
	}

	http.Redirect(w, r, contactSuccessURL, http.StatusFound)
}

func (s *Server) NewsletterSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		logger.Error("Failed to parse newsletter form", map[string]interface{}{
			"error": err.Error(),
		})
		http.Redirect(w, r, newsletterURL+"?newsletter_error="+url.QueryEscape(errUnexpected.Error()), http.StatusFound)
		return
	}

	if err := s.deps.Newsletter.Subscribe(r.Context(), r.PostFormValue("email")); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			reportError(r, err)
		}
		http.Redirect(w, r, newsletterURL+"?newsletter_error="+url.QueryEscape(leads.UserMessage(err)), http.StatusFound)
		return
	}

	http.Redirect(w, r, newsletterURL+"?newsletter_success=true", http.StatusFound)
}
