package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"nimble.viom.tech/site/internal/email"
	"nimble.viom.tech/site/models"
	"nimble.viom.tech/site/storage"
)

// ValidCheckoutRequest returns a request whose domains match.
func ValidCheckoutRequest() models.CheckoutRequest {
	return models.CheckoutRequest{
		OrganizationEmail: "billing@acme.com",
		UserEmail:         "jane@acme.com",
		FirstName:         "Jane",
		LastName:          "Doe",
		ProductID:         "prod-nimble",
		ProductVersionID:  "ver-web",
	}
}

// ValidSubmission returns a contact form submission that passes validation.
func ValidSubmission() models.FormSubmission {
	return models.FormSubmission{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Phone:   "+44 20 7946 0958",
		Message: "I would like a demo.",
	}
}

// MailRecorder is an email.Transport that keeps every delivered message.
type MailRecorder struct {
	mu       sync.Mutex
	Messages []email.Message
	// Err, when set, is returned for every delivery.
	Err error
	// FailTo fails deliveries to the listed recipients only.
	FailTo map[string]error
}

func (r *MailRecorder) Deliver(ctx context.Context, from email.Sender, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if err, ok := r.FailTo[msg.To]; ok {
		return err
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (r *MailRecorder) Name() string { return "recorder" }

func (r *MailRecorder) Sent() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]email.Message, len(r.Messages))
	copy(out, r.Messages)
	return out
}

// PostForm sends an urlencoded form to h.
func PostForm(t *testing.T, h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// PostJSON marshals body and sends it to h.
func PostJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertErrorResponse checks the {"error": ...} body and status.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}

// RedirectQuery returns the decoded query of the Location header.
func RedirectQuery(t *testing.T, w *httptest.ResponseRecorder) (*url.URL, url.Values) {
	t.Helper()

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, w.Code)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Invalid Location header: %v", err)
	}
	return loc, loc.Query()
}

// SubscriberStoreSuite runs the standard checks against a store. Exactly one
// of Lines or Count is used to observe what was written.
type SubscriberStoreSuite struct {
	Store   storage.SubscriberStore
	Lines   func() []string
	Count   func() int
	Cleanup func()
}

func RunSubscriberStoreSuite(t *testing.T, suite SubscriberStoreSuite) {
	defer func() {
		if suite.Cleanup != nil {
			suite.Cleanup()
		}
		if err := suite.Store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	}()

	ctx := context.Background()
	emails := []string{"a@example.com", "b@example.com", "a@example.com"}

	for _, e := range emails {
		if err := suite.Store.Append(ctx, e); err != nil {
			t.Fatalf("Failed to append %s: %v", e, err)
		}
	}

	if suite.Lines != nil {
		lines := suite.Lines()
		if len(lines) != len(emails) {
			t.Fatalf("Expected %d lines, got %d: %v", len(emails), len(lines), lines)
		}
		for i, e := range emails {
			if lines[i] != e {
				t.Errorf("Line %d: expected '%s', got '%s'", i, e, lines[i])
			}
		}
	}

	if suite.Count != nil {
		if n := suite.Count(); n != len(emails) {
			t.Errorf("Expected %d rows including duplicates, got %d", len(emails), n)
		}
	}
}
