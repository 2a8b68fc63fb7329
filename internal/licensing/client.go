// Package licensing talks to the Cryptlex REST API.
package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nimble.viom.tech/site/internal/version"
	"nimble.viom.tech/site/models"
)

const DefaultBaseURL = "https://api.eu.cryptlex.com"

var tracer = otel.Tracer("nimble/licensing")

// APIError is a non-2xx response from the licensing API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cryptlex %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := tracer.Start(ctx, "cryptlex "+method, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("cryptlex.path", path),
	))
	defer span.End()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("cryptlex %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode cryptlex response: %w", err)
	}
	return nil
}

// LicenseFilter narrows ListLicenses. Zero values are left out of the query.
type LicenseFilter struct {
	UserEmail  string
	ActiveOnly bool
	Limit      int
}

func (f LicenseFilter) query() url.Values {
	q := url.Values{}
	if f.UserEmail != "" {
		q.Set("user.email", f.UserEmail)
	}
	if f.ActiveOnly {
		q.Set("expired", "false")
		q.Set("revoked", "false")
		q.Set("suspended", "false")
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprint(f.Limit))
	}
	return q
}

func (c *Client) ListLicenses(ctx context.Context, filter LicenseFilter) ([]models.License, error) {
	var licenses []models.License
	if err := c.do(ctx, http.MethodGet, "/v3/licenses", filter.query(), nil, &licenses); err != nil {
		return nil, err
	}
	return licenses, nil
}

func (c *Client) GetLicense(ctx context.Context, id string) (*models.License, error) {
	var license models.License
	if err := c.do(ctx, http.MethodGet, "/v3/licenses/"+url.PathEscape(id), nil, nil, &license); err != nil {
		return nil, err
	}
	return &license, nil
}

type CreateLicenseParams struct {
	UserID           string                 `json:"userId"`
	ProductID        string                 `json:"productId"`
	ProductVersionID string                 `json:"productVersionId"`
	Type             string                 `json:"type"`
	Validity         int64                  `json:"validity"`
	Metadata         []models.MetadataEntry `json:"metadata,omitempty"`
}

func (c *Client) CreateLicense(ctx context.Context, params CreateLicenseParams) (*models.License, error) {
	var license models.License
	if err := c.do(ctx, http.MethodPost, "/v3/licenses", nil, params, &license); err != nil {
		return nil, err
	}
	return &license, nil
}

// RenewLicense extends the license by its own validity period.
func (c *Client) RenewLicense(ctx context.Context, id string) (*models.License, error) {
	var license models.License
	if err := c.do(ctx, http.MethodPost, "/v3/licenses/"+url.PathEscape(id)+"/renew", nil, nil, &license); err != nil {
		return nil, err
	}
	return &license, nil
}

// ExtendLicense moves the expiry forward by d.
func (c *Client) ExtendLicense(ctx context.Context, id string, d time.Duration) (*models.License, error) {
	body := map[string]int64{"extensionLength": int64(d / time.Second)}

	var license models.License
	if err := c.do(ctx, http.MethodPost, "/v3/licenses/"+url.PathEscape(id)+"/extend", nil, body, &license); err != nil {
		return nil, err
	}
	return &license, nil
}

// FindOrganizationByEmail returns the organization whose email matches
// exactly, ignoring case, or nil.
func (c *Client) FindOrganizationByEmail(ctx context.Context, email string) (*models.Organization, error) {
	var orgs []models.Organization
	if err := c.do(ctx, http.MethodGet, "/v3/organizations", url.Values{"email": {email}}, nil, &orgs); err != nil {
		return nil, err
	}
	for i := range orgs {
		if strings.EqualFold(orgs[i].Email, email) {
			return &orgs[i], nil
		}
	}
	return nil, nil
}

func (c *Client) CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error) {
	var created models.Organization
	if err := c.do(ctx, http.MethodPost, "/v3/organizations", nil, org, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/v3/users", url.Values{"email": {email}}, nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}

type CreateUserParams struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId,omitempty"`
}

func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/v3/users", nil, params, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
