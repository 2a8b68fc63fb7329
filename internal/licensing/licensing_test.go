package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimble.viom.tech/site/models"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string][]string
	auth   string
	body   map[string]interface{}
}

func newCryptlex(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			auth:   r.Header.Get("Authorization"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &rec.body))
		}
		requests = append(requests, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "test-token", 5*time.Second), &requests
}

func TestGate_HasActiveLicense(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.LicenseLookupResult
	}{
		{
			name:     "one active license",
			response: `[{"id":"lic-1","key":"ABCD-EFGH"}]`,
			want:     models.LicenseLookupResult{HasActiveLicense: true, Message: models.MessageActiveLicense},
		},
		{
			name:     "no licenses",
			response: `[]`,
			want:     models.LicenseLookupResult{HasActiveLicense: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, requests := newCryptlex(t, http.StatusOK, tt.response)

			got, err := NewGate(client).HasActiveLicense(context.Background(), "jane+test@acme.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, *requests, 1)
			req := (*requests)[0]
			assert.Equal(t, http.MethodGet, req.method)
			assert.Equal(t, "/v3/licenses", req.path)
			assert.Equal(t, "Bearer test-token", req.auth)
			assert.Equal(t, []string{"jane+test@acme.com"}, req.query["user.email"])
			assert.Equal(t, []string{"false"}, req.query["expired"])
			assert.Equal(t, []string{"false"}, req.query["revoked"])
			assert.Equal(t, []string{"false"}, req.query["suspended"])
			assert.Equal(t, []string{"1"}, req.query["limit"])
		})
	}
}

func TestGate_ProviderFailure(t *testing.T) {
	client, _ := newCryptlex(t, http.StatusUnauthorized, `{"message":"Invalid access token"}`)

	_, err := NewGate(client).HasActiveLicense(context.Background(), "jane@acme.com")
	require.Error(t, err)

	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.Equal(t, `{"message":"Invalid access token"}`, gateErr.Detail)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestGate_TransportFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "token", time.Second)

	_, err := NewGate(client).HasActiveLicense(context.Background(), "jane@acme.com")

	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.NotEmpty(t, gateErr.Detail)
}

type countingLister struct {
	calls int
}

func (c *countingLister) ListLicenses(ctx context.Context, filter LicenseFilter) ([]models.License, error) {
	c.calls++
	return nil, nil
}

func TestGate_NoCaching(t *testing.T) {
	lister := &countingLister{}
	gate := NewGate(lister)

	for i := 0; i < 3; i++ {
		_, err := gate.HasActiveLicense(context.Background(), "jane@acme.com")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, lister.calls)
}

func TestClient_CreateLicense(t *testing.T) {
	client, requests := newCryptlex(t, http.StatusCreated, `{"id":"lic-9","key":"KEY-9","expiresAt":"2026-02-01T00:00:00Z"}`)

	license, err := client.CreateLicense(context.Background(), CreateLicenseParams{
		UserID:           "user-1",
		ProductID:        "prod-1",
		ProductVersionID: "ver-web",
		Type:             models.LicenseTypeNodeLocked,
		Validity:         30 * 86400,
		Metadata:         []models.MetadataEntry{{Key: "userName", Value: "Jane Doe", Visible: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "lic-9", license.ID)
	assert.Equal(t, "KEY-9", license.Key)
	require.NotNil(t, license.ExpiresAt)
	assert.Equal(t, 2026, license.ExpiresAt.Year())

	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v3/licenses", req.path)
	assert.Equal(t, "node-locked", req.body["type"])
	assert.Equal(t, float64(2592000), req.body["validity"])
}

func TestClient_ExtendLicense(t *testing.T) {
	client, requests := newCryptlex(t, http.StatusOK, `{"id":"lic-1"}`)

	_, err := client.ExtendLicense(context.Background(), "lic-1", 35*24*time.Hour)
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, "/v3/licenses/lic-1/extend", req.path)
	assert.Equal(t, float64(35*86400), req.body["extensionLength"])
}

func TestClient_RenewLicense(t *testing.T) {
	client, requests := newCryptlex(t, http.StatusOK, `{"id":"lic-1"}`)

	_, err := client.RenewLicense(context.Background(), "lic-1")
	require.NoError(t, err)
	assert.Equal(t, "/v3/licenses/lic-1/renew", (*requests)[0].path)
}

func TestClient_FindOrganizationByEmail(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
	}{
		{"exact match ignoring case", `[{"id":"org-2","email":"Billing@Acme.com"}]`, "org-2"},
		{"only partial matches", `[{"id":"org-3","email":"billing@acme.com.au"}]`, ""},
		{"none", `[]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, requests := newCryptlex(t, http.StatusOK, tt.response)

			org, err := client.FindOrganizationByEmail(context.Background(), "billing@acme.com")
			require.NoError(t, err)
			if tt.wantID == "" {
				assert.Nil(t, org)
			} else {
				require.NotNil(t, org)
				assert.Equal(t, tt.wantID, org.ID)
			}
			assert.Equal(t, []string{"billing@acme.com"}, (*requests)[0].query["email"])
		})
	}
}

func TestClient_FindUserByEmail(t *testing.T) {
	client, _ := newCryptlex(t, http.StatusOK, `[{"id":"u-1","email":"jane@acme.com"}]`)

	user, err := client.FindUserByEmail(context.Background(), "JANE@acme.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u-1", user.ID)
}

func TestClient_DecodeFailure(t *testing.T) {
	client, _ := newCryptlex(t, http.StatusOK, `not json`)

	_, err := client.GetLicense(context.Background(), "lic-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}
