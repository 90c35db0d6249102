package ssi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/utils"
)

func TestIssueAndGetCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/credentials":
			var req CredentialRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Opportunity|Completion", req.SchemaName)
			assert.Equal(t, "Clean the beach", req.Attributes["opportunity_title"])
			_ = json.NewEncoder(w).Encode(Credential{ID: "cred-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/credentials/cred-1":
			_ = json.NewEncoder(w).Encode(Credential{ID: "cred-1", SchemaName: "Opportunity|Completion"})
		default:
			http.Error(w, "unknown holder", http.StatusUnprocessableEntity)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second, MaxRetries: 1}).WithInitialBackoff(time.Millisecond)
	ctx := context.Background()

	id, err := c.IssueCredential(ctx, CredentialRequest{
		SchemaName: "Opportunity|Completion",
		HolderID:   "u-1",
		Attributes: map[string]string{"opportunity_title": "Clean the beach"},
		Reference:  "mo-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cred-1", id)

	cred, err := c.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Opportunity|Completion", cred.SchemaName)

	_, err = c.GetCredential(ctx, "other")
	require.Error(t, err)
	assert.True(t, utils.IsStatus(err, http.StatusUnprocessableEntity))
}
