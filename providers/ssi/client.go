// Package ssi is a client for the credential service that issues verifiable
// credentials on behalf of Yoma.
package ssi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"yoma-api/utils"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint
}

type Client struct {
	api *utils.APIClient
}

func New(cfg Config) *Client {
	api := utils.NewAPIClient(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries)
	api.Header.Set("X-API-Key", cfg.APIKey)
	return &Client{api: api}
}

// WithInitialBackoff shortens the first retry delay.
func (c *Client) WithInitialBackoff(d time.Duration) *Client {
	c.api.InitialInterval = d
	return c
}

type CredentialRequest struct {
	SchemaName string `json:"schema_name"`
	// HolderID identifies the holder's wallet at the credential service.
	HolderID   string            `json:"holder_id"`
	Attributes map[string]string `json:"attributes"`
	// Reference makes the request idempotent.
	Reference string `json:"reference"`
}

type Credential struct {
	ID         string            `json:"id"`
	SchemaName string            `json:"schema_name"`
	Attributes map[string]string `json:"attributes"`
	DateIssued time.Time         `json:"date_issued"`
}

// IssueCredential issues a credential of the named schema to the holder.
func (c *Client) IssueCredential(ctx context.Context, req CredentialRequest) (string, error) {
	var cred Credential
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/v1/credentials", req, &cred); err != nil {
		return "", fmt.Errorf("ssi issue credential: %w", err)
	}
	return cred.ID, nil
}

// GetCredential fetches an issued credential.
func (c *Client) GetCredential(ctx context.Context, id string) (*Credential, error) {
	var cred Credential
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/v1/credentials/"+url.PathEscape(id), nil, &cred); err != nil {
		return nil, fmt.Errorf("ssi get credential: %w", err)
	}
	return &cred, nil
}
