// Package zlto is a client for the Zlto reward wallet and marketplace API.
package zlto

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
	PartnerID  string
	Timeout    time.Duration
	MaxRetries uint
}

type Client struct {
	api       *utils.APIClient
	partnerID string
}

func New(cfg Config) *Client {
	api := utils.NewAPIClient(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries)
	api.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	if cfg.PartnerID != "" {
		api.Header.Set("X-Partner-ID", cfg.PartnerID)
	}
	return &Client{api: api, partnerID: cfg.PartnerID}
}

// WithInitialBackoff shortens the first retry delay.
func (c *Client) WithInitialBackoff(d time.Duration) *Client {
	c.api.InitialInterval = d
	return c
}

type WalletRequest struct {
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Wallet struct {
	WalletID string  `json:"wallet_id"`
	Balance  float64 `json:"balance"`
}

// CreateWallet creates or returns the wallet of a user. The provider treats
// ExternalID as the idempotency key.
func (c *Client) CreateWallet(ctx context.Context, req WalletRequest) (*Wallet, error) {
	var w Wallet
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/v1/wallets", req, &w); err != nil {
		return nil, fmt.Errorf("zlto create wallet: %w", err)
	}
	return &w, nil
}

func (c *Client) GetBalance(ctx context.Context, walletID string) (float64, error) {
	var w Wallet
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/v1/wallets/"+url.PathEscape(walletID), nil, &w); err != nil {
		return 0, fmt.Errorf("zlto get balance: %w", err)
	}
	return w.Balance, nil
}

type EarnRequest struct {
	WalletID string  `json:"wallet_id"`
	Amount   float64 `json:"amount"`
	// Reference is echoed back by the provider and used to reject duplicates.
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
}

type EarnResponse struct {
	TransactionID string `json:"transaction_id"`
}

// RewardEarn credits amount to the wallet.
func (c *Client) RewardEarn(ctx context.Context, req EarnRequest) (string, error) {
	var resp EarnResponse
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/v1/rewards/earn", req, &resp); err != nil {
		return "", fmt.Errorf("zlto reward earn: %w", err)
	}
	return resp.TransactionID, nil
}

type StoreCategory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type StoreItem struct {
	ID         string  `json:"id"`
	StoreID    string  `json:"store_id"`
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Summary    string  `json:"summary,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
}

type Voucher struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Instructions string    `json:"instructions,omitempty"`
	Amount       float64   `json:"amount"`
	DateIssued   time.Time `json:"date_issued"`
}

func (c *Client) ListStoreCategories(ctx context.Context) ([]StoreCategory, error) {
	var resp struct {
		Items []StoreCategory `json:"items"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/v1/store/categories", nil, &resp); err != nil {
		return nil, fmt.Errorf("zlto list store categories: %w", err)
	}
	return resp.Items, nil
}

func (c *Client) ListStoreItems(ctx context.Context, categoryID string) ([]StoreItem, error) {
	var resp struct {
		Items []StoreItem `json:"items"`
	}
	path := "/api/v1/store/categories/" + url.PathEscape(categoryID) + "/items"
	if err := c.api.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("zlto list store items: %w", err)
	}
	return resp.Items, nil
}

// GetStoreItem returns the item category of a store with its stock count.
func (c *Client) GetStoreItem(ctx context.Context, storeID, itemCategoryID string) (*StoreItem, error) {
	var item StoreItem
	path := "/api/v1/store/" + url.PathEscape(storeID) + "/items/" + url.PathEscape(itemCategoryID)
	if err := c.api.DoJSON(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, fmt.Errorf("zlto get store item: %w", err)
	}
	return &item, nil
}

func (c *Client) ListVouchers(ctx context.Context, walletID string) ([]Voucher, error) {
	var resp struct {
		Items []Voucher `json:"items"`
	}
	path := "/api/v1/wallets/" + url.PathEscape(walletID) + "/vouchers"
	if err := c.api.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("zlto list vouchers: %w", err)
	}
	return resp.Items, nil
}

type BuyRequest struct {
	WalletID string `json:"wallet_id"`
}

// BuyItem purchases one unit of the item category from the store. A purchase
// is charged on every call, so it is never retried.
func (c *Client) BuyItem(ctx context.Context, walletID, storeID, itemCategoryID string) (*Voucher, error) {
	var v Voucher
	path := "/api/v1/store/" + url.PathEscape(storeID) + "/items/" + url.PathEscape(itemCategoryID) + "/buy"
	if err := c.api.DoJSONOnce(ctx, http.MethodPost, path, BuyRequest{WalletID: walletID}, &v); err != nil {
		return nil, fmt.Errorf("zlto buy item: %w", err)
	}
	return &v, nil
}
