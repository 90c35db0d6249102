package zlto

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

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL,
		APIKey:     "key",
		PartnerID:  "yoma",
		Timeout:    time.Second,
		MaxRetries: 2,
	}).WithInitialBackoff(time.Millisecond)
}

func TestCreateWallet(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/wallets", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "yoma", r.Header.Get("X-Partner-ID"))

		var req WalletRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user@example.com", req.Email)
		_ = json.NewEncoder(w).Encode(Wallet{WalletID: "w-1", Balance: 12.5})
	})

	wallet, err := c.CreateWallet(context.Background(), WalletRequest{ExternalID: "u-1", Email: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "w-1", wallet.WalletID)
	assert.Equal(t, 12.5, wallet.Balance)
}

func TestRewardEarnRetries(t *testing.T) {
	calls := 0
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req EarnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ref-1", req.Reference)
		_ = json.NewEncoder(w).Encode(EarnResponse{TransactionID: "tx-1"})
	})

	id, err := c.RewardEarn(context.Background(), EarnRequest{WalletID: "w-1", Amount: 5, Reference: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", id)
	assert.Equal(t, 2, calls)
}

func TestStoreAndVouchers(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/store/categories":
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []StoreCategory{{ID: "c1", Name: "Airtime"}}})
		case "/api/v1/store/categories/c1/items":
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []StoreItem{{ID: "i1", StoreID: "s1", CategoryID: "c1", Amount: 10, Count: 3}}})
		case "/api/v1/wallets/w-1/vouchers":
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []Voucher{{ID: "v1", Code: "ABC"}}})
		case "/api/v1/store/s1/items/c1":
			_ = json.NewEncoder(w).Encode(StoreItem{ID: "i1", StoreID: "s1", CategoryID: "c1", Amount: 10, Count: 3})
		case "/api/v1/store/s1/items/c1/buy":
			var req BuyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "w-1", req.WalletID)
			_ = json.NewEncoder(w).Encode(Voucher{ID: "v2", Code: "XYZ", Amount: 10})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	cats, err := c.ListStoreCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	items, err := c.ListStoreItems(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Count)

	vouchers, err := c.ListVouchers(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", vouchers[0].Code)

	item, err := c.GetStoreItem(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, item.Amount)

	v, err := c.BuyItem(ctx, "w-1", "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", v.Code)

	_, err = c.GetBalance(ctx, "missing")
	require.Error(t, err)
	assert.True(t, utils.IsStatus(err, http.StatusNotFound))
}

func TestBuyItemIsNotRetried(t *testing.T) {
	purchases := 0
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		purchases++
		if purchases == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(Voucher{ID: "v2", Code: "XYZ"})
	})

	_, err := c.BuyItem(context.Background(), "w-1", "s1", "c1")
	require.Error(t, err)
	assert.True(t, utils.IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, 1, purchases, "a failed purchase is not repeated")
}
