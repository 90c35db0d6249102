package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/errs"
	"yoma-api/providers/zlto"
)

func TestMarketplaceBuyItem(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	youth := e.user(t, "youth@example.com")
	e.zlto.items["store-1/airtime-10"] = zlto.StoreItem{ID: "airtime-10", StoreID: "store-1", CategoryID: "airtime", Name: "R10 airtime", Amount: 50, Count: 1}
	e.zlto.items["store-1/airtime-50"] = zlto.StoreItem{ID: "airtime-50", StoreID: "store-1", CategoryID: "airtime", Name: "R50 airtime", Amount: 250, Count: 0}
	req := BuyItemRequest{StoreID: "store-1", ItemCategoryID: "airtime-10"}

	_, err := e.marketplace.BuyItem(ctx, youth.ID, req)
	assert.True(t, errs.IsValidation(err), "wallet is not created yet")

	_, err = e.wallets.ProcessWalletCreations(ctx)
	require.NoError(t, err)

	tests := []struct {
		name    string
		balance float64
		req     BuyItemRequest
		check   func(error) bool
	}{
		{"blank item", 100, BuyItemRequest{StoreID: "store-1"}, errs.IsValidation},
		{"unknown item", 100, BuyItemRequest{StoreID: "store-1", ItemCategoryID: "data-1gb"}, errs.IsNotFound},
		{"out of stock", 1000, BuyItemRequest{StoreID: "store-1", ItemCategoryID: "airtime-50"}, errs.IsValidation},
		{"insufficient balance", 20, req, errs.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.zlto.balance = tt.balance
			_, err := e.marketplace.BuyItem(ctx, youth.ID, tt.req)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
	assert.Empty(t, e.zlto.bought)

	e.zlto.balance = 100
	voucher, err := e.marketplace.BuyItem(ctx, youth.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "R10 airtime", voucher.Name)
	assert.Equal(t, 50.0, e.zlto.balance)

	vouchers, err := e.marketplace.ListVouchers(ctx, youth.ID)
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)

	_, err = e.marketplace.BuyItem(ctx, youth.ID, req)
	assert.True(t, errs.IsValidation(err), "last item was sold")
}

func TestMarketplaceCatalogue(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.zlto.items["store-1/airtime-10"] = zlto.StoreItem{ID: "airtime-10", StoreID: "store-1", CategoryID: "airtime", Name: "R10 airtime", Amount: 50, Count: 3}

	categories, err := e.marketplace.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	categories[0].Name = "changed"

	again, err := e.marketplace.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Airtime", again[0].Name, "callers get a copy of the cached list")

	_, err = e.marketplace.ListStoreItems(ctx, "")
	assert.True(t, errs.IsValidation(err))

	items, err := e.marketplace.ListStoreItems(ctx, "airtime")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = e.marketplace.ListStoreItems(ctx, "data")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
