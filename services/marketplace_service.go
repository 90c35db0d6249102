package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/cache"
	"yoma-api/errs"
	"yoma-api/providers/zlto"
	"yoma-api/utils"
)

// StoreProvider is the reward provider's voucher store.
type StoreProvider interface {
	ListStoreCategories(ctx context.Context) ([]zlto.StoreCategory, error)
	ListStoreItems(ctx context.Context, categoryID string) ([]zlto.StoreItem, error)
	GetStoreItem(ctx context.Context, storeID, itemCategoryID string) (*zlto.StoreItem, error)
	ListVouchers(ctx context.Context, walletID string) ([]zlto.Voucher, error)
	BuyItem(ctx context.Context, walletID, storeID, itemCategoryID string) (*zlto.Voucher, error)
}

type BuyItemRequest struct {
	StoreID        string `json:"store_id" validate:"notblank"`
	ItemCategoryID string `json:"item_category_id" validate:"notblank"`
}

// MarketplaceService lets users spend their Zlto on vouchers.
type MarketplaceService struct {
	provider   StoreProvider
	wallets    *WalletService
	categories *cache.Cache[[]zlto.StoreCategory]
}

func NewMarketplaceService(provider StoreProvider, wallets *WalletService, ttl time.Duration) *MarketplaceService {
	return &MarketplaceService{
		provider:   provider,
		wallets:    wallets,
		categories: cache.New[[]zlto.StoreCategory](1, ttl),
	}
}

func (s *MarketplaceService) ListCategories(ctx context.Context) ([]zlto.StoreCategory, error) {
	items, err := s.categories.GetOrLoad(ctx, "categories", s.provider.ListStoreCategories)
	if err != nil {
		return nil, err
	}
	return append([]zlto.StoreCategory{}, items...), nil
}

func (s *MarketplaceService) ListStoreItems(ctx context.Context, categoryID string) ([]zlto.StoreItem, error) {
	if categoryID == "" {
		return nil, errs.Validation("'category_id' is required")
	}
	items, err := s.provider.ListStoreItems(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []zlto.StoreItem{}
	}
	return items, nil
}

func (s *MarketplaceService) ListVouchers(ctx context.Context, userID uuid.UUID) ([]zlto.Voucher, error) {
	walletID, err := s.wallets.WalletID(ctx, userID)
	if err != nil {
		return nil, err
	}
	vouchers, err := s.provider.ListVouchers(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if vouchers == nil {
		vouchers = []zlto.Voucher{}
	}
	return vouchers, nil
}

// BuyItem purchases a voucher with the user's Zlto. The item must be in
// stock and the wallet balance must cover its price.
func (s *MarketplaceService) BuyItem(ctx context.Context, userID uuid.UUID, req BuyItemRequest) (*zlto.Voucher, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	walletID, err := s.wallets.WalletID(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.provider.GetStoreItem(ctx, req.StoreID, req.ItemCategoryID)
	if err != nil {
		if utils.IsStatus(err, http.StatusNotFound) {
			return nil, errs.NotFound("Store item", req.ItemCategoryID)
		}
		return nil, err
	}
	if item.Count <= 0 {
		return nil, errs.Validation("store item '%s' is out of stock", item.Name)
	}

	wallet, err := s.wallets.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < item.Amount {
		return nil, errs.Validation("insufficient balance: '%s' costs %.2f Zlto but the wallet holds %.2f", item.Name, item.Amount, wallet.Balance)
	}

	voucher, err := s.provider.BuyItem(ctx, walletID, req.StoreID, req.ItemCategoryID)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", userID.String()).
		Str("store_id", req.StoreID).
		Str("item_category_id", req.ItemCategoryID).
		Float64("amount", item.Amount).
		Msg("marketplace item purchased")
	return voucher, nil
}
