package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"yoma-api/auth"
	"yoma-api/blob"
	"yoma-api/models"
	"yoma-api/providers/ssi"
	"yoma-api/providers/zlto"
	"yoma-api/store"
	"yoma-api/store/memory"
	"yoma-api/utils"
)

type fakeZlto struct {
	mu sync.Mutex

	createErr error
	earnErr   error
	balance   float64
	wallets   int
	earned    []zlto.EarnRequest
	items     map[string]zlto.StoreItem
	bought    []string
}

func newFakeZlto() *fakeZlto {
	return &fakeZlto{items: map[string]zlto.StoreItem{}}
}

func (f *fakeZlto) CreateWallet(_ context.Context, req zlto.WalletRequest) (*zlto.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.wallets++
	return &zlto.Wallet{WalletID: "wallet-" + req.ExternalID, Balance: 0}, nil
}

func (f *fakeZlto) GetBalance(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeZlto) RewardEarn(_ context.Context, req zlto.EarnRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.earnErr != nil {
		return "", f.earnErr
	}
	f.earned = append(f.earned, req)
	return fmt.Sprintf("tx-%d", len(f.earned)), nil
}

func (f *fakeZlto) ListStoreCategories(context.Context) ([]zlto.StoreCategory, error) {
	return []zlto.StoreCategory{{ID: "airtime", Name: "Airtime"}}, nil
}

func (f *fakeZlto) ListStoreItems(_ context.Context, categoryID string) ([]zlto.StoreItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []zlto.StoreItem
	for _, item := range f.items {
		if item.CategoryID == categoryID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeZlto) GetStoreItem(_ context.Context, storeID, itemCategoryID string) (*zlto.StoreItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[storeID+"/"+itemCategoryID]
	if !ok {
		return nil, &utils.StatusError{StatusCode: 404}
	}
	return &item, nil
}

func (f *fakeZlto) ListVouchers(context.Context, string) ([]zlto.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []zlto.Voucher
	for i, key := range f.bought {
		out = append(out, zlto.Voucher{ID: fmt.Sprint(i), Name: key})
	}
	return out, nil
}

func (f *fakeZlto) BuyItem(_ context.Context, _, storeID, itemCategoryID string) (*zlto.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storeID + "/" + itemCategoryID
	item := f.items[key]
	item.Count--
	f.items[key] = item
	f.balance -= item.Amount
	f.bought = append(f.bought, key)
	return &zlto.Voucher{ID: uuid.NewString(), Name: item.Name, Code: "CODE", Amount: item.Amount}, nil
}

type fakeSSI struct {
	mu     sync.Mutex
	err    error
	issued []ssi.CredentialRequest
}

func (f *fakeSSI) IssueCredential(_ context.Context, req ssi.CredentialRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.issued = append(f.issued, req)
	return "cred-" + req.Reference, nil
}

var errProvider = errors.New("provider unavailable")

type testEnv struct {
	store      *memory.Store
	blobClient *blob.MemoryClient
	zlto       *fakeZlto
	ssi        *fakeSSI

	lookups       *LookupService
	blobs         *BlobService
	orgs          *OrganizationService
	users         *UserService
	wallets       *WalletService
	rewards       *RewardService
	credentials   *SSIService
	opportunities *OpportunityService
	myOpps        *MyOpportunityService
	marketplace   *MarketplaceService
	analytics     *AnalyticsService

	admin auth.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.NewStore()
	ledger := LedgerConfig{BatchSize: 10, MaxRetries: 2}
	e := &testEnv{
		store:      st,
		blobClient: blob.NewMemoryClient(),
		zlto:       newFakeZlto(),
		ssi:        &fakeSSI{},
	}
	e.lookups = NewLookupService(st, 16, time.Minute)
	e.blobs = NewBlobService(st, e.blobClient)
	e.orgs = NewOrganizationService(st, e.blobs)
	e.wallets = NewWalletService(st, e.zlto, ledger)
	e.users = NewUserService(st, e.wallets)
	e.rewards = NewRewardService(st, e.zlto, ledger)
	e.credentials = NewSSIService(st, e.lookups, e.ssi, ledger)
	e.opportunities = NewOpportunityService(st, e.orgs, e.lookups, 2)
	e.myOpps = NewMyOpportunityService(st, e.blobs, e.orgs, e.opportunities, e.rewards, e.credentials)
	e.marketplace = NewMarketplaceService(e.zlto, e.wallets, time.Minute)
	e.analytics = NewAnalyticsService(st, e.orgs)

	admin := e.user(t, "admin@yoma.world")
	e.admin = auth.Identity{UserID: admin.ID, Email: admin.Email, Roles: []string{auth.RoleAdmin}}
	return e
}

func (e *testEnv) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, _, err := e.users.Upsert(context.Background(), UserRequest{Email: email, FirstName: "Thandi", Surname: "Mokoena"})
	require.NoError(t, err)
	return u
}

func (e *testEnv) identity(u *models.User, roles ...string) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Roles: roles}
}

// org creates an active organisation.
func (e *testEnv) org(t *testing.T, name string) *models.Organization {
	t.Helper()
	ctx := context.Background()
	org, err := e.orgs.Create(ctx, e.admin, OrganizationRequest{Name: name}, nil)
	require.NoError(t, err)
	org, err = e.orgs.UpdateStatus(ctx, org.ID, OrganizationStatusRequest{Status: models.OrganizationStatusActive})
	require.NoError(t, err)
	return org
}

func opportunityRequest(orgID uuid.UUID) OpportunityRequest {
	now := time.Now().UTC()
	return OpportunityRequest{
		Title:                     "Plant 10 trees",
		Description:               "Plant trees in your community",
		Type:                      "Task",
		OrganizationID:            orgID,
		ZltoReward:                ptr(10.0),
		ZltoRewardPool:            ptr(25.0),
		VerificationEnabled:       true,
		VerificationMethod:        ptr(models.VerificationMethodManual),
		DateStart:                 now.Add(-48 * time.Hour),
		DateEnd:                   ptr(now.Add(30 * 24 * time.Hour)),
		CredentialIssuanceEnabled: true,
		SSISchemaName:             "Opportunity",
		CategoryIDs:               []uuid.UUID{store.DefaultCategories()[0].ID},
		VerificationTypes: []OpportunityVerificationTypeRequest{
			{Type: models.VerificationTypePicture},
			{Type: models.VerificationTypeLocation},
		},
		PostAsActive: true,
	}
}

// opportunity creates a published opportunity with manual verification.
func (e *testEnv) opportunity(t *testing.T, orgID uuid.UUID, mutate func(*OpportunityRequest)) *models.Opportunity {
	t.Helper()
	req := opportunityRequest(orgID)
	if mutate != nil {
		mutate(&req)
	}
	opp, err := e.opportunities.Create(context.Background(), e.admin, req)
	require.NoError(t, err)
	return opp
}

func picture() *utils.File {
	return &utils.File{Name: "proof.png", ContentType: "image/png", Data: []byte("\x89PNG proof")}
}

func verificationRequest() VerificationRequest {
	now := time.Now().UTC()
	return VerificationRequest{
		DateStart: ptr(now.Add(-2 * time.Hour)),
		DateEnd:   ptr(now.Add(-time.Minute)),
		Items: []VerificationItemRequest{
			{Type: models.VerificationTypePicture, File: picture()},
			{Type: models.VerificationTypeLocation, Geometry: &Geometry{Type: "Point", Coordinates: [][]float64{{18.42, -33.92}}}},
		},
	}
}

func (e *testEnv) sendForVerification(t *testing.T, userID, oppID uuid.UUID) *models.MyOpportunity {
	t.Helper()
	item, err := e.myOpps.PerformActionSendForVerification(context.Background(), userID, oppID, verificationRequest())
	require.NoError(t, err)
	return item
}

func (e *testEnv) verify(t *testing.T, userID, oppID uuid.UUID, status models.VerificationStatus) {
	t.Helper()
	err := e.myOpps.UpdateVerificationStatus(context.Background(), e.admin, VerificationStatusRequest{
		UserID:        userID,
		OpportunityID: oppID,
		Status:        status,
		Comment:       "reviewed",
	})
	require.NoError(t, err)
}
