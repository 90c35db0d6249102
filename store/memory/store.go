// Package memory implements the store interfaces in memory.
// This implementation is for tests and local development - data is lost on restart.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yoma-api/models"
	"yoma-api/store"
)

var _ store.Store = (*Store)(nil)

type data struct {
	organizations   map[uuid.UUID]models.Organization
	admins          map[uuid.UUID]map[uuid.UUID]time.Time // org_id -> user_id -> added
	users           map[uuid.UUID]models.User
	opportunities   map[uuid.UUID]models.Opportunity
	myOpportunities map[uuid.UUID]models.MyOpportunity
	rewards         map[uuid.UUID]models.RewardTransaction
	wallets         map[uuid.UUID]models.WalletCreation
	credentials     map[uuid.UUID]models.SSICredentialIssuance
	blobs           map[uuid.UUID]models.BlobObject

	categories        []models.OpportunityCategory
	opportunityTypes  []models.OpportunityType
	verificationTypes []models.VerificationTypeLookup
	schemaEntities    []models.SSISchemaEntity
}

func (d *data) clone() *data {
	admins := make(map[uuid.UUID]map[uuid.UUID]time.Time, len(d.admins))
	for org, users := range d.admins {
		admins[org] = maps.Clone(users)
	}
	return &data{
		organizations:     maps.Clone(d.organizations),
		admins:            admins,
		users:             maps.Clone(d.users),
		opportunities:     maps.Clone(d.opportunities),
		myOpportunities:   maps.Clone(d.myOpportunities),
		rewards:           maps.Clone(d.rewards),
		wallets:           maps.Clone(d.wallets),
		credentials:       maps.Clone(d.credentials),
		blobs:             maps.Clone(d.blobs),
		categories:        d.categories,
		opportunityTypes:  d.opportunityTypes,
		verificationTypes: d.verificationTypes,
		schemaEntities:    d.schemaEntities,
	}
}

type state struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	d    *data
}

// Store implements store.Store in memory. Stored values are copied on the
// way in and out so callers never share state with the store.
type Store struct {
	s    *state
	inTx bool
}

// NewStore creates an empty store seeded with the default reference data.
func NewStore() *Store {
	return &Store{s: &state{d: &data{
		organizations:     make(map[uuid.UUID]models.Organization),
		admins:            make(map[uuid.UUID]map[uuid.UUID]time.Time),
		users:             make(map[uuid.UUID]models.User),
		opportunities:     make(map[uuid.UUID]models.Opportunity),
		myOpportunities:   make(map[uuid.UUID]models.MyOpportunity),
		rewards:           make(map[uuid.UUID]models.RewardTransaction),
		wallets:           make(map[uuid.UUID]models.WalletCreation),
		credentials:       make(map[uuid.UUID]models.SSICredentialIssuance),
		blobs:             make(map[uuid.UUID]models.BlobObject),
		categories:        store.DefaultCategories(),
		opportunityTypes:  store.DefaultOpportunityTypes(),
		verificationTypes: store.DefaultVerificationTypes(),
		schemaEntities:    store.DefaultSchemaEntities(),
	}}}
}

func (s *Store) Organizations() store.OrganizationRepository { return &organizationRepository{s: s.s} }
func (s *Store) Users() store.UserRepository                 { return &userRepository{s: s.s} }
func (s *Store) Opportunities() store.OpportunityRepository  { return &opportunityRepository{s: s.s} }
func (s *Store) MyOpportunities() store.MyOpportunityRepository {
	return &myOpportunityRepository{s: s.s}
}
func (s *Store) RewardTransactions() store.RewardTransactionRepository {
	return &rewardTransactionRepository{s: s.s}
}
func (s *Store) WalletCreations() store.WalletCreationRepository {
	return &walletCreationRepository{s: s.s}
}
func (s *Store) CredentialIssuances() store.CredentialIssuanceRepository {
	return &credentialIssuanceRepository{s: s.s}
}
func (s *Store) Blobs() store.BlobRepository     { return &blobRepository{s: s.s} }
func (s *Store) Lookups() store.LookupRepository { return &lookupRepository{s: s.s} }

// Transaction serialises transactions and restores a snapshot of the data
// when fn fails.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.s.txMu.Lock()
	defer s.s.txMu.Unlock()

	s.s.mu.RLock()
	snapshot := s.s.d.clone()
	s.s.mu.RUnlock()

	if err := fn(&Store{s: s.s, inTx: true}); err != nil {
		s.s.mu.Lock()
		s.s.d = snapshot
		s.s.mu.Unlock()
		return err
	}
	return nil
}

func touch(created *time.Time, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// page slices items for the requested page.
func page[T any](items []T, p store.Page) []T {
	if !p.Paged() {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
