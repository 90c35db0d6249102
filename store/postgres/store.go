// Package postgres implements the store interfaces on gorm with the
// PostgreSQL driver.
package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yoma-api/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store on a gorm handle. The handle may be the root
// connection pool or an open transaction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle, mainly for migrations.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Organizations() store.OrganizationRepository {
	return &organizationRepository{db: s.db}
}

func (s *Store) Users() store.UserRepository {
	return &userRepository{db: s.db}
}

func (s *Store) Opportunities() store.OpportunityRepository {
	return &opportunityRepository{db: s.db}
}

func (s *Store) MyOpportunities() store.MyOpportunityRepository {
	return &myOpportunityRepository{db: s.db}
}

func (s *Store) RewardTransactions() store.RewardTransactionRepository {
	return &rewardTransactionRepository{db: s.db}
}

func (s *Store) WalletCreations() store.WalletCreationRepository {
	return &walletCreationRepository{db: s.db}
}

func (s *Store) CredentialIssuances() store.CredentialIssuanceRepository {
	return &credentialIssuanceRepository{db: s.db}
}

func (s *Store) Blobs() store.BlobRepository {
	return &blobRepository{db: s.db}
}

func (s *Store) Lookups() store.LookupRepository {
	return &lookupRepository{db: s.db}
}

// Transaction runs fn in a gorm transaction. Nested calls use a savepoint.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// forUpdate locks the selected rows of table until the transaction ends.
func forUpdate(table string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: table}})
	}
}

// paginate applies limit/offset for a page request.
func paginate(q *gorm.DB, page store.Page) *gorm.DB {
	if !page.Paged() {
		return q
	}
	return q.Offset(page.Offset()).Limit(page.Size)
}

func likePattern(v string) string {
	return "%" + v + "%"
}
