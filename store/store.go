// Package store defines the persistence interfaces the services depend on.
// The postgres package implements them with gorm; the memory package keeps
// everything in maps for tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"yoma-api/models"
)

// Sentinel errors for store operations
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store aggregates the repositories and the transaction scope that binds them.
type Store interface {
	Organizations() OrganizationRepository
	Users() UserRepository
	Opportunities() OpportunityRepository
	MyOpportunities() MyOpportunityRepository
	RewardTransactions() RewardTransactionRepository
	WalletCreations() WalletCreationRepository
	CredentialIssuances() CredentialIssuanceRepository
	Blobs() BlobRepository
	Lookups() LookupRepository

	// Transaction runs fn inside a single database transaction. Every
	// repository obtained from tx participates in it. If fn returns an error
	// all writes are rolled back. Calling Transaction on tx runs fn in the
	// already open transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Page is a 1-based page request. A zero PageSize means no paging.
type Page struct {
	Number int `json:"page_number" query:"page_number"`
	Size   int `json:"page_size" query:"page_size"`
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Paged reports whether a limit applies.
func (p Page) Paged() bool { return p.Size > 0 }

type OrganizationFilter struct {
	ValueContains string
	Statuses      []models.OrganizationStatus
	Page
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetByNameHash(ctx context.Context, hash string) (*models.Organization, error)
	Search(ctx context.Context, filter OrganizationFilter) ([]models.Organization, int64, error)

	// AddAdmin is idempotent.
	AddAdmin(ctx context.Context, orgID, userID uuid.UUID) error
	RemoveAdmin(ctx context.Context, orgID, userID uuid.UUID) error
	ListAdmins(ctx context.Context, orgID uuid.UUID) ([]models.User, error)
	IsAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
	ListByAdmin(ctx context.Context, userID uuid.UUID) ([]models.Organization, error)
}

type UserFilter struct {
	ValueContains string
	Page
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Search(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
}

type OpportunityFilter struct {
	OrganizationIDs []uuid.UUID
	Types           []string
	CategoryIDs     []uuid.UUID
	Statuses        []models.OpportunityStatus
	ValueContains   string
	StartDate       *time.Time
	EndDate         *time.Time
	// PublishedAt restricts results to opportunities that are published at the
	// given instant (active, visible, started and of an active organisation).
	PublishedAt *time.Time
	Page
}

type OpportunityRepository interface {
	// Create persists the opportunity along with its categories and
	// verification types.
	Create(ctx context.Context, opp *models.Opportunity) error
	// Update persists the opportunity and replaces its categories and
	// verification types.
	Update(ctx context.Context, opp *models.Opportunity) error
	Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	// GetForUpdate is Get holding a row lock until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Opportunity, error)
	Search(ctx context.Context, filter OpportunityFilter) ([]models.Opportunity, int64, error)
	// ListEnded returns up to limit opportunities in one of the given statuses
	// whose end date is before now.
	ListEnded(ctx context.Context, statuses []models.OpportunityStatus, now time.Time, limit int) ([]models.Opportunity, error)
}

type MyOpportunityFilter struct {
	UserID               *uuid.UUID
	OpportunityID        *uuid.UUID
	OrganizationID       *uuid.UUID
	Action               *models.Action
	VerificationStatuses []models.VerificationStatus
	Page
}

// EngagementFilter scopes the analytics projection.
type EngagementFilter struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	OpportunityIDs []uuid.UUID
	CategoryIDs    []uuid.UUID
	StartDate      *time.Time
	EndDate        *time.Time
}

// EngagementRow is the projection of a MyOpportunity used to build analytics.
type EngagementRow struct {
	MyOpportunityID    uuid.UUID
	OpportunityID      uuid.UUID
	OpportunityTitle   string
	Action             models.Action
	VerificationStatus *models.VerificationStatus
	ZltoReward         *float64
	DateCreated        time.Time
	DateCompleted      *time.Time
}

type MyOpportunityRepository interface {
	// Create persists the record and its verification items.
	Create(ctx context.Context, item *models.MyOpportunity) error
	// Update persists the record and replaces its verification items.
	Update(ctx context.Context, item *models.MyOpportunity) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.MyOpportunity, error)
	Find(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error)
	FindForUpdate(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error)
	Search(ctx context.Context, filter MyOpportunityFilter) ([]models.MyOpportunity, int64, error)
	Engagement(ctx context.Context, filter EngagementFilter) ([]EngagementRow, error)
}

// ProcessingQuery selects the ledger records a job run picks up: pending
// records, errored records with fewer than MaxRetries retries and records
// left in Processing since before StaleBefore.
type ProcessingQuery struct {
	MaxRetries  int
	Limit       int
	StaleBefore time.Time
}

type RewardTransactionRepository interface {
	Create(ctx context.Context, tx *models.RewardTransaction) error
	Update(ctx context.Context, tx *models.RewardTransaction) error
	GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.RewardTransaction, error)
	// ListForProcessing returns processable entries of users whose wallet
	// has been created, oldest first.
	ListForProcessing(ctx context.Context, q ProcessingQuery) ([]models.RewardTransaction, error)
	// Claim moves the entry to Processing if it still has the status and
	// retry count it was read with, and reports whether it did. Reclaiming
	// a stale Processing entry counts as a retry.
	Claim(ctx context.Context, tx *models.RewardTransaction) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RewardTransaction, error)
}

type WalletCreationRepository interface {
	Create(ctx context.Context, wc *models.WalletCreation) error
	Update(ctx context.Context, wc *models.WalletCreation) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.WalletCreation, error)
	ListForProcessing(ctx context.Context, q ProcessingQuery) ([]models.WalletCreation, error)
	Claim(ctx context.Context, wc *models.WalletCreation) (bool, error)
}

type CredentialIssuanceRepository interface {
	Create(ctx context.Context, ci *models.SSICredentialIssuance) error
	Update(ctx context.Context, ci *models.SSICredentialIssuance) error
	GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.SSICredentialIssuance, error)
	ListForProcessing(ctx context.Context, q ProcessingQuery) ([]models.SSICredentialIssuance, error)
	Claim(ctx context.Context, ci *models.SSICredentialIssuance) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *models.ProcessingStatus) ([]models.SSICredentialIssuance, error)
}

type BlobRepository interface {
	Create(ctx context.Context, blob *models.BlobObject) error
	Get(ctx context.Context, id uuid.UUID) (*models.BlobObject, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LookupRepository reads reference data. Implementations share one generic
// list routine across the lookup tables.
type LookupRepository interface {
	Categories(ctx context.Context) ([]models.OpportunityCategory, error)
	OpportunityTypes(ctx context.Context) ([]models.OpportunityType, error)
	VerificationTypes(ctx context.Context) ([]models.VerificationTypeLookup, error)
	SchemaEntities(ctx context.Context) ([]models.SSISchemaEntity, error)
}
