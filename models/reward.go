// models/reward.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type RewardSourceEntityType string

const (
	RewardSourceMyOpportunity RewardSourceEntityType = "MyOpportunity"
)

// RewardTransaction is an append-only ledger entry crediting Zlto to a user's
// wallet. One entry per completed MyOpportunity.
type RewardTransaction struct {
	ID               uuid.UUID              `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID           uuid.UUID              `gorm:"type:uuid;not null;index" json:"user_id"`
	SourceEntityType RewardSourceEntityType `gorm:"size:25;not null" json:"source_entity_type"`
	MyOpportunityID  *uuid.UUID             `gorm:"type:uuid;uniqueIndex" json:"my_opportunity_id,omitempty"`
	Amount           float64                `gorm:"type:decimal(8,2);not null" json:"amount"`
	Status           ProcessingStatus       `gorm:"size:20;not null;index" json:"status"`
	TransactionID    string                 `gorm:"size:50" json:"transaction_id,omitempty"`
	ErrorReason      string                 `gorm:"type:text" json:"error_reason,omitempty"`
	RetryCount       int                    `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt        time.Time              `gorm:"index" json:"date_created"`
	UpdatedAt        time.Time              `json:"date_modified"`
}
