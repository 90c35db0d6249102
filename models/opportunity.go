// models/opportunity.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type OpportunityStatus string

const (
	OpportunityStatusActive   OpportunityStatus = "Active"
	OpportunityStatusInactive OpportunityStatus = "Inactive"
	OpportunityStatusExpired  OpportunityStatus = "Expired"
	OpportunityStatusDeleted  OpportunityStatus = "Deleted"
)

var OpportunityStatuses = []OpportunityStatus{
	OpportunityStatusActive,
	OpportunityStatusInactive,
	OpportunityStatusExpired,
	OpportunityStatusDeleted,
}

type VerificationMethod string

const (
	VerificationMethodManual    VerificationMethod = "Manual"
	VerificationMethodAutomatic VerificationMethod = "Automatic"
)

// Opportunity is a task or learning listing a youth can engage with.
type Opportunity struct {
	ID                        uuid.UUID           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Title                     string              `gorm:"size:255;not null" json:"title"`
	Description               string              `gorm:"type:text;not null" json:"description"`
	Type                      string              `gorm:"size:50;not null;index" json:"type"`
	OrganizationID            uuid.UUID           `gorm:"type:uuid;not null;index" json:"organization_id"`
	Summary                   string              `gorm:"size:150" json:"summary,omitempty"`
	Instructions              string              `gorm:"type:text" json:"instructions,omitempty"`
	URL                       string              `gorm:"size:2048" json:"url,omitempty"`
	ZltoReward                *float64            `gorm:"type:decimal(8,2)" json:"zlto_reward,omitempty"`
	YomaReward                *float64            `gorm:"type:decimal(8,2)" json:"yoma_reward,omitempty"`
	ZltoRewardPool            *float64            `gorm:"type:decimal(12,2)" json:"zlto_reward_pool,omitempty"`
	YomaRewardPool            *float64            `gorm:"type:decimal(12,2)" json:"yoma_reward_pool,omitempty"`
	ZltoRewardCumulative      *float64            `gorm:"type:decimal(12,2)" json:"zlto_reward_cumulative,omitempty"`
	YomaRewardCumulative      *float64            `gorm:"type:decimal(12,2)" json:"yoma_reward_cumulative,omitempty"`
	VerificationEnabled       bool                `gorm:"not null" json:"verification_enabled"`
	VerificationMethod        *VerificationMethod `gorm:"size:20" json:"verification_method,omitempty"`
	Difficulty                string              `gorm:"size:50" json:"difficulty,omitempty"`
	CommitmentInterval        string              `gorm:"size:50" json:"commitment_interval,omitempty"`
	CommitmentIntervalCount   *int                `json:"commitment_interval_count,omitempty"`
	ParticipantLimit          *int                `json:"participant_limit,omitempty"`
	ParticipantCount          int                 `gorm:"not null;default:0" json:"participant_count"`
	Status                    OpportunityStatus   `gorm:"size:20;not null;index" json:"status"`
	Keywords                  string              `gorm:"size:500" json:"keywords,omitempty"`
	DateStart                 time.Time           `gorm:"not null;index" json:"date_start"`
	DateEnd                   *time.Time          `gorm:"index" json:"date_end,omitempty"`
	CredentialIssuanceEnabled bool                `gorm:"not null" json:"credential_issuance_enabled"`
	SSISchemaName             string              `gorm:"size:255" json:"ssi_schema_name,omitempty"`
	Hidden                    bool                `gorm:"not null;default:false" json:"hidden"`
	CreatedByUserID           uuid.UUID           `gorm:"type:uuid" json:"created_by_user_id"`
	ModifiedByUserID          uuid.UUID           `gorm:"type:uuid" json:"modified_by_user_id"`
	CreatedAt                 time.Time           `json:"date_created"`
	UpdatedAt                 time.Time           `json:"date_modified"`

	Categories        []OpportunityCategory         `gorm:"many2many:opportunity_categories_links" json:"categories,omitempty"`
	VerificationTypes []OpportunityVerificationType `gorm:"foreignKey:OpportunityID" json:"verification_types,omitempty"`

	// Populated on read for convenience.
	OrganizationName   string             `gorm:"->;-:migration" json:"organization_name,omitempty"`
	OrganizationStatus OrganizationStatus `gorm:"->;-:migration" json:"organization_status,omitempty"`
}

// OpportunityVerificationType names evidence a youth must supply when sending
// the opportunity for manual verification.
type OpportunityVerificationType struct {
	ID               uuid.UUID        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	OpportunityID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_opportunity_verification_type" json:"opportunity_id"`
	VerificationType VerificationType `gorm:"size:50;not null;uniqueIndex:idx_opportunity_verification_type" json:"type"`
	Description      string           `gorm:"size:255" json:"description,omitempty"`
	CreatedAt        time.Time        `json:"date_created"`
}

// Published reports whether youth may interact with the opportunity: it must
// be active, visible, started and belong to an active organisation.
func (o *Opportunity) Published(now time.Time) bool {
	return o.Status == OpportunityStatusActive &&
		o.OrganizationStatus == OrganizationStatusActive &&
		!o.Hidden &&
		!o.DateStart.After(now)
}

// Ended reports whether the opportunity's end date has passed.
func (o *Opportunity) Ended(now time.Time) bool {
	return o.DateEnd != nil && o.DateEnd.Before(now)
}

func (o *Opportunity) HasVerificationType(t VerificationType) bool {
	for _, vt := range o.VerificationTypes {
		if vt.VerificationType == t {
			return true
		}
	}
	return false
}

// ManualVerification reports whether completions are reviewed by an
// organisation admin.
func (o *Opportunity) ManualVerification() bool {
	return o.VerificationEnabled && o.VerificationMethod != nil && *o.VerificationMethod == VerificationMethodManual
}
