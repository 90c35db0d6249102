// models/my_opportunity.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionViewed       Action = "Viewed"
	ActionSaved        Action = "Saved"
	ActionVerification Action = "Verification"
)

var Actions = []Action{ActionViewed, ActionSaved, ActionVerification}

type VerificationStatus string

const (
	VerificationStatusPending   VerificationStatus = "Pending"
	VerificationStatusCompleted VerificationStatus = "Completed"
	VerificationStatusRejected  VerificationStatus = "Rejected"
)

var VerificationStatuses = []VerificationStatus{
	VerificationStatusPending,
	VerificationStatusCompleted,
	VerificationStatusRejected,
}

// CanTransition enforces the verification workflow:
// Pending → Completed|Rejected and Rejected → Pending (resubmission).
func (s VerificationStatus) CanTransition(next VerificationStatus) bool {
	switch s {
	case VerificationStatusPending:
		return next == VerificationStatusCompleted || next == VerificationStatusRejected
	case VerificationStatusRejected:
		return next == VerificationStatusPending
	}
	return false
}

// MyOpportunity records one action a user took against an opportunity.
type MyOpportunity struct {
	ID                  uuid.UUID           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID              uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_my_opportunity_user_action" json:"user_id"`
	OpportunityID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_my_opportunity_user_action;index" json:"opportunity_id"`
	Action              Action              `gorm:"size:20;not null;uniqueIndex:idx_my_opportunity_user_action" json:"action"`
	VerificationStatus  *VerificationStatus `gorm:"size:20;index" json:"verification_status,omitempty"`
	CommentVerification string              `gorm:"type:text" json:"comment_verification,omitempty"`
	DateStart           *time.Time          `json:"date_start,omitempty"`
	DateEnd             *time.Time          `json:"date_end,omitempty"`
	DateCompleted       *time.Time          `gorm:"index" json:"date_completed,omitempty"`
	ZltoReward          *float64            `gorm:"type:decimal(8,2)" json:"zlto_reward,omitempty"`
	YomaReward          *float64            `gorm:"type:decimal(8,2)" json:"yoma_reward,omitempty"`
	CreatedAt           time.Time           `json:"date_created"`
	UpdatedAt           time.Time           `json:"date_modified"`

	Verifications []MyOpportunityVerification `gorm:"foreignKey:MyOpportunityID" json:"verifications,omitempty"`

	// Populated on read for convenience.
	OpportunityTitle string    `gorm:"->;-:migration" json:"opportunity_title,omitempty"`
	OrganizationID   uuid.UUID `gorm:"->;-:migration" json:"organization_id,omitempty"`
	UserEmail        string    `gorm:"->;-:migration" json:"user_email,omitempty"`
}

// MyOpportunityVerification is one piece of evidence attached to a
// verification request.
type MyOpportunityVerification struct {
	ID               uuid.UUID        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MyOpportunityID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"my_opportunity_id"`
	VerificationType VerificationType `gorm:"size:50;not null" json:"type"`
	GeometryJSON     string           `gorm:"type:text" json:"geometry,omitempty"`
	FileID           *uuid.UUID       `gorm:"type:uuid" json:"file_id,omitempty"`
	FileURL          string           `gorm:"-" json:"file_url,omitempty"`
	CreatedAt        time.Time        `json:"date_created"`
}

// FileIDs returns the blob ids referenced by the verification items.
func (m *MyOpportunity) FileIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, v := range m.Verifications {
		if v.FileID != nil {
			ids = append(ids, *v.FileID)
		}
	}
	return ids
}
