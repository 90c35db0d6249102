// models/organization.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type OrganizationStatus string

const (
	OrganizationStatusInactive OrganizationStatus = "Inactive"
	OrganizationStatusActive   OrganizationStatus = "Active"
	OrganizationStatusDeclined OrganizationStatus = "Declined"
	OrganizationStatusDeleted  OrganizationStatus = "Deleted"
)

// OrganizationStatuses lists every status in display order.
var OrganizationStatuses = []OrganizationStatus{
	OrganizationStatusInactive,
	OrganizationStatusActive,
	OrganizationStatusDeclined,
	OrganizationStatusDeleted,
}

// Organization is a partner that publishes opportunities.
type Organization struct {
	ID                  uuid.UUID          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name                string             `gorm:"size:80;not null" json:"name"`
	NameHashValue       string             `gorm:"size:128;not null;uniqueIndex" json:"-"`
	Slug                string             `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	WebsiteURL          string             `gorm:"size:2048" json:"website_url,omitempty"`
	PrimaryContactName  string             `gorm:"size:255" json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string             `gorm:"size:320" json:"primary_contact_email,omitempty"`
	Tagline             string             `gorm:"type:text" json:"tagline,omitempty"`
	Biography           string             `gorm:"type:text" json:"biography,omitempty"`
	CountryCode         string             `gorm:"size:3" json:"country_code,omitempty"`
	Status              OrganizationStatus `gorm:"size:20;not null;index" json:"status"`
	CommentApproval     string             `gorm:"type:text" json:"comment_approval,omitempty"`
	DateStatusModified  time.Time          `json:"date_status_modified"`
	LogoID              *uuid.UUID         `gorm:"type:uuid" json:"logo_id,omitempty"`
	LogoURL             string             `gorm:"-" json:"logo_url,omitempty"`
	CreatedAt           time.Time          `json:"date_created"`
	UpdatedAt           time.Time          `json:"date_modified"`
}

// OrganizationAdmin links a user to an organisation they administer.
type OrganizationAdmin struct {
	OrganizationID uuid.UUID `gorm:"primaryKey;type:uuid" json:"organization_id"`
	UserID         uuid.UUID `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	CreatedAt      time.Time `json:"date_created"`
}
