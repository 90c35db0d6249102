// models/ssi.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type SSISchemaEntityType string

const (
	SSISchemaEntityUser          SSISchemaEntityType = "User"
	SSISchemaEntityOpportunity   SSISchemaEntityType = "Opportunity"
	SSISchemaEntityMyOpportunity SSISchemaEntityType = "MyOpportunity"
)

// SSISchemaEntity describes an entity whose properties can be used as
// credential attributes.
type SSISchemaEntity struct {
	ID         uuid.UUID                 `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TypeName   SSISchemaEntityType       `gorm:"size:50;not null;uniqueIndex" json:"type_name"`
	Properties []SSISchemaEntityProperty `gorm:"foreignKey:SSISchemaEntityID" json:"properties"`
	CreatedAt  time.Time                 `json:"date_created"`
}

type SSISchemaEntityProperty struct {
	ID                uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SSISchemaEntityID uuid.UUID `gorm:"type:uuid;not null;index" json:"ssi_schema_entity_id"`
	Name              string    `gorm:"size:50;not null" json:"name"`
	NameDisplay       string    `gorm:"size:50;not null" json:"name_display"`
	Description       string    `gorm:"size:255" json:"description"`
	AttributeName     string    `gorm:"size:50;not null" json:"attribute_name"`
	Required          bool      `gorm:"not null" json:"required"`
	CreatedAt         time.Time `json:"date_created"`
}

// SSICredentialIssuance tracks the issuance of a verifiable credential for a
// completed opportunity.
type SSICredentialIssuance struct {
	ID              uuid.UUID        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	MyOpportunityID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"my_opportunity_id"`
	SchemaName      string           `gorm:"size:255;not null" json:"schema_name"`
	Status          ProcessingStatus `gorm:"size:20;not null;index" json:"status"`
	CredentialID    string           `gorm:"size:50" json:"credential_id,omitempty"`
	ErrorReason     string           `gorm:"type:text" json:"error_reason,omitempty"`
	RetryCount      int              `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt       time.Time        `json:"date_created"`
	UpdatedAt       time.Time        `json:"date_modified"`
}
