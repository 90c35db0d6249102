// models/lookup.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// OpportunityCategory is reference data used to classify opportunities.
type OpportunityCategory struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"size:125;not null;uniqueIndex" json:"name"`
	ImageURL  string    `gorm:"size:2048" json:"image_url,omitempty"`
	CreatedAt time.Time `json:"-"`
}

type OpportunityType struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"-"`
}

type VerificationType string

const (
	VerificationTypeFileUpload VerificationType = "FileUpload"
	VerificationTypePicture    VerificationType = "Picture"
	VerificationTypeLocation   VerificationType = "Location"
	VerificationTypeVoiceNote  VerificationType = "VoiceNote"
)

// VerificationTypeLookup is the reference row for a VerificationType.
type VerificationTypeLookup struct {
	ID          uuid.UUID        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Type        VerificationType `gorm:"size:50;not null;uniqueIndex" json:"type"`
	DisplayName string           `gorm:"size:125;not null" json:"display_name"`
	Description string           `gorm:"size:255" json:"description"`
	CreatedAt   time.Time        `json:"-"`
}

func (VerificationTypeLookup) TableName() string { return "verification_types" }

// FileType returns the blob file type that carries evidence for t, or false
// when the verification type has no file.
func (t VerificationType) FileType() (FileType, bool) {
	switch t {
	case VerificationTypeFileUpload:
		return FileTypeCertificates, true
	case VerificationTypePicture:
		return FileTypePhotos, true
	case VerificationTypeVoiceNote:
		return FileTypeVoiceNotes, true
	}
	return "", false
}
