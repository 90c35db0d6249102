// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a youth or administrator account. Identity lives in the external
// identity provider; ExternalID links the two.
type User struct {
	ID             uuid.UUID  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email          string     `gorm:"size:320;not null;uniqueIndex" json:"email"`
	EmailConfirmed bool       `gorm:"not null;default:false" json:"email_confirmed"`
	FirstName      string     `gorm:"size:125;not null" json:"first_name"`
	Surname        string     `gorm:"size:125;not null" json:"surname"`
	DisplayName    string     `gorm:"size:255" json:"display_name"`
	PhoneNumber    string     `gorm:"size:50" json:"phone_number,omitempty"`
	CountryCode    string     `gorm:"size:3" json:"country_code,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	ExternalID     *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"external_id,omitempty"`
	DateLastLogin  *time.Time `json:"date_last_login,omitempty"`
	CreatedAt      time.Time  `json:"date_created"`
	UpdatedAt      time.Time  `json:"date_modified"`
}
