// models/wallet.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletCreation tracks the provisioning of a user's reward wallet with the
// external wallet provider.
type WalletCreation struct {
	ID          uuid.UUID        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Status      ProcessingStatus `gorm:"size:20;not null;index" json:"status"`
	WalletID    string           `gorm:"size:50" json:"wallet_id,omitempty"`
	Balance     *float64         `gorm:"type:decimal(12,2)" json:"balance,omitempty"`
	ErrorReason string           `gorm:"type:text" json:"error_reason,omitempty"`
	RetryCount  int              `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt   time.Time        `json:"date_created"`
	UpdatedAt   time.Time        `json:"date_modified"`
}
