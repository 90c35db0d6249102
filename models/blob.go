// models/blob.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type FileType string

const (
	FileTypePhotos       FileType = "Photos"
	FileTypeCertificates FileType = "Certificates"
	FileTypeDocuments    FileType = "Documents"
	FileTypeVoiceNotes   FileType = "VoiceNotes"
)

// BlobObject is the metadata of an object held in blob storage.
type BlobObject struct {
	ID               uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	StorageType      string    `gorm:"size:25;not null" json:"storage_type"`
	FileType         FileType  `gorm:"size:25;not null" json:"file_type"`
	Key              string    `gorm:"size:125;not null;uniqueIndex" json:"key"`
	ContentType      string    `gorm:"size:127;not null" json:"content_type"`
	OriginalFileName string    `gorm:"size:255;not null" json:"original_file_name"`
	CreatedAt        time.Time `json:"date_created"`
}
