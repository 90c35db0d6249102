package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/blob"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
	"yoma-api/utils"
)

type fileRule struct {
	contentTypes []string
	// prefix allows a whole family, for example audio/.
	prefix   string
	maxBytes int64
}

const mb = 1024 * 1024

var photoTypes = []string{"image/png", "image/jpeg", "image/webp"}

var fileRules = map[models.FileType]fileRule{
	models.FileTypePhotos:       {contentTypes: photoTypes, maxBytes: 5 * mb},
	models.FileTypeCertificates: {contentTypes: append([]string{"application/pdf"}, photoTypes...), maxBytes: 10 * mb},
	models.FileTypeDocuments:    {contentTypes: append([]string{"application/pdf"}, photoTypes...), maxBytes: 10 * mb},
	models.FileTypeVoiceNotes:   {prefix: "audio/", maxBytes: 10 * mb},
}

// MaxUploadBytes is the largest file any file type accepts.
const MaxUploadBytes = 10 * mb

// ValidateFile checks the content type and size rules of fileType.
func ValidateFile(fileType models.FileType, file utils.File) error {
	rule, ok := fileRules[fileType]
	if !ok {
		return errs.Validation("file type '%s' is not supported", fileType)
	}
	if file.Size() == 0 {
		return errs.Validation("file '%s' is empty", file.Name)
	}
	if file.Size() > rule.maxBytes {
		return errs.Validation("file '%s' exceeds the maximum size of %dMB", file.Name, rule.maxBytes/mb)
	}
	allowed := slices.Contains(rule.contentTypes, file.ContentType) ||
		(rule.prefix != "" && strings.HasPrefix(file.ContentType, rule.prefix))
	if !allowed {
		return errs.Validation("file '%s' of type '%s' is not allowed for %s", file.Name, file.ContentType, fileType)
	}
	return nil
}

// BlobService stores files and records their metadata.
type BlobService struct {
	store  store.Store
	client blob.Client
}

func NewBlobService(st store.Store, client blob.Client) *BlobService {
	return &BlobService{store: st, client: client}
}

// Create uploads file and records it using tx. If recording fails the
// uploaded object is deleted.
func (s *BlobService) Create(ctx context.Context, tx store.Store, fileType models.FileType, file utils.File) (*models.BlobObject, error) {
	if err := ValidateFile(fileType, file); err != nil {
		return nil, err
	}

	id := uuid.New()
	obj := &models.BlobObject{
		ID:               id,
		StorageType:      s.client.StorageType(),
		FileType:         fileType,
		Key:              fmt.Sprintf("%s/%s%s", strings.ToLower(string(fileType)), id, file.Ext()),
		ContentType:      file.ContentType,
		OriginalFileName: file.Name,
	}

	if err := s.client.Put(ctx, obj.Key, obj.ContentType, file.Reader(), file.Size()); err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if err := tx.Blobs().Create(ctx, obj); err != nil {
		if derr := s.client.Delete(ctx, obj.Key); derr != nil {
			zerolog.Ctx(ctx).Warn().Err(derr).Str("key", obj.Key).Msg("failed to remove orphaned blob")
		}
		return nil, fmt.Errorf("failed to record blob: %w", err)
	}
	return obj, nil
}

func (s *BlobService) Get(ctx context.Context, id uuid.UUID) (*models.BlobObject, error) {
	obj, err := s.store.Blobs().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Blob object", id)
	}
	return obj, nil
}

// Delete removes the record and the stored object.
func (s *BlobService) Delete(ctx context.Context, id uuid.UUID) error {
	obj, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Blobs().Delete(ctx, id); err != nil {
		return notFound(err, "Blob object", id)
	}
	if err := s.client.Delete(ctx, obj.Key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// URL returns the download link of a blob, or "" when id is nil.
func (s *BlobService) URL(ctx context.Context, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	obj, err := s.store.Blobs().Get(ctx, *id)
	if err != nil {
		return ""
	}
	return s.client.URL(obj.Key)
}

// Transaction runs fn in a store transaction with an Uploader. Objects
// uploaded through the Uploader are deleted when the transaction fails;
// objects scheduled for deletion are removed only after it commits.
func (s *BlobService) Transaction(ctx context.Context, fn func(tx store.Store, up *Uploader) error) error {
	up := &Uploader{svc: s}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		up.tx = tx
		return fn(tx, up)
	})
	if err != nil {
		up.cleanup(ctx, up.uploaded)
		return err
	}
	up.cleanup(ctx, up.removed)
	return nil
}

// Uploader tracks the objects touched inside one transaction.
type Uploader struct {
	svc      *BlobService
	tx       store.Store
	uploaded []string
	removed  []string
}

func (u *Uploader) Upload(ctx context.Context, fileType models.FileType, file utils.File) (*models.BlobObject, error) {
	obj, err := u.svc.Create(ctx, u.tx, fileType, file)
	if err != nil {
		return nil, err
	}
	u.uploaded = append(u.uploaded, obj.Key)
	return obj, nil
}

// Remove deletes the blob record now and the object after commit.
func (u *Uploader) Remove(ctx context.Context, id uuid.UUID) error {
	obj, err := u.tx.Blobs().Get(ctx, id)
	if err != nil {
		return notFound(err, "Blob object", id)
	}
	if err := u.tx.Blobs().Delete(ctx, id); err != nil {
		return err
	}
	u.removed = append(u.removed, obj.Key)
	return nil
}

func (u *Uploader) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := u.svc.client.Delete(ctx, key); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("blob cleanup failed")
		}
	}
}
