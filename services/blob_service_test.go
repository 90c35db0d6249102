package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
	"yoma-api/utils"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name     string
		fileType models.FileType
		file     utils.File
		wantErr  bool
	}{
		{"photo", models.FileTypePhotos, utils.File{Name: "a.png", ContentType: "image/png", Data: []byte("x")}, false},
		{"pdf certificate", models.FileTypeCertificates, utils.File{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("x")}, false},
		{"voice note", models.FileTypeVoiceNotes, utils.File{Name: "a.ogg", ContentType: "audio/ogg", Data: []byte("x")}, false},
		{"pdf as photo", models.FileTypePhotos, utils.File{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("x")}, true},
		{"empty", models.FileTypePhotos, utils.File{Name: "a.png", ContentType: "image/png"}, true},
		{"too large", models.FileTypePhotos, utils.File{Name: "a.png", ContentType: "image/png", Data: bytes.Repeat([]byte("x"), 5*mb+1)}, true},
		{"unknown type", "Videos", utils.File{Name: "a.mp4", ContentType: "video/mp4", Data: []byte("x")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.fileType, tt.file)
			if tt.wantErr {
				assert.True(t, errs.IsValidation(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBlobCreateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	obj, err := e.blobs.Create(ctx, e.store, models.FileTypePhotos, *picture())
	require.NoError(t, err)
	assert.Equal(t, "photos/"+obj.ID.String()+".png", obj.Key)
	assert.Equal(t, "Memory", obj.StorageType)
	assert.Equal(t, "memory://"+obj.Key, e.blobs.URL(ctx, &obj.ID))
	assert.Empty(t, e.blobs.URL(ctx, nil))

	stored, ok := e.blobClient.Get(obj.Key)
	require.True(t, ok)
	assert.Equal(t, "image/png", stored.ContentType)

	require.NoError(t, e.blobs.Delete(ctx, obj.ID))
	assert.Zero(t, e.blobClient.Len())
	assert.True(t, errs.IsNotFound(e.blobs.Delete(ctx, obj.ID)))
}

func TestBlobTransaction(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	boom := errors.New("boom")

	existing, err := e.blobs.Create(ctx, e.store, models.FileTypePhotos, *picture())
	require.NoError(t, err)

	// A failed transaction deletes new uploads and keeps removed objects.
	err = e.blobs.Transaction(ctx, func(tx store.Store, up *Uploader) error {
		if _, err := up.Upload(ctx, models.FileTypePhotos, *picture()); err != nil {
			return err
		}
		if err := up.Remove(ctx, existing.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, e.blobClient.Len())
	_, err = e.blobs.Get(ctx, existing.ID)
	require.NoError(t, err)

	var replacement *models.BlobObject
	err = e.blobs.Transaction(ctx, func(tx store.Store, up *Uploader) error {
		var err error
		if replacement, err = up.Upload(ctx, models.FileTypePhotos, *picture()); err != nil {
			return err
		}
		return up.Remove(ctx, existing.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.blobClient.Len())
	_, ok := e.blobClient.Get(replacement.Key)
	assert.True(t, ok)
	_, err = e.blobs.Get(ctx, existing.ID)
	assert.True(t, errs.IsNotFound(err))
}
