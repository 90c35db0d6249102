package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"yoma-api/models"
	"yoma-api/store"
)

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.BlobObject{},
		&models.User{},
		&models.Organization{},
		&models.OrganizationAdmin{},
		&models.OpportunityCategory{},
		&models.OpportunityType{},
		&models.VerificationTypeLookup{},
		&models.Opportunity{},
		&models.OpportunityVerificationType{},
		&models.MyOpportunity{},
		&models.MyOpportunityVerification{},
		&models.RewardTransaction{},
		&models.WalletCreation{},
		&models.SSISchemaEntity{},
		&models.SSISchemaEntityProperty{},
		&models.SSICredentialIssuance{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedLookups inserts the reference data rows that do not exist yet.
func SeedLookups(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seeded int
		for _, c := range store.DefaultCategories() {
			n, err := seedIfMissing(tx, &c, "name = ?", c.Name)
			if err != nil {
				return err
			}
			seeded += n
		}
		for _, t := range store.DefaultOpportunityTypes() {
			n, err := seedIfMissing(tx, &t, "name = ?", t.Name)
			if err != nil {
				return err
			}
			seeded += n
		}
		for _, v := range store.DefaultVerificationTypes() {
			n, err := seedIfMissing(tx, &v, "type = ?", v.Type)
			if err != nil {
				return err
			}
			seeded += n
		}
		for _, e := range store.DefaultSchemaEntities() {
			n, err := seedIfMissing(tx, &e, "type_name = ?", e.TypeName)
			if err != nil {
				return err
			}
			seeded += n
		}

		log.Info().Int("rows", seeded).Msg("seeded lookup data")
		return nil
	})
}

func seedIfMissing[T any](tx *gorm.DB, row *T, query string, args ...any) (int, error) {
	var existing T
	err := tx.Where(query, args...).First(&existing).Error
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to check %T: %w", existing, err)
	}
	if err := tx.Create(row).Error; err != nil {
		return 0, fmt.Errorf("failed to seed %T: %w", existing, err)
	}
	return 1, nil
}
