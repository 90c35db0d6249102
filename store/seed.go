package store

import (
	"github.com/google/uuid"

	"yoma-api/models"
)

// seedNamespace derives stable ids for reference data so every environment
// agrees on them.
var seedNamespace = uuid.MustParse("5b1e6a0c-0d57-4b8e-9a39-0f3b9c2e7d10")

func seedID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+name))
}

// DefaultCategories is the opportunity category reference data.
func DefaultCategories() []models.OpportunityCategory {
	names := []string{
		"Agriculture",
		"Career and Personal Development",
		"Climate and Environment",
		"Entrepreneurship",
		"Health",
		"Technology and Digitization",
		"Tourism and Hospitality",
	}
	out := make([]models.OpportunityCategory, 0, len(names))
	for _, n := range names {
		out = append(out, models.OpportunityCategory{ID: seedID("category", n), Name: n})
	}
	return out
}

func DefaultOpportunityTypes() []models.OpportunityType {
	names := []string{"Learning", "Task", "Event", "Other"}
	out := make([]models.OpportunityType, 0, len(names))
	for _, n := range names {
		out = append(out, models.OpportunityType{ID: seedID("opportunity-type", n), Name: n})
	}
	return out
}

func DefaultVerificationTypes() []models.VerificationTypeLookup {
	return []models.VerificationTypeLookup{
		{ID: seedID("verification-type", "FileUpload"), Type: models.VerificationTypeFileUpload, DisplayName: "File Upload", Description: "A certificate or document proving completion"},
		{ID: seedID("verification-type", "Picture"), Type: models.VerificationTypePicture, DisplayName: "Picture", Description: "A picture taken while completing the opportunity"},
		{ID: seedID("verification-type", "Location"), Type: models.VerificationTypeLocation, DisplayName: "Location", Description: "The location where the opportunity was completed"},
		{ID: seedID("verification-type", "VoiceNote"), Type: models.VerificationTypeVoiceNote, DisplayName: "Voice Note", Description: "A voice note describing the completed opportunity"},
	}
}

func DefaultSchemaEntities() []models.SSISchemaEntity {
	entity := func(t models.SSISchemaEntityType, props ...models.SSISchemaEntityProperty) models.SSISchemaEntity {
		id := seedID("ssi-entity", string(t))
		for i := range props {
			props[i].ID = seedID("ssi-property", string(t)+"."+props[i].Name)
			props[i].SSISchemaEntityID = id
		}
		return models.SSISchemaEntity{ID: id, TypeName: t, Properties: props}
	}
	prop := func(name, display, attr string, required bool) models.SSISchemaEntityProperty {
		return models.SSISchemaEntityProperty{Name: name, NameDisplay: display, AttributeName: attr, Required: required}
	}

	return []models.SSISchemaEntity{
		entity(models.SSISchemaEntityUser,
			prop("Email", "Email", "yoma_email", true),
			prop("DisplayName", "Display Name", "yoma_display_name", true),
			prop("FirstName", "First Name", "yoma_first_name", false),
			prop("Surname", "Surname", "yoma_surname", false),
			prop("DateOfBirth", "Date of Birth", "yoma_date_of_birth", false),
		),
		entity(models.SSISchemaEntityOpportunity,
			prop("Title", "Title", "opportunity_title", true),
			prop("Summary", "Summary", "opportunity_summary", false),
			prop("OrganizationName", "Organisation", "opportunity_organization_name", true),
		),
		entity(models.SSISchemaEntityMyOpportunity,
			prop("DateStart", "Date Started", "my_opportunity_date_start", false),
			prop("DateEnd", "Date Ended", "my_opportunity_date_end", false),
			prop("DateCompleted", "Date Completed", "my_opportunity_date_completed", true),
		),
	}
}
