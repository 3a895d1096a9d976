package handlers

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"takedown_app_go/models"
	"takedown_app_go/services"
)

const (
	defaultCountry           = "United States"
	defaultIntakeDescription = "DMCA takedown request submitted via StopTheTea"
)

// optionalString trims a form value; blank becomes nil. Values are stored
// verbatim and escaped where they are rendered.
func optionalString(form url.Values, key string) *string {
	value := strings.TrimSpace(form.Get(key))
	if value == "" {
		return nil
	}
	return &value
}

func parseDateField(form url.Values, key string) *time.Time {
	return services.ParseFormDate(form.Get(key))
}

// parseScreenshotKeys reads a JSON array of keys, keeping non-empty strings
func parseScreenshotKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []interface{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	keys := make([]string, 0, len(values))
	for _, value := range values {
		if key, ok := value.(string); ok && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func normalizeOwnership(raw string) models.OwnershipType {
	ownership := models.OwnershipType(strings.TrimSpace(raw))
	if ownership.IsValid() {
		return ownership
	}
	return models.DefaultOwnershipType
}

// BuildCasePayload turns the intake form into a validated case payload
func BuildCasePayload(form url.Values) (services.CaseInput, error) {
	copyrightDescription := optionalString(form, "copyrightedWorkDescription")
	description := defaultIntakeDescription
	if copyrightDescription != nil {
		description = *copyrightDescription
	}

	country := defaultCountry
	if value := optionalString(form, "country"); value != nil {
		country = *value
	}

	profileURL := optionalString(form, "teaProfileUrl")
	email := optionalString(form, "email")

	keys := parseScreenshotKeys(form.Get("screenshotFileKeys"))
	screenshots := make([]services.ScreenshotRef, 0, len(keys))
	for _, key := range keys {
		screenshots = append(screenshots, services.ScreenshotRef{StorageKey: key})
	}

	payload := services.CaseInput{
		TargetPlatform: models.DefaultTargetPlatform,
		Description:    description,
		ProfileLink:    profileURL,
		ContactEmail:   email,
		Screenshots:    screenshots,
		DMCA: &services.DMCADetails{
			OwnershipType:               normalizeOwnership(form.Get("ownershipType")),
			CopyrightedWorkDescription:  copyrightDescription,
			DateCreated:                 parseDateField(form, "dateCreated"),
			OriginalPublicationLocation: optionalString(form, "originalPublicationLocation"),
			PlatformUsername:            optionalString(form, "teaUsername"),
			PlatformProfileURL:          profileURL,
			WhereContentAppears:         optionalString(form, "whereContentAppears"),
			CommentsOrCaptions:          optionalString(form, "commentsOrCaptions"),
			FullLegalName:               optionalString(form, "fullLegalName"),
			AddressLine1:                optionalString(form, "addressLine1"),
			AddressLine2:                optionalString(form, "addressLine2"),
			City:                        optionalString(form, "city"),
			State:                       optionalString(form, "state"),
			Zip:                         optionalString(form, "zip"),
			Country:                     &country,
			Email:                       email,
			Phone:                       optionalString(form, "phone"),
			ElectronicSignature:         optionalString(form, "electronicSignature"),
			SignatureDate:               parseDateField(form, "signatureDate"),
		},
	}

	if err := services.ValidateCaseInput(payload); err != nil {
		return services.CaseInput{}, err
	}
	return payload, nil
}
