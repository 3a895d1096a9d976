package services

import (
	"strings"
	"time"
)

// FormDateLayout is the value format of HTML date inputs
const FormDateLayout = "2006-01-02"

// ParseFormDate reads a YYYY-MM-DD form value as midnight UTC.
// Blank or malformed values are treated as absent.
func ParseFormDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(FormDateLayout, raw)
	if err != nil {
		return nil
	}
	return &parsed
}
