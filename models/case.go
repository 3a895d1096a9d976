package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CaseStatus is the lifecycle stage of a takedown case.
type CaseStatus string

const (
	CaseStatusReceived        CaseStatus = "RECEIVED"
	CaseStatusRequestPrepared CaseStatus = "REQUEST_PREPARED"
	CaseStatusSubmitted       CaseStatus = "SUBMITTED"
	CaseStatusEscalated       CaseStatus = "ESCALATED"
	CaseStatusRemoved         CaseStatus = "REMOVED"
	CaseStatusRefunded        CaseStatus = "REFUNDED"
)

// CaseStatuses lists every status in progress order.
var CaseStatuses = []CaseStatus{
	CaseStatusReceived,
	CaseStatusRequestPrepared,
	CaseStatusSubmitted,
	CaseStatusEscalated,
	CaseStatusRemoved,
	CaseStatusRefunded,
}

var caseStatusLabels = map[CaseStatus]string{
	CaseStatusReceived:        "Case received",
	CaseStatusRequestPrepared: "Request being prepared",
	CaseStatusSubmitted:       "Submitted to platform",
	CaseStatusEscalated:       "Escalated",
	CaseStatusRemoved:         "Content removed",
	CaseStatusRefunded:        "Refunded",
}

// IsValid reports whether s is one of the known statuses
func (s CaseStatus) IsValid() bool {
	_, ok := caseStatusLabels[s]
	return ok
}

// Label returns the customer facing name, or the raw value when unknown
func (s CaseStatus) Label() string {
	if label, ok := caseStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Rank is the position used by the progress bar; -1 for unknown values.
func (s CaseStatus) Rank() int {
	for i, status := range CaseStatuses {
		if status == s {
			return i
		}
	}
	return -1
}

// PaymentStatus tracks the charge for a case independently of its lifecycle.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// IsValid reports whether s is one of the known payment statuses
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// OwnershipType describes the requester's claim over the content.
type OwnershipType string

const (
	OwnershipOwnerPhotographer OwnershipType = "Owner/Photographer"
	OwnershipSubjectWithRights OwnershipType = "Subject with rights"
	OwnershipBusinessOwner     OwnershipType = "Business owner"
	OwnershipAuthorizedAgent   OwnershipType = "Authorized agent"

	DefaultOwnershipType = OwnershipOwnerPhotographer
)

// DefaultTargetPlatform is the platform a case targets when none is given
const DefaultTargetPlatform = "Tea"

// OwnershipTypes lists the accepted ownership claims, default first.
var OwnershipTypes = []OwnershipType{
	OwnershipOwnerPhotographer,
	OwnershipSubjectWithRights,
	OwnershipBusinessOwner,
	OwnershipAuthorizedAgent,
}

// IsValid reports whether o is an accepted ownership claim
func (o OwnershipType) IsValid() bool {
	for _, known := range OwnershipTypes {
		if known == o {
			return true
		}
	}
	return false
}

// Case is a single takedown request.
type Case struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        string        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	CaseNumber    string        `gorm:"type:varchar(32);uniqueIndex;not null" json:"case_number"`
	Status        CaseStatus    `gorm:"type:varchar(32);not null;default:RECEIVED" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null;default:UNPAID;index" json:"payment_status"`
	EmailSent     bool          `gorm:"not null;default:false" json:"email_sent"`

	TargetPlatform string                      `gorm:"type:varchar(64);not null;default:Tea" json:"target_platform"`
	Description    string                      `gorm:"type:text;not null" json:"description"`
	ProfileLink    *string                     `gorm:"type:text" json:"profile_link,omitempty"`
	ContactEmail   *string                     `gorm:"type:varchar(255)" json:"contact_email,omitempty"`
	ScreenshotKeys datatypes.JSONSlice[string] `json:"screenshot_keys,omitempty"`

	// DMCA notice details
	CopyrightedWorkDescription  *string    `gorm:"type:text" json:"copyrighted_work_description,omitempty"`
	DateCreated                 *time.Time `json:"date_created,omitempty"`
	OriginalPublicationLocation *string    `gorm:"type:text" json:"original_publication_location,omitempty"`
	OwnershipType               *string    `gorm:"type:varchar(64)" json:"ownership_type,omitempty"`
	PlatformUsername            *string    `gorm:"type:varchar(255)" json:"platform_username,omitempty"`
	PlatformProfileURL          *string    `gorm:"type:text" json:"platform_profile_url,omitempty"`
	WhereContentAppears         *string    `gorm:"type:text" json:"where_content_appears,omitempty"`
	CommentsOrCaptions          *string    `gorm:"type:text" json:"comments_or_captions,omitempty"`
	FullLegalName               *string    `gorm:"type:varchar(255)" json:"full_legal_name,omitempty"`
	AddressLine1                *string    `gorm:"type:varchar(255)" json:"address_line1,omitempty"`
	AddressLine2                *string    `gorm:"type:varchar(255)" json:"address_line2,omitempty"`
	City                        *string    `gorm:"type:varchar(128)" json:"city,omitempty"`
	State                       *string    `gorm:"type:varchar(128)" json:"state,omitempty"`
	Zip                         *string    `gorm:"type:varchar(32)" json:"zip,omitempty"`
	Country                     *string    `gorm:"type:varchar(128)" json:"country,omitempty"`
	Email                       *string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone                       *string    `gorm:"type:varchar(64)" json:"phone,omitempty"`
	ElectronicSignature         *string    `gorm:"type:varchar(255)" json:"electronic_signature,omitempty"`
	SignatureDate               *time.Time `json:"signature_date,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// BeforeCreate hook to generate UUID
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// HasScreenshot reports whether key is one of the case's stored screenshot keys
func (c *Case) HasScreenshot(key string) bool {
	for _, stored := range c.ScreenshotKeys {
		if stored == key {
			return true
		}
	}
	return false
}

// PlatformLink prefers the submitted profile link over the DMCA profile URL
func (c *Case) PlatformLink() string {
	if c.ProfileLink != nil && *c.ProfileLink != "" {
		return *c.ProfileLink
	}
	if c.PlatformProfileURL != nil {
		return *c.PlatformProfileURL
	}
	return ""
}
