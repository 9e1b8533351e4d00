package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Position is an elected position members can candidate for at an event.
// Positions are soft-deleted so candidatures keep their history.
type Position struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	EventID     uint   `gorm:"not null;index" json:"event_id"`
	BodyID      uint   `json:"body_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Places      int    `gorm:"not null" json:"places"`
	Status      string `gorm:"not null;default:'open'" json:"status"`
	Deleted     bool   `gorm:"not null;default:false" json:"deleted"`

	Starts    time.Time `gorm:"not null" json:"starts"`
	Ends      time.Time `gorm:"not null" json:"ends"`
	StartTerm time.Time `json:"start_term"`
	EndTerm   string    `json:"end_term"`

	Candidates []Candidate `json:"candidates,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Position) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(p.Name) == "" {
		errs.Add("name", "Name should be set.")
	}
	if p.Places < 1 {
		errs.Add("places", "Places should be at least 1.")
	}
	if p.Status != "open" && p.Status != "closed" {
		errs.Add("status", "Status should be one of these: open, closed.")
	}
	if !p.Starts.Before(p.Ends) {
		errs.Add("ends", "Position application period cannot end before or at the same time it starts.")
	}
	return errs
}

func (p *Position) BeforeSave(tx *gorm.DB) error {
	return p.Validate().OrNil()
}

// Candidate is a candidature for a position, one per user per position.
type Candidate struct {
	ID         uint `gorm:"primary_key" json:"id"`
	PositionID uint `gorm:"not null;uniqueIndex:uniq_candidates_position_user" json:"position_id"`
	UserID     uint `gorm:"not null;uniqueIndex:uniq_candidates_position_user" json:"user_id"`
	BodyID     uint `gorm:"not null" json:"body_id"`

	FirstName   string `gorm:"not null" json:"first_name"`
	LastName    string `gorm:"not null" json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
	Nationality string `json:"nationality"`
	BodyName    string `json:"body_name"`
	Studies     string `json:"studies"`
	MemberSince string `json:"member_since"`

	Languages StringList `gorm:"type:jsonb" json:"languages"`

	EuropeanExperience  string `json:"european_experience"`
	LocalExperience     string `json:"local_experience"`
	AttendedAgorae      string `json:"attended_agorae"`
	AttendedEPM         string `json:"attended_epm"`
	AttendedConferences string `json:"attended_conferences"`
	RelatedExperience   string `json:"related_experience"`
	ExternalExperience  string `json:"external_experience"`
	Motivation          string `json:"motivation"`
	Program             string `json:"program"`

	AgreedToPrivacyPolicy bool   `gorm:"not null;default:false" json:"agreed_to_privacy_policy"`
	Status                string `gorm:"not null;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Candidate) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(c.FirstName) == "" {
		errs.Add("first_name", "First name should be set.")
	}
	if strings.TrimSpace(c.LastName) == "" {
		errs.Add("last_name", "Last name should be set.")
	}
	if !c.AgreedToPrivacyPolicy {
		errs.Add("agreed_to_privacy_policy", "You should agree to the privacy policy.")
	}
	if c.Status != CandidateStatusPending && c.Status != CandidateStatusApproved && c.Status != CandidateStatusRejected {
		errs.Add("status", "Status should be one of these: pending, approved, rejected.")
	}
	return errs
}

func (c *Candidate) BeforeSave(tx *gorm.DB) error {
	return c.Validate().OrNil()
}
