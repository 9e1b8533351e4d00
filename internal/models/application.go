package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrMeatEaterNotAllowed is raised when a Meat-eater meal is requested for a
// vegetarian-only event. The contradiction is between two pieces of organizer
// configuration, so it surfaces as an unexpected error, not a validation one.
var ErrMeatEaterNotAllowed = errors.New("Meat-eater is not allowed")

// Application is a participant application for an event. Participant type,
// order and statutory id are assigned by the allocation engine at creation and
// never taken from the client.
type Application struct {
	ID      uint `gorm:"primary_key" json:"id"`
	EventID uint `gorm:"not null;index;uniqueIndex:uniq_applications_event_user,where:cancelled = false" json:"event_id"`
	UserID  uint `gorm:"not null;uniqueIndex:uniq_applications_event_user,where:cancelled = false" json:"user_id"`
	BodyID  uint `gorm:"not null;index" json:"body_id"`

	// Snapshot of the applicant taken from the core registry.
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Gender            string `json:"gender"`
	BodyName          string `json:"body_name"`
	Email             string `json:"email"`
	NotificationEmail string `json:"notification_email"`

	Status           string `gorm:"not null;default:'pending'" json:"status"`
	ParticipantType  string `json:"participant_type"`
	ParticipantOrder int    `json:"participant_order"`
	StatutoryID      string `gorm:"index" json:"statutory_id"`

	Cancelled       bool `gorm:"not null;default:false" json:"cancelled"`
	Confirmed       bool `gorm:"not null;default:false" json:"confirmed"`
	Registered      bool `gorm:"not null;default:false" json:"registered"`
	Attended        bool `gorm:"not null;default:false" json:"attended"`
	Departed        bool `gorm:"not null;default:false" json:"departed"`
	IsOnMemberslist bool `gorm:"not null;default:false" json:"is_on_memberslist"`

	BoardComment string `json:"board_comment"`

	Answers AnswerList `gorm:"type:jsonb" json:"answers"`

	Nationality           string `json:"nationality"`
	DateOfBirth           string `json:"date_of_birth"`
	NumberOfEventsVisited int    `json:"number_of_events_visited"`
	Meals                 string `json:"meals"`

	VisaRequired               bool   `gorm:"not null;default:false" json:"visa_required"`
	VisaPlaceOfBirth           string `json:"visa_place_of_birth"`
	VisaPassportNumber         string `json:"visa_passport_number"`
	VisaPassportIssueDate      string `json:"visa_passport_issue_date"`
	VisaPassportExpirationDate string `json:"visa_passport_expiration_date"`
	VisaPassportIssueAuthority string `json:"visa_passport_issue_authority"`
	VisaEmbassy                string `json:"visa_embassy"`
	VisaStreetAndHouse         string `json:"visa_street_and_house"`
	VisaPostalCode             string `json:"visa_postal_code"`
	VisaCity                   string `json:"visa_city"`
	VisaCountry                string `json:"visa_country"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Application) BeforeSave(tx *gorm.DB) error {
	errs := ValidationErrors{}
	if !contains(ApplicationStatuses, a.Status) {
		errs.Add("status", "Status should be one of these: pending, accepted, rejected.")
	}
	if a.ParticipantType != "" && !contains(ParticipantTypePriority, a.ParticipantType) {
		errs.Add("participant_type", "Participant type should be one of these: delegate, envoy, observer, visitor.")
	}
	return errs.OrNil()
}

// StatutoryID renders the human-readable per-event sequential identifier:
// zero-padded event id, hyphen, zero-padded sequence number.
func StatutoryID(eventID uint, sequence int) string {
	return fmt.Sprintf("%03d-%04d", eventID, sequence)
}

// ApplicationRequest is the inbound payload for creating or editing an
// application. The visa sub-fields are untyped on purpose: a missing field, an
// explicit null and a non-string value must all be caught by validation with a
// 422, which a typed binding would turn into a 400.
type ApplicationRequest struct {
	BodyID                uint        `json:"body_id"`
	Answers               AnswerList  `json:"answers"`
	Nationality           string      `json:"nationality"`
	DateOfBirth           string      `json:"date_of_birth"`
	Gender                string      `json:"gender"`
	Meals                 string      `json:"meals"`
	NumberOfEventsVisited interface{} `json:"number_of_events_visited"`

	VisaRequired               bool        `json:"visa_required"`
	VisaPlaceOfBirth           interface{} `json:"visa_place_of_birth"`
	VisaPassportNumber         interface{} `json:"visa_passport_number"`
	VisaPassportIssueDate      interface{} `json:"visa_passport_issue_date"`
	VisaPassportExpirationDate interface{} `json:"visa_passport_expiration_date"`
	VisaPassportIssueAuthority interface{} `json:"visa_passport_issue_authority"`
	VisaEmbassy                interface{} `json:"visa_embassy"`
	VisaStreetAndHouse         interface{} `json:"visa_street_and_house"`
	VisaPostalCode             interface{} `json:"visa_postal_code"`
	VisaCity                   interface{} `json:"visa_city"`
	VisaCountry                interface{} `json:"visa_country"`
}

type visaField struct {
	key   string
	value interface{}
}

func (r *ApplicationRequest) visaFields() []visaField {
	return []visaField{
		{"visa_place_of_birth", r.VisaPlaceOfBirth},
		{"visa_passport_number", r.VisaPassportNumber},
		{"visa_passport_issue_date", r.VisaPassportIssueDate},
		{"visa_passport_expiration_date", r.VisaPassportExpirationDate},
		{"visa_passport_issue_authority", r.VisaPassportIssueAuthority},
		{"visa_embassy", r.VisaEmbassy},
		{"visa_street_and_house", r.VisaStreetAndHouse},
		{"visa_postal_code", r.VisaPostalCode},
		{"visa_city", r.VisaCity},
		{"visa_country", r.VisaCountry},
	}
}

// ValidateVisaFields checks the ten visa sub-fields when visa_required is set.
// Every violation is reported under the single aggregate key
// "visaFieldsFilledIn", never per-field.
func (r *ApplicationRequest) ValidateVisaFields() ValidationErrors {
	errs := ValidationErrors{}
	if !r.VisaRequired {
		return errs
	}

	for _, field := range r.visaFields() {
		if field.value == nil {
			errs.Add("visaFieldsFilledIn", fmt.Sprintf("The %s field should be set.", field.key))
			continue
		}
		value, ok := field.value.(string)
		if !ok {
			errs.Add("visaFieldsFilledIn", fmt.Sprintf("The %s field should be a string.", field.key))
			continue
		}
		if strings.TrimSpace(value) == "" {
			errs.Add("visaFieldsFilledIn", fmt.Sprintf("The %s field should not be empty.", field.key))
		}
	}
	return errs
}

// ValidateMeals checks the meals choice against the allowed set and the
// event's vegetarian flag. The vegetarian contradiction is returned as
// ErrMeatEaterNotAllowed, not as a field error.
func (r *ApplicationRequest) ValidateMeals(event *Event) error {
	if strings.TrimSpace(r.Meals) == "" {
		return ValidationErrors{"meals": []string{"Meals should be set."}}
	}
	if !contains(AllowedMeals, r.Meals) {
		return ValidationErrors{"meals": []string{"Meals should be one of these: " + strings.Join(AllowedMeals, ", ") + "."}}
	}
	if event.Vegetarian && r.Meals == MealsMeatEater {
		return ErrMeatEaterNotAllowed
	}
	return nil
}

// ValidateFields covers the always-required submission fields apart from
// answers, visa and meals, which have their own validators.
func (r *ApplicationRequest) ValidateFields() ValidationErrors {
	errs := ValidationErrors{}

	if strings.TrimSpace(r.Nationality) == "" {
		errs.Add("nationality", "Nationality should be set.")
	}

	switch visited := r.NumberOfEventsVisited.(type) {
	case nil:
		errs.Add("number_of_events_visited", "Number of events visited should be set.")
	case float64:
		if visited < 0 {
			errs.Add("number_of_events_visited", "Number of events visited cannot be negative.")
		}
	default:
		errs.Add("number_of_events_visited", "Number of events visited should be a number.")
	}

	return errs
}

// EventsVisited returns the validated numeric value; call after ValidateFields.
func (r *ApplicationRequest) EventsVisited() int {
	if visited, ok := r.NumberOfEventsVisited.(float64); ok {
		return int(visited)
	}
	return 0
}

// VisaString returns the string value of an already validated visa sub-field.
func VisaString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// ApplyTo copies the validated request onto an application record.
func (r *ApplicationRequest) ApplyTo(application *Application) {
	application.BodyID = r.BodyID
	application.Answers = r.Answers
	application.Nationality = r.Nationality
	application.DateOfBirth = r.DateOfBirth
	application.Gender = r.Gender
	application.Meals = r.Meals
	application.NumberOfEventsVisited = r.EventsVisited()
	application.VisaRequired = r.VisaRequired
	application.VisaPlaceOfBirth = VisaString(r.VisaPlaceOfBirth)
	application.VisaPassportNumber = VisaString(r.VisaPassportNumber)
	application.VisaPassportIssueDate = VisaString(r.VisaPassportIssueDate)
	application.VisaPassportExpirationDate = VisaString(r.VisaPassportExpirationDate)
	application.VisaPassportIssueAuthority = VisaString(r.VisaPassportIssueAuthority)
	application.VisaEmbassy = VisaString(r.VisaEmbassy)
	application.VisaStreetAndHouse = VisaString(r.VisaStreetAndHouse)
	application.VisaPostalCode = VisaString(r.VisaPostalCode)
	application.VisaCity = VisaString(r.VisaCity)
	application.VisaCountry = VisaString(r.VisaCountry)
}
