package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Event is a statutory event (Agora or EPM). The six Agora-specific deadlines
// are pointers because they are optional for EPMs.
type Event struct {
	ID          uint    `gorm:"primary_key" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	URL         string  `gorm:"column:url;unique;not null" json:"url"`
	Description string  `gorm:"not null" json:"description"`
	Type        string  `gorm:"not null" json:"type"`
	Status      string  `gorm:"not null;default:'draft'" json:"status"`
	BodyID      uint    `json:"body_id"`
	Fee         float64 `json:"fee"`
	Vegetarian  bool    `gorm:"not null;default:false" json:"vegetarian"`

	ApplicationPeriodStarts           time.Time  `gorm:"not null" json:"application_period_starts"`
	ApplicationPeriodEnds             time.Time  `gorm:"not null" json:"application_period_ends"`
	BoardApproveDeadline              time.Time  `gorm:"not null" json:"board_approve_deadline"`
	ParticipantsListPublishDeadline   time.Time  `gorm:"not null" json:"participants_list_publish_deadline"`
	MemberslistSubmissionDeadline     *time.Time `json:"memberslist_submission_deadline"`
	DraftProposalDeadline             *time.Time `json:"draft_proposal_deadline"`
	FinalProposalDeadline             *time.Time `json:"final_proposal_deadline"`
	CandidatureDeadline               *time.Time `json:"candidature_deadline"`
	BookletPublicationDeadline        *time.Time `json:"booklet_publication_deadline"`
	UpdatedBookletPublicationDeadline *time.Time `json:"updated_booklet_publication_deadline"`
	Starts                            time.Time  `gorm:"not null" json:"starts"`
	Ends                              time.Time  `gorm:"not null" json:"ends"`
	PublicationDate                   *time.Time `json:"publication_date"`

	Questions QuestionList `gorm:"type:jsonb" json:"questions"`

	Applications []Application `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var numbersOnly = regexp.MustCompile(`^\d+$`)

// agoraDeadlines lists the deadline fields that are mandatory for Agora events
// and optional for EPMs.
func (e *Event) agoraDeadlines() map[string]*time.Time {
	return map[string]*time.Time{
		"memberslist_submission_deadline":      e.MemberslistSubmissionDeadline,
		"draft_proposal_deadline":              e.DraftProposalDeadline,
		"final_proposal_deadline":              e.FinalProposalDeadline,
		"candidature_deadline":                 e.CandidatureDeadline,
		"booklet_publication_deadline":         e.BookletPublicationDeadline,
		"updated_booklet_publication_deadline": e.UpdatedBookletPublicationDeadline,
	}
}

// Validate enforces the deadline chain and the enum/required fields. The URL
// uniqueness check needs the database and lives in the handler.
func (e *Event) Validate() ValidationErrors {
	errs := ValidationErrors{}

	if strings.TrimSpace(e.Name) == "" {
		errs.Add("name", "Name should be set.")
	}
	if strings.TrimSpace(e.Description) == "" {
		errs.Add("description", "Description should be set.")
	}
	if strings.TrimSpace(e.URL) == "" {
		errs.Add("url", "URL should be set.")
	} else if numbersOnly.MatchString(e.URL) {
		errs.Add("url", "URL cannot be numbers only.")
	}
	if !contains(EventTypes, e.Type) {
		errs.Add("type", "Type should be one of these: agora, epm.")
	}
	if e.Status != EventStatusDraft && e.Status != EventStatusPublished {
		errs.Add("status", "Status should be one of these: draft, published.")
	}
	if e.Fee < 0 {
		errs.Add("fee", "Fee should not be negative.")
	}

	errs.Merge(e.Questions.Validate())

	if !e.Starts.Before(e.Ends) {
		errs.Add("ends", "Event cannot end before or at the same time it starts.")
	}
	if !e.ApplicationPeriodStarts.Before(e.ApplicationPeriodEnds) {
		errs.Add("application_period_ends", "Application period cannot end before or at the same time it starts.")
	}
	if e.Starts.Before(e.ApplicationPeriodEnds) {
		errs.Add("application_period_ends", "Event cannot start before the application period ends.")
	}
	if !e.ApplicationPeriodEnds.Before(e.BoardApproveDeadline) {
		errs.Add("board_approve_deadline", "Board approve deadline cannot be before or at the same time the application period ends.")
	}
	if !e.BoardApproveDeadline.Before(e.ParticipantsListPublishDeadline) {
		errs.Add("participants_list_publish_deadline", "Participants list publish deadline cannot be before or at the same time the board approve deadline is.")
	}

	if e.Type == EventTypeAgora {
		for field, deadline := range e.agoraDeadlines() {
			if deadline == nil {
				errs.Add(field, "This deadline is required for Agora.")
			}
		}
	}

	// The optional deadlines, when set, must fall inside
	// [application_period_starts, starts].
	for field, deadline := range e.agoraDeadlines() {
		if deadline == nil {
			continue
		}
		if deadline.Before(e.ApplicationPeriodStarts) || deadline.After(e.Starts) {
			errs.Add(field, "This deadline should be between the application period start and the event start.")
		}
	}

	if e.DraftProposalDeadline != nil && e.FinalProposalDeadline != nil && e.FinalProposalDeadline.Before(*e.DraftProposalDeadline) {
		errs.Add("final_proposal_deadline", "Final proposal deadline cannot be before the draft proposal deadline.")
	}
	if e.BookletPublicationDeadline != nil && e.UpdatedBookletPublicationDeadline != nil && e.UpdatedBookletPublicationDeadline.Before(*e.BookletPublicationDeadline) {
		errs.Add("updated_booklet_publication_deadline", "Updated booklet publication deadline cannot be before the booklet publication deadline.")
	}

	return errs
}

func (e *Event) BeforeSave(tx *gorm.DB) error {
	return e.Validate().OrNil()
}

// CanApplyAt reports whether the application window is open at the given time.
func (e *Event) CanApplyAt(now time.Time) bool {
	return !now.Before(e.ApplicationPeriodStarts) && !now.After(e.ApplicationPeriodEnds)
}

// CanCandidateAt reports whether candidatures are still open at the given time.
func (e *Event) CanCandidateAt(now time.Time) bool {
	return e.CandidatureDeadline != nil && !now.After(*e.CandidatureDeadline)
}
