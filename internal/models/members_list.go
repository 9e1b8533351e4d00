package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Member is one row of a body's members list. UserID is optional because
// boards upload the list from their own records, which may predate the
// member's registry account.
type Member struct {
	UserID    *uint   `json:"user_id,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Fee       float64 `json:"fee"`
}

type MemberList []Member

func (m MemberList) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MemberList) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into MemberList", value)
	}
}

func (MemberList) GormDataType() string {
	return "jsonb"
}

// MembersList is a body's roster of paying members for an Agora, uploaded by
// the body's board and cross-referenced by the application engine.
type MembersList struct {
	ID      uint `gorm:"primary_key" json:"id"`
	EventID uint `gorm:"not null;uniqueIndex:uniq_memberslists_event_body" json:"event_id"`
	BodyID  uint `gorm:"not null;uniqueIndex:uniq_memberslists_event_body" json:"body_id"`
	UserID  uint `gorm:"not null" json:"user_id"`

	Currency string     `gorm:"not null" json:"currency"`
	FeePaid  bool       `gorm:"not null;default:false" json:"fee_paid"`
	Members  MemberList `gorm:"type:jsonb" json:"members"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *MembersList) Validate() ValidationErrors {
	errs := ValidationErrors{}

	if strings.TrimSpace(m.Currency) == "" {
		errs.Add("currency", "Currency should be set.")
	}

	if len(m.Members) == 0 {
		errs.Add("members", "Members list is empty.")
		return errs
	}

	for _, member := range m.Members {
		if strings.TrimSpace(member.FirstName) == "" {
			errs.Add("members", "first_name should not be empty.")
		}
		if strings.TrimSpace(member.LastName) == "" {
			errs.Add("members", "last_name should not be empty.")
		}
		if member.Fee < 0 {
			errs.Add("members", "Member's fee should be not negative number.")
		}
	}
	return errs
}

func (m *MembersList) BeforeSave(tx *gorm.DB) error {
	return m.Validate().OrNil()
}

// Includes reports whether the applicant appears on the list, first by user
// id, then by an exact first+last name match.
func (m *MembersList) Includes(userID uint, firstName, lastName string) bool {
	for _, member := range m.Members {
		if member.UserID != nil && *member.UserID == userID {
			return true
		}
	}
	for _, member := range m.Members {
		if member.FirstName == firstName && member.LastName == lastName {
			return true
		}
	}
	return false
}
