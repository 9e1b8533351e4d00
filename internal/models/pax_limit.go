package models

import (
	"time"

	"gorm.io/gorm"
)

// PaxLimit caps how many applications of each participant type a body may send
// to events of a given type. A cap of 0 closes that type, Unlimited (-1) opens
// it without bound. Bodies without an explicit row fall back to
// DefaultPaxLimit for the event type; an explicit all-zero row is how a body
// is fully closed.
type PaxLimit struct {
	ID        uint   `gorm:"primary_key" json:"id"`
	BodyID    uint   `gorm:"not null;uniqueIndex:uniq_pax_limits_body_event_type" json:"body_id"`
	EventType string `gorm:"not null;uniqueIndex:uniq_pax_limits_body_event_type" json:"event_type"`

	Delegate int `gorm:"not null" json:"delegate"`
	Envoy    int `gorm:"not null" json:"envoy"`
	Observer int `gorm:"not null" json:"observer"`
	Visitor  int `gorm:"not null" json:"visitor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PaxLimit) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if p.BodyID == 0 {
		errs.Add("body_id", "Body ID should be set.")
	}
	if !contains(EventTypes, p.EventType) {
		errs.Add("event_type", "Event type should be one of these: agora, epm.")
	}
	for field, cap := range map[string]int{
		"delegate": p.Delegate,
		"envoy":    p.Envoy,
		"observer": p.Observer,
		"visitor":  p.Visitor,
	} {
		if cap < Unlimited {
			errs.Add(field, "Limit should be a non-negative number or -1 for unlimited.")
		}
	}
	return errs
}

func (p *PaxLimit) BeforeSave(tx *gorm.DB) error {
	return p.Validate().OrNil()
}

// CapFor returns the cap for a participant type.
func (p *PaxLimit) CapFor(participantType string) int {
	switch participantType {
	case ParticipantDelegate:
		return p.Delegate
	case ParticipantEnvoy:
		return p.Envoy
	case ParticipantObserver:
		return p.Observer
	case ParticipantVisitor:
		return p.Visitor
	default:
		return 0
	}
}

// Allows reports whether count more applications of the type still fit.
func (p *PaxLimit) Allows(participantType string, current int64) bool {
	cap := p.CapFor(participantType)
	if cap == Unlimited {
		return true
	}
	return current < int64(cap)
}

// DefaultPaxLimit is the fallback for bodies without an explicit row.
func DefaultPaxLimit(bodyID uint, eventType string) *PaxLimit {
	limit := &PaxLimit{
		BodyID:    bodyID,
		EventType: eventType,
		Observer:  Unlimited,
		Visitor:   Unlimited,
	}
	if eventType == EventTypeAgora {
		limit.Delegate = 3
	} else {
		limit.Envoy = 3
	}
	return limit
}
