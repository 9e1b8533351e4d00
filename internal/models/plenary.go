package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Plenary is a session of an Agora for which delegate attendance is tracked.
type Plenary struct {
	ID      uint   `gorm:"primary_key" json:"id"`
	EventID uint   `gorm:"not null;index" json:"event_id"`
	Name    string `gorm:"not null" json:"name"`

	Starts time.Time `gorm:"not null" json:"starts"`
	Ends   time.Time `gorm:"not null" json:"ends"`

	Attendances []Attendance `json:"attendances,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Plenary) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(p.Name) == "" {
		errs.Add("name", "Name should be set.")
	}
	if !p.Starts.Before(p.Ends) {
		errs.Add("ends", "Plenary cannot end before or at the same time it starts.")
	}
	return errs
}

func (p *Plenary) BeforeSave(tx *gorm.DB) error {
	return p.Validate().OrNil()
}

// Duration is the plenary length in seconds.
func (p *Plenary) Duration() float64 {
	return p.Ends.Sub(p.Starts).Seconds()
}

// Attendance is one presence interval of a participant during a plenary. An
// open interval (Ends == nil) means the participant is currently inside.
type Attendance struct {
	ID            uint `gorm:"primary_key" json:"id"`
	PlenaryID     uint `gorm:"not null;index" json:"plenary_id"`
	ApplicationID uint `gorm:"not null;index" json:"application_id"`

	Starts time.Time  `gorm:"not null" json:"starts"`
	Ends   *time.Time `json:"ends"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SecondsWithin clamps the attendance interval to the plenary window and
// returns its length in seconds. Open intervals count until the plenary end.
func (a *Attendance) SecondsWithin(plenary *Plenary) float64 {
	start := a.Starts
	if start.Before(plenary.Starts) {
		start = plenary.Starts
	}

	end := plenary.Ends
	if a.Ends != nil && a.Ends.Before(plenary.Ends) {
		end = *a.Ends
	}

	if end.Before(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}
