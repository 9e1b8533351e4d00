// Package service holds the application eligibility and allocation engine:
// the submission pipeline that gates the application window, validates the
// conditional fields, allocates a participant type within the body's pax
// limits, assigns the statutory id and cross-references the members list.
package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/models"
)

// ForbiddenError is an authorization-shaped failure: outside the window
// without an override, not a body member, or no pax type left.
type ForbiddenError struct {
	Message string
}

func (e ForbiddenError) Error() string {
	return e.Message
}

// ApplicationService runs the submission pipeline. Now is injectable so tests
// can position themselves around the application window.
type ApplicationService struct {
	db     *gorm.DB
	core   core.Client
	mailer mailer.Client
	Now    func() time.Time

	mu         sync.Mutex
	eventLocks map[uint]*sync.Mutex
}

func NewApplicationService(db *gorm.DB, coreClient core.Client, mailerClient mailer.Client) *ApplicationService {
	return &ApplicationService{
		db:         db,
		core:       coreClient,
		mailer:     mailerClient,
		Now:        time.Now,
		eventLocks: make(map[uint]*sync.Mutex),
	}
}

// lockForEvent serializes allocation per event. Quota caps are per (event,
// body) and the statutory sequence is per event, so one lock per event covers
// both read-then-write counters.
func (s *ApplicationService) lockForEvent(eventID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.eventLocks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.eventLocks[eventID] = lock
	}
	return lock
}

// Create runs the whole pipeline: eligibility gate, field validation, quota
// allocation, statutory id, members list cross-reference, persistence and the
// board notification. Persistence and notification are one unit: the insert
// happens inside a transaction and the notification is sent before commit, so
// a failed dispatch rolls the application back.
func (s *ApplicationService) Create(
	event *models.Event,
	user *core.User,
	permissions *core.Permissions,
	token string,
	request *models.ApplicationRequest,
) (*models.Application, error) {
	now := s.Now()

	if !event.CanApplyAt(now) && !permissions.ApplyOutsideDeadline {
		return nil, ForbiddenError{"The application period is not open."}
	}

	if !user.IsMemberOf(request.BodyID) {
		return nil, ForbiddenError{"You are not a member of this body."}
	}

	errs := models.ValidationErrors{}
	errs.Merge(request.ValidateFields())
	errs.Merge(models.ValidateAnswers(request.Answers, event.Questions))
	errs.Merge(request.ValidateVisaFields())
	if err := request.ValidateMeals(event); err != nil {
		var mealsErrs models.ValidationErrors
		if !errors.As(err, &mealsErrs) {
			return nil, err
		}
		errs.Merge(mealsErrs)
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	application := &models.Application{
		EventID:           event.ID,
		UserID:            user.ID,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		Email:             user.Email,
		NotificationEmail: user.NotificationEmail,
		Status:            models.ApplicationStatusPending,
	}
	request.ApplyTo(application)
	if application.Gender == "" {
		application.Gender = user.Gender
	}
	for _, body := range user.Bodies {
		if body.ID == request.BodyID {
			application.BodyName = body.Name
		}
	}

	lock := s.lockForEvent(event.ID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// The duplicate check shares the lock with allocation, so two
		// concurrent submissions by the same user cannot both pass it.
		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("event_id = ? AND user_id = ? AND cancelled = ?", event.ID, user.ID, false).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			duplicate := models.ValidationErrors{}
			duplicate.Add("user_id", "You have already applied to this event.")
			duplicate.Add("event_id", "You have already applied to this event.")
			return duplicate
		}

		participantType, order, err := s.assignParticipantType(tx, event, request.BodyID)
		if err != nil {
			return err
		}
		application.ParticipantType = participantType
		application.ParticipantOrder = order

		sequence, err := s.nextSequence(tx, event.ID)
		if err != nil {
			return err
		}
		application.StatutoryID = models.StatutoryID(event.ID, sequence)

		onList, err := s.crossReference(tx, event, request.BodyID, user.ID, user.FirstName, user.LastName)
		if err != nil {
			return err
		}
		application.IsOnMemberslist = onList

		if err := tx.Create(application).Error; err != nil {
			return err
		}

		return s.notifyBoard(token, event, application)
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// assignParticipantType places the applicant into the most senior participant
// type whose cap still has room, counting pending and accepted non-cancelled
// applications of the same body for this event.
func (s *ApplicationService) assignParticipantType(tx *gorm.DB, event *models.Event, bodyID uint) (string, int, error) {
	limit := &models.PaxLimit{}
	err := tx.Where("body_id = ? AND event_type = ?", bodyID, event.Type).First(limit).Error
	if err == gorm.ErrRecordNotFound {
		limit = models.DefaultPaxLimit(bodyID, event.Type)
	} else if err != nil {
		return "", 0, err
	}

	for _, participantType := range models.ParticipantTypePriority {
		var count int64
		err := tx.Model(&models.Application{}).
			Where("event_id = ? AND body_id = ? AND participant_type = ? AND cancelled = ? AND status IN ?",
				event.ID, bodyID, participantType, false,
				[]string{models.ApplicationStatusPending, models.ApplicationStatusAccepted}).
			Count(&count).Error
		if err != nil {
			return "", 0, err
		}

		if limit.Allows(participantType, count) {
			return participantType, int(count) + 1, nil
		}
	}

	return "", 0, ForbiddenError{"Cannot assign pax type."}
}

// nextSequence counts every application ever created for the event, cancelled
// ones included, so sequence numbers are never reused.
func (s *ApplicationService) nextSequence(tx *gorm.DB, eventID uint) (int, error) {
	var count int64
	err := tx.Model(&models.Application{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

// crossReference flags whether the applicant appears on the body's members
// list, by user id first and by exact first+last name as a fallback. Only
// meaningful for Agora events; everyone else gets false.
func (s *ApplicationService) crossReference(tx *gorm.DB, event *models.Event, bodyID, userID uint, firstName, lastName string) (bool, error) {
	if event.Type != models.EventTypeAgora {
		return false, nil
	}

	list := &models.MembersList{}
	err := tx.Where("event_id = ? AND body_id = ?", event.ID, bodyID).First(list).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return list.Includes(userID, firstName, lastName), nil
}

// notifyBoard mails the body's board about the new application. A body
// without board members is fine and skips the dispatch; any registry or
// mailer failure aborts the whole creation.
func (s *ApplicationService) notifyBoard(token string, event *models.Event, application *models.Application) error {
	members, err := s.core.GetBodyMembers(token, application.BodyID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	recipients := make([]string, 0, len(members))
	for _, member := range members {
		recipients = append(recipients, member.NotificationEmail)
	}

	return s.mailer.Send(mailer.Mail{
		To:       recipients,
		Subject:  fmt.Sprintf("A new application for %s", event.Name),
		Template: "statutory_applied.html",
		Parameters: map[string]interface{}{
			"event_name":   event.Name,
			"statutory_id": application.StatutoryID,
			"first_name":   application.FirstName,
			"last_name":    application.LastName,
			"body_name":    application.BodyName,
		},
	})
}

// RestampMemberslist refreshes is_on_memberslist on the body's existing
// applications after a members list upload or edit.
func (s *ApplicationService) RestampMemberslist(event *models.Event, list *models.MembersList) error {
	var applications []models.Application
	err := s.db.Where("event_id = ? AND body_id = ?", event.ID, list.BodyID).Find(&applications).Error
	if err != nil {
		return err
	}

	for i := range applications {
		application := &applications[i]
		onList := list.Includes(application.UserID, application.FirstName, application.LastName)
		if onList == application.IsOnMemberslist {
			continue
		}
		err := s.db.Model(application).Update("is_on_memberslist", onList).Error
		if err != nil {
			return err
		}
	}
	return nil
}
