package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/models"
)

type fakeCore struct {
	members    []core.Member
	membersErr error
}

func (f *fakeCore) GetMe(token string) (*core.User, error) { return nil, nil }

func (f *fakeCore) GetMyPermissions(token string) (*core.Permissions, error) { return nil, nil }

func (f *fakeCore) GetBodies(token string) ([]core.Body, error) { return nil, nil }

func (f *fakeCore) GetBody(token string, bodyID uint) (*core.Body, error) { return nil, nil }

func (f *fakeCore) GetBodyMembers(token string, bodyID uint) ([]core.Member, error) {
	return f.members, f.membersErr
}

func (f *fakeCore) GetMemberEmails(token string, userIDs []uint) ([]core.Member, error) {
	return f.members, f.membersErr
}

type fakeMailer struct {
	mu    sync.Mutex
	mails []mailer.Mail
	err   error
}

func (f *fakeMailer) Send(mail mailer.Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, mail)
	return nil
}

type ApplicationServiceSuite struct {
	suite.Suite
	db      *gorm.DB
	core    *fakeCore
	mailer  *fakeMailer
	engine  *ApplicationService
	base    time.Time
	nextUID uint
}

func TestApplicationServiceSuite(t *testing.T) {
	suite.Run(t, new(ApplicationServiceSuite))
}

func (s *ApplicationServiceSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)

	// A single connection keeps every query on the same in-memory database
	// and serializes sqlite writes under the concurrency tests.
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.Event{},
		&models.Application{},
		&models.PaxLimit{},
		&models.MembersList{},
	))

	s.db = db
	s.core = &fakeCore{members: []core.Member{{ID: 1, NotificationEmail: "board@example.com"}}}
	s.mailer = &fakeMailer{}
	s.base = time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nextUID = 100

	s.engine = NewApplicationService(db, s.core, s.mailer)
	// Fixed clock inside the application window.
	s.engine.Now = func() time.Time { return s.base.AddDate(0, 0, 5) }
}

func (s *ApplicationServiceSuite) at(days int) time.Time {
	return s.base.AddDate(0, 0, days)
}

func (s *ApplicationServiceSuite) atPtr(days int) *time.Time {
	t := s.at(days)
	return &t
}

func (s *ApplicationServiceSuite) createEvent(eventType string, mutate func(*models.Event)) *models.Event {
	event := &models.Event{
		Name:        "Spring Agora Testing",
		URL:         fmt.Sprintf("spring-agora-%d", time.Now().UnixNano()),
		Description: "A statutory event.",
		Type:        eventType,
		Status:      models.EventStatusPublished,

		ApplicationPeriodStarts:         s.at(0),
		ApplicationPeriodEnds:           s.at(10),
		BoardApproveDeadline:            s.at(12),
		ParticipantsListPublishDeadline: s.at(14),
		Starts:                          s.at(20),
		Ends:                            s.at(25),
	}
	if eventType == models.EventTypeAgora {
		event.MemberslistSubmissionDeadline = s.atPtr(9)
		event.DraftProposalDeadline = s.atPtr(5)
		event.FinalProposalDeadline = s.atPtr(8)
		event.CandidatureDeadline = s.atPtr(9)
		event.BookletPublicationDeadline = s.atPtr(11)
		event.UpdatedBookletPublicationDeadline = s.atPtr(13)
	}
	if mutate != nil {
		mutate(event)
	}
	s.Require().NoError(s.db.Create(event).Error)
	return event
}

func (s *ApplicationServiceSuite) newUser(bodyID uint) *core.User {
	s.nextUID++
	return &core.User{
		ID:                s.nextUID,
		FirstName:         "Ann",
		LastName:          fmt.Sprintf("Smith%d", s.nextUID),
		Gender:            "female",
		Email:             fmt.Sprintf("user%d@example.com", s.nextUID),
		NotificationEmail: fmt.Sprintf("user%d@example.com", s.nextUID),
		Bodies:            []core.Body{{ID: bodyID, Name: "AEGEE-Utrecht", Type: "antenna"}},
	}
}

func (s *ApplicationServiceSuite) newRequest(bodyID uint) *models.ApplicationRequest {
	return &models.ApplicationRequest{
		BodyID:                bodyID,
		Nationality:           "Dutch",
		Meals:                 models.MealsVegetarian,
		NumberOfEventsVisited: 2.0,
	}
}

func (s *ApplicationServiceSuite) countApplications(eventID uint) int64 {
	var count int64
	s.Require().NoError(s.db.Model(&models.Application{}).Where("event_id = ?", eventID).Count(&count).Error)
	return count
}

func (s *ApplicationServiceSuite) TestHappyPath() {
	event := s.createEvent(models.EventTypeAgora, nil)
	user := s.newUser(10)

	application, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
	s.Require().NoError(err)

	s.Equal(event.ID, application.EventID)
	s.Equal(user.ID, application.UserID)
	s.Equal(user.FirstName, application.FirstName)
	s.Equal("AEGEE-Utrecht", application.BodyName)
	s.Equal(models.ApplicationStatusPending, application.Status)
	s.Equal(models.ParticipantDelegate, application.ParticipantType)
	s.Equal(1, application.ParticipantOrder)
	s.Equal(models.StatutoryID(event.ID, 1), application.StatutoryID)
	s.False(application.IsOnMemberslist)

	s.Require().Len(s.mailer.mails, 1)
	s.Equal([]string{"board@example.com"}, s.mailer.mails[0].To)
}

func (s *ApplicationServiceSuite) TestApplicationWindow() {
	event := s.createEvent(models.EventTypeAgora, nil)

	s.Run("not yet open is forbidden", func() {
		s.engine.Now = func() time.Time { return s.at(0).Add(-5 * time.Minute) }

		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		var forbidden ForbiddenError
		s.Require().ErrorAs(err, &forbidden)
		s.EqualValues(0, s.countApplications(event.ID))
	})

	s.Run("closed window is forbidden", func() {
		s.engine.Now = func() time.Time { return s.at(15) }

		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		var forbidden ForbiddenError
		s.Require().ErrorAs(err, &forbidden)
	})

	s.Run("override permission opens it", func() {
		s.engine.Now = func() time.Time { return s.at(15) }

		permissions := &core.Permissions{ApplyOutsideDeadline: true}
		_, err := s.engine.Create(event, s.newUser(10), permissions, "token", s.newRequest(10))
		s.NoError(err)
	})
}

func (s *ApplicationServiceSuite) TestBodyMembership() {
	event := s.createEvent(models.EventTypeAgora, nil)
	user := s.newUser(10)

	_, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(20))
	var forbidden ForbiddenError
	s.Require().ErrorAs(err, &forbidden)
	s.Contains(forbidden.Message, "not a member")
	s.EqualValues(0, s.countApplications(event.ID))
}

func (s *ApplicationServiceSuite) TestDuplicateApplication() {
	event := s.createEvent(models.EventTypeAgora, nil)
	user := s.newUser(10)

	first, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
	s.Require().NoError(err)

	s.Run("second application is a validation failure", func() {
		_, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
		var errs models.ValidationErrors
		s.Require().ErrorAs(err, &errs)
		s.Contains(errs, "user_id")
	})

	s.Run("cancelling frees the slot but not the sequence", func() {
		s.Require().NoError(s.db.Model(first).Update("cancelled", true).Error)

		replacement, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		s.Equal(models.StatutoryID(event.ID, 2), replacement.StatutoryID)
		s.NotEqual(first.StatutoryID, replacement.StatutoryID)
	})
}

func (s *ApplicationServiceSuite) TestConcurrentDuplicateSubmissions() {
	event := s.createEvent(models.EventTypeAgora, nil)
	user := s.newUser(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	failures := make([]error, 0)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Require().Len(failures, 4)
	for _, err := range failures {
		var errs models.ValidationErrors
		s.Require().ErrorAs(err, &errs)
		s.Contains(errs, "user_id")
	}
	s.EqualValues(1, s.countApplications(event.ID))
}

func (s *ApplicationServiceSuite) TestValidationAggregation() {
	event := s.createEvent(models.EventTypeAgora, func(event *models.Event) {
		event.Questions = models.QuestionList{
			{Description: "Motivation", Required: true, Type: models.QuestionTypeText},
		}
	})

	request := s.newRequest(10)
	request.Nationality = ""
	request.Answers = models.AnswerList{""}
	request.VisaRequired = true
	request.Meals = "Pescatarian"

	_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", request)
	var errs models.ValidationErrors
	s.Require().ErrorAs(err, &errs)

	s.Contains(errs, "nationality")
	s.Contains(errs, "answers")
	s.Contains(errs, "visaFieldsFilledIn")
	s.Contains(errs, "meals")
	s.EqualValues(0, s.countApplications(event.ID))
}

func (s *ApplicationServiceSuite) TestMeatEaterOnVegetarianEvent() {
	event := s.createEvent(models.EventTypeAgora, func(event *models.Event) {
		event.Vegetarian = true
	})

	request := s.newRequest(10)
	request.Meals = models.MealsMeatEater

	_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", request)
	s.Require().ErrorIs(err, models.ErrMeatEaterNotAllowed)
	s.EqualValues(0, s.countApplications(event.ID))
}

func (s *ApplicationServiceSuite) TestAllocationPriority() {
	event := s.createEvent(models.EventTypeAgora, nil)

	// Default agora caps: 3 delegates, no envoys, unlimited observers.
	types := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		application, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		types = append(types, application.ParticipantType)
	}

	s.Equal([]string{
		models.ParticipantDelegate,
		models.ParticipantDelegate,
		models.ParticipantDelegate,
		models.ParticipantObserver,
		models.ParticipantObserver,
	}, types)
}

func (s *ApplicationServiceSuite) TestAllocationPerBody() {
	event := s.createEvent(models.EventTypeAgora, nil)

	for i := 0; i < 3; i++ {
		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
	}

	// Another body starts with its own delegate quota.
	application, err := s.engine.Create(event, s.newUser(20), &core.Permissions{}, "token", s.newRequest(20))
	s.Require().NoError(err)
	s.Equal(models.ParticipantDelegate, application.ParticipantType)
	s.Equal(1, application.ParticipantOrder)
	s.Equal(models.StatutoryID(event.ID, 4), application.StatutoryID)
}

func (s *ApplicationServiceSuite) TestClosedBody() {
	event := s.createEvent(models.EventTypeAgora, nil)
	s.Require().NoError(s.db.Create(&models.PaxLimit{
		BodyID:    10,
		EventType: models.EventTypeAgora,
	}).Error)

	_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
	var forbidden ForbiddenError
	s.Require().ErrorAs(err, &forbidden)
	s.Contains(forbidden.Message, "Cannot assign pax type")
	s.EqualValues(0, s.countApplications(event.ID))
}

func (s *ApplicationServiceSuite) TestRejectedApplicationsFreeTheQuota() {
	event := s.createEvent(models.EventTypeAgora, nil)
	s.Require().NoError(s.db.Create(&models.PaxLimit{
		BodyID:    10,
		EventType: models.EventTypeAgora,
		Delegate:  1,
	}).Error)

	first, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(first).Update("status", models.ApplicationStatusRejected).Error)

	second, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
	s.Require().NoError(err)
	s.Equal(models.ParticipantDelegate, second.ParticipantType)
}

func (s *ApplicationServiceSuite) TestMemberslistCrossReference() {
	s.Run("by user id", func() {
		event := s.createEvent(models.EventTypeAgora, nil)
		user := s.newUser(10)
		userID := user.ID
		s.Require().NoError(s.db.Create(&models.MembersList{
			EventID:  event.ID,
			BodyID:   10,
			UserID:   1,
			Currency: "EUR",
			Members:  models.MemberList{{UserID: &userID, FirstName: "Other", LastName: "Name", Fee: 10}},
		}).Error)

		application, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		s.True(application.IsOnMemberslist)
	})

	s.Run("by name", func() {
		event := s.createEvent(models.EventTypeAgora, nil)
		user := s.newUser(10)
		s.Require().NoError(s.db.Create(&models.MembersList{
			EventID:  event.ID,
			BodyID:   10,
			UserID:   1,
			Currency: "EUR",
			Members:  models.MemberList{{FirstName: user.FirstName, LastName: user.LastName, Fee: 10}},
		}).Error)

		application, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		s.True(application.IsOnMemberslist)
	})

	s.Run("epm never cross-references", func() {
		event := s.createEvent(models.EventTypeEPM, nil)
		user := s.newUser(10)

		application, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		s.False(application.IsOnMemberslist)
		s.Equal(models.ParticipantEnvoy, application.ParticipantType)
	})
}

func (s *ApplicationServiceSuite) TestNotificationFailuresRollBack() {
	s.Run("mailer failure", func() {
		event := s.createEvent(models.EventTypeAgora, nil)
		s.mailer.err = errors.New("mailer is down")

		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		s.Require().Error(err)
		s.EqualValues(0, s.countApplications(event.ID))

		s.mailer.err = nil
	})

	s.Run("registry failure", func() {
		event := s.createEvent(models.EventTypeAgora, nil)
		s.core.membersErr = errors.New("registry is down")

		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		s.Require().Error(err)
		s.EqualValues(0, s.countApplications(event.ID))

		s.core.membersErr = nil
	})

	s.Run("empty board skips the mail", func() {
		event := s.createEvent(models.EventTypeAgora, nil)
		s.core.members = nil

		_, err := s.engine.Create(event, s.newUser(10), &core.Permissions{}, "token", s.newRequest(10))
		s.Require().NoError(err)
		s.EqualValues(1, s.countApplications(event.ID))
		s.Empty(s.mailer.mails)
	})
}

func (s *ApplicationServiceSuite) TestConcurrentSubmissions() {
	event := s.createEvent(models.EventTypeAgora, nil)
	s.Require().NoError(s.db.Create(&models.PaxLimit{
		BodyID:    10,
		EventType: models.EventTypeAgora,
		Delegate:  3,
	}).Error)

	users := make([]*core.User, 10)
	for i := range users {
		users[i] = s.newUser(10)
	}

	var wg sync.WaitGroup
	results := make([]error, len(users))
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.engine.Create(event, users[i], &core.Permissions{}, "token", s.newRequest(10))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			var forbidden ForbiddenError
			s.Require().ErrorAs(err, &forbidden)
		}
	}
	s.Equal(3, accepted)

	var applications []models.Application
	s.Require().NoError(s.db.Where("event_id = ?", event.ID).Find(&applications).Error)
	s.Len(applications, 3)

	seen := make(map[string]bool)
	for _, application := range applications {
		s.Equal(models.ParticipantDelegate, application.ParticipantType)
		s.False(seen[application.StatutoryID], "statutory ids must be unique")
		seen[application.StatutoryID] = true
	}
}

func (s *ApplicationServiceSuite) TestRestampMemberslist() {
	event := s.createEvent(models.EventTypeAgora, nil)
	user := s.newUser(10)

	application, err := s.engine.Create(event, user, &core.Permissions{}, "token", s.newRequest(10))
	s.Require().NoError(err)
	s.False(application.IsOnMemberslist)

	list := &models.MembersList{
		EventID:  event.ID,
		BodyID:   10,
		UserID:   1,
		Currency: "EUR",
		Members:  models.MemberList{{FirstName: user.FirstName, LastName: user.LastName, Fee: 10}},
	}
	s.Require().NoError(s.db.Create(list).Error)
	s.Require().NoError(s.engine.RestampMemberslist(event, list))

	var stored models.Application
	s.Require().NoError(s.db.First(&stored, application.ID).Error)
	s.True(stored.IsOnMemberslist)
}
