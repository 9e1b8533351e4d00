package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/models"
	"github.com/aegee/statutory/internal/server"
)

// stubCore plays the registry: it authenticates every request as the
// configured user with the configured permissions.
type stubCore struct {
	user        *core.User
	permissions *core.Permissions
	bodies      []core.Body
	members     []core.Member
	err         error
}

func (f *stubCore) GetMe(token string) (*core.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *stubCore) GetMyPermissions(token string) (*core.Permissions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.permissions, nil
}

func (f *stubCore) GetBodies(token string) ([]core.Body, error) { return f.bodies, f.err }

func (f *stubCore) GetBody(token string, bodyID uint) (*core.Body, error) { return nil, f.err }

func (f *stubCore) GetBodyMembers(token string, bodyID uint) ([]core.Member, error) {
	return f.members, f.err
}

func (f *stubCore) GetMemberEmails(token string, userIDs []uint) ([]core.Member, error) {
	return f.members, f.err
}

type stubMailer struct {
	mu    sync.Mutex
	mails []mailer.Mail
	err   error
}

func (f *stubMailer) Send(mail mailer.Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, mail)
	return nil
}

type testApp struct {
	db     *gorm.DB
	core   *stubCore
	mailer *stubMailer
	router *gin.Engine
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Data    json.RawMessage     `json:"data"`
}

type requirer interface {
	Require() *require.Assertions
}

func newTestApp(s requirer) *testApp {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.Event{},
		&models.Application{},
		&models.PaxLimit{},
		&models.MembersList{},
		&models.Plenary{},
		&models.Attendance{},
		&models.Position{},
		&models.Candidate{},
	))

	registry := &stubCore{
		user: &core.User{
			ID:                100,
			FirstName:         "Ann",
			LastName:          "Smith",
			Gender:            "female",
			Email:             "ann@example.com",
			NotificationEmail: "ann@example.com",
			Bodies:            []core.Body{{ID: 10, Name: "AEGEE-Utrecht", Type: "antenna"}},
		},
		permissions: &core.Permissions{},
		members:     []core.Member{{ID: 1, NotificationEmail: "board@example.com"}},
	}
	post := &stubMailer{}

	router := gin.New()
	server.SetupRoutes(router, db, registry, post, "memberslists@example.com")

	return &testApp{db: db, core: registry, mailer: post, router: router}
}

func (a *testApp) request(method, path string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", "test-token")

	recorder := httptest.NewRecorder()
	a.router.ServeHTTP(recorder, req)

	response := &envelope{}
	_ = json.Unmarshal(recorder.Body.Bytes(), response)
	return recorder, response
}

// createEvent persists a valid event whose application window spans the
// current time. mutate can shift deadlines or flip flags before saving.
func (a *testApp) createEvent(s requirer, eventType string, mutate func(*models.Event)) *models.Event {
	now := time.Now().Truncate(time.Second)
	at := func(days int) time.Time { return now.AddDate(0, 0, days) }
	atPtr := func(days int) *time.Time {
		t := at(days)
		return &t
	}

	event := &models.Event{
		Name:        "Spring Agora Testing",
		URL:         fmt.Sprintf("agora-%d", time.Now().UnixNano()),
		Description: "A statutory event.",
		Type:        eventType,
		Status:      models.EventStatusPublished,

		ApplicationPeriodStarts:         at(-5),
		ApplicationPeriodEnds:           at(5),
		BoardApproveDeadline:            at(7),
		ParticipantsListPublishDeadline: at(9),
		Starts:                          at(20),
		Ends:                            at(25),
	}
	if eventType == models.EventTypeAgora {
		event.MemberslistSubmissionDeadline = atPtr(4)
		event.DraftProposalDeadline = atPtr(1)
		event.FinalProposalDeadline = atPtr(2)
		event.CandidatureDeadline = atPtr(4)
		event.BookletPublicationDeadline = atPtr(6)
		event.UpdatedBookletPublicationDeadline = atPtr(8)
	}
	if mutate != nil {
		mutate(event)
	}
	s.Require().NoError(a.db.Create(event).Error)
	return event
}

// pastEvent is an event whose application window has already closed.
func (a *testApp) pastEvent(s requirer, eventType string) *models.Event {
	return a.createEvent(s, eventType, func(event *models.Event) {
		now := time.Now().Truncate(time.Second)
		at := func(days int) time.Time { return now.AddDate(0, 0, days) }
		atPtr := func(days int) *time.Time {
			t := at(days)
			return &t
		}

		event.ApplicationPeriodStarts = at(-30)
		event.ApplicationPeriodEnds = at(-20)
		event.BoardApproveDeadline = at(-18)
		event.ParticipantsListPublishDeadline = at(-16)
		event.Starts = at(-10)
		event.Ends = at(-5)
		if eventType == models.EventTypeAgora {
			event.MemberslistSubmissionDeadline = atPtr(-21)
			event.DraftProposalDeadline = atPtr(-25)
			event.FinalProposalDeadline = atPtr(-24)
			event.CandidatureDeadline = atPtr(-21)
			event.BookletPublicationDeadline = atPtr(-19)
			event.UpdatedBookletPublicationDeadline = atPtr(-17)
		}
	})
}

func validApplicationBody() gin.H {
	return gin.H{
		"body_id":                  10,
		"nationality":              "Dutch",
		"meals":                    models.MealsVegetarian,
		"number_of_events_visited": 2,
	}
}
