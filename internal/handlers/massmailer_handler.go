package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

// SendMassmailer mails every non-cancelled application matching the filter.
// The text supports {first_name}, {last_name}, {body_name} and
// {participant_type_order} placeholders, substituted per recipient. Current
// notification addresses come from the registry, not from the application
// snapshot.
func SendMassmailer(c *gin.Context) {
	if !middleware.GetPermissions(c).UseMassmailer {
		helpers.Forbidden(c, "You cannot use the massmailer.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var request struct {
		Subject string `json:"subject"`
		Text    string `json:"text"`
		Filter  struct {
			Status          string `json:"status"`
			ParticipantType string `json:"participant_type"`
			Confirmed       *bool  `json:"confirmed"`
		} `json:"filter"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	if strings.TrimSpace(request.Text) == "" {
		helpers.BadRequest(c, "Please provide an email body.")
		return
	}
	if strings.TrimSpace(request.Subject) == "" {
		helpers.BadRequest(c, "Please provide an email subject.")
		return
	}

	query := middleware.GetDB(c).Where("event_id = ? AND cancelled = ?", event.ID, false)
	if request.Filter.Status != "" {
		query = query.Where("status = ?", request.Filter.Status)
	}
	if request.Filter.ParticipantType != "" {
		query = query.Where("participant_type = ?", request.Filter.ParticipantType)
	}
	if request.Filter.Confirmed != nil {
		query = query.Where("confirmed = ?", *request.Filter.Confirmed)
	}

	var applications []models.Application
	if err := query.Find(&applications).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}
	if len(applications) == 0 {
		helpers.BadRequest(c, "Nobody matches the filter.")
		return
	}

	userIDs := make([]uint, 0, len(applications))
	for _, application := range applications {
		userIDs = append(userIDs, application.UserID)
	}

	members, err := middleware.GetCore(c).GetMemberEmails(middleware.GetToken(c), userIDs)
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}
	emails := make(map[uint]string, len(members))
	for _, member := range members {
		emails[member.ID] = member.NotificationEmail
	}

	recipients := make([]string, 0, len(applications))
	bodies := make([]map[string]string, 0, len(applications))
	for _, application := range applications {
		email := emails[application.UserID]
		if email == "" {
			email = application.NotificationEmail
		}
		if email == "" {
			continue
		}

		text := strings.NewReplacer(
			"{first_name}", application.FirstName,
			"{last_name}", application.LastName,
			"{body_name}", application.BodyName,
			"{participant_type_order}", application.ParticipantType+" "+strconv.Itoa(application.ParticipantOrder),
		).Replace(request.Text)

		recipients = append(recipients, email)
		bodies = append(bodies, map[string]string{"to": email, "body": text})
	}

	if len(recipients) == 0 {
		helpers.BadRequest(c, "Nobody matches the filter.")
		return
	}

	err = middleware.GetMailer(c).Send(mailer.Mail{
		To:       recipients,
		Subject:  request.Subject,
		Template: "custom.html",
		Parameters: map[string]interface{}{
			"mails": bodies,
		},
	})
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.SuccessMessage(c, "The mail was sent to "+strconv.Itoa(len(recipients))+" recipients.")
}
