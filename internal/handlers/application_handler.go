package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
	"github.com/aegee/statutory/internal/service"
)

// respondEngineError maps engine failures onto the error taxonomy: forbidden
// outcomes are 403s, validation maps are 422s, everything else is a 500.
func respondEngineError(c *gin.Context, err error) {
	var forbidden service.ForbiddenError
	if errors.As(err, &forbidden) {
		helpers.Forbidden(c, forbidden.Message)
		return
	}
	helpers.RespondWithDomainError(c, err)
}

func fetchApplication(c *gin.Context, eventID uint) (*models.Application, bool) {
	id, ok := helpers.ParseID(c.Param("application_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid application id.")
		return nil, false
	}

	var application models.Application
	err := middleware.GetDB(c).Where("id = ? AND event_id = ?", id, eventID).First(&application).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Application is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return nil, false
	}
	return &application, true
}

// CreateApplication is the submission endpoint. All the pipeline logic lives
// in the engine; the handler only binds and translates errors. Any lifecycle
// field the client sends is ignored because the request type has no room for
// it.
func CreateApplication(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var request models.ApplicationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	application, err := middleware.GetApplications(c).Create(
		event,
		middleware.GetUser(c),
		middleware.GetPermissions(c),
		middleware.GetToken(c),
		&request,
	)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	helpers.Success(c, application)
}

func ListApplications(c *gin.Context) {
	if !middleware.GetPermissions(c).SeeApplications {
		helpers.Forbidden(c, "You cannot see applications for this event.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	query := middleware.GetDB(c).Where("event_id = ?", event.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if bodyID, ok := helpers.ParseID(c.Query("body_id")); ok {
		query = query.Where("body_id = ?", bodyID)
	}

	var applications []models.Application
	if err := query.Order("id ASC").Find(&applications).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, applications)
}

func GetMyApplication(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	user := middleware.GetUser(c)
	var application models.Application
	err := middleware.GetDB(c).
		Where("event_id = ? AND user_id = ? AND cancelled = ?", event.ID, user.ID, false).
		First(&application).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Application is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return
	}

	helpers.Success(c, &application)
}

func SetApplicationStatus(c *gin.Context) {
	if !middleware.GetPermissions(c).SetBoardCommentAndStatus {
		helpers.Forbidden(c, "You cannot change applications' status.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	application, ok := fetchApplication(c, event.ID)
	if !ok {
		return
	}

	var request struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	application.Status = request.Status
	if err := middleware.GetDB(c).Save(application).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, application)
}

func SetApplicationComment(c *gin.Context) {
	if !middleware.GetPermissions(c).SetBoardCommentAndStatus {
		helpers.Forbidden(c, "You cannot set board comments.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	application, ok := fetchApplication(c, event.ID)
	if !ok {
		return
	}

	var request struct {
		BoardComment string `json:"board_comment"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	application.BoardComment = request.BoardComment
	if err := middleware.GetDB(c).Save(application).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, application)
}

// CancelApplication sets the cancelled flag. The statutory id and the
// sequence stay burned; a new application gets fresh ones.
func CancelApplication(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	application, ok := fetchApplication(c, event.ID)
	if !ok {
		return
	}

	user := middleware.GetUser(c)
	permissions := middleware.GetPermissions(c)
	if application.UserID != user.ID && !permissions.ManageApplications {
		helpers.Forbidden(c, "You cannot cancel this application.")
		return
	}

	application.Cancelled = true
	if err := middleware.GetDB(c).Save(application).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, application)
}

func setApplicationFlag(c *gin.Context, apply func(application *models.Application, value bool) error) {
	if !middleware.GetPermissions(c).ManageApplications {
		helpers.Forbidden(c, "You cannot manage applications.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	application, ok := fetchApplication(c, event.ID)
	if !ok {
		return
	}

	var request struct {
		Value *bool `json:"value"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Value == nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	if err := apply(application, *request.Value); err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	if err := middleware.GetDB(c).Save(application).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, application)
}

func SetApplicationConfirmed(c *gin.Context) {
	setApplicationFlag(c, func(application *models.Application, value bool) error {
		application.Confirmed = value
		return nil
	})
}

func SetApplicationAttended(c *gin.Context) {
	setApplicationFlag(c, func(application *models.Application, value bool) error {
		application.Attended = value
		return nil
	})
}

func SetApplicationDeparted(c *gin.Context) {
	setApplicationFlag(c, func(application *models.Application, value bool) error {
		application.Departed = value
		return nil
	})
}

// SetApplicationRegistered toggles the registration flag. A participant can
// only be registered after confirming, and not anymore once departed.
func SetApplicationRegistered(c *gin.Context) {
	setApplicationFlag(c, func(application *models.Application, value bool) error {
		if application.Departed {
			return models.ValidationErrors{"registered": []string{"The participant has already departed."}}
		}
		if value && !application.Confirmed {
			return models.ValidationErrors{"registered": []string{"The participant should be marked as confirmed first."}}
		}
		application.Registered = value
		return nil
	})
}

// ListParticipants is the published participants list: accepted non-cancelled
// applications, public fields only.
func ListParticipants(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var applications []models.Application
	err := middleware.GetDB(c).
		Where("event_id = ? AND status = ? AND cancelled = ?", event.ID, models.ApplicationStatusAccepted, false).
		Order("id ASC").
		Find(&applications).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	participants := make([]gin.H, 0, len(applications))
	for _, application := range applications {
		participants = append(participants, gin.H{
			"id":                application.ID,
			"first_name":        application.FirstName,
			"last_name":         application.LastName,
			"body_name":         application.BodyName,
			"participant_type":  application.ParticipantType,
			"participant_order": application.ParticipantOrder,
			"statutory_id":      application.StatutoryID,
			"is_on_memberslist": application.IsOnMemberslist,
		})
	}

	helpers.Success(c, participants)
}
