package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

// fetchEvent loads the event from the :event_id route parameter, which can be
// either the numeric id or the url slug. Slugs are never numbers-only, so a
// numeric parameter is always an id lookup.
func fetchEvent(c *gin.Context) (*models.Event, bool) {
	db := middleware.GetDB(c)
	param := c.Param("event_id")

	var event models.Event
	query := db
	if id, ok := helpers.ParseID(param); ok {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("url = ?", param)
	}

	if err := query.First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Event is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return nil, false
	}
	return &event, true
}

func CreateEvent(c *gin.Context) {
	permissions := middleware.GetPermissions(c)
	if !permissions.ManageEvent {
		helpers.Forbidden(c, "You cannot create events.")
		return
	}

	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	// Events always start their life as unpublished drafts.
	event.ID = 0
	event.Status = models.EventStatusDraft
	event.PublicationDate = nil
	if event.URL == "" {
		event.URL = slug.Make(event.Name)
	}

	db := middleware.GetDB(c)
	var taken int64
	if err := db.Model(&models.Event{}).Where("url = ?", event.URL).Count(&taken).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}
	if taken > 0 {
		helpers.Validation(c, models.ValidationErrors{"url": []string{"URL is already taken."}})
		return
	}

	if err := db.Create(&event).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, event)
}

func ListEvents(c *gin.Context) {
	db := middleware.GetDB(c)

	page, err := helpers.StringToInt(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		helpers.BadRequest(c, "Invalid page number.")
		return
	}
	limit, err := helpers.StringToInt(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		helpers.BadRequest(c, "Invalid limit.")
		return
	}

	query := db.Model(&models.Event{}).Where("status = ?", models.EventStatusPublished)
	if eventType := c.Query("type"); eventType != "" {
		query = query.Where("type = ?", eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}

	var events []models.Event
	offset := (page - 1) * limit
	err = query.Offset(offset).Limit(limit).Order("starts ASC").Find(&events).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.SuccessWithMeta(c, events, gin.H{
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ListMyEvents returns the events organized by one of the caller's bodies,
// drafts included.
func ListMyEvents(c *gin.Context) {
	db := middleware.GetDB(c)
	user := middleware.GetUser(c)

	bodyIDs := make([]uint, 0, len(user.Bodies))
	for _, body := range user.Bodies {
		bodyIDs = append(bodyIDs, body.ID)
	}

	var events []models.Event
	if len(bodyIDs) > 0 {
		err := db.Where("body_id IN ?", bodyIDs).Order("starts ASC").Find(&events).Error
		if err != nil {
			helpers.Unexpected(c, err)
			return
		}
	}

	helpers.Success(c, events)
}

func GetEvent(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	// Drafts are invisible to everyone but event managers.
	if event.Status == models.EventStatusDraft && !middleware.GetPermissions(c).ManageEvent {
		helpers.NotFound(c, "Event is not found.")
		return
	}

	helpers.Success(c, event)
}

func UpdateEvent(c *gin.Context) {
	permissions := middleware.GetPermissions(c)
	if !permissions.ManageEvent {
		helpers.Forbidden(c, "You cannot update events.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var request models.Event
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	db := middleware.GetDB(c)
	if request.URL != "" && request.URL != event.URL {
		var taken int64
		err := db.Model(&models.Event{}).Where("url = ? AND id <> ?", request.URL, event.ID).Count(&taken).Error
		if err != nil {
			helpers.Unexpected(c, err)
			return
		}
		if taken > 0 {
			helpers.Validation(c, models.ValidationErrors{"url": []string{"URL is already taken."}})
			return
		}
		event.URL = request.URL
	}

	event.Name = request.Name
	event.Description = request.Description
	event.Type = request.Type
	event.BodyID = request.BodyID
	event.Fee = request.Fee
	event.Vegetarian = request.Vegetarian
	event.ApplicationPeriodStarts = request.ApplicationPeriodStarts
	event.ApplicationPeriodEnds = request.ApplicationPeriodEnds
	event.BoardApproveDeadline = request.BoardApproveDeadline
	event.ParticipantsListPublishDeadline = request.ParticipantsListPublishDeadline
	event.MemberslistSubmissionDeadline = request.MemberslistSubmissionDeadline
	event.DraftProposalDeadline = request.DraftProposalDeadline
	event.FinalProposalDeadline = request.FinalProposalDeadline
	event.CandidatureDeadline = request.CandidatureDeadline
	event.BookletPublicationDeadline = request.BookletPublicationDeadline
	event.UpdatedBookletPublicationDeadline = request.UpdatedBookletPublicationDeadline
	event.Starts = request.Starts
	event.Ends = request.Ends
	event.Questions = request.Questions

	if err := db.Save(event).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, event)
}

// SetEventStatus moves an event between draft and published. The first
// publication stamps the publication date.
func SetEventStatus(c *gin.Context) {
	permissions := middleware.GetPermissions(c)
	if !permissions.ManageEvent {
		helpers.Forbidden(c, "You cannot change events' status.")
		return
	}

	event, ok := fetchEvent(c)
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

	if request.Status != models.EventStatusDraft && request.Status != models.EventStatusPublished {
		helpers.Validation(c, models.ValidationErrors{"status": []string{"Status should be one of these: draft, published."}})
		return
	}

	event.Status = request.Status
	if event.Status == models.EventStatusPublished && event.PublicationDate == nil {
		now := time.Now()
		event.PublicationDate = &now
	}

	if err := middleware.GetDB(c).Save(event).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, event)
}
