package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

func paxEventType(c *gin.Context) (string, bool) {
	eventType := c.Param("event_type")
	if eventType != models.EventTypeAgora && eventType != models.EventTypeEPM {
		helpers.BadRequest(c, "Event type should be one of these: agora, epm.")
		return "", false
	}
	return eventType, true
}

// UpsertPaxLimit creates or replaces the participant caps of a body for an
// event type.
func UpsertPaxLimit(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePaxLimits {
		helpers.Forbidden(c, "You cannot manage pax limits.")
		return
	}

	var request models.PaxLimit
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}
	if request.BodyID == 0 {
		helpers.Validation(c, models.ValidationErrors{"body_id": []string{"Body id should be set."}})
		return
	}
	if request.EventType != models.EventTypeAgora && request.EventType != models.EventTypeEPM {
		helpers.Validation(c, models.ValidationErrors{"event_type": []string{"Event type should be one of these: agora, epm."}})
		return
	}

	db := middleware.GetDB(c)
	var existing models.PaxLimit
	err := db.Where("body_id = ? AND event_type = ?", request.BodyID, request.EventType).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		helpers.Unexpected(c, err)
		return
	}

	if err == nil {
		existing.Delegate = request.Delegate
		existing.Envoy = request.Envoy
		existing.Observer = request.Observer
		existing.Visitor = request.Visitor
		if err := db.Save(&existing).Error; err != nil {
			helpers.RespondWithDomainError(c, err)
			return
		}
		helpers.Success(c, &existing)
		return
	}

	request.ID = 0
	if err := db.Create(&request).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}
	helpers.Success(c, &request)
}

func ListPaxLimits(c *gin.Context) {
	eventType, ok := paxEventType(c)
	if !ok {
		return
	}

	var limits []models.PaxLimit
	err := middleware.GetDB(c).Where("event_type = ?", eventType).Order("body_id ASC").Find(&limits).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, limits)
}

// GetPaxLimit returns the body's caps, falling back to the event-type default
// when no row exists.
func GetPaxLimit(c *gin.Context) {
	eventType, ok := paxEventType(c)
	if !ok {
		return
	}
	bodyID, ok := helpers.ParseID(c.Param("body_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid body id.")
		return
	}

	var limit models.PaxLimit
	err := middleware.GetDB(c).Where("body_id = ? AND event_type = ?", bodyID, eventType).First(&limit).Error
	if err == gorm.ErrRecordNotFound {
		helpers.Success(c, models.DefaultPaxLimit(bodyID, eventType))
		return
	}
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, &limit)
}

func DeletePaxLimit(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePaxLimits {
		helpers.Forbidden(c, "You cannot manage pax limits.")
		return
	}

	eventType, ok := paxEventType(c)
	if !ok {
		return
	}
	bodyID, ok := helpers.ParseID(c.Param("body_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid body id.")
		return
	}

	result := middleware.GetDB(c).
		Where("body_id = ? AND event_type = ?", bodyID, eventType).
		Delete(&models.PaxLimit{})
	if result.Error != nil {
		helpers.Unexpected(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		helpers.NotFound(c, "Pax limit is not found.")
		return
	}

	helpers.SuccessMessage(c, "Pax limit is deleted.")
}
