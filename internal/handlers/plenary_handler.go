package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

func fetchPlenaryEvent(c *gin.Context) (*models.Event, bool) {
	event, ok := fetchEvent(c)
	if !ok {
		return nil, false
	}
	if event.Type != models.EventTypeAgora {
		helpers.BadRequest(c, "Plenaries are only available for Agora events.")
		return nil, false
	}
	return event, true
}

func fetchPlenary(c *gin.Context, eventID uint) (*models.Plenary, bool) {
	id, ok := helpers.ParseID(c.Param("plenary_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid plenary id.")
		return nil, false
	}

	var plenary models.Plenary
	err := middleware.GetDB(c).Where("id = ? AND event_id = ?", id, eventID).First(&plenary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Plenary is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return nil, false
	}
	return &plenary, true
}

func CreatePlenary(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePlenaries {
		helpers.Forbidden(c, "You cannot manage plenaries.")
		return
	}

	event, ok := fetchPlenaryEvent(c)
	if !ok {
		return
	}

	var plenary models.Plenary
	if err := c.ShouldBindJSON(&plenary); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}
	plenary.ID = 0
	plenary.EventID = event.ID

	if err := middleware.GetDB(c).Create(&plenary).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, &plenary)
}

func UpdatePlenary(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePlenaries {
		helpers.Forbidden(c, "You cannot manage plenaries.")
		return
	}

	event, ok := fetchPlenaryEvent(c)
	if !ok {
		return
	}
	plenary, ok := fetchPlenary(c, event.ID)
	if !ok {
		return
	}

	var request models.Plenary
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	plenary.Name = request.Name
	plenary.Starts = request.Starts
	plenary.Ends = request.Ends

	if err := middleware.GetDB(c).Save(plenary).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, plenary)
}

func ListPlenaries(c *gin.Context) {
	if !middleware.GetPermissions(c).SeePlenaries() {
		helpers.Forbidden(c, "You cannot see plenaries.")
		return
	}

	event, ok := fetchPlenaryEvent(c)
	if !ok {
		return
	}

	var plenaries []models.Plenary
	err := middleware.GetDB(c).Where("event_id = ?", event.ID).Order("starts ASC").Find(&plenaries).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, plenaries)
}

// GetPlenary returns a plenary with its attendance intervals and the seconds
// each application spent inside, clamped to the plenary window.
func GetPlenary(c *gin.Context) {
	if !middleware.GetPermissions(c).SeePlenaries() {
		helpers.Forbidden(c, "You cannot see plenaries.")
		return
	}

	event, ok := fetchPlenaryEvent(c)
	if !ok {
		return
	}
	plenary, ok := fetchPlenary(c, event.ID)
	if !ok {
		return
	}

	var attendances []models.Attendance
	err := middleware.GetDB(c).Where("plenary_id = ?", plenary.ID).Order("starts ASC").Find(&attendances).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	seconds := make(map[uint]float64)
	for i := range attendances {
		seconds[attendances[i].ApplicationID] += attendances[i].SecondsWithin(plenary)
	}

	helpers.Success(c, gin.H{
		"plenary":     plenary,
		"attendances": attendances,
		"seconds":     seconds,
		"duration":    plenary.Duration(),
	})
}

// MarkAttendance toggles a participant's presence: an open interval is
// closed, otherwise a new one starts. The participant is resolved by numeric
// application id or by statutory id and must be a delegate or an envoy.
func MarkAttendance(c *gin.Context) {
	if !middleware.GetPermissions(c).MarkAttendance {
		helpers.Forbidden(c, "You cannot mark attendance.")
		return
	}

	event, ok := fetchPlenaryEvent(c)
	if !ok {
		return
	}
	plenary, ok := fetchPlenary(c, event.ID)
	if !ok {
		return
	}

	now := time.Now()
	if now.After(plenary.Ends) {
		helpers.Forbidden(c, "The plenary has already ended.")
		return
	}

	var request struct {
		ApplicationID string `json:"application_id"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.ApplicationID == "" {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	db := middleware.GetDB(c)
	var application models.Application
	query := db.Where("event_id = ? AND cancelled = ?", event.ID, false)
	if id, ok := helpers.ParseID(request.ApplicationID); ok {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("statutory_id = ?", request.ApplicationID)
	}
	if err := query.First(&application).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Application is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return
	}

	if application.ParticipantType != models.ParticipantDelegate && application.ParticipantType != models.ParticipantEnvoy {
		helpers.Forbidden(c, "Only delegates and envoys are tracked on plenaries.")
		return
	}

	var open models.Attendance
	err := db.Where("plenary_id = ? AND application_id = ? AND ends IS NULL", plenary.ID, application.ID).
		First(&open).Error
	if err == nil {
		open.Ends = &now
		if err := db.Save(&open).Error; err != nil {
			helpers.Unexpected(c, err)
			return
		}
		helpers.Success(c, &open)
		return
	}
	if err != gorm.ErrRecordNotFound {
		helpers.Unexpected(c, err)
		return
	}

	attendance := models.Attendance{
		PlenaryID:     plenary.ID,
		ApplicationID: application.ID,
		Starts:        now,
	}
	if err := db.Create(&attendance).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, &attendance)
}
