package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

func fetchPosition(c *gin.Context, eventID uint) (*models.Position, bool) {
	id, ok := helpers.ParseID(c.Param("position_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid position id.")
		return nil, false
	}

	var position models.Position
	err := middleware.GetDB(c).
		Where("id = ? AND event_id = ? AND deleted = ?", id, eventID, false).
		First(&position).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Position is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return nil, false
	}
	return &position, true
}

func CreatePosition(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePositions {
		helpers.Forbidden(c, "You cannot manage positions.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var position models.Position
	if err := c.ShouldBindJSON(&position); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}
	position.ID = 0
	position.EventID = event.ID
	position.Deleted = false
	if position.Status == "" {
		position.Status = "open"
	}

	if err := middleware.GetDB(c).Create(&position).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, &position)
}

func UpdatePosition(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePositions {
		helpers.Forbidden(c, "You cannot manage positions.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	position, ok := fetchPosition(c, event.ID)
	if !ok {
		return
	}

	var request models.Position
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	position.Name = request.Name
	position.Description = request.Description
	position.BodyID = request.BodyID
	position.Places = request.Places
	position.Starts = request.Starts
	position.Ends = request.Ends
	position.StartTerm = request.StartTerm
	position.EndTerm = request.EndTerm
	if request.Status != "" {
		position.Status = request.Status
	}

	if err := middleware.GetDB(c).Save(position).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, position)
}

// DeletePosition soft-deletes, candidatures keep their history.
func DeletePosition(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePositions {
		helpers.Forbidden(c, "You cannot manage positions.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	position, ok := fetchPosition(c, event.ID)
	if !ok {
		return
	}

	position.Deleted = true
	if err := middleware.GetDB(c).Save(position).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.SuccessMessage(c, "Position is deleted.")
}

func ListPositions(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var positions []models.Position
	err := middleware.GetDB(c).
		Where("event_id = ? AND deleted = ?", event.ID, false).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, positions)
}

// CreateCandidature submits a candidature for a position. Gated by the
// event's candidature deadline, one candidature per user per position.
func CreateCandidature(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	position, ok := fetchPosition(c, event.ID)
	if !ok {
		return
	}

	if !event.CanCandidateAt(time.Now()) {
		helpers.Forbidden(c, "The candidature deadline has passed.")
		return
	}
	if position.Status != "open" {
		helpers.Forbidden(c, "The position is closed for candidatures.")
		return
	}

	user := middleware.GetUser(c)

	db := middleware.GetDB(c)
	var existing int64
	err := db.Model(&models.Candidate{}).
		Where("position_id = ? AND user_id = ?", position.ID, user.ID).
		Count(&existing).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}
	if existing > 0 {
		helpers.Validation(c, models.ValidationErrors{"user_id": []string{"You have already applied for this position."}})
		return
	}

	var candidate models.Candidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}
	candidate.ID = 0
	candidate.PositionID = position.ID
	candidate.UserID = user.ID
	candidate.Status = models.CandidateStatusPending
	if candidate.FirstName == "" {
		candidate.FirstName = user.FirstName
	}
	if candidate.LastName == "" {
		candidate.LastName = user.LastName
	}
	if candidate.Email == "" {
		candidate.Email = user.Email
	}

	if err := db.Create(&candidate).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, &candidate)
}

func SetCandidatureStatus(c *gin.Context) {
	if !middleware.GetPermissions(c).ManagePositions {
		helpers.Forbidden(c, "You cannot manage positions.")
		return
	}

	event, ok := fetchEvent(c)
	if !ok {
		return
	}
	position, ok := fetchPosition(c, event.ID)
	if !ok {
		return
	}

	id, ok := helpers.ParseID(c.Param("candidate_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid candidate id.")
		return
	}

	db := middleware.GetDB(c)
	var candidate models.Candidate
	err := db.Where("id = ? AND position_id = ?", id, position.ID).First(&candidate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Candidature is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return
	}

	var request struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	candidate.Status = request.Status
	if err := db.Save(&candidate).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, &candidate)
}

// ListApprovedCandidatures is the public candidates listing: approved
// candidatures in full, pending ones reduced to id and status so the count is
// visible without leaking personal data.
func ListApprovedCandidatures(c *gin.Context) {
	event, ok := fetchEvent(c)
	if !ok {
		return
	}

	var positions []models.Position
	err := middleware.GetDB(c).
		Where("event_id = ? AND deleted = ?", event.ID, false).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	result := make([]gin.H, 0, len(positions))
	for i := range positions {
		position := &positions[i]

		var candidates []models.Candidate
		err := middleware.GetDB(c).
			Where("position_id = ? AND status <> ?", position.ID, models.CandidateStatusRejected).
			Order("id ASC").
			Find(&candidates).Error
		if err != nil {
			helpers.Unexpected(c, err)
			return
		}

		listed := make([]interface{}, 0, len(candidates))
		for j := range candidates {
			candidate := &candidates[j]
			if candidate.Status == models.CandidateStatusApproved {
				listed = append(listed, candidate)
			} else {
				listed = append(listed, gin.H{"id": candidate.ID, "status": candidate.Status})
			}
		}

		result = append(result, gin.H{
			"id":         position.ID,
			"name":       position.Name,
			"places":     position.Places,
			"status":     position.Status,
			"candidates": listed,
		})
	}

	helpers.Success(c, result)
}
