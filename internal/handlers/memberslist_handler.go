package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/models"
)

// fetchAgora loads the event and rejects everything that is not an Agora.
// Members lists, plenaries and attendance only exist there.
func fetchAgora(c *gin.Context) (*models.Event, bool) {
	event, ok := fetchEvent(c)
	if !ok {
		return nil, false
	}
	if event.Type != models.EventTypeAgora {
		helpers.BadRequest(c, "Memberslists are only available for Agora events.")
		return nil, false
	}
	return event, true
}

// UploadMemberslist creates or replaces a body's members list. The fee_paid
// flag never comes from the payload, it survives from the previous upload.
func UploadMemberslist(c *gin.Context) {
	event, ok := fetchAgora(c)
	if !ok {
		return
	}
	bodyID, ok := helpers.ParseID(c.Param("body_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid body id.")
		return
	}

	user := middleware.GetUser(c)
	permissions := middleware.GetPermissions(c)

	db := middleware.GetDB(c)
	var existing models.MembersList
	err := db.Where("event_id = ? AND body_id = ?", event.ID, bodyID).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		helpers.Unexpected(c, err)
		return
	}
	found := err == nil

	if found {
		if !permissions.EditMemberslist && !permissions.UploadMemberslist {
			helpers.Forbidden(c, "You cannot edit this memberslist.")
			return
		}
	} else {
		if !permissions.UploadMemberslist {
			helpers.Forbidden(c, "You cannot upload a memberslist for this body.")
			return
		}
	}
	if !user.IsMemberOf(bodyID) && !permissions.EditMemberslist {
		helpers.Forbidden(c, "You are not a member of this body.")
		return
	}

	var request struct {
		Currency string            `json:"currency"`
		Members  models.MemberList `json:"members"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	list := &existing
	if !found {
		list = &models.MembersList{EventID: event.ID, BodyID: bodyID}
	}
	list.UserID = user.ID
	list.Currency = request.Currency
	list.Members = request.Members

	if err := db.Save(list).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	if err := middleware.GetApplications(c).RestampMemberslist(event, list); err != nil {
		helpers.Unexpected(c, err)
		return
	}

	// The list is stored before the notification goes out; a failed
	// dispatch still surfaces to the caller.
	if address := c.GetString("memberslist_notification_email"); address != "" {
		err := middleware.GetMailer(c).Send(mailer.Mail{
			To:       []string{address},
			Subject:  fmt.Sprintf("A memberslist was uploaded for %s", event.Name),
			Template: "statutory_memberslist.html",
			Parameters: map[string]interface{}{
				"event_name": event.Name,
				"body_id":    bodyID,
				"first_name": user.FirstName,
				"last_name":  user.LastName,
			},
		})
		if err != nil {
			helpers.Unexpected(c, err)
			return
		}
	}

	helpers.Success(c, list)
}

func ListMemberslists(c *gin.Context) {
	if !middleware.GetPermissions(c).SeeMemberslists {
		helpers.Forbidden(c, "You cannot see memberslists.")
		return
	}

	event, ok := fetchAgora(c)
	if !ok {
		return
	}

	var lists []models.MembersList
	err := middleware.GetDB(c).Where("event_id = ?", event.ID).Order("body_id ASC").Find(&lists).Error
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	helpers.Success(c, lists)
}

func GetMemberslist(c *gin.Context) {
	event, ok := fetchAgora(c)
	if !ok {
		return
	}
	bodyID, ok := helpers.ParseID(c.Param("body_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid body id.")
		return
	}

	user := middleware.GetUser(c)
	if !middleware.GetPermissions(c).SeeMemberslists && !user.IsMemberOf(bodyID) {
		helpers.Forbidden(c, "You cannot see this memberslist.")
		return
	}

	var list models.MembersList
	err := middleware.GetDB(c).Where("event_id = ? AND body_id = ?", event.ID, bodyID).First(&list).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Memberslist is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return
	}

	helpers.Success(c, &list)
}

func SetMemberslistFeePaid(c *gin.Context) {
	if !middleware.GetPermissions(c).SetMemberslistFeePaid {
		helpers.Forbidden(c, "You cannot mark memberslist fees as paid.")
		return
	}

	event, ok := fetchAgora(c)
	if !ok {
		return
	}
	bodyID, ok := helpers.ParseID(c.Param("body_id"))
	if !ok {
		helpers.BadRequest(c, "Invalid body id.")
		return
	}

	var request struct {
		FeePaid *bool `json:"fee_paid"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.FeePaid == nil {
		helpers.BadRequest(c, "Invalid request body.")
		return
	}

	db := middleware.GetDB(c)
	var list models.MembersList
	err := db.Where("event_id = ? AND body_id = ?", event.ID, bodyID).First(&list).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.NotFound(c, "Memberslist is not found.")
		} else {
			helpers.Unexpected(c, err)
		}
		return
	}

	list.FeePaid = *request.FeePaid
	if err := db.Save(&list).Error; err != nil {
		helpers.RespondWithDomainError(c, err)
		return
	}

	helpers.Success(c, &list)
}

// ListMissingMemberslists returns the bodies that should have submitted a
// members list for the Agora but have not.
func ListMissingMemberslists(c *gin.Context) {
	if !middleware.GetPermissions(c).SeeMemberslists {
		helpers.Forbidden(c, "You cannot see memberslists.")
		return
	}

	event, ok := fetchAgora(c)
	if !ok {
		return
	}

	bodies, err := middleware.GetCore(c).GetBodies(middleware.GetToken(c))
	if err != nil {
		helpers.Unexpected(c, err)
		return
	}

	var lists []models.MembersList
	if err := middleware.GetDB(c).Where("event_id = ?", event.ID).Find(&lists).Error; err != nil {
		helpers.Unexpected(c, err)
		return
	}
	submitted := make(map[uint]bool, len(lists))
	for _, list := range lists {
		submitted[list.BodyID] = true
	}

	missing := make([]core.Body, 0)
	for _, body := range bodies {
		if submitted[body.ID] {
			continue
		}
		expected := false
		for _, bodyType := range models.MemberslistBodyTypes {
			if body.Type == bodyType {
				expected = true
				break
			}
		}
		if expected {
			missing = append(missing, body)
		}
	}

	helpers.Success(c, missing)
}
