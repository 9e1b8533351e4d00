package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aegee/statutory/config"
	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/handlers"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/middleware"
	"github.com/aegee/statutory/internal/service"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	coreClient := core.NewHTTPClient(cfg.CoreURL)
	mailerClient := mailer.NewHTTPClient(cfg.MailerURL)

	r := gin.Default()

	SetupRoutes(r, db, coreClient, mailerClient, cfg.MemberslistNotificationEmail)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

// SetupRoutes wires the middleware chain and the route table. It is exported
// so handler tests can run against the same engine the binary serves.
func SetupRoutes(r *gin.Engine, db *gorm.DB, coreClient core.Client, mailerClient mailer.Client, memberslistNotificationEmail string) {
	applications := service.NewApplicationService(db, coreClient, mailerClient)

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.CoreMiddleware(coreClient))
	r.Use(middleware.MailerMiddleware(mailerClient))
	r.Use(middleware.ApplicationServiceMiddleware(applications))
	r.Use(func(c *gin.Context) {
		c.Set("memberslist_notification_email", memberslistNotificationEmail)
		c.Next()
	})
	r.Use(middleware.AuthMiddleware())

	events := r.Group("/events")
	{
		events.POST("", handlers.CreateEvent)
		events.GET("", handlers.ListEvents)
		events.GET("/mine", handlers.ListMyEvents)
		events.GET("/:event_id", handlers.GetEvent)
		events.PUT("/:event_id", handlers.UpdateEvent)
		events.PUT("/:event_id/status", handlers.SetEventStatus)

		events.POST("/:event_id/applications", handlers.CreateApplication)
		events.GET("/:event_id/applications", handlers.ListApplications)
		events.GET("/:event_id/applications/me", handlers.GetMyApplication)
		events.PUT("/:event_id/applications/:application_id/status", handlers.SetApplicationStatus)
		events.PUT("/:event_id/applications/:application_id/comment", handlers.SetApplicationComment)
		events.PUT("/:event_id/applications/:application_id/cancel", handlers.CancelApplication)
		events.PUT("/:event_id/applications/:application_id/confirmed", handlers.SetApplicationConfirmed)
		events.PUT("/:event_id/applications/:application_id/attended", handlers.SetApplicationAttended)
		events.PUT("/:event_id/applications/:application_id/departed", handlers.SetApplicationDeparted)
		events.PUT("/:event_id/applications/:application_id/registered", handlers.SetApplicationRegistered)
		events.GET("/:event_id/participants", handlers.ListParticipants)

		events.GET("/:event_id/memberslists", handlers.ListMemberslists)
		events.GET("/:event_id/memberslists/missing", handlers.ListMissingMemberslists)
		events.GET("/:event_id/memberslists/:body_id", handlers.GetMemberslist)
		events.PUT("/:event_id/memberslists/:body_id", handlers.UploadMemberslist)
		events.PUT("/:event_id/memberslists/:body_id/fee_paid", handlers.SetMemberslistFeePaid)

		events.POST("/:event_id/plenaries", handlers.CreatePlenary)
		events.GET("/:event_id/plenaries", handlers.ListPlenaries)
		events.GET("/:event_id/plenaries/:plenary_id", handlers.GetPlenary)
		events.PUT("/:event_id/plenaries/:plenary_id", handlers.UpdatePlenary)
		events.POST("/:event_id/plenaries/:plenary_id/attendance", handlers.MarkAttendance)

		events.POST("/:event_id/positions", handlers.CreatePosition)
		events.GET("/:event_id/positions", handlers.ListPositions)
		events.GET("/:event_id/positions/approved", handlers.ListApprovedCandidatures)
		events.PUT("/:event_id/positions/:position_id", handlers.UpdatePosition)
		events.DELETE("/:event_id/positions/:position_id", handlers.DeletePosition)
		events.POST("/:event_id/positions/:position_id/candidates", handlers.CreateCandidature)
		events.PUT("/:event_id/positions/:position_id/candidates/:candidate_id/status", handlers.SetCandidatureStatus)

		events.POST("/:event_id/massmailer", handlers.SendMassmailer)
	}

	paxLimits := r.Group("/paxlimits")
	{
		paxLimits.POST("", handlers.UpsertPaxLimit)
		paxLimits.GET("/:event_type", handlers.ListPaxLimits)
		paxLimits.GET("/:event_type/:body_id", handlers.GetPaxLimit)
		paxLimits.DELETE("/:event_type/:body_id", handlers.DeletePaxLimit)
	}
}
