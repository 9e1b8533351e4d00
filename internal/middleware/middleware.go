package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/core"
	"github.com/aegee/statutory/internal/helpers"
	"github.com/aegee/statutory/internal/mailer"
	"github.com/aegee/statutory/internal/service"
)

func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func CoreMiddleware(client core.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("core", client)
		c.Next()
	}
}

func MailerMiddleware(client mailer.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("mailer", client)
		c.Next()
	}
}

// ApplicationServiceMiddleware injects the shared engine instance. It has to
// be a single instance so its per-event locks actually serialize allocation.
func ApplicationServiceMiddleware(applications *service.ApplicationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("applications", applications)
		c.Next()
	}
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}

// AuthMiddleware resolves the caller against the core registry: user identity
// and permissions both come from there, this service stores neither.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Auth-Token")
		if token == "" {
			helpers.Unauthorized(c, "No auth token provided.")
			return
		}

		registry := GetCore(c)

		user, err := registry.GetMe(token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) {
				helpers.Unauthorized(c, "Your token is not valid.")
				return
			}
			helpers.Unexpected(c, err)
			return
		}

		permissions, err := registry.GetMyPermissions(token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) {
				helpers.Unauthorized(c, "Your token is not valid.")
				return
			}
			helpers.Unexpected(c, err)
			return
		}

		c.Set("user", user)
		c.Set("permissions", permissions)
		c.Set("token", token)
		c.Next()
	}
}

func GetDB(c *gin.Context) *gorm.DB {
	return c.MustGet("db").(*gorm.DB)
}

func GetCore(c *gin.Context) core.Client {
	return c.MustGet("core").(core.Client)
}

func GetMailer(c *gin.Context) mailer.Client {
	return c.MustGet("mailer").(mailer.Client)
}

func GetUser(c *gin.Context) *core.User {
	return c.MustGet("user").(*core.User)
}

func GetPermissions(c *gin.Context) *core.Permissions {
	return c.MustGet("permissions").(*core.Permissions)
}

func GetToken(c *gin.Context) string {
	return c.MustGet("token").(string)
}

func GetApplications(c *gin.Context) *service.ApplicationService {
	return c.MustGet("applications").(*service.ApplicationService)
}
