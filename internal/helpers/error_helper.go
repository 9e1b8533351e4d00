package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegee/statutory/internal/models"
)

// Every response uses the same envelope: success plus either data, a message,
// or a field->reasons errors map for validation failures.

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func SuccessMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func SuccessWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "meta": meta})
}

func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": message})
}

func NotFound(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "message": message})
}

func Validation(c *gin.Context, errs models.ValidationErrors) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": errs})
}

func Unexpected(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
}

// RespondWithDomainError maps an engine error onto the right response class:
// validation errors become 422s with the field map, everything else is an
// unexpected 500.
func RespondWithDomainError(c *gin.Context, err error) {
	var validationErrs models.ValidationErrors
	if errors.As(err, &validationErrs) {
		Validation(c, validationErrs)
		return
	}
	Unexpected(c, err)
}
