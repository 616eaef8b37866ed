package api

import (
	"errors"
	"net/http"

	"inventory-service/internal/models"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInsufficientStock, models.KindDuplicateKey, models.KindConflict:
		return http.StatusConflict
	case models.KindInvariantViolation:
		return http.StatusUnprocessableEntity
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its kind and context fields
func respondError(c *gin.Context, err error) {
	var e *models.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"details": err.Error(),
		})
		return
	}

	body := *e
	body.Message = err.Error()
	c.JSON(statusFor(e.Kind), body)
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
