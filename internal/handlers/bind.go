package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/territory-mapper/internal/errors"
)

// bindQuery binds query parameters and writes the error response on failure.
func bindQuery(c *gin.Context, req interface{}) bool {
	return handleBindError(c, c.ShouldBindQuery(req), "Invalid query parameters")
}

// bindJSON binds a JSON body and writes the error response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	return handleBindError(c, c.ShouldBindJSON(req), "Invalid request body")
}

func handleBindError(c *gin.Context, err error, message string) bool {
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return false
	}
	apierrors.BadRequest(c, message, nil)
	return false
}
