package handlers

import (
	"github.com/gin-gonic/gin"

	"role-service/internal/models"
)

// SuccessResponse sends a success response
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends a taxonomy error response with its mapped HTTP status
func ErrorResponse(c *gin.Context, err *models.SwitchError) {
	c.JSON(err.HTTPStatus(), models.APIResponse{
		Success: false,
		Error:   err,
	})
}
