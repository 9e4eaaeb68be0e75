package response

import (
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// WriteError aborts the chain with an {"error": message} body.
func WriteError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
