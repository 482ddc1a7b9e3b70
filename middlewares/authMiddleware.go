package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/utils"
)

// RequireOperator rejects requests that SessionMiddleware did not resolve to
// an operator.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.HasOperator(c.Request.Context()) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
