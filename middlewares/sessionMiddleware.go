package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/utils"
)

// OperatorSession is what the admin login stores under "Session:<token>".
type OperatorSession struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type SessionStore interface {
	GetObject(ctx context.Context, key string, dest interface{}) (bool, error)
}

func SessionKey(token string) string {
	return "Session:" + token
}

// SessionMiddleware resolves the "token" header to an operator. Requests
// without a token pass through with no operator set.
func SessionMiddleware(store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session OperatorSession
		exists, err := store.GetObject(c.Request.Context(), SessionKey(token), &session)
		if err != nil || !exists || session.ID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		name := session.Name
		if name == "" {
			name = session.Username
		}
		c.Request = c.Request.WithContext(utils.SetOperatorInContext(c.Request.Context(), session.ID, name))
		c.Next()
	}
}
