package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

const userIDKey = "ecoroute.user_id"

// metricsMiddleware records request counts and latency per matched route
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitoring.RecordAPIRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// sessionMiddleware attaches the user id from a valid bearer session token.
// Requests with no token, or a token that fails verification, continue as
// anonymous; endpoints that need a user reject them with requireUser.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := core.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		userID, err := core.VerifySession(h.secret, token)
		if err != nil {
			if !errors.Is(err, core.ErrMissingToken) {
				h.logger.Debug("ignoring invalid session token", "error", err, "path", c.Request.URL.Path)
			}
			c.Next()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// requireUser rejects requests without an authenticated session
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := sessionUser(c); !ok {
			errorJSON(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func sessionUser(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}
