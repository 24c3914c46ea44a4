package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/metrics"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// userKey is the gin context key the authenticated user is stored under.
const userKey = "prompthub/user"

// requestLogger logs every request and feeds the HTTP metrics. The route
// template (not the raw path) labels the metrics so ID segments don't
// explode the cardinality.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())
		logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP())
	}
}

// cors answers preflight requests and stamps the allow headers on every
// response. Origins is the configured allow list; "*" allows any.
func cors(origins []string) gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
			// Same-origin or non-browser caller; nothing to stamp.
		case allowAny:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bearerAuth resolves the Authorization bearer key to a user through the
// store and aborts with the auth envelope when it cannot.
func bearerAuth(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortAuth(c, "Authorization header missing")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			abortAuth(c, "Authorization header must be a bearer token")
			return
		}

		key := strings.TrimSpace(header[len(prefix):])
		if key == "" {
			abortAuth(c, "bearer token is empty")
			return
		}

		user, err := st.GetUserByAPIKey(c.Request.Context(), key)
		if err != nil {
			abortAuth(c, "invalid API key")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func abortAuth(c *gin.Context, msg string) {
	err := apperrors.AuthRequired(msg)
	c.AbortWithStatusJSON(err.HTTPStatus, errorBody{Code: err.Code, Message: err.Message})
}

// currentUser returns the authenticated caller, nil on unauthenticated
// routes.
func currentUser(c *gin.Context) *types.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*types.User)
	return user
}

// callerID returns the authenticated caller's ID, "" when absent.
func callerID(c *gin.Context) string {
	if u := currentUser(c); u != nil {
		return u.ID
	}
	return ""
}
