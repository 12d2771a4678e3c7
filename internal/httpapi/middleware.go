package httpapi

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"launchpad-index/internal/httpapi/httputil"
	"launchpad-index/internal/observability"
)

// Cron trigger authentication errors.
var (
	ErrSecretNotConfigured = errors.New("cron secret not configured")
	ErrUnauthorized        = errors.New("unauthorized")
)

// CheckSecret compares a provided trigger secret with the configured one.
// An empty configured secret refuses every caller.
func CheckSecret(configured, provided string) error {
	if configured == "" {
		return ErrSecretNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ProvidedSecret extracts "Authorization: Bearer <s>" or "X-Cron-Secret: <s>".
func ProvidedSecret(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Cron-Secret"))
}

// CronAuth rejects trigger requests without the configured secret.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := CheckSecret(secret, ProvidedSecret(c)); err != nil {
			httputil.Unauthorized(c, err.Error())
			return
		}
		c.Next()
	}
}

// MetricsMiddleware records request count and latency per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		observability.RecordHTTPRequest(c.Request.Method, path, status, time.Since(start))
	}
}
