package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/elvisthlg/whisper-api/internal/api/errors"
)

// BearerAuth authenticates requests against a static bearer credential.
// The comparison is constant-time; an empty configured token rejects all
// requests rather than opening the service up.
func BearerAuth(token string) gin.HandlerFunc {
	expected := []byte("Bearer " + token)

	return func(c *gin.Context) {
		header := []byte(c.GetHeader("Authorization"))

		if token == "" || subtle.ConstantTimeCompare(header, expected) != 1 {
			apiErr := errors.NewUnauthorizedError("invalid or missing bearer token")
			apiErr.RequestID = c.GetString(RequestIDKey)
			c.AbortWithStatusJSON(apiErr.HTTPStatus(), apiErr)
			return
		}

		c.Next()
	}
}
