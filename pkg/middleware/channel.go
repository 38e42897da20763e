package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// Key type so the context value cannot collide with other packages.
type channelKey struct{}

var ChannelContextKey = channelKey{}

// deriveChannelFromAPIKey guesses the caller channel from the API key pattern.
func deriveChannelFromAPIKey(key string) string {
	switch {
	case strings.HasPrefix(key, "op_"):
		return "operador"
	case strings.HasPrefix(key, "staff_"):
		return "staff"
	case strings.HasPrefix(key, "kiosk_"):
		return "kiosko"
	default:
		return "api"
	}
}

// Channel tags the request context with the caller channel based on x-api-key,
// so services can log which surface (operator app, staff dashboard, kiosk)
// triggered an operation.
func Channel() gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := "api"
		if key := c.GetHeader("x-api-key"); key != "" {
			channel = deriveChannelFromAPIKey(key)
		}

		ctx := context.WithValue(c.Request.Context(), ChannelContextKey, channel)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// FromChannel reports whether the context originates from the given channel.
func FromChannel(ctx context.Context, want string) bool {
	return ChannelName(ctx) == want
}

// ChannelName returns the caller channel tagged on the context, or "api" when
// the request never went through the Channel middleware.
func ChannelName(ctx context.Context) string {
	if ch, ok := ctx.Value(ChannelContextKey).(string); ok {
		return ch
	}
	return "api"
}
