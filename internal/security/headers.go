package security

import (
	"github.com/gin-gonic/gin"
)

// HeadersConfig controls the response security headers
type HeadersConfig struct {
	// EnableHSTS adds Strict-Transport-Security; only set behind HTTPS
	EnableHSTS bool
}

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware(config HeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// X-Frame-Options: Prevent clickjacking
		c.Header("X-Frame-Options", "DENY")

		// X-Content-Type-Options: Prevent MIME sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if config.EnableHSTS {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
