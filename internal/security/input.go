package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxHandleLength bounds any user handle taken from a path parameter
const MaxHandleLength = 64

// ValidateHandle checks a platform handle before it is placed into an
// upstream URL. Platform-specific charset rules are left to the platform.
func ValidateHandle(handle string) error {
	if strings.TrimSpace(handle) == "" {
		return fmt.Errorf("handle is required")
	}

	if len(handle) > MaxHandleLength {
		return fmt.Errorf("handle exceeds maximum length of %d characters", MaxHandleLength)
	}

	if !utf8.ValidString(handle) {
		return fmt.Errorf("handle contains invalid UTF-8 encoding")
	}

	for _, r := range handle {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("handle contains invalid characters")
		}
	}

	return nil
}
