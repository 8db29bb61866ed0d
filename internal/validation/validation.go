// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameLen     = 255
	minPasswordLen = 8
	maxPasswordLen = 128
	maxURLLen      = 500
)

// Names that collide with platform accounts.
var reservedUsernames = map[string]struct{}{
	"pipe": {},
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("name is required")
	}
	if len(username) > maxNameLen {
		return fmt.Errorf("name too long (max %d characters)", maxNameLen)
	}
	if !utf8.ValidString(username) {
		return fmt.Errorf("name must be valid UTF-8")
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' {
			return fmt.Errorf("name cannot contain whitespace, control characters or slashes")
		}
	}
	if _, reserved := reservedUsernames[username]; reserved {
		return fmt.Errorf("the username '%s' is reserved", username)
	}
	return nil
}

// ValidatePassword checks the password length bounds.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	// bcrypt ignores anything past 72 bytes; 128 keeps requests bounded.
	if len(password) > maxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}
	return nil
}

// ValidateMediaURL accepts an empty string or an absolute http(s) URL.
func ValidateMediaURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxURLLen {
		return fmt.Errorf("%s must not exceed %d characters", field, maxURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http or https URL", field)
	}
	return nil
}

// ValidateEmojiName checks a reaction's emoji name.
func ValidateEmojiName(name string) error {
	if name == "" {
		return fmt.Errorf("emoji_name is required")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("emoji_name too long (max %d characters)", maxNameLen)
	}
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("emoji_name cannot contain whitespace")
	}
	return nil
}

// ValidateNGWord checks a banned word. Words match as substrings, so an
// all-whitespace word would purge nearly every comment.
func ValidateNGWord(word string) error {
	if strings.TrimSpace(word) == "" {
		return fmt.Errorf("ng_word is required")
	}
	if len(word) > maxNameLen {
		return fmt.Errorf("ng_word too long (max %d characters)", maxNameLen)
	}
	if strings.ContainsAny(word, "\r\n") {
		return fmt.Errorf("ng_word must be a single line")
	}
	return nil
}
