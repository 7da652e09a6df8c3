package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database/models"
)

const (
	MinPasswordLength = auth.MinPasswordLength
	MaxPasswordLength = auth.MaxPasswordBytes // bytes, not characters
	MaxNameLength     = 128
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UUIDRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// Accepted due date layouts, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// IsValidPassword checks password length bounds. The upper bound is in
// bytes because that is what bcrypt limits.
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLength {
		return false, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return false, fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength)
	}
	return true, ""
}

// ParseRoles converts role names to roles, dropping duplicates. ok is false
// if any name is unknown.
func ParseRoles(names []string) ([]models.Role, bool) {
	roles := make([]models.Role, 0, len(names))
	seen := make(map[models.Role]bool, len(names))
	for _, name := range names {
		role := models.Role(strings.ToLower(strings.TrimSpace(name)))
		if role != models.RoleAdmin && role != models.RoleUser {
			return nil, false
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles, true
}

// ParseDate accepts an RFC 3339 timestamp, a datetime-local value or a
// plain date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}
