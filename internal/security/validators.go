package security

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input length constraints
const (
	MaxSessionTitleLength = 200
	MinTitleLength        = 1
)

var (
	// PocketBase ID regex - 15 character alphanumeric
	pocketbaseIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]{15}$`)
	// UUID validation regex (for externally issued identifiers)
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// Title validation regex - Unicode letters, digits, spaces, apostrophes, hyphens, underscores, dots
	titleRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Dangerous characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
)

// ValidateRecordID validates that a string is a valid PocketBase ID or UUID.
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	if pocketbaseIDRegex.MatchString(id) {
		return nil
	}

	if uuidRegex.MatchString(strings.ToLower(id)) {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("malformed UUID: %w", err)
		}
		return nil
	}

	return fmt.Errorf("invalid ID format (expected 15-character PocketBase ID or UUID)")
}

// ValidateSessionTitle validates a session title with length and character
// constraints. Returns the sanitized title.
func ValidateSessionTitle(title string) (string, error) {
	title = strings.TrimSpace(title)

	if title == "" {
		return "", fmt.Errorf("title cannot be empty")
	}
	if len(title) < MinTitleLength {
		return "", fmt.Errorf("title too short (min %d characters)", MinTitleLength)
	}
	if len(title) > MaxSessionTitleLength {
		return "", fmt.Errorf("title too long (max %d characters)", MaxSessionTitleLength)
	}

	if !titleRegex.MatchString(title) {
		return "", fmt.Errorf("title contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}
	if dangerousCharsRegex.MatchString(title) {
		return "", fmt.Errorf("title contains potentially dangerous characters")
	}

	for _, r := range title {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("title contains control characters")
		}
	}

	return title, nil
}

// ValidateGazePoint checks that a sample's coordinates are finite viewport
// percentages (0-100 on both axes).
func ValidateGazePoint(x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("gaze coordinates must be finite numbers")
	}
	if x < 0 || x > 100 || y < 0 || y > 100 {
		return fmt.Errorf("gaze coordinates must be viewport percentages in [0, 100]")
	}
	return nil
}

// SanitizeErrorMessage removes sensitive information from error messages
// before they are surfaced to a caller.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	sensitivePatterns := []string{
		"sql",
		"database",
		"record",
		"collection",
		"pocketbase",
		"constraint",
		"foreign key",
		"unique",
		"duplicate key",
		"no rows",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}
