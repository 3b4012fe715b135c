package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxMessageLength  = 2000
	MaxReactionLength = 8
	MaxTitleLength    = 255
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator provides validation methods
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, &ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// HasErrors returns true if there are any validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Required checks if a string is not empty
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "This field is required")
		return false
	}
	return true
}

// MaxLength checks if a string doesn't exceed maximum length
func (v *Validator) MaxLength(field, value string, max int) bool {
	if utf8.RuneCountInString(value) > max {
		v.AddError(field, "Must be at most "+strconv.Itoa(max)+" characters")
		return false
	}
	return true
}

// ValidateRoomCode validates a join code
func (v *Validator) ValidateRoomCode(field, value string) bool {
	if !ValidRoomCode(value) {
		v.AddError(field, "Enter a 6-character code")
		return false
	}
	return true
}

// ValidateMessageBody validates a text chat message
func (v *Validator) ValidateMessageBody(field, value string) bool {
	if !v.Required(field, value) {
		return false
	}
	return v.MaxLength(field, strings.TrimSpace(value), MaxMessageLength)
}

// ValidateReaction validates a reaction emoji
func (v *Validator) ValidateReaction(field, value string) bool {
	if !ValidReaction(value) {
		v.AddError(field, "Reaction must be a single emoji")
		return false
	}
	return true
}

// ValidateOptionalTitle validates a catalog title when present
func (v *Validator) ValidateOptionalTitle(field, value string) bool {
	return v.MaxLength(field, value, MaxTitleLength)
}

// ValidReaction accepts a short run of symbol runes, which covers emoji
// with variation selectors and ZWJ sequences.
func ValidReaction(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > MaxReactionLength {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidateUUID validates a UUID string
func ValidateUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// SanitizeString removes potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes and control characters
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
