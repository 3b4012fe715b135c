package model

import "strings"

// Identity is the authenticated user as supplied by the external identity provider.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Name returns the display name, falling back to "Guest"
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return "Guest"
}

// IsZero reports whether no user is attached
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
