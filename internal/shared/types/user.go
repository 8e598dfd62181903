package types

import "time"

// AuthProvider identifies the identity provider that authenticated a user
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
)

// User represents an authenticated user projected from a provider session.
// Immutable once constructed; replaced wholesale on auth-state change.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Name     string       `json:"name"`
	Avatar   string       `json:"avatar"`
	Provider AuthProvider `json:"provider"`
}

// SessionRecord is the raw session shape exposed by an identity provider.
// Name and AvatarURL are optional; Email is required for projection.
type SessionRecord struct {
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	Name      string       `json:"name,omitempty"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	Provider  AuthProvider `json:"provider"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

// AuthStats contains auth controller statistics
type AuthStats struct {
	SignedIn bool    `json:"signed_in"`
	UserID   *string `json:"user_id,omitempty"`
}
