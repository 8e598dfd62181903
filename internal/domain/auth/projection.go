package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/iconicplus/shell/internal/shared/types"
)

// avatarService renders a deterministic identicon per email when the
// provider supplies no avatar.
const avatarService = "https://api.dicebear.com/7.x/avataaars/svg"

// ProjectUser builds a User from a raw provider session record. The email
// is the one required field; a record without it is malformed and projects
// to no user. Missing display names fall back to the email, and missing
// avatars fall back to a generated identicon seeded by the email.
func ProjectUser(rec *types.SessionRecord) (*types.User, error) {
	if rec == nil {
		return nil, nil
	}
	email := strings.TrimSpace(rec.Email)
	if email == "" {
		return nil, fmt.Errorf("session record for user %q has no email", rec.UserID)
	}

	name := rec.Name
	if name == "" {
		name = email
	}
	avatar := rec.AvatarURL
	if avatar == "" {
		avatar = fmt.Sprintf("%s?seed=%s", avatarService, url.QueryEscape(email))
	}
	provider := rec.Provider
	if provider == "" {
		provider = types.ProviderEmail
	}

	return &types.User{
		ID:       rec.UserID,
		Email:    email,
		Name:     name,
		Avatar:   avatar,
		Provider: provider,
	}, nil
}
