package domain

import (
	"fmt"
	"strings"
)

type identityKind uint8

const (
	identityUnset identityKind = iota
	identityUser
	identityGuest
)

// Identity is the owner of a cart or an order: either an authenticated user
// or a guest session, never both. The zero value is not a valid identity.
type Identity struct {
	kind         identityKind
	userID       int64
	sessionToken string
}

func Authenticated(userID int64) Identity {
	return Identity{kind: identityUser, userID: userID}
}

func Guest(sessionToken string) Identity {
	return Identity{kind: identityGuest, sessionToken: strings.TrimSpace(sessionToken)}
}

func (i Identity) IsAuthenticated() bool { return i.kind == identityUser }
func (i Identity) IsGuest() bool         { return i.kind == identityGuest }

func (i Identity) UserID() (int64, bool) {
	return i.userID, i.kind == identityUser
}

func (i Identity) SessionToken() (string, bool) {
	return i.sessionToken, i.kind == identityGuest
}

func (i Identity) Validate() error {
	switch i.kind {
	case identityUser:
		if i.userID <= 0 {
			return fmt.Errorf("%w: user id must be positive", ErrInvalidIdentity)
		}
	case identityGuest:
		if i.sessionToken == "" {
			return fmt.Errorf("%w: guest session token is empty", ErrInvalidIdentity)
		}
	default:
		return ErrInvalidIdentity
	}
	return nil
}

// Matches reports whether the identity owns a record persisted with the given
// nullable owner columns.
func (i Identity) Matches(userID *int64, sessionID *string) bool {
	switch i.kind {
	case identityUser:
		return userID != nil && *userID == i.userID
	case identityGuest:
		return sessionID != nil && *sessionID == i.sessionToken
	}
	return false
}

// Key is a stable map key for the identity.
func (i Identity) Key() string {
	switch i.kind {
	case identityUser:
		return fmt.Sprintf("user:%d", i.userID)
	case identityGuest:
		return "guest:" + i.sessionToken
	}
	return ""
}

func (i Identity) String() string {
	switch i.kind {
	case identityUser:
		return fmt.Sprintf("user:%d", i.userID)
	case identityGuest:
		token := i.sessionToken
		if len(token) > 8 {
			token = token[:8] + "..."
		}
		return "guest:" + token
	}
	return "anonymous"
}
