package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iconicplus/shell/internal/shared/types"
)

// Local is an in-process email/password identity provider. It backs the
// "email" provider tag in development and tests, where no hosted auth
// service is configured.
type Local struct {
	mu      sync.Mutex
	users   map[string]*localUser // keyed by lowercased email
	current *types.SessionRecord
	em      emitter
}

type localUser struct {
	id           string
	email        string
	name         string
	passwordHash string
}

// NewLocal creates an empty local provider.
func NewLocal() *Local {
	return &Local{users: make(map[string]*localUser)}
}

// Register creates a user account. Name may be empty; projection falls
// back to the email downstream.
func (l *Local) Register(email, password, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.users[email]; exists {
		return fmt.Errorf("account already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("password hashing failed: %w", err)
	}

	l.users[email] = &localUser{
		id:           uuid.New().String(),
		email:        email,
		name:         name,
		passwordHash: string(hash),
	}
	return nil
}

// Login authenticates and installs a session, emitting a change event.
func (l *Local) Login(email, password string) (*types.SessionRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	user, exists := l.users[email]
	if !exists {
		l.mu.Unlock()
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.passwordHash), []byte(password)); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("invalid credentials")
	}

	rec := &types.SessionRecord{
		UserID:    user.id,
		Email:     user.email,
		Name:      user.name,
		Provider:  types.ProviderEmail,
		Token:     generateToken(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	l.current = rec
	l.mu.Unlock()

	l.em.emit(rec)
	return rec, nil
}

// CurrentSession returns the active session, dropping it once expired.
func (l *Local) CurrentSession(ctx context.Context) (*types.SessionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && time.Now().After(l.current.ExpiresAt) {
		l.current = nil
	}
	return l.current, nil
}

// OnSessionChange registers a listener; the disposer stops deliveries.
func (l *Local) OnSessionChange(fn Listener) func() {
	return l.em.subscribe(fn)
}

// SignOut clears the active session and notifies listeners.
func (l *Local) SignOut(ctx context.Context) error {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()

	l.em.emit(nil)
	return nil
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means no secure tokens are possible at all
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.URLEncoding.EncodeToString(b)
}
