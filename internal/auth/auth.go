// Package auth implements the credential store and cookie sessions for the
// admin surface.
//
// Credentials live in the admins document with clear-text passwords. That
// reproduces the system this replaces verbatim; it is a documented property
// of the data format, not a recommendation.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/ecotree-app/ecotree/internal/domain"
)

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "ecotree_session"

// Session identifies a logged-in staff user. Educators carry the group
// their access is scoped to.
type Session struct {
	Username string
	Role     string
	GroupID  string
}

// IsEducator reports whether the session is group-scoped.
func (s Session) IsEducator() bool {
	return s.Role == domain.RoleEducator && s.GroupID != ""
}

// Service checks credentials and tracks sessions in memory. Sessions do not
// survive a restart; admins simply log in again.
type Service struct {
	store domain.Store

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewService creates an auth service.
func NewService(store domain.Store) *Service {
	return &Service{store: store, sessions: make(map[string]Session)}
}

// ─── Credentials ────────────────────────────────────────────────────────────

// credentials loads the admins document.
func (s *Service) credentials() ([]domain.Credential, error) {
	var admins []domain.Credential
	err := s.store.Load(domain.KeyAdmins, &admins)
	return admins, err
}

// Lookup finds a credential by username.
func (s *Service) Lookup(username string) (domain.Credential, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Credential{}, false, nil
	}
	admins, err := s.credentials()
	if err != nil {
		return domain.Credential{}, false, err
	}
	for _, a := range admins {
		if strings.TrimSpace(a.Username) == username {
			return a, true, nil
		}
	}
	return domain.Credential{}, false, nil
}

// AddOrUpdate upserts a credential. Role defaults to admin; educators
// should carry a group id.
func (s *Service) AddOrUpdate(username, password string, isStaff bool, role, groupID string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ErrInvalidInput
	}
	if role == "" {
		role = domain.RoleAdmin
	}
	entry := domain.Credential{
		Username: username,
		Password: password,
		IsStaff:  isStaff,
		Role:     role,
		GroupID:  groupID,
	}
	return s.store.Update(domain.KeyAdmins, func(tx domain.Tx) error {
		var admins []domain.Credential
		if err := tx.Load(&admins); err != nil {
			return err
		}
		for i := range admins {
			if strings.TrimSpace(admins[i].Username) == username {
				admins[i] = entry
				return tx.Save(admins)
			}
		}
		admins = append(admins, entry)
		return tx.Save(admins)
	})
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// Login verifies username/password and opens a session, returning its
// token. Non-staff credentials are rejected.
func (s *Service) Login(username, password string) (string, error) {
	cred, ok, err := s.Lookup(username)
	if err != nil {
		return "", err
	}
	if !ok || cred.Password != password {
		return "", domain.ErrInvalidCredentials
	}
	if !cred.IsStaff {
		return "", domain.ErrForbidden
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	role := cred.Role
	if role == "" {
		role = domain.RoleAdmin
	}
	s.mu.Lock()
	s.sessions[token] = Session{Username: cred.Username, Role: role, GroupID: cred.GroupID}
	s.mu.Unlock()
	return token, nil
}

// Resolve returns the session for token.
func (s *Service) Resolve(token string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

// Logout deletes the session for token. Unknown tokens are a no-op.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}
