// Package session tracks who is signed in and whether their profile exists.
//
// A user moves through three states:
//
//	signed_out -> needs_profile -> complete
//	signed_out -> complete
//
// Federated sign-ins skip needs_profile because a username is derived from the
// email address. Every transition is pushed to the registered listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tonic56/coinfolio/internal/identity"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

type State string

const (
	SignedOut    State = "signed_out"
	NeedsProfile State = "needs_profile"
	Complete     State = "complete"
)

// Identity is the authenticated caller, passed explicitly to every operation.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Provider string    `json:"provider"`
}

func (i Identity) Federated() bool {
	return i.Provider == identity.ProviderGoogle
}

type Status struct {
	State    State           `json:"state"`
	Identity *Identity       `json:"identity,omitempty"`
	Profile  *models.Profile `json:"profile,omitempty"`
}

type Listener func(Status)

type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Create(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error)
	SetUsername(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error)
}

type SignUpRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Username        string
	CaptchaToken    string
}

type Manager struct {
	log         *slog.Logger
	profiles    ProfileStore
	provider    identity.Provider
	redirectURL string

	mu        sync.RWMutex
	listeners []Listener
}

func NewManager(log *slog.Logger, profiles ProfileStore, provider identity.Provider, redirectURL string) *Manager {
	return &Manager{
		log:         log,
		profiles:    profiles,
		provider:    provider,
		redirectURL: redirectURL,
	}
}

func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Establish resolves the state of a freshly established session. A nil
// identity means nobody is signed in.
func (m *Manager) Establish(ctx context.Context, id *Identity) (Status, error) {
	const op = "session.Establish"

	if id == nil || id.UserID == uuid.Nil {
		st := Status{State: SignedOut}
		m.notify(st)
		return st, nil
	}

	profile, err := m.profiles.Get(ctx, id.UserID)
	switch {
	case err == nil:
		return m.transition(Status{State: Complete, Identity: id, Profile: profile}), nil
	case !errors.Is(err, errs.ErrNotFound):
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	if !id.Federated() {
		return m.transition(Status{State: NeedsProfile, Identity: id}), nil
	}

	profile, err = m.profiles.Create(ctx, id.UserID, id.Email, models.UsernameFromEmail(id.Email))
	if errors.Is(err, errs.ErrAlreadyExists) {
		// a concurrent session created it first
		profile, err = m.profiles.Get(ctx, id.UserID)
	}
	if err != nil {
		return Status{}, fmt.Errorf("%s: provision profile: %w", op, err)
	}

	m.log.Info("provisioned profile for federated user", "userID", id.UserID)
	return m.transition(Status{State: Complete, Identity: id, Profile: profile}), nil
}

// CompleteProfile stores the chosen username and finishes the session.
func (m *Manager) CompleteProfile(ctx context.Context, id Identity, username string) (Status, error) {
	profile, err := m.profiles.SetUsername(ctx, id.UserID, id.Email, username)
	if err != nil {
		return Status{}, fmt.Errorf("session.CompleteProfile: %w", err)
	}
	return m.transition(Status{State: Complete, Identity: &id, Profile: profile}), nil
}

// SignUp registers an email/password account. Preconditions are checked
// before the identity provider is contacted.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) (*identity.Session, Status, error) {
	const op = "session.SignUp"

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return nil, Status{}, fmt.Errorf("%s: email and password are required: %w", op, errs.ErrInvalidInput)
	}
	if req.Password != req.ConfirmPassword {
		return nil, Status{}, fmt.Errorf("%s: %w", op, errs.ErrPasswordMismatch)
	}
	if strings.TrimSpace(req.CaptchaToken) == "" {
		return nil, Status{}, fmt.Errorf("%s: %w", op, errs.ErrCaptchaRequired)
	}

	sess, err := m.provider.SignUp(ctx, identity.Credentials{Email: req.Email, Password: req.Password}, req.CaptchaToken)
	if err != nil {
		return nil, Status{}, fmt.Errorf("%s: %w", op, err)
	}

	id := identityFromUser(sess.User)
	if strings.TrimSpace(req.Username) == "" {
		return sess, m.transition(Status{State: NeedsProfile, Identity: &id}), nil
	}

	profile, err := m.profiles.Create(ctx, id.UserID, id.Email, req.Username)
	if err != nil {
		return nil, Status{}, fmt.Errorf("%s: create profile: %w", op, err)
	}
	return sess, m.transition(Status{State: Complete, Identity: &id, Profile: profile}), nil
}

func (m *Manager) SignIn(ctx context.Context, creds identity.Credentials) (*identity.Session, Status, error) {
	const op = "session.SignIn"

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, Status{}, fmt.Errorf("%s: email and password are required: %w", op, errs.ErrInvalidInput)
	}

	sess, err := m.provider.SignIn(ctx, creds)
	if err != nil {
		return nil, Status{}, fmt.Errorf("%s: %w", op, err)
	}

	id := identityFromUser(sess.User)
	st, err := m.Establish(ctx, &id)
	if err != nil {
		return nil, Status{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess, st, nil
}

// SignOut revokes the token. Listeners are told about the sign-out even when
// revocation fails.
func (m *Manager) SignOut(ctx context.Context, id Identity, accessToken string) error {
	err := m.provider.SignOut(ctx, accessToken)
	m.notify(Status{State: SignedOut, Identity: &id})
	if err != nil {
		return fmt.Errorf("session.SignOut: %w", err)
	}
	return nil
}

func (m *Manager) OAuthURL(provider string) (string, error) {
	return m.provider.AuthorizeURL(provider, m.redirectURL)
}

func (m *Manager) transition(st Status) Status {
	m.log.Debug("session state changed", "state", st.State, "userID", st.Identity.UserID)
	m.notify(st)
	return st
}

func (m *Manager) notify(st Status) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, l := range listeners {
		l(st)
	}
}

func identityFromUser(u identity.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Provider: u.Provider}
}
