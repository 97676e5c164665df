// Package session signs staff in and out and resolves access tokens back
// into a branch-scoped identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRevoked            = errors.New("session signed out")
)

// StaffReader loads staff and branches. Satisfied by *postgres.Queries.
type StaffReader interface {
	GetStaffByEmail(ctx context.Context, email string) (model.Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (model.Staff, error)
	GetBranch(ctx context.Context, id uuid.UUID) (model.Branch, error)
}

// Profile is the signed-in staff member with their branch, if any.
type Profile struct {
	Staff  model.Staff
	Branch *model.Branch
}

// Session is the result of a successful sign in.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Claims      *auth.Claims
	Profile     Profile
}

// Manager issues and checks access tokens.
type Manager struct {
	staff       StaffReader
	revocations Revocations
	secret      string
	ttl         time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// NewManager creates a Manager. revocations defaults to an in-memory set.
func NewManager(staff StaffReader, revocations Revocations, secret string, ttl time.Duration, log *logger.Logger) *Manager {
	if revocations == nil {
		revocations = NewMemoryRevocations()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		staff:       staff,
		revocations: revocations,
		secret:      secret,
		ttl:         ttl,
		log:         log,
		now:         time.Now,
	}
}

// SignIn checks the password and issues an access token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	staff, err := m.staff.GetStaffByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		m.log.Error(ctx, "error fetching staff", err)
		return Session{}, fmt.Errorf("get staff: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.HashedPassword), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	profile, err := m.profile(ctx, staff)
	if err != nil {
		return Session{}, err
	}

	token, claims, err := auth.GenerateToken(m.secret, staff.ID, staff.BranchID, m.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}

	m.log.Info(m.log.WithBranchID(m.log.WithUserID(ctx, staff.ID.String()), staff.BranchID.String()), "staff signed in")
	return Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		Claims:      claims,
		Profile:     profile,
	}, nil
}

// SignOut revokes the token until it would have expired anyway.
func (m *Manager) SignOut(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	ttl := claims.Remaining(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		m.log.Error(ctx, "error revoking session", err)
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Resolve validates token and rejects signed-out sessions.
func (m *Manager) Resolve(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(m.secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		m.log.Error(ctx, "error checking session revocation", err)
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Profile loads the staff member and branch behind claims.
func (m *Manager) Profile(ctx context.Context, claims *auth.Claims) (Profile, error) {
	staff, err := m.staff.GetStaff(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrInvalidToken
		}
		return Profile{}, fmt.Errorf("get staff: %w", err)
	}
	return m.profile(ctx, staff)
}

func (m *Manager) profile(ctx context.Context, staff model.Staff) (Profile, error) {
	p := Profile{Staff: staff}
	if staff.BranchID == uuid.Nil {
		return p, nil
	}
	branch, err := m.staff.GetBranch(ctx, staff.BranchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Staff row points at a branch that no longer exists.
			m.log.Warn(m.log.WithBranchID(ctx, staff.BranchID.String()), "staff branch not found")
			return p, nil
		}
		return Profile{}, fmt.Errorf("get branch: %w", err)
	}
	p.Branch = &branch
	return p, nil
}
