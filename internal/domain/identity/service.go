package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgNotMR              = "User is not a Medical Representative"
	msgNotAdmin           = "User is not an Admin"
	msgInvalidToken       = "Token is invalid or expired"
	msgBlacklisted        = "Token is blacklisted"
)

type Service struct {
	users     UserRepository
	issuer    *auth.Issuer
	blacklist auth.Blacklist
	logger    zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users UserRepository, issuer *auth.Issuer, blacklist auth.Blacklist, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		issuer:    issuer,
		blacklist: blacklist,
		logger:    logger.With().Str("component", "identity").Logger(),
	}
}

// Users exposes the repository to the packages that validate user references.
func (s *Service) Users() UserRepository {
	return s.users
}

// Login verifies username and password and issues a token pair. A wrong
// password and an unknown or inactive user are indistinguishable to the
// caller; a valid user of the wrong role gets PermissionDenied.
func (s *Service) Login(ctx context.Context, expected auth.Role, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Keep the response time of unknown usernames close to a real check.
		auth.CheckPassword(s.dummy(), req.Password)
		s.logger.Info().Str("username", req.Username).Msg("login failed: unknown user")
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) || !u.IsActive {
		s.logger.Info().Int64("user_id", u.ID).Msg("login failed: bad credentials")
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}
	if u.Role != expected {
		s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("login rejected: role mismatch")
		if expected == auth.RoleMR {
			return nil, apperr.PermissionDenied(msgNotMR)
		}
		return nil, apperr.PermissionDenied(msgNotAdmin)
	}

	pair, err := s.issuer.IssuePair(u.Principal())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("login succeeded")
	return &LoginResponse{Refresh: pair.Refresh, Access: pair.Access, User: u}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("mrtracker-timing-equalizer")
	})
	return s.dummyHash
}

// Logout blacklists a refresh token. Blacklisting the same token twice is
// not an error.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	if strings.TrimSpace(refresh) == "" {
		return apperr.Validation("refresh token is required")
	}
	claims, err := s.issuer.Parse(refresh, auth.TokenRefresh)
	if err != nil {
		return apperr.Validation(msgInvalidToken)
	}
	p, err := claims.Principal()
	if err != nil {
		return apperr.Validation(msgInvalidToken)
	}
	if err := s.blacklist.Add(ctx, claims.ID, p.UserID, expiry(claims)); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", p.UserID).Msg("logout")
	return nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refresh string) (*AccessResponse, error) {
	if strings.TrimSpace(refresh) == "" {
		return nil, apperr.Validation("refresh token is required")
	}
	claims, err := s.issuer.Parse(refresh, auth.TokenRefresh)
	if err != nil {
		return nil, apperr.Unauthenticated(msgInvalidToken)
	}
	listed, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, apperr.Unauthenticated(msgBlacklisted)
	}
	p, err := claims.Principal()
	if err != nil {
		return nil, apperr.Unauthenticated(msgInvalidToken)
	}

	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Unauthenticated("User not found")
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("User is inactive")
	}

	access, err := s.issuer.IssueAccess(u.Principal())
	if err != nil {
		return nil, err
	}
	return &AccessResponse{Access: access}, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, err
	}
	return u, nil
}

// ListMRs returns every role=MR user ordered by id.
func (s *Service) ListMRs(ctx context.Context) ([]MRSummary, error) {
	users, err := s.users.ListByRole(ctx, auth.RoleMR)
	if err != nil {
		return nil, err
	}
	out := make([]MRSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// CreateUser provisions an account. Used by the user create command.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, apperr.Validation("username is required")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("role must be %q or %q", auth.RoleAdmin, auth.RoleMR)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Validation("invalid password: %v", err)
	}
	u := &User{
		Username:     strings.TrimSpace(in.Username),
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if in.Email != "" {
		email := in.Email
		u.Email = &email
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, apperr.Conflict("A user with that username already exists.")
		}
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

func expiry(c *auth.Claims) time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
