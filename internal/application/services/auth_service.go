package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

const pbkdf2Iterations = 100000

// AuthService manages staff accounts and credential checks. Credentials
// are stored as salt$artifact$digest, hex fields joined with '$': a random
// salt, a second random value kept for compatibility with existing stored
// hashes (it plays no part in verification), and the PBKDF2-HMAC-SHA256
// digest of the password with the salt.
type AuthService struct {
	users repositories.UserRepository
	audit *AuditTrail
	log   zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users repositories.UserRepository, audit *AuditTrail, logger zerolog.Logger) *AuthService {
	return &AuthService{
		users: users,
		audit: audit,
		log:   logger.With().Str("component", "auth_service").Logger(),
	}
}

// AddUser provisions a staff account
func (s *AuthService) AddUser(ctx context.Context, username, password string, role entities.Role) (*entities.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required")
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid role %q", role))
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &entities.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(nil, "add_user", fmt.Sprintf("username: %s, role: %s", username, role))
	return user, nil
}

// SetPassword rehashes and replaces a user's credential
func (s *AuthService) SetPassword(ctx context.Context, username, newPassword string) error {
	if newPassword == "" {
		return apperrors.NewValidationError("password cannot be empty")
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return apperrors.NewInternalError("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}
	s.audit.Record(nil, "set_password", fmt.Sprintf("username: %s", username))
	return nil
}

// VerifyCredentials checks a username/password pair. A wrong password or
// unknown username yields (nil, nil), not an error.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (*entities.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			s.log.Warn().Str("username", username).Msg("failed login attempt")
			return nil, nil
		}
		return nil, err
	}

	if !verifyPassword(user.PasswordHash, password) {
		s.log.Warn().Str("username", username).Msg("failed login attempt")
		s.audit.Record(nil, "login_failed", fmt.Sprintf("username: %s", username))
		return nil, nil
	}

	s.audit.Record(&user.ID, "login", fmt.Sprintf("username: %s", username))
	return &entities.Session{
		Token:    uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// UsersExist reports whether any account has been provisioned
func (s *AuthService) UsersExist(ctx context.Context) (bool, error) {
	return s.users.Any(ctx)
}

// UsersByRole lists accounts holding a role
func (s *AuthService) UsersByRole(ctx context.Context, role entities.Role) ([]*entities.User, error) {
	return s.users.ListByRole(ctx, role)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	artifact := make([]byte, 16)
	if _, err := rand.Read(artifact); err != nil {
		return "", err
	}

	saltHex := hex.EncodeToString(salt)
	digest := pbkdf2.Key([]byte(password), []byte(saltHex), pbkdf2Iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("%s$%s$%s", saltHex, hex.EncodeToString(artifact), hex.EncodeToString(digest)), nil
}

// verifyPassword re-derives the digest from the stored salt and compares.
// A malformed stored hash verifies false, never panics.
func verifyPassword(storedHash, password string) bool {
	parts := strings.Split(storedHash, "$")
	if len(parts) != 3 {
		return false
	}
	salt, stored := parts[0], parts[2]

	digest := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, sha256.Size, sha256.New)
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(digest)), []byte(stored)) == 1
}
