package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"cloudnest/utils"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	JWTSecret           string
	TokenTTL            time.Duration
	DefaultStorageLimit int64
	BcryptCost          int
	// AdminEmails are granted the admin role when they register.
	AdminEmails []string
}

// AuthService is the identity provider: it registers accounts, checks
// passwords and signs the session tokens the middleware verifies.
type AuthService struct {
	users repository.UserRepository
	cfg   AuthConfig
	now   func() time.Time
}

func NewAuthService(users repository.UserRepository, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{users: users, cfg: cfg, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if err := utils.ValidateEmail(email); err != nil {
		return nil, BadRequest(err.Error())
	}
	if name == "" {
		return nil, BadRequest("name cannot be empty")
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, BadRequest(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, BadRequest("password too long")
		}
		return nil, Internal("failed to hash password", err)
	}

	role := models.RoleUser
	for _, admin := range s.cfg.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), email) {
			role = models.RoleAdmin
			break
		}
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		StorageLimit: s.cfg.DefaultStorageLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict("an account with this email already exists")
		}
		return nil, Internal("failed to create user", err)
	}
	return user, nil
}

// Login checks the credentials and returns a signed session token. Unknown
// email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, Unauthorized("invalid email or password")
		}
		return "", nil, Internal("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, Unauthorized("invalid email or password")
	}

	token, err := utils.GenerateJWTTokenWithSecret(user.ID, user.Role, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return "", nil, Internal("failed to sign session token", err)
	}
	return token, user, nil
}

// ParseToken verifies a session token and returns its claims.
func (s *AuthService) ParseToken(token string) (*utils.Claims, error) {
	claims, err := utils.VerifyJWTTokenWithSecret(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, Unauthorized("invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.cfg.TokenTTL
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, Internal("failed to load user", err)
	}
	return user, nil
}
