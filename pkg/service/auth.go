package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/auth"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AuthResult struct {
	Token string
	User  *models.User
}

type AuthService struct {
	db       *gorm.DB
	tokens   *auth.TokenManager
	verifier auth.IdentityVerifier
	logger   *zap.Logger
}

func NewAuthService(db *gorm.DB, tokens *auth.TokenManager, verifier auth.IdentityVerifier, logger *zap.Logger) *AuthService {
	return &AuthService{db: db, tokens: tokens, verifier: verifier, logger: logger.Named("auth")}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	switch {
	case name == "" || email == "" || password == "":
		return nil, apperr.Validation("name, email and password are required")
	case !validEmail(email):
		return nil, apperr.Validation("invalid email address")
	case len(password) < minPasswordLength:
		return nil, apperr.Validation("password must have at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleCustomer,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(repository.TranslateError(err), repository.ErrDuplicateKey) {
			return nil, apperr.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID))
	return s.issue(&user)
}

// Login answers every credential mismatch with the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if isNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.PasswordHash == nil {
		return nil, invalid
	}
	ok, err := auth.CheckPassword(*user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("Login failed", zap.Uint("user_id", user.ID))
		return nil, invalid
	}

	return s.issue(&user)
}

// GoogleLogin signs in with a Google ID token. Unknown Google accounts are
// linked to an existing user with the same email or created as customers.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Validation("id_token is required")
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: google login is not configured", apperr.ErrUnauthorized)
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, apperr.Validation("google account has no email")
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_id = ?", identity.Subject).First(&user).Error
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		// Email only identifies an account once the provider has verified it
		if !identity.EmailVerified {
			return fmt.Errorf("%w: google email is not verified", apperr.ErrUnauthorized)
		}

		err = tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			subject := identity.Subject
			user.GoogleID = &subject
			return tx.Model(&user).Update("google_id", subject).Error
		case isNotFound(err):
			name := strings.TrimSpace(identity.Name)
			if name == "" {
				name = email
			}
			user = models.User{
				Name:     name,
				Email:    email,
				GoogleID: &identity.Subject,
				Role:     models.RoleCustomer,
			}
			return tx.Create(&user).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, wrapInternal("failed to sign in with google", err)
	}

	return s.issue(&user)
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
