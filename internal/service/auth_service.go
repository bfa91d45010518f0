package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
)

var ErrInvalidToken = errors.New("invalid token")

var validate = validator.New()

// AuthService defines signup, signin and token validation
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Signin(ctx context.Context, email, password string) (*AuthResult, error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// SignupInput holds the fields of a new account
type SignupInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
	IsAdmin  bool
}

// AuthResult is an authenticated user with a freshly signed token
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Claims represents the JWT claims
type Claims struct {
	Email   string    `json:"email"`
	UserID  uuid.UUID `json:"user_id"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// AuthOptions tunes account policy and token lifetime
type AuthOptions struct {
	// SingleUser rejects every signup once one account exists
	SingleUser bool
	// TokenTTL of zero issues tokens without an expiry
	TokenTTL time.Duration
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	opts      AuthOptions
	now       func() time.Time
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, opts AuthOptions) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		opts:      opts,
		now:       time.Now,
	}
}

// Signup creates an account with a hashed password and signs a token for it
func (s *authService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = normalizeEmail(in.Email)

	switch {
	case in.Name == "":
		return nil, domain.Invalid("name is required")
	case in.Phone == "":
		return nil, domain.Invalid("phone is required")
	case in.Email == "":
		return nil, domain.Invalid("email is required")
	case in.Password == "":
		return nil, domain.Invalid("password is required")
	}
	if err := validate.Var(in.Email, "email"); err != nil {
		return nil, domain.Invalid("email is not a valid address")
	}

	if s.opts.SingleUser {
		n, err := s.userRepo.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		if n > 0 {
			return nil, domain.Conflict(domain.ConflictSingleUserOnly, "an account already exists")
		}
	}

	if err := s.ensureUnique(ctx, in.Email, in.Phone); err != nil {
		return nil, err
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hashedPassword,
		IsAdmin:      in.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, userExists()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.authenticated(user)
}

// Signin verifies the credentials and signs a fresh token
func (s *authService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound(domain.KindUser)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.authenticated(user)
}

// ValidateToken validates a JWT token and returns the claims
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound(domain.KindUser)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) ensureUnique(ctx context.Context, email, phone string) error {
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return userExists()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	if _, err := s.userRepo.FindByPhone(ctx, phone); err == nil {
		return userExists()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	return nil
}

func (s *authService) authenticated(user *domain.User) (*AuthResult, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// hashPassword hashes a password using bcrypt with cost factor 10
func (s *authService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func (s *authService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateToken signs an HS256 token carrying email, user id and admin flag
func (s *authService) generateToken(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		Email:   user.Email,
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.opts.TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.opts.TokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userExists() error {
	return domain.Conflict(domain.ConflictUserExists, "a user with this email or phone already exists")
}
