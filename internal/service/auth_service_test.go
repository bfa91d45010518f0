package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"furniture-catalog/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func signupInput(email, password string) SignupInput {
	return SignupInput{Name: "Owner", Phone: "+15550100", Email: email, Password: password, IsAdmin: true}
}

// Signup stores a bcrypt hash, never the plaintext
func TestProperty_SignupHashesPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			service := NewAuthService(userRepo, "test-secret", AuthOptions{SingleUser: true})
			ctx := context.Background()

			result, err := service.Signup(ctx, signupInput(email, password))
			if err != nil {
				t.Logf("FAIL: signup failed: %v", err)
				return false
			}

			stored, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if stored.PasswordHash == password || result.User.PasswordHash != stored.PasswordHash {
				return false
			}

			cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
			if err != nil || cost != BcryptCost {
				t.Logf("FAIL: unexpected bcrypt cost %d: %v", cost, err)
				return false
			}

			return bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)) == nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Tokens carry email, user id and the admin flag
func TestProperty_TokensCarryClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("signin tokens contain email, user id and admin claims", prop.ForAll(
		func(email string, password string, isAdmin bool) bool {
			userRepo := newMockUserRepository()
			service := NewAuthService(userRepo, "test-secret-key", AuthOptions{TokenTTL: time.Hour})
			ctx := context.Background()

			in := signupInput(email, password)
			in.IsAdmin = isAdmin
			if _, err := service.Signup(ctx, in); err != nil {
				return false
			}

			result, err := service.Signin(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: signin failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(result.Token)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			return claims.UserID == result.User.ID &&
				claims.Email == email &&
				claims.IsAdmin == isAdmin &&
				claims.ExpiresAt != nil &&
				claims.IssuedAt != nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSignup_SingleUserPolicy(t *testing.T) {
	userRepo := newMockUserRepository()
	service := NewAuthService(userRepo, "secret", AuthOptions{SingleUser: true})
	ctx := context.Background()

	_, err := service.Signup(ctx, signupInput("owner@shop.com", "password1"))
	require.NoError(t, err)

	second := SignupInput{Name: "Other", Phone: "999", Email: "other@shop.com", Password: "password2"}
	_, err = service.Signup(ctx, second)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictSingleUserOnly, conflict.Reason)
}

func TestSignup_UniqueEmailAndPhoneWithoutSingleUserPolicy(t *testing.T) {
	userRepo := newMockUserRepository()
	service := NewAuthService(userRepo, "secret", AuthOptions{})
	ctx := context.Background()

	_, err := service.Signup(ctx, signupInput("owner@shop.com", "password1"))
	require.NoError(t, err)

	var conflict *domain.ConflictError

	_, err = service.Signup(ctx, SignupInput{Name: "A", Phone: "1", Email: "OWNER@shop.com ", Password: "x"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictUserExists, conflict.Reason)

	_, err = service.Signup(ctx, SignupInput{Name: "B", Phone: "+15550100", Email: "b@shop.com", Password: "x"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictUserExists, conflict.Reason)

	_, err = service.Signup(ctx, SignupInput{Name: "C", Phone: "2", Email: "c@shop.com", Password: "x"})
	require.NoError(t, err)
}

func TestSignup_Validation(t *testing.T) {
	service := NewAuthService(newMockUserRepository(), "secret", AuthOptions{})
	ctx := context.Background()

	for name, in := range map[string]SignupInput{
		"name":     {Phone: "1", Email: "a@b.com", Password: "x"},
		"phone":    {Name: "A", Email: "a@b.com", Password: "x"},
		"email":    {Name: "A", Phone: "1", Password: "x"},
		"password": {Name: "A", Phone: "1", Email: "a@b.com"},
		"format":   {Name: "A", Phone: "1", Email: "not-an-email", Password: "x"},
	} {
		_, err := service.Signup(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation, name)
	}
}

func TestSignin_Errors(t *testing.T) {
	userRepo := newMockUserRepository()
	service := NewAuthService(userRepo, "secret", AuthOptions{})
	ctx := context.Background()

	_, err := service.Signin(ctx, "nobody@shop.com", "password")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.KindUser, nf.Kind)

	_, err = service.Signup(ctx, signupInput("owner@shop.com", "correct-horse"))
	require.NoError(t, err)

	_, err = service.Signin(ctx, "owner@shop.com", "wrong")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
}

func TestTokens_ZeroTTLHasNoExpiry(t *testing.T) {
	service := NewAuthService(newMockUserRepository(), "secret", AuthOptions{})

	result, err := service.Signup(context.Background(), signupInput("owner@shop.com", "password1"))
	require.NoError(t, err)

	claims, err := service.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestValidateToken_Rejects(t *testing.T) {
	service := NewAuthService(newMockUserRepository(), "secret", AuthOptions{TokenTTL: time.Hour})

	result, err := service.Signup(context.Background(), signupInput("owner@shop.com", "password1"))
	require.NoError(t, err)

	other := NewAuthService(newMockUserRepository(), "different-secret", AuthOptions{})
	_, err = other.ValidateToken(result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email: "owner@shop.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = service.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "owner@shop.com"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = service.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
