package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

// SessionTTL is the fixed lifetime of a session token. Tokens are not renewed.
const SessionTTL = 24 * time.Hour

// ErrInvalidToken marks any token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// TokenConfig configures the session token codec.
type TokenConfig struct {
	Secret string
	Issuer string
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService constructs a TokenService. The secret is read once here.
func NewTokenService(cfg TokenConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs a token for user valid for SessionTTL.
func (s *TokenService) Issue(user *models.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, fmt.Errorf("issue token: missing user")
	}
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)
	claims := &models.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses token and returns its claims. Every failure, whether malformed,
// expired, wrongly signed or using another algorithm, yields ErrInvalidToken
// wrapped in a 401 error.
func (s *TokenService) Verify(token string) (*models.Claims, error) {
	if token == "" {
		return nil, s.invalid(nil)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &models.Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, s.invalid(err)
	}

	claims, ok := parsed.Claims.(*models.Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, s.invalid(nil)
	}
	return claims, nil
}

func (s *TokenService) invalid(cause error) error {
	err := ErrInvalidToken
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidToken, cause)
	}
	return appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired session")
}
