package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token cannot be parsed or verified
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer does not match
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrMissingOrgID is returned when the token carries no organization claim
	ErrMissingOrgID = errors.New("missing org_id claim")
)

// Claims represents the custom claims carried by PostPulse access tokens
type Claims struct {
	jwt.RegisteredClaims
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Validator validates HMAC-signed JWT access tokens issued by the
// PostPulse API. Tokens must carry an org_id claim; user_id is optional.
type Validator struct {
	secret []byte
	issuer string
}

// Config holds configuration for the token validator
type Config struct {
	Secret string
	Issuer string
}

// NewValidator creates a new JWT validator
func NewValidator(config Config) *Validator {
	return &Validator{
		secret: []byte(config.Secret),
		issuer: config.Issuer,
	}
}

// ValidateToken parses and validates a JWT token string and returns its claims
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.OrgID == "" {
		return nil, ErrMissingOrgID
	}

	return claims, nil
}
