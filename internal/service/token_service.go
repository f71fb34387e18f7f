package service

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/pkg/apierror"
)

// TokenClaims is the claim set of access tokens issued by the identity provider.
type TokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Type     string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenService verifies HS256 bearer tokens. Issuing tokens is left to the
// identity provider.
type TokenService struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenService(secret string, issuer string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &TokenService{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// ValidateToken verifies tokenString and returns its claims. Tokens without a
// typ claim are accepted for any expected type.
func (s *TokenService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	var claims TokenClaims
	parsed, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.Wrap(err, "UNAUTHORIZED", "invalid token", http.StatusUnauthorized)
	}

	if claims.Type != "" && expectedType != "" && claims.Type != expectedType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}
	if claims.Subject == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return &model.AuthClaims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		Type:     claims.Type,
		TokenID:  claims.ID,
	}, nil
}
