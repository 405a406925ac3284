package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenExpiry is the duration for which access tokens are valid.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the duration for which refresh tokens are valid.
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// Token types carried in Claims.Type.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a valid token of the other type is presented.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims identifies the user a token was issued to.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Secret returns the signing key, shared with the echo-jwt middleware.
func (s *JWTService) Secret() []byte {
	return s.secret
}

// GenerateAccessToken generates a new access token for the user.
func (s *JWTService) GenerateAccessToken(username, email string) (string, error) {
	return s.sign(username, email, TokenTypeAccess, "", AccessTokenExpiry)
}

// GenerateRefreshToken generates a new refresh token for the user.
// The refresh token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(username, email string) (tokenID string, token string, err error) {
	tokenID = uuid.NewString()
	token, err = s.sign(username, email, TokenTypeRefresh, tokenID, RefreshTokenExpiry)
	return tokenID, token, err
}

func (s *JWTService) sign(username, email, typ, id string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: username,
		Email:    email,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies raw against secret and requires the given token type.
func ParseToken(secret []byte, raw, tokenType string) (*jwt.Token, *Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, nil, errors.New("invalid token")
	}
	if claims.Type != tokenType {
		return nil, nil, ErrWrongTokenType
	}
	return token, claims, nil
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	_, claims, err := ParseToken(s.secret, tokenString, TokenTypeAccess)
	return claims, err
}

// ValidateRefreshToken validates a refresh token and returns its claims.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	_, claims, err := ParseToken(s.secret, tokenString, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("token ID not found")
	}
	return claims, nil
}

// ExtractTokenID extracts the token ID (JTI) from a refresh token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateRefreshToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

// UsernameFromToken returns the username carried by a parsed access token.
func UsernameFromToken(token *jwt.Token) (string, bool) {
	if token == nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Type != TokenTypeAccess || claims.Username == "" {
		return "", false
	}
	return claims.Username, true
}
