package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"todoapp/internal/auth"
	apperrors "todoapp/internal/errors"
	"todoapp/internal/model"
)

var (
	// ErrInvalidCredentials is returned when the identifier or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, username, email, password, confirm string) (*model.User, error)
	Login(ctx context.Context, identifier, password string) (*TokenPair, *model.User, error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	users      UserService
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	log        *logrus.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(users UserService, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, log *logrus.Logger) AuthService {
	return &authService{
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
		log:        log,
	}
}

// Signup creates the account once both password entries agree.
func (s *authService) Signup(ctx context.Context, username, email, password, confirm string) (*model.User, error) {
	if password != confirm {
		return nil, apperrors.NewValidationError("confirm_password", "passwords do not match")
	}
	return s.users.Create(ctx, username, email, password)
}

// Login authenticates by username or email and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, identifier, password string) (*TokenPair, *model.User, error) {
	if !s.users.Verify(ctx, identifier, password) {
		s.log.WithField("identifier", NormalizeIdentifier(identifier)).Warn("login failed")
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.Username, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.Username, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.Username, auth.RefreshTokenExpiry); err != nil {
		return nil, nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.log.WithField("username", user.Username).Info("user logged in")
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, user, nil
}

// Refresh validates a refresh token and returns a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	storedUsername, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUsername != claims.Username {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(claims.Username, claims.Email)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	return s.tokenStore.DeleteRefreshToken(ctx, tokenID)
}
