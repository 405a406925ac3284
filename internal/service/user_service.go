package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"todoapp/internal/cache"
	apperrors "todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
	"todoapp/internal/timefmt"
)

const userCacheTTL = 5 * time.Minute

// UserService is the user directory: sign-up, lookup and credential checks.
// Returned users never carry the password hash.
type UserService interface {
	Create(ctx context.Context, username, email, password string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	Verify(ctx context.Context, identifier, password string) bool
	EmailForUsername(ctx context.Context, username string) (string, error)
	UpdateEmail(ctx context.Context, id, email string) error
	Delete(ctx context.Context, id string) error
}

type userService struct {
	repo       repository.UserRepository
	cache      *cache.Client
	zone       *timefmt.Zone
	log        *logrus.Logger
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, zone *timefmt.Zone, log *logrus.Logger, bcryptCost int) UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userService{
		repo:       repo,
		cache:      cache,
		zone:       zone,
		log:        log,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (s *userService) cacheKey(username string) string {
	return "user:" + username
}

// NormalizeIdentifier trims and lower-cases a username or email.
func NormalizeIdentifier(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func (s *userService) Create(ctx context.Context, username, email, password string) (*model.User, error) {
	username = NormalizeIdentifier(username)
	email = NormalizeIdentifier(email)

	switch {
	case username == "":
		return nil, apperrors.NewValidationError("username", "must not be empty")
	case strings.Contains(username, "@"):
		return nil, apperrors.NewValidationError("username", "must not contain @")
	case email == "":
		return nil, apperrors.NewValidationError("email", "must not be empty")
	case !strings.Contains(email, "@"):
		return nil, apperrors.NewValidationError("email", "must be an email address")
	case password == "":
		return nil, apperrors.NewValidationError("password", "must not be empty")
	}

	if err := s.ensureFree(ctx, "username", username, s.repo.FindByUsername); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", email, s.repo.FindByEmail); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateError("username or email", username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(username))

	s.log.WithField("username", username).Info("user created")
	return s.present(user), nil
}

func (s *userService) ensureFree(ctx context.Context, field, value string, find func(context.Context, string) (*model.User, error)) error {
	existing, err := find(ctx, value)
	switch {
	case err == nil && existing != nil:
		return apperrors.NewDuplicateError(field, value)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("check %s: %w", field, err)
	}
	return nil
}

func (s *userService) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	username = NormalizeIdentifier(username)
	if username == "" {
		return nil, nil
	}

	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(username), &cached) {
		return s.present(&cached), nil
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	_ = s.cache.SetJSON(ctx, s.cacheKey(username), user, userCacheTTL)
	return s.present(user), nil
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = NormalizeIdentifier(email)
	if email == "" {
		return nil, nil
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.present(user), nil
}

func (s *userService) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	if strings.Contains(identifier, "@") {
		return s.FindByEmail(ctx, identifier)
	}
	return s.FindByUsername(ctx, identifier)
}

// Verify checks a password against the stored hash. Unknown users and wrong
// passwords are indistinguishable to the caller, including in timing.
func (s *userService) Verify(ctx context.Context, identifier, password string) bool {
	identifier = NormalizeIdentifier(identifier)

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.repo.FindByEmail(ctx, identifier)
	} else {
		user, err = s.repo.FindByUsername(ctx, identifier)
	}
	if err != nil || user == nil {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.WithError(err).Error("verify: user lookup failed")
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *userService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *userService) EmailForUsername(ctx context.Context, username string) (string, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil || user == nil {
		return "", err
	}
	return user.Email, nil
}

func (s *userService) UpdateEmail(ctx context.Context, id, email string) error {
	email = NormalizeIdentifier(email)
	if !strings.Contains(email, "@") {
		return apperrors.NewValidationError("email", "must be an email address")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("user", id)
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.Email == email {
		return nil
	}
	if err := s.ensureFree(ctx, "email", email, s.repo.FindByEmail); err != nil {
		return err
	}

	if err := s.repo.UpdateEmail(ctx, id, email); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return apperrors.NewDuplicateError("email", email)
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NewNotFoundError("user", id)
		}
		return fmt.Errorf("update email: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.Username))

	s.log.WithField("username", user.Username).Info("user email updated")
	return nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.Username))

	s.log.WithField("username", user.Username).Info("user deleted")
	return nil
}

// present returns a copy localized to the display zone without the hash.
func (s *userService) present(user *model.User) *model.User {
	out := *user
	out.PasswordHash = ""
	out.CreatedAt = s.zone.In(user.CreatedAt)
	out.UpdatedAt = s.zone.In(user.UpdatedAt)
	return &out
}
