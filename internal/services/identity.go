package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/store"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidUsername       = errors.New("username must be 3-20 characters (letters, numbers, underscore)")
	ErrInvalidPhone          = errors.New("invalid phone number")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrInvalidDisplayName    = errors.New("display name is required")
)

var (
	usernameRe = regexp.MustCompile(`^\w{3,20}$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// IdentityService owns user registration, lookup and profile updates.
type IdentityService struct {
	store store.Store
}

func NewIdentityService(st store.Store) *IdentityService {
	return &IdentityService{store: st}
}

func (s *IdentityService) Register(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.DisplayName = strings.TrimSpace(params.DisplayName)

	if !usernameRe.MatchString(params.Username) {
		return nil, ErrInvalidUsername
	}
	if params.DisplayName == "" {
		return nil, ErrInvalidDisplayName
	}
	if params.Phone != nil {
		normalized := normalizePhone(*params.Phone)
		if !phoneRe.MatchString(normalized) {
			return nil, ErrInvalidPhone
		}
		params.Phone = &normalized
	}
	if params.Email != nil {
		trimmed := strings.TrimSpace(*params.Email)
		if !emailRe.MatchString(trimmed) {
			return nil, ErrInvalidEmail
		}
		params.Email = &trimmed
	}

	user, err := s.store.CreateUser(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, ErrUsernameAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *IdentityService) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ByUsername is a case-sensitive exact match; "Alice" and "alice" are
// distinct users.
func (s *IdentityService) ByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

func (s *IdentityService) ByPhone(ctx context.Context, phone string) (*models.User, error) {
	user, err := s.store.UserByPhone(ctx, normalizePhone(phone))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return user, nil
}

func (s *IdentityService) ByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := s.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// Search matches usernames by case-insensitive prefix. The store only
// supports exact lookups, so the filtering happens here.
func (s *IdentityService) Search(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	matches := make([]models.User, 0, limit)
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			matches = append(matches, u)
			if len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, id uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if params.Username != nil {
		trimmed := strings.TrimSpace(*params.Username)
		if !usernameRe.MatchString(trimmed) {
			return nil, ErrInvalidUsername
		}
		params.Username = &trimmed
	}
	if params.DisplayName != nil {
		trimmed := strings.TrimSpace(*params.DisplayName)
		if trimmed == "" {
			return nil, ErrInvalidDisplayName
		}
		params.DisplayName = &trimmed
	}
	if params.Phone != nil && *params.Phone != "" {
		normalized := normalizePhone(*params.Phone)
		if !phoneRe.MatchString(normalized) {
			return nil, ErrInvalidPhone
		}
		params.Phone = &normalized
	}
	if params.Email != nil && *params.Email != "" {
		trimmed := strings.TrimSpace(*params.Email)
		if !emailRe.MatchString(trimmed) {
			return nil, ErrInvalidEmail
		}
		params.Email = &trimmed
	}

	user, err := s.store.UpdateUser(ctx, id, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, ErrUsernameAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *IdentityService) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	if err := s.store.TouchLastSeen(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
