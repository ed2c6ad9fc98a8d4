package services

import (
	"context"
	"errors"
	"testing"

	"github.com/HammerMeetNail/splitsync/internal/models"
)

func strPtr(s string) *string { return &s }

func TestIdentityService_Register(t *testing.T) {
	svc := NewIdentityService(newFakeStore())

	user, err := svc.Register(context.Background(), models.CreateUserParams{
		Username:    "  Alice_1 ",
		DisplayName: " Alice ",
		Email:       strPtr("alice@example.com"),
		Phone:       strPtr("+1 (555) 010-0100"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "Alice_1" {
		t.Fatalf("expected trimmed username with case preserved, got %q", user.Username)
	}
	if user.DisplayName != "Alice" {
		t.Fatalf("expected trimmed display name, got %q", user.DisplayName)
	}
	if user.Phone == nil || *user.Phone != "+15550100100" {
		t.Fatalf("expected normalized phone, got %v", user.Phone)
	}
}

func TestIdentityService_Register_Validation(t *testing.T) {
	svc := NewIdentityService(newFakeStore())

	tests := []struct {
		name    string
		params  models.CreateUserParams
		wantErr error
	}{
		{"short username", models.CreateUserParams{Username: "ab", DisplayName: "A"}, ErrInvalidUsername},
		{"bad characters", models.CreateUserParams{Username: "no spaces", DisplayName: "A"}, ErrInvalidUsername},
		{"missing display name", models.CreateUserParams{Username: "alice", DisplayName: "  "}, ErrInvalidDisplayName},
		{"bad email", models.CreateUserParams{Username: "alice", DisplayName: "A", Email: strPtr("nope")}, ErrInvalidEmail},
		{"bad phone", models.CreateUserParams{Username: "alice", DisplayName: "A", Phone: strPtr("abc")}, ErrInvalidPhone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.params); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestIdentityService_Register_DuplicateUsername(t *testing.T) {
	fs := newFakeStore()
	fs.addUser("alice")
	svc := NewIdentityService(fs)

	_, err := svc.Register(context.Background(), models.CreateUserParams{Username: "alice", DisplayName: "Alice"})
	if !errors.Is(err, ErrUsernameAlreadyExists) {
		t.Fatalf("expected ErrUsernameAlreadyExists, got %v", err)
	}
}

func TestIdentityService_Search(t *testing.T) {
	fs := newFakeStore()
	fs.addUser("alice")
	fs.addUser("albert")
	fs.addUser("bob")
	svc := NewIdentityService(fs)

	matches, err := svc.Search(context.Background(), "al", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	matches, err = svc.Search(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for empty prefix, got %d", len(matches))
	}
}

func TestIdentityService_UpdateProfile(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	svc := NewIdentityService(fs)

	updated, err := svc.UpdateProfile(context.Background(), alice.ID, models.UpdateProfileParams{
		DisplayName: strPtr("Alice B"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DisplayName != "Alice B" {
		t.Fatalf("expected updated display name, got %q", updated.DisplayName)
	}

	if _, err := svc.UpdateProfile(context.Background(), alice.ID, models.UpdateProfileParams{
		DisplayName: strPtr("   "),
	}); !errors.Is(err, ErrInvalidDisplayName) {
		t.Fatalf("expected ErrInvalidDisplayName, got %v", err)
	}
}

func TestIdentityService_UpdateProfile_Username(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	fs.addUser("bob")
	svc := NewIdentityService(fs)

	updated, err := svc.UpdateProfile(context.Background(), alice.ID, models.UpdateProfileParams{
		Username: strPtr("  alice2 "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Username != "alice2" {
		t.Fatalf("expected trimmed username alice2, got %q", updated.Username)
	}

	if _, err := svc.UpdateProfile(context.Background(), alice.ID, models.UpdateProfileParams{
		Username: strPtr("no spaces"),
	}); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	if _, err := svc.UpdateProfile(context.Background(), alice.ID, models.UpdateProfileParams{
		Username: strPtr("bob"),
	}); !errors.Is(err, ErrUsernameAlreadyExists) {
		t.Fatalf("expected ErrUsernameAlreadyExists, got %v", err)
	}
}

func TestIdentityService_ByUsername_NotFound(t *testing.T) {
	svc := NewIdentityService(newFakeStore())

	if _, err := svc.ByUsername(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIdentityService_ByUsername_CaseSensitive(t *testing.T) {
	svc := NewIdentityService(newFakeStore())

	registered, err := svc.Register(context.Background(), models.CreateUserParams{
		Username:    "Alice",
		DisplayName: "Alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registered.Username != "Alice" {
		t.Fatalf("expected username stored as given, got %q", registered.Username)
	}

	if _, err := svc.ByUsername(context.Background(), "ALICE"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for different casing, got %v", err)
	}
	if _, err := svc.ByUsername(context.Background(), "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for different casing, got %v", err)
	}

	found, err := svc.ByUsername(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != registered.ID {
		t.Fatalf("expected exact-case lookup to return registered user")
	}
}
