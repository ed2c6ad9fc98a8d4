package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/services"
)

type UserHandler struct {
	identityService *services.IdentityService
}

func NewUserHandler(identityService *services.IdentityService) *UserHandler {
	return &UserHandler{identityService: identityService}
}

type RegisterRequest struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

type UsersResponse struct {
	Users []models.User `json:"users"`
}

// Register creates a new user. No authentication required.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.identityService.Register(r.Context(), models.CreateUserParams{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if errors.Is(err, services.ErrInvalidUsername) ||
		errors.Is(err, services.ErrInvalidDisplayName) ||
		errors.Is(err, services.ErrInvalidPhone) ||
		errors.Is(err, services.ErrInvalidEmail) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, services.ErrUsernameAlreadyExists) {
		writeError(w, http.StatusConflict, "Username already taken")
		return
	}
	if err != nil {
		log.Printf("Error registering user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{User: user})
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

// UpdateMe applies a partial profile update to the authenticated user.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.identityService.UpdateProfile(r.Context(), user.ID, models.UpdateProfileParams{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if errors.Is(err, services.ErrInvalidUsername) ||
		errors.Is(err, services.ErrInvalidDisplayName) ||
		errors.Is(err, services.ErrInvalidPhone) ||
		errors.Is(err, services.ErrInvalidEmail) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, services.ErrUsernameAlreadyExists) {
		writeError(w, http.StatusConflict, "Username already taken")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error updating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: updated})
}

// Search finds users by username prefix, or resolves an exact phone number.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if phone := r.URL.Query().Get("phone"); phone != "" {
		match, err := h.identityService.ByPhone(r.Context(), phone)
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusOK, UsersResponse{Users: []models.User{}})
			return
		}
		if err != nil {
			log.Printf("Error searching users by phone: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, UsersResponse{Users: []models.User{*match}})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing search query")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.identityService.Search(r.Context(), query, limit)
	if err != nil {
		log.Printf("Error searching users: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The caller never needs themselves in search results.
	filtered := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID != user.ID {
			filtered = append(filtered, u)
		}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: filtered})
}
