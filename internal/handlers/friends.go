package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/services"
)

type FriendHandler struct {
	friendService   *services.FriendService
	identityService *services.IdentityService
}

func NewFriendHandler(friendService *services.FriendService, identityService *services.IdentityService) *FriendHandler {
	return &FriendHandler{friendService: friendService, identityService: identityService}
}

type SendFriendRequestRequest struct {
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`
	Username   string     `json:"username,omitempty"`
}

type RespondRequest struct {
	Accept bool `json:"accept"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

type PendingRequestsResponse struct {
	Requests []models.FriendRequestWithSender `json:"requests"`
}

type FriendsResponse struct {
	Friends []models.User `json:"friends"`
}

// SendRequest creates a friend request addressed by user ID or username.
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var receiverID uuid.UUID
	switch {
	case req.ReceiverID != nil:
		receiverID = *req.ReceiverID
	case req.Username != "":
		receiver, err := h.identityService.ByUsername(r.Context(), req.Username)
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			log.Printf("Error resolving username: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		receiverID = receiver.ID
	default:
		writeError(w, http.StatusBadRequest, "Missing receiver")
		return
	}

	fr, err := h.friendService.Send(r.Context(), user.ID, receiverID)
	if errors.Is(err, services.ErrCannotFriendSelf) {
		writeError(w, http.StatusBadRequest, "Cannot send a friend request to yourself")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if errors.Is(err, services.ErrAlreadyFriends) {
		writeError(w, http.StatusConflict, "Already friends")
		return
	}
	if errors.Is(err, services.ErrDuplicateFriendRequest) {
		writeError(w, http.StatusConflict, "A pending request already exists")
		return
	}
	if err != nil {
		log.Printf("Error sending friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: fr})
}

// Respond settles a pending request addressed to the authenticated user.
func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fr, err := h.friendService.Respond(r.Context(), requestID, user.ID, req.Accept)
	if errors.Is(err, services.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Friend request not found")
		return
	}
	if errors.Is(err, services.ErrNotReceiver) {
		writeError(w, http.StatusForbidden, "Only the receiver can respond")
		return
	}
	if errors.Is(err, services.ErrAlreadySettled) {
		writeError(w, http.StatusConflict, "Request already settled")
		return
	}
	if err != nil {
		log.Printf("Error responding to friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Request: fr})
}

// ListPending returns pending requests addressed to the authenticated user.
func (h *FriendHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requests, err := h.friendService.ListPendingIncoming(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing pending requests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, PendingRequestsResponse{Requests: requests})
}

// ListFriends returns the authenticated user's friends.
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing friends: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendsResponse{Friends: friends})
}
