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

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type InviteRequest struct {
	InviteeID uuid.UUID `json:"invitee_id"`
}

type GroupResponse struct {
	Group *models.Group `json:"group"`
}

type GroupsResponse struct {
	Groups []models.Group `json:"groups"`
}

type InvitationResponse struct {
	Invitation *models.GroupInvitation `json:"invitation"`
}

type PendingInvitationsResponse struct {
	Invitations []models.GroupInvitationWithGroup `json:"invitations"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.groupService.Create(r.Context(), user.ID, req.Name)
	if errors.Is(err, services.ErrInvalidGroupName) {
		writeError(w, http.StatusBadRequest, "Invalid group name")
		return
	}
	if err != nil {
		log.Printf("Error creating group: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, GroupResponse{Group: group})
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groups, err := h.groupService.ListForUser(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing groups: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, GroupsResponse{Groups: groups})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	group, err := h.groupService.ByID(r.Context(), groupID, user.ID)
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrNotGroupMember) {
		writeError(w, http.StatusForbidden, "Not a member of this group")
		return
	}
	if err != nil {
		log.Printf("Error getting group: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, GroupResponse{Group: group})
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	err = h.groupService.Delete(r.Context(), groupID, user.ID)
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrNotCreator) {
		writeError(w, http.StatusForbidden, "Only the group creator can delete the group")
		return
	}
	if err != nil {
		log.Printf("Error deleting group: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Group deleted"})
}

func (h *GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := h.groupService.Invite(r.Context(), groupID, user.ID, req.InviteeID)
	if errors.Is(err, services.ErrCannotInviteSelf) {
		writeError(w, http.StatusBadRequest, "Cannot invite yourself")
		return
	}
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if errors.Is(err, services.ErrNotGroupMember) {
		writeError(w, http.StatusForbidden, "Not a member of this group")
		return
	}
	if errors.Is(err, services.ErrAlreadyMember) {
		writeError(w, http.StatusConflict, "User is already a member")
		return
	}
	if errors.Is(err, services.ErrDuplicateInvitation) {
		writeError(w, http.StatusConflict, "A pending invitation already exists")
		return
	}
	if err != nil {
		log.Printf("Error creating invitation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, InvitationResponse{Invitation: inv})
}

func (h *GroupHandler) RespondToInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	invitationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invitation ID")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := h.groupService.Respond(r.Context(), invitationID, user.ID, req.Accept)
	if errors.Is(err, services.ErrInvitationNotFound) {
		writeError(w, http.StatusNotFound, "Invitation not found")
		return
	}
	if errors.Is(err, services.ErrNotInvitee) {
		writeError(w, http.StatusForbidden, "Only the invitee can respond")
		return
	}
	if errors.Is(err, services.ErrAlreadySettled) {
		writeError(w, http.StatusConflict, "Invitation already settled")
		return
	}
	if err != nil {
		log.Printf("Error responding to invitation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, InvitationResponse{Invitation: inv})
}

func (h *GroupHandler) ListPendingInvitations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	invitations, err := h.groupService.ListPendingInvitations(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing invitations: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, PendingInvitationsResponse{Invitations: invitations})
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}
	memberID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	err = h.groupService.RemoveMember(r.Context(), groupID, user.ID, memberID)
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrNotCreator) {
		writeError(w, http.StatusForbidden, "Only the group creator can remove members")
		return
	}
	if errors.Is(err, services.ErrCannotRemoveCreator) {
		writeError(w, http.StatusBadRequest, "The group creator cannot be removed")
		return
	}
	if errors.Is(err, services.ErrNotGroupMember) {
		writeError(w, http.StatusNotFound, "User is not a member of this group")
		return
	}
	if err != nil {
		log.Printf("Error removing member: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Member removed"})
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	err = h.groupService.Leave(r.Context(), groupID, user.ID)
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrCannotLeaveAsOwner) {
		writeError(w, http.StatusBadRequest, "The creator must delete the group instead")
		return
	}
	if errors.Is(err, services.ErrNotGroupMember) {
		writeError(w, http.StatusForbidden, "Not a member of this group")
		return
	}
	if err != nil {
		log.Printf("Error leaving group: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Left group"})
}

func (h *GroupHandler) AvailableInvitees(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	invitees, err := h.groupService.AvailableInvitees(r.Context(), groupID, user.ID)
	if errors.Is(err, services.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if errors.Is(err, services.ErrNotGroupMember) {
		writeError(w, http.StatusForbidden, "Not a member of this group")
		return
	}
	if err != nil {
		log.Printf("Error listing invitees: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UsersResponse{Users: invitees})
}
