package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/HammerMeetNail/splitsync/internal/services"
	"github.com/HammerMeetNail/splitsync/internal/store"
	syncfeed "github.com/HammerMeetNail/splitsync/internal/sync"

	"github.com/HammerMeetNail/splitsync/internal/logging"
)

type FeedHandler struct {
	store           store.Store
	friendService   *services.FriendService
	groupService    *services.GroupService
	identityService *services.IdentityService
	log             *logging.Logger
}

func NewFeedHandler(st store.Store, friends *services.FriendService, groups *services.GroupService, identity *services.IdentityService, log *logging.Logger) *FeedHandler {
	return &FeedHandler{
		store:           st,
		friendService:   friends,
		groupService:    groups,
		identityService: identity,
		log:             log,
	}
}

// Stream serves the change feed as server-sent events. Each event is one
// projected view update; the connection carries initial snapshots of every
// view followed by live changes until the client disconnects.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	feed := syncfeed.NewFeed(h.store, h.friendService, h.groupService, h.log)
	defer feed.Close()
	feed.SetUser(&user.ID)

	if err := h.identityService.TouchLastSeen(r.Context(), user.ID); err != nil {
		h.log.Warn("Failed to touch last seen", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-feed.Updates():
			if !ok {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				h.log.Warn("Failed to encode feed update", map[string]interface{}{
					"kind":  string(update.Kind),
					"error": err.Error(),
				})
				continue
			}
			if _, err := w.Write([]byte("event: " + string(update.Kind) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
