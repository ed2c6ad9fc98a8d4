package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/HammerMeetNail/splitsync/internal/logging"
	"github.com/HammerMeetNail/splitsync/internal/models"
	"github.com/HammerMeetNail/splitsync/internal/services"
	"github.com/HammerMeetNail/splitsync/internal/store/sqlite"
	"github.com/HammerMeetNail/splitsync/internal/testutil"
)

type testEnv struct {
	identity *services.IdentityService
	friends  *services.FriendService
	groups   *services.GroupService

	users      *UserHandler
	friendsAPI *FriendHandler
	groupsAPI  *GroupHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	st, err := sqlite.New(db, logging.New().SetOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	identity := services.NewIdentityService(st)
	friends := services.NewFriendService(st)
	groups := services.NewGroupService(st, friends)

	return &testEnv{
		identity:   identity,
		friends:    friends,
		groups:     groups,
		users:      NewUserHandler(identity),
		friendsAPI: NewFriendHandler(friends, identity),
		groupsAPI:  NewGroupHandler(groups),
	}
}

func (e *testEnv) registerUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.identity.Register(context.Background(), models.CreateUserParams{
		Username:    username,
		DisplayName: username,
	})
	if err != nil {
		t.Fatalf("failed to register %q: %v", username, err)
	}
	return user
}

func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}

func strPtr(s string) *string { return &s }

func TestUserHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/users", RegisterRequest{
		Username:    "alice",
		DisplayName: "Alice",
	})
	rr := httptest.NewRecorder()
	env.users.Register(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	user, ok := parsed["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", parsed)
	}
	if user["username"] != "alice" {
		t.Fatalf("expected username alice, got %v", user["username"])
	}
}

func TestUserHandler_Register_Invalid(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/users", RegisterRequest{
		Username:    "ab",
		DisplayName: "A",
	})
	rr := httptest.NewRecorder()
	env.users.Register(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
}

func TestUserHandler_Register_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	req := testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/users", RegisterRequest{
		Username:    "alice",
		DisplayName: "Other",
	})
	rr := httptest.NewRecorder()
	env.users.Register(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusConflict)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "error", "Username already taken")
}

func TestUserHandler_Register_PreservesUsernameCase(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/users", RegisterRequest{
		Username:    "Alice",
		DisplayName: "Alice",
	})
	rr := httptest.NewRecorder()
	env.users.Register(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	user, ok := parsed["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", parsed)
	}
	if user["username"] != "Alice" {
		t.Fatalf("expected username Alice, got %v", user["username"])
	}

	// The stored name is an exact match only; other casings resolve nothing.
	if _, err := env.identity.ByUsername(context.Background(), "alice"); !errors.Is(err, services.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for lowercase lookup, got %v", err)
	}
}

func TestUserHandler_UpdateMe_UsernameTaken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	env.registerUser(t, "bob")

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPut, "/api/users/me", UpdateProfileRequest{
		Username: strPtr("bob"),
	}), alice)
	rr := httptest.NewRecorder()
	env.users.UpdateMe(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusConflict)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "error", "Username already taken")
}

func TestUserHandler_UpdateMe_Username(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPut, "/api/users/me", UpdateProfileRequest{
		Username: strPtr("alice2"),
	}), alice)
	rr := httptest.NewRecorder()
	env.users.UpdateMe(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	user, ok := parsed["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", parsed)
	}
	if user["username"] != "alice2" {
		t.Fatalf("expected username alice2, got %v", user["username"])
	}
}

func TestUserHandler_Me_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/users/me", nil)
	rr := httptest.NewRecorder()
	env.users.Me(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestUserHandler_Search_ExcludesSelf(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	env.registerUser(t, "albert")

	req := asUser(testutil.NewTestRequest(http.MethodGet, "/api/users/search?q=al", nil), alice)
	rr := httptest.NewRecorder()
	env.users.Search(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	users, ok := parsed["users"].([]interface{})
	if !ok {
		t.Fatalf("expected users array, got %v", parsed)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 result (self excluded), got %d", len(users))
	}
}

func TestFriendHandler_SendAndRespond(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/friends/requests", SendFriendRequestRequest{
		ReceiverID: &bob.ID,
	}), alice)
	rr := httptest.NewRecorder()
	env.friendsAPI.SendRequest(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusCreated)

	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	request, ok := parsed["request"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected request object, got %v", parsed)
	}
	requestID := request["id"].(string)

	// Bob accepts.
	respondReq := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPut, "/api/friends/requests/"+requestID+"/respond", RespondRequest{
		Accept: true,
	}), bob)
	respondReq.SetPathValue("id", requestID)
	rr = httptest.NewRecorder()
	env.friendsAPI.Respond(rr, respondReq)
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	// Both sides now see each other as friends.
	listReq := asUser(testutil.NewTestRequest(http.MethodGet, "/api/friends", nil), alice)
	rr = httptest.NewRecorder()
	env.friendsAPI.ListFriends(rr, listReq)
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	parsed = testutil.ParseJSONResponse(t, rr.Body.Bytes())
	friends := parsed["friends"].([]interface{})
	if len(friends) != 1 {
		t.Fatalf("expected 1 friend, got %d", len(friends))
	}
}

func TestFriendHandler_SendByUsername(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	env.registerUser(t, "bob")

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/friends/requests", SendFriendRequestRequest{
		Username: "bob",
	}), alice)
	rr := httptest.NewRecorder()
	env.friendsAPI.SendRequest(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusCreated)
}

func TestFriendHandler_Respond_WrongUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	fr, err := env.friends.Send(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The sender cannot accept their own request.
	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPut, "/api/friends/requests/"+fr.ID.String()+"/respond", RespondRequest{
		Accept: true,
	}), alice)
	req.SetPathValue("id", fr.ID.String())
	rr := httptest.NewRecorder()
	env.friendsAPI.Respond(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
}

func TestFriendHandler_Duplicate_Conflict(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	if _, err := env.friends.Send(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/friends/requests", SendFriendRequestRequest{
		ReceiverID: &bob.ID,
	}), alice)
	rr := httptest.NewRecorder()
	env.friendsAPI.SendRequest(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusConflict)
}

func TestGroupHandler_CreateAndInvite(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	req := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/groups", CreateGroupRequest{
		Name: "Trip",
	}), alice)
	rr := httptest.NewRecorder()
	env.groupsAPI.Create(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusCreated)

	parsed := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	group := parsed["group"].(map[string]interface{})
	groupID := group["id"].(string)

	inviteReq := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/groups/"+groupID+"/invitations", InviteRequest{
		InviteeID: bob.ID,
	}), alice)
	inviteReq.SetPathValue("id", groupID)
	rr = httptest.NewRecorder()
	env.groupsAPI.Invite(rr, inviteReq)
	testutil.AssertStatusCode(t, rr, http.StatusCreated)

	parsed = testutil.ParseJSONResponse(t, rr.Body.Bytes())
	invitation := parsed["invitation"].(map[string]interface{})
	invitationID := invitation["id"].(string)

	// Bob accepts and joins the group.
	respondReq := asUser(testutil.NewTestRequestWithJSON(t, http.MethodPut, "/api/invitations/"+invitationID+"/respond", RespondRequest{
		Accept: true,
	}), bob)
	respondReq.SetPathValue("id", invitationID)
	rr = httptest.NewRecorder()
	env.groupsAPI.RespondToInvitation(rr, respondReq)
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	getReq := asUser(testutil.NewTestRequest(http.MethodGet, "/api/groups/"+groupID, nil), bob)
	getReq.SetPathValue("id", groupID)
	rr = httptest.NewRecorder()
	env.groupsAPI.Get(rr, getReq)
	testutil.AssertStatusCode(t, rr, http.StatusOK)
}

func TestGroupHandler_Get_NonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	carol := env.registerUser(t, "carol")

	group, err := env.groups.Create(context.Background(), alice.ID, "Trip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := asUser(testutil.NewTestRequest(http.MethodGet, "/api/groups/"+group.ID.String(), nil), carol)
	req.SetPathValue("id", group.ID.String())
	rr := httptest.NewRecorder()
	env.groupsAPI.Get(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
}

func TestGroupHandler_Delete_CreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	group, err := env.groups.Create(context.Background(), alice.ID, "Trip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := asUser(testutil.NewTestRequest(http.MethodDelete, "/api/groups/"+group.ID.String(), nil), bob)
	req.SetPathValue("id", group.ID.String())
	rr := httptest.NewRecorder()
	env.groupsAPI.Delete(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)

	req = asUser(testutil.NewTestRequest(http.MethodDelete, "/api/groups/"+group.ID.String(), nil), alice)
	req.SetPathValue("id", group.ID.String())
	rr = httptest.NewRecorder()
	env.groupsAPI.Delete(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusOK)
}

func TestGroupHandler_InvalidGroupID(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")

	req := asUser(testutil.NewTestRequest(http.MethodGet, "/api/groups/nope", nil), alice)
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()
	env.groupsAPI.Get(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{})

	rr := httptest.NewRecorder()
	h.Health(rr, testutil.NewTestRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "status", "ok")
}

func TestHealthHandler_ReadyFailure(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"postgres": healthCheckFunc(func(ctx context.Context) error { return context.DeadlineExceeded }),
	})

	rr := httptest.NewRecorder()
	h.Ready(rr, testutil.NewTestRequest(http.MethodGet, "/ready", nil))
	testutil.AssertStatusCode(t, rr, http.StatusServiceUnavailable)
}

type healthCheckFunc func(ctx context.Context) error

func (f healthCheckFunc) Health(ctx context.Context) error { return f(ctx) }
