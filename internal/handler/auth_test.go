package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/handler"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestStaff(t *testing.T, store *mockStaffStore) model.Staff {
	t.Helper()
	branch := model.Branch{ID: uuid.New(), Name: "Cardiff", Location: "Queen Street"}
	store.branches[branch.ID] = branch
	staff := model.Staff{
		ID:             uuid.New(),
		Email:          "server@test.com",
		FullName:       "Test Server",
		HashedPassword: hashPassword(t, "correct-password"),
		BranchID:       branch.ID,
	}
	store.addStaff(staff)
	return staff
}

func setupAuthRouter(store *mockStaffStore, onSignOut ...func(uuid.UUID)) http.Handler {
	sessions := newSessions(store)
	h := handler.NewAuthHandler(sessions, logger.Nop(), onSignOut...)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(sessions))
		h.RegisterRoutes(r)
	})
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockStaffStore()
	staff := makeTestStaff(t, store)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "Server@Test.com",
		"password": "correct-password",
	}, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Fatal("expected access_token in response")
	}
	user, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if user["id"] != staff.ID.String() {
		t.Errorf("expected user id %s, got %v", staff.ID, user["id"])
	}
	branch, ok := user["branch"].(map[string]interface{})
	if !ok {
		t.Fatal("expected branch in user")
	}
	if branch["name"] != "Cardiff" {
		t.Errorf("expected branch Cardiff, got %v", branch["name"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockStaffStore()
	makeTestStaff(t, store)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "server@test.com",
		"password": "wrong-password",
	}, "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("expected 'invalid credentials', got %v", resp["error"])
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	router := setupAuthRouter(newMockStaffStore())

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "whatever",
	}, "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(newMockStaffStore())

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{name: "no email", body: map[string]string{"password": "x"}, want: "email"},
		{name: "no password", body: map[string]string{"email": "a@b.com"}, want: "password"},
		{name: "bad email", body: map[string]string{"email": "not-an-email", "password": "x"}, want: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/auth/login", tt.body, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			resp := decodeResponse(t, rr)
			details, ok := resp["details"].(map[string]interface{})
			if !ok {
				t.Fatalf("expected details, got %v", resp)
			}
			if _, ok := details[tt.want]; !ok {
				t.Errorf("expected details for %q, got %v", tt.want, details)
			}
		})
	}
}

// --- Session tests ---

func TestMe_ReturnsProfile(t *testing.T) {
	store := newMockStaffStore()
	staff := makeTestStaff(t, store)
	router := setupAuthRouter(store)

	claims := testClaims(staff.BranchID)
	claims.UserID = staff.ID
	rr := doAuthRequest(t, router, "GET", "/me", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["email"] != staff.Email {
		t.Errorf("expected email %s, got %v", staff.Email, resp["email"])
	}
	if resp["branch_id"] != staff.BranchID.String() {
		t.Errorf("expected branch_id %s, got %v", staff.BranchID, resp["branch_id"])
	}
}

func TestMe_NoBranch(t *testing.T) {
	store := newMockStaffStore()
	staff := model.Staff{ID: uuid.New(), Email: "new@test.com", FullName: "New Starter"}
	store.addStaff(staff)
	router := setupAuthRouter(store)

	claims := testClaims(uuid.Nil)
	claims.UserID = staff.ID
	rr := doAuthRequest(t, router, "GET", "/me", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["branch_id"] != nil || resp["branch"] != nil {
		t.Errorf("expected null branch, got %v / %v", resp["branch_id"], resp["branch"])
	}
}

func TestMe_RequiresToken(t *testing.T) {
	router := setupAuthRouter(newMockStaffStore())

	rr := doRequest(t, router, "GET", "/me", nil, "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLogout_RevokesTokenAndRunsHooks(t *testing.T) {
	store := newMockStaffStore()
	makeTestStaff(t, store)

	var dropped []uuid.UUID
	router := setupAuthRouter(store, func(id uuid.UUID) { dropped = append(dropped, id) })

	login := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "server@test.com",
		"password": "correct-password",
	}, "")
	if login.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", login.Code)
	}
	token := decodeResponse(t, login)["access_token"].(string)

	rr := doRequest(t, router, "POST", "/auth/logout", nil, token)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(dropped) != 1 {
		t.Fatalf("expected sign-out hook to run once, ran %d times", len(dropped))
	}

	rr = doRequest(t, router, "GET", "/me", nil, token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}
