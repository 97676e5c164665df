package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/session"
)

const testJWTSecret = "test-secret"

// --- Mock staff store ---

type mockStaffStore struct {
	byEmail  map[string]model.Staff
	byID     map[uuid.UUID]model.Staff
	branches map[uuid.UUID]model.Branch
}

func newMockStaffStore() *mockStaffStore {
	return &mockStaffStore{
		byEmail:  make(map[string]model.Staff),
		byID:     make(map[uuid.UUID]model.Staff),
		branches: make(map[uuid.UUID]model.Branch),
	}
}

func (m *mockStaffStore) addStaff(s model.Staff) {
	m.byEmail[s.Email] = s
	m.byID[s.ID] = s
}

func (m *mockStaffStore) GetStaffByEmail(_ context.Context, email string) (model.Staff, error) {
	s, ok := m.byEmail[email]
	if !ok {
		return model.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockStaffStore) GetStaff(_ context.Context, id uuid.UUID) (model.Staff, error) {
	s, ok := m.byID[id]
	if !ok {
		return model.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockStaffStore) GetBranch(_ context.Context, id uuid.UUID) (model.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return model.Branch{}, pgx.ErrNoRows
	}
	return b, nil
}

// --- Helpers ---

func newSessions(store session.StaffReader) *session.Manager {
	return session.NewManager(store, session.NewMemoryRevocations(), testJWTSecret, time.Hour, logger.Nop())
}

func testClaims(branchID uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), BranchID: branchID}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, _, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.BranchID, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return doRequest(t, router, method, path, body, token)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}
