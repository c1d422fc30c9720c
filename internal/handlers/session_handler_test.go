package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/middleware"
	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/registry"
	"github.com/mvamarnath1/interview/internal/repositories"
	"github.com/mvamarnath1/interview/internal/testhelpers"
	"github.com/mvamarnath1/interview/internal/utils"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sessionFixture struct {
	router   *chi.Mux
	registry *registry.Registry
	tokens   *utils.TokenIssuer
	clock    *clock
}

func newSessionFixture(t *testing.T, turns TurnLister, presence PresenceReader, opts ...registry.Option) *sessionFixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	reg := registry.New(time.Hour, 0, zap.NewNop(), append([]registry.Option{registry.WithClock(c.Now)}, opts...)...)
	tokens := utils.NewTokenIssuer("test-secret", 10*time.Minute)
	h := NewSessionHandler(reg, presence, turns, tokens, "https://interview.example", zap.NewNop())

	router := chi.NewRouter()
	router.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/api/v1/sessions", h.CreateHandler)
	router.With(middleware.ValidateRequest[*models.JoinRequest]()).Post("/api/v1/join", h.JoinHandler)
	router.Get("/api/v1/sessions/{id}", h.GetHandler)
	router.Delete("/api/v1/sessions/{id}", h.CloseHandler)
	router.Get("/api/v1/sessions/{id}/turns", h.TurnsHandler)

	return &sessionFixture{router: router, registry: reg, tokens: tokens, clock: c}
}

func (f *sessionFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *sessionFixture) create(t *testing.T) models.CreateSessionResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", `{"ownerName":"alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.CreateSessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Code
}

func TestCreateSession(t *testing.T) {
	f := newSessionFixture(t, nil, nil)
	resp := f.create(t)

	if len(resp.JoinCode) != 6 {
		t.Fatalf("expected 6 digit join code, got %q", resp.JoinCode)
	}
	if resp.JoinURL != "https://interview.example/join?code="+resp.JoinCode {
		t.Fatalf("unexpected join url %q", resp.JoinURL)
	}
	if resp.WSPath != "/ws/"+resp.SessionID+"/interviewer" {
		t.Fatalf("unexpected ws path %q", resp.WSPath)
	}
	if !resp.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", resp.ExpiresAt)
	}

	claims, err := f.tokens.Validate(resp.InterviewerToken)
	if err != nil {
		t.Fatalf("interviewer token did not validate: %v", err)
	}
	if claims.SessionID != resp.SessionID || claims.Role != string(models.RoleInterviewer) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestCreateSessionRejectsMissingOwner(t *testing.T) {
	f := newSessionFixture(t, nil, nil)
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", `{"ownerName":"   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_owner_name" {
		t.Fatalf("expected missing_owner_name, got %s", code)
	}
}

func TestCreateSessionExhausted(t *testing.T) {
	f := newSessionFixture(t, nil, nil, registry.WithCodeSpace(1))
	f.create(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", `{"ownerName":"bob"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "resource_exhausted" {
		t.Fatalf("expected resource_exhausted, got %s", code)
	}
}

func TestJoinSession(t *testing.T) {
	f := newSessionFixture(t, nil, nil)
	created := f.create(t)

	rec := f.do(t, http.MethodPost, "/api/v1/join", `{"code":"`+created.JoinCode+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.JoinResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	if resp.SessionID != created.SessionID || resp.Role != models.RoleCandidate {
		t.Fatalf("unexpected join response %+v", resp)
	}
	if resp.WSPath != "/ws/"+created.SessionID+"/candidate" {
		t.Fatalf("unexpected ws path %q", resp.WSPath)
	}
	claims, err := f.tokens.Validate(resp.Token)
	if err != nil || claims.Role != string(models.RoleCandidate) {
		t.Fatalf("candidate token invalid: %v %+v", err, claims)
	}
}

func TestJoinSessionErrors(t *testing.T) {
	f := newSessionFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/join", `{"code":"000000"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown code, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Fatalf("expected not_found, got %s", code)
	}

	created := f.create(t)
	f.clock.Advance(time.Hour)
	rec = f.do(t, http.MethodPost, "/api/v1/join", `{"code":"`+created.JoinCode+`"}`)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected status 410 for expired code, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "expired" {
		t.Fatalf("expected expired, got %s", code)
	}

	// the code was released on expiry
	rec = f.do(t, http.MethodPost, "/api/v1/join", `{"code":"`+created.JoinCode+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after expiry, got %d", rec.Code)
	}
}

func TestGetSession(t *testing.T) {
	f := newSessionFixture(t, nil, &mockPresence{interviewer: true})
	created := f.create(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+created.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var view models.SessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode session view: %v", err)
	}
	if view.ID != created.SessionID || view.OwnerName != "alice" || view.State != models.SessionOpen {
		t.Fatalf("unexpected view %+v", view)
	}
	if !view.InterviewerBound || view.CandidateBound {
		t.Fatalf("unexpected presence flags %+v", view)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCloseSessionIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, nil, nil)
	created := f.create(t)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodDelete, "/api/v1/sessions/"+created.SessionID, "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("close #%d: expected status 204, got %d", i+1, rec.Code)
		}
	}

	rec := f.do(t, http.MethodPost, "/api/v1/join", `{"code":"`+created.JoinCode+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected closed session's code to be released, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown session, got %d", rec.Code)
	}
}

func TestSessionTurns(t *testing.T) {
	repo := &repositories.TurnRepository{DB: testhelpers.SetupTestDB(t)}
	f := newSessionFixture(t, repo, nil)
	created := f.create(t)

	for _, q := range []string{"first?", "second?"} {
		turn := &models.Turn{SessionID: created.SessionID, Question: q, Answer: "a", Score: 6, Category: models.CategoryGeneral}
		if err := repo.Append(t.Context(), turn); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+created.SessionID+"/turns", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		SessionID string        `json:"sessionId"`
		Turns     []models.Turn `json:"turns"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode turns: %v", err)
	}
	if len(body.Turns) != 2 || body.Turns[0].Question != "first?" || body.Turns[1].Question != "second?" {
		t.Fatalf("unexpected turns %+v", body.Turns)
	}
}

func TestSessionTurnsErrors(t *testing.T) {
	f := newSessionFixture(t, failingTurns{}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/missing/turns", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	created := f.create(t)
	rec = f.do(t, http.MethodGet, "/api/v1/sessions/"+created.SessionID+"/turns", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "database unavailable") {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}
