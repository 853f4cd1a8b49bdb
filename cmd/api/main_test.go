package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobtrail/application"
	"jobtrail/auth"
	"jobtrail/dashboard"
)

const (
	testToken = "good-token"
	testUser  = "7f1b7a3e-5b8f-4a51-9a3c-0c7a4e1f2d10"
	testApp   = "2b0f8d5c-3f7e-4c1b-8c55-6a9f0e3d4b21"
	testStage = "9c4e2a17-1d3b-4f6a-b2e8-5d7c0f1a3e42"
	testEvent = "4d8a1c63-7e2f-4b9d-a5c1-3f6e8b0d2a97"
)

type stubAuth struct {
	registered auth.RegisterRequest
	err        error
}

func (s *stubAuth) Register(_ context.Context, req auth.RegisterRequest) (*auth.User, error) {
	s.registered = req
	if s.err != nil {
		return nil, s.err
	}
	return &auth.User{ID: testUser, Email: req.Email, FullName: req.FullName}, nil
}

func (s *stubAuth) Login(_ context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	if req.Password != "correct-password" {
		return auth.LoginResult{}, auth.ErrInvalidCredentials
	}
	return auth.LoginResult{Token: testToken, User: auth.User{ID: testUser, Email: req.Email}}, nil
}

func (s *stubAuth) GetUserByID(_ context.Context, userID string) (*auth.User, error) {
	return &auth.User{ID: userID, Email: "me@example.com", FullName: "Me"}, nil
}

func (s *stubAuth) VerifyToken(token string) (string, error) {
	if token != testToken {
		return "", auth.ErrInvalidToken
	}
	return testUser, nil
}

type stubApplications struct {
	calls   int
	err     error
	created application.CreateParams
	updated application.UpdateParams
	listed  application.ListParams
	event   application.UpdateEventParams
	app     application.Application
}

func (s *stubApplications) Create(_ context.Context, p application.CreateParams) (application.Application, error) {
	s.calls++
	s.created = p
	return s.app, s.err
}

func (s *stubApplications) Get(_ context.Context, _, _ string) (application.Application, error) {
	s.calls++
	return s.app, s.err
}

func (s *stubApplications) List(_ context.Context, p application.ListParams) (application.ListResult, error) {
	s.calls++
	s.listed = p
	next := testApp
	return application.ListResult{Items: []application.Application{s.app}, Limit: 1, NextCursor: &next, HasNextPage: true}, s.err
}

func (s *stubApplications) Update(_ context.Context, p application.UpdateParams) (application.Application, error) {
	s.calls++
	s.updated = p
	return s.app, s.err
}

func (s *stubApplications) Delete(_ context.Context, _, _ string) error {
	s.calls++
	return s.err
}

func (s *stubApplications) ListStages(_ context.Context, _, _ string) ([]application.Stage, error) {
	s.calls++
	applied := application.StageApplied
	return []application.Stage{{ID: testStage, ApplicationID: testApp, StageType: &applied, Title: "Applied"}}, s.err
}

func (s *stubApplications) CreateStage(_ context.Context, _ application.CreateStageParams) (application.Stage, error) {
	s.calls++
	return application.Stage{}, s.err
}

func (s *stubApplications) UpdateStage(_ context.Context, _ application.UpdateStageParams) (application.Stage, error) {
	s.calls++
	return application.Stage{}, s.err
}

func (s *stubApplications) DeleteStage(_ context.Context, _, _, _ string) error {
	s.calls++
	return s.err
}

func (s *stubApplications) ListEvents(_ context.Context, _, _, _ string) ([]application.ListedEvent, error) {
	s.calls++
	return []application.ListedEvent{{Event: application.Event{ID: testEvent, StageID: testStage}, IsOverdue: true}}, s.err
}

func (s *stubApplications) CreateEvent(_ context.Context, _ application.CreateEventParams) (application.Event, error) {
	s.calls++
	return application.Event{}, s.err
}

func (s *stubApplications) UpdateEvent(_ context.Context, p application.UpdateEventParams) (application.Event, error) {
	s.calls++
	s.event = p
	return application.Event{ID: p.EventID}, s.err
}

func (s *stubApplications) DeleteEvent(_ context.Context, _, _, _, _ string) error {
	s.calls++
	return s.err
}

type stubDashboard struct {
	userID string
	query  dashboard.Query
	err    error
}

func (s *stubDashboard) record(userID string, q dashboard.Query) {
	s.userID = userID
	s.query = q
}

func (s *stubDashboard) ActionCenter(_ context.Context, u string, q dashboard.Query) (dashboard.ActionCenterReport, error) {
	s.record(u, q)
	return dashboard.ActionCenter(nil, nil, time.Now(), q.TZOffsetMinutes), s.err
}

func (s *stubDashboard) Speed(_ context.Context, u string, q dashboard.Query) (dashboard.SpeedReport, error) {
	s.record(u, q)
	return dashboard.Speed(nil, q.TZOffsetMinutes), s.err
}

func (s *stubDashboard) Funnel(_ context.Context, u string, q dashboard.Query) (dashboard.FunnelReport, error) {
	s.record(u, q)
	return dashboard.Funnel(nil, nil), s.err
}

func (s *stubDashboard) Outcomes(_ context.Context, u string, q dashboard.Query) (dashboard.OutcomesReport, error) {
	s.record(u, q)
	return dashboard.Outcomes(nil), s.err
}

func (s *stubDashboard) Hygiene(_ context.Context, u string, q dashboard.Query) (dashboard.HygieneReport, error) {
	s.record(u, q)
	return dashboard.Hygiene(nil), s.err
}

func (s *stubDashboard) ROI(_ context.Context, u string, q dashboard.Query) (dashboard.ROIReport, error) {
	s.record(u, q)
	return dashboard.ROI(nil), s.err
}

func (s *stubDashboard) RoleROI(_ context.Context, u string, q dashboard.Query) (dashboard.RoleROIReport, error) {
	s.record(u, q)
	return dashboard.RoleROI(nil, nil), s.err
}

func (s *stubDashboard) Overview(_ context.Context, u string, q dashboard.Query) (dashboard.Overview, error) {
	s.record(u, q)
	return dashboard.Overview{}, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer() (*Server, *stubApplications, *stubDashboard) {
	apps := &stubApplications{app: application.Application{
		ID:          testApp,
		CompanyName: "Acme",
		RoleTitle:   "Backend Engineer",
		Status:      application.StatusOpen,
	}}
	dash := &stubDashboard{}
	return &Server{
		authService:        &stubAuth{},
		applicationService: apps,
		dashboardService:   dash,
	}, apps, dash
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, payload
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer()
	server.db = stubPinger{}
	rec, payload := do(t, server, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected healthy 200, got %d %v", rec.Code, payload)
	}

	server.db = stubPinger{err: errors.New("down")}
	rec, payload = do(t, server, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable || payload["ok"] != false {
		t.Fatalf("expected 503, got %d %v", rec.Code, payload)
	}
}

func TestRequireUser(t *testing.T) {
	server, apps, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if apps.calls != 0 {
		t.Fatalf("service must not be reached without a verified user")
	}
}

func TestAuthRoutes(t *testing.T) {
	server, _, _ := newTestServer()

	rec, payload := do(t, server, http.MethodPost, "/api/auth/register",
		`{"email":"a@example.com","password":"longenough","fullName":"Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %v", rec.Code, payload)
	}

	rec, payload = do(t, server, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"correct-password"}`)
	if rec.Code != http.StatusOK || payload["token"] != testToken {
		t.Fatalf("login: expected token, got %d %v", rec.Code, payload)
	}

	rec, _ = do(t, server, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login: expected 401, got %d", rec.Code)
	}

	server.authService = &stubAuth{err: auth.ErrDuplicateEmail}
	rec, _ = do(t, server, http.MethodPost, "/api/auth/register",
		`{"email":"a@example.com","password":"longenough","fullName":"Ada"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	rec, payload = do(t, server, http.MethodGet, "/api/auth/me", "")
	user, _ := payload["user"].(map[string]any)
	if rec.Code != http.StatusOK || user["id"] != testUser {
		t.Fatalf("me: unexpected %d %v", rec.Code, payload)
	}
}

func TestCreateApplication(t *testing.T) {
	server, apps, _ := newTestServer()

	rec, payload := do(t, server, http.MethodPost, "/api/applications",
		`{"companyName":"Acme","roleTitle":"Backend Engineer","workMode":"REMOTE","source":"LinkedIn"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rec.Code, payload)
	}
	if apps.created.UserID != testUser {
		t.Fatalf("expected verified user id to reach the service, got %q", apps.created.UserID)
	}
	if apps.created.WorkMode == nil || *apps.created.WorkMode != application.WorkModeRemote {
		t.Fatalf("work mode not forwarded: %+v", apps.created)
	}
	body, _ := payload["application"].(map[string]any)
	if body["id"] != testApp || body["statusLabel"] != "Open" {
		t.Fatalf("unexpected application body: %v", body)
	}

	rec, _ = do(t, server, http.MethodPost, "/api/applications", `{"companyName":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestUpdateApplicationDistinguishesNull(t *testing.T) {
	server, apps, _ := newTestServer()

	rec, _ := do(t, server, http.MethodPatch, "/api/applications/"+testApp, `{"workMode":null,"notes":"follow up"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !apps.updated.WorkMode.Set || !apps.updated.WorkMode.Null {
		t.Fatalf("expected explicit null work mode, got %+v", apps.updated.WorkMode)
	}
	if apps.updated.CompanyName.Set {
		t.Fatalf("absent field must stay unset")
	}
	if !apps.updated.Notes.Set || apps.updated.Notes.Value != "follow up" {
		t.Fatalf("notes not forwarded: %+v", apps.updated.Notes)
	}
	if apps.updated.ApplicationID != testApp {
		t.Fatalf("path id not forwarded: %q", apps.updated.ApplicationID)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: company name is required", application.ErrValidation), http.StatusBadRequest},
		{application.ErrNotFound, http.StatusNotFound},
		{application.ErrStageNotFound, http.StatusNotFound},
		{application.ErrLocked, http.StatusConflict},
		{application.ErrNotDeletable, http.StatusConflict},
		{application.ErrProtectedStage, http.StatusConflict},
		{fmt.Errorf("application: create: %w", application.ErrActivityTouch), http.StatusInternalServerError},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		server, apps, _ := newTestServer()
		apps.err = tc.err

		rec, payload := do(t, server, http.MethodDelete, "/api/applications/"+testApp, "")
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if payload["ok"] != false {
			t.Fatalf("%v: expected ok=false", tc.err)
		}
		if tc.want == http.StatusInternalServerError && payload["error"] != "internal error" {
			t.Fatalf("internal errors must not leak: %v", payload["error"])
		}
	}
}

func TestInvalidPathIDsAreNotFound(t *testing.T) {
	server, apps, _ := newTestServer()

	paths := []string{
		"/api/applications/not-a-uuid",
		"/api/applications/" + testApp + "/stages/nope/events",
		"/api/applications/" + testApp + "/stages/" + testStage + "/events/nope",
	}
	for _, p := range paths {
		method := http.MethodGet
		if strings.HasSuffix(p, "/nope") {
			method = http.MethodDelete
		}
		rec, _ := do(t, server, method, p, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", p, rec.Code)
		}
	}
	if apps.calls != 0 {
		t.Fatalf("service must not be reached for malformed ids")
	}
}

func TestListApplications(t *testing.T) {
	server, apps, _ := newTestServer()

	rec, payload := do(t, server, http.MethodGet, "/api/applications?status=OPEN&q=acme&limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if apps.listed.Status == nil || *apps.listed.Status != application.StatusOpen || apps.listed.Query != "acme" || apps.listed.Limit != 1 {
		t.Fatalf("list params not forwarded: %+v", apps.listed)
	}
	page, _ := payload["page"].(map[string]any)
	if page["hasNextPage"] != true || page["nextCursor"] != testApp {
		t.Fatalf("unexpected page: %v", page)
	}

	rec, _ = do(t, server, http.MethodGet, "/api/applications?limit=ten", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer limit, got %d", rec.Code)
	}
}

func TestStageAndEventRoutes(t *testing.T) {
	server, apps, _ := newTestServer()

	rec, payload := do(t, server, http.MethodGet, "/api/applications/"+testApp+"/stages", "")
	stages, _ := payload["stages"].([]any)
	if rec.Code != http.StatusOK || len(stages) != 1 {
		t.Fatalf("list stages: %d %v", rec.Code, payload)
	}
	if first, _ := stages[0].(map[string]any); first["stageTypeLabel"] != "Applied" {
		t.Fatalf("expected stage type label, got %v", first)
	}

	rec, payload = do(t, server, http.MethodGet, "/api/applications/"+testApp+"/stages/"+testStage+"/events", "")
	events, _ := payload["events"].([]any)
	if rec.Code != http.StatusOK || len(events) != 1 {
		t.Fatalf("list events: %d %v", rec.Code, payload)
	}
	if first, _ := events[0].(map[string]any); first["isOverdue"] != true {
		t.Fatalf("expected isOverdue decoration, got %v", first)
	}

	path := "/api/applications/" + testApp + "/stages/" + testStage + "/events/" + testEvent
	rec, _ = do(t, server, http.MethodPatch, path, `{"followUpDoneAt":"2024-06-01T10:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update event: expected 200, got %d", rec.Code)
	}
	if apps.event.EventID != testEvent || apps.event.StageID != testStage || !apps.event.FollowUpDoneAt.Set {
		t.Fatalf("event params not forwarded: %+v", apps.event)
	}
}

func TestDashboardRoutes(t *testing.T) {
	server, _, dash := newTestServer()
	query := "?from=2024-01-01&to=2024-03-31&tzOffsetMinutes=-180&sourceBucket=LINKEDIN"

	for _, panel := range []string{"action-center", "speed", "funnel", "outcomes", "hygiene", "roi", "role-roi", "overview"} {
		rec, payload := do(t, server, http.MethodGet, "/api/dashboard/"+panel+query, "")
		if rec.Code != http.StatusOK || payload["ok"] != true {
			t.Fatalf("%s: expected 200 ok, got %d %v", panel, rec.Code, payload)
		}
	}
	if dash.userID != testUser || dash.query.TZOffsetMinutes != -180 {
		t.Fatalf("query not forwarded: %q %+v", dash.userID, dash.query)
	}

	_, payload := do(t, server, http.MethodGet, "/api/dashboard/speed"+query, "")
	if _, ok := payload["firstResponse"]; !ok {
		t.Fatalf("speed payload must sit beside ok, got %v", payload)
	}
	if _, ok := payload["timeToCloseByStatus"]; !ok {
		t.Fatalf("missing timeToCloseByStatus: %v", payload)
	}

	rec, payload := do(t, server, http.MethodGet, "/api/dashboard/funnel?from=2024-01-01&to=2024-03-31", "")
	if rec.Code != http.StatusBadRequest || payload["ok"] != false {
		t.Fatalf("expected 400 for missing tzOffsetMinutes, got %d %v", rec.Code, payload)
	}

	dash.err = errors.New("statement timeout")
	rec, _ = do(t, server, http.MethodGet, "/api/dashboard/roi"+query, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on read failure, got %d", rec.Code)
	}
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{"DATABASE_URL": "postgres://localhost/jobtrail", "JWT_SECRET": "s3cret-value"}
	cfg, err := loadConfig(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBMaxConns != 10 || cfg.MigrateOnStart {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	env["DB_MAX_CONNS"] = "25"
	env["MIGRATE_ON_START"] = "true"
	env["PORT"] = "9090"
	cfg, err = loadConfig(func(k string) string { return env[k] })
	if err != nil || cfg.DBMaxConns != 25 || !cfg.MigrateOnStart || cfg.Port != "9090" {
		t.Fatalf("overrides not applied: %+v %v", cfg, err)
	}

	env["DB_MAX_CONNS"] = "-1"
	if _, err := loadConfig(func(k string) string { return env[k] }); err == nil {
		t.Fatal("expected error for negative pool size")
	}

	if _, err := loadConfig(func(k string) string { return "" }); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	if got := maskSecret("s3cret-value"); got != "s3********ue" {
		t.Fatalf("mask = %q", got)
	}
}
