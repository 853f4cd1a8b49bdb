package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"jobtrail/application"
	"jobtrail/auth"
	"jobtrail/dashboard"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyUserID ctxKey = "userID"

const maxBodyBytes = 1 << 20

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	VerifyToken(token string) (string, error)
}

type applicationService interface {
	Create(ctx context.Context, params application.CreateParams) (application.Application, error)
	Get(ctx context.Context, userID, id string) (application.Application, error)
	List(ctx context.Context, params application.ListParams) (application.ListResult, error)
	Update(ctx context.Context, params application.UpdateParams) (application.Application, error)
	Delete(ctx context.Context, userID, id string) error

	ListStages(ctx context.Context, userID, applicationID string) ([]application.Stage, error)
	CreateStage(ctx context.Context, params application.CreateStageParams) (application.Stage, error)
	UpdateStage(ctx context.Context, params application.UpdateStageParams) (application.Stage, error)
	DeleteStage(ctx context.Context, userID, applicationID, stageID string) error

	ListEvents(ctx context.Context, userID, applicationID, stageID string) ([]application.ListedEvent, error)
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, userID, applicationID, stageID, eventID string) error
}

type dashboardService interface {
	ActionCenter(ctx context.Context, userID string, q dashboard.Query) (dashboard.ActionCenterReport, error)
	Speed(ctx context.Context, userID string, q dashboard.Query) (dashboard.SpeedReport, error)
	Funnel(ctx context.Context, userID string, q dashboard.Query) (dashboard.FunnelReport, error)
	Outcomes(ctx context.Context, userID string, q dashboard.Query) (dashboard.OutcomesReport, error)
	Hygiene(ctx context.Context, userID string, q dashboard.Query) (dashboard.HygieneReport, error)
	ROI(ctx context.Context, userID string, q dashboard.Query) (dashboard.ROIReport, error)
	RoleROI(ctx context.Context, userID string, q dashboard.Query) (dashboard.RoleROIReport, error)
	Overview(ctx context.Context, userID string, q dashboard.Query) (dashboard.Overview, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and the services they delegate to.
type Server struct {
	authService        authService
	applicationService applicationService
	dashboardService   dashboardService
	db                 pinger
	now                func() time.Time
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(s.requireUser).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/api/applications", func(r chi.Router) {
			r.Get("/", s.handleListApplications)
			r.Post("/", s.handleCreateApplication)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireUUIDParam("id", application.ErrNotFound))
				r.Get("/", s.handleGetApplication)
				r.Patch("/", s.handleUpdateApplication)
				r.Delete("/", s.handleDeleteApplication)

				r.Get("/stages", s.handleListStages)
				r.Post("/stages", s.handleCreateStage)
				r.Route("/stages/{stageId}", func(r chi.Router) {
					r.Use(requireUUIDParam("stageId", application.ErrStageNotFound))
					r.Patch("/", s.handleUpdateStage)
					r.Delete("/", s.handleDeleteStage)

					r.Get("/events", s.handleListEvents)
					r.Post("/events", s.handleCreateEvent)
					r.With(requireUUIDParam("eventId", application.ErrEventNotFound)).
						Patch("/events/{eventId}", s.handleUpdateEvent)
					r.With(requireUUIDParam("eventId", application.ErrEventNotFound)).
						Delete("/events/{eventId}", s.handleDeleteEvent)
				})
			})
		})

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/action-center", dashboardPanel(s, "action-center", s.dashboardService.ActionCenter))
			r.Get("/speed", dashboardPanel(s, "speed", s.dashboardService.Speed))
			r.Get("/funnel", dashboardPanel(s, "funnel", s.dashboardService.Funnel))
			r.Get("/outcomes", dashboardPanel(s, "outcomes", s.dashboardService.Outcomes))
			r.Get("/hygiene", dashboardPanel(s, "hygiene", s.dashboardService.Hygiene))
			r.Get("/roi", dashboardPanel(s, "roi", s.dashboardService.ROI))
			r.Get("/role-roi", dashboardPanel(s, "role-roi", s.dashboardService.RoleROI))
			r.Get("/overview", dashboardPanel(s, "overview", s.dashboardService.Overview))
		})
	})

	return r
}

// requireUser verifies the bearer token and stores the user id in the context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := s.authService.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUUIDParam answers 404 for path ids that cannot name a row.
func requireUUIDParam(name string, notFound error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := uuid.Validate(chi.URLParam(r, name)); err != nil {
				writeError(w, http.StatusNotFound, publicMessage(notFound))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userIDFrom(r *http.Request) string {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	return userID
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.Printf("[health] database ping: %v", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeOK(w, http.StatusOK, map[string]any{"time": s.clock().UTC()})
}

// dashboardPanel adapts one read-only panel computation into a GET handler
// whose payload is flattened next to the ok flag.
func dashboardPanel[T any](s *Server, name string, compute func(context.Context, string, dashboard.Query) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := dashboard.ParseQuery(r.URL.Query())
		if err != nil {
			s.fail(w, "dashboard/"+name, err)
			return
		}
		report, err := compute(r.Context(), userIDFrom(r), q)
		if err != nil {
			s.fail(w, "dashboard/"+name, err)
			return
		}
		writeFlattened(w, http.StatusOK, report)
	}
}

// statusFor maps domain errors onto HTTP statuses. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrInvalidQuery),
		errors.Is(err, application.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidRegistration),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrNotFound),
		errors.Is(err, application.ErrStageNotFound),
		errors.Is(err, application.ErrEventNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrLocked),
		errors.Is(err, application.ErrNotDeletable),
		errors.Is(err, application.ErrProtectedStage),
		errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, route string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[%s] %v", route, err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, publicMessage(err))
}

// publicMessage drops the leading package prefix from sentinel-wrapped errors.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && !strings.Contains(msg[:i], " ") {
		return msg[i+2:]
	}
	return msg
}

var errBadRequest = errors.New("request: bad request")

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", errBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// writeFlattened renders a report struct with its top-level fields beside ok.
func writeFlattened(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal payload: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		log.Printf("flatten payload: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	fields["ok"] = json.RawMessage("true")
	writeJSON(w, status, fields)
}
