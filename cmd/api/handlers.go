package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"jobtrail/application"
	"jobtrail/auth"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "auth/register", err)
		return
	}
	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.fail(w, "auth/register", err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"user": toUserResponse(*user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "auth/login", err)
		return
	}
	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.fail(w, "auth/login", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.authService.GetUserByID(r.Context(), userIDFrom(r))
	if err != nil {
		s.fail(w, "auth/me", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": toUserResponse(*user)})
}

type createApplicationRequest struct {
	CompanyName string                `json:"companyName"`
	RoleTitle   string                `json:"roleTitle"`
	JobURL      *string               `json:"jobUrl"`
	Location    *string               `json:"location"`
	Source      *string               `json:"source"`
	Notes       *string               `json:"notes"`
	Status      *application.Status   `json:"status"`
	WorkMode    *application.WorkMode `json:"workMode"`
}

type updateApplicationRequest struct {
	CompanyName application.Optional[string]               `json:"companyName"`
	RoleTitle   application.Optional[string]               `json:"roleTitle"`
	JobURL      application.Optional[string]               `json:"jobUrl"`
	Location    application.Optional[string]               `json:"location"`
	Source      application.Optional[string]               `json:"source"`
	Notes       application.Optional[string]               `json:"notes"`
	Status      application.Optional[application.Status]   `json:"status"`
	WorkMode    application.Optional[application.WorkMode] `json:"workMode"`
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "applications/create", err)
		return
	}
	app, err := s.applicationService.Create(r.Context(), application.CreateParams{
		UserID:      userIDFrom(r),
		CompanyName: req.CompanyName,
		RoleTitle:   req.RoleTitle,
		JobURL:      req.JobURL,
		Location:    req.Location,
		Source:      req.Source,
		Notes:       req.Notes,
		Status:      req.Status,
		WorkMode:    req.WorkMode,
	})
	if err != nil {
		s.fail(w, "applications/create", err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"application": toApplicationResponse(app)})
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	params := application.ListParams{
		UserID: userIDFrom(r),
		Query:  values.Get("q"),
		Cursor: values.Get("cursor"),
	}
	if raw := values.Get("status"); raw != "" {
		status := application.Status(raw)
		params.Status = &status
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, "applications/list", fmt.Errorf("%w: limit must be an integer", errBadRequest))
			return
		}
		params.Limit = limit
	}

	result, err := s.applicationService.List(r.Context(), params)
	if err != nil {
		s.fail(w, "applications/list", err)
		return
	}
	items := make([]applicationResponse, 0, len(result.Items))
	for _, app := range result.Items {
		items = append(items, toApplicationResponse(app))
	}
	writeOK(w, http.StatusOK, map[string]any{
		"applications": items,
		"page": map[string]any{
			"limit":       result.Limit,
			"nextCursor":  result.NextCursor,
			"hasNextPage": result.HasNextPage,
		},
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.applicationService.Get(r.Context(), userIDFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "applications/get", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"application": toApplicationResponse(app)})
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req updateApplicationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "applications/update", err)
		return
	}
	app, err := s.applicationService.Update(r.Context(), application.UpdateParams{
		UserID:        userIDFrom(r),
		ApplicationID: chi.URLParam(r, "id"),
		CompanyName:   req.CompanyName,
		RoleTitle:     req.RoleTitle,
		JobURL:        req.JobURL,
		Location:      req.Location,
		Source:        req.Source,
		Notes:         req.Notes,
		Status:        req.Status,
		WorkMode:      req.WorkMode,
	})
	if err != nil {
		s.fail(w, "applications/update", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"application": toApplicationResponse(app)})
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.applicationService.Delete(r.Context(), userIDFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "applications/delete", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type createStageRequest struct {
	StageType  *application.StageType `json:"stageType"`
	Title      string                 `json:"title"`
	OrderIndex *int                   `json:"orderIndex"`
}

type updateStageRequest struct {
	StageType  application.Optional[application.StageType] `json:"stageType"`
	Title      application.Optional[string]                `json:"title"`
	OrderIndex application.Optional[int]                   `json:"orderIndex"`
}

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.applicationService.ListStages(r.Context(), userIDFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "stages/list", err)
		return
	}
	items := make([]stageResponse, 0, len(stages))
	for _, st := range stages {
		items = append(items, toStageResponse(st))
	}
	writeOK(w, http.StatusOK, map[string]any{"stages": items})
}

func (s *Server) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	var req createStageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "stages/create", err)
		return
	}
	stage, err := s.applicationService.CreateStage(r.Context(), application.CreateStageParams{
		UserID:        userIDFrom(r),
		ApplicationID: chi.URLParam(r, "id"),
		StageType:     req.StageType,
		Title:         req.Title,
		OrderIndex:    req.OrderIndex,
	})
	if err != nil {
		s.fail(w, "stages/create", err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"stage": toStageResponse(stage)})
}

func (s *Server) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	var req updateStageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "stages/update", err)
		return
	}
	stage, err := s.applicationService.UpdateStage(r.Context(), application.UpdateStageParams{
		UserID:        userIDFrom(r),
		ApplicationID: chi.URLParam(r, "id"),
		StageID:       chi.URLParam(r, "stageId"),
		StageType:     req.StageType,
		Title:         req.Title,
		OrderIndex:    req.OrderIndex,
	})
	if err != nil {
		s.fail(w, "stages/update", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"stage": toStageResponse(stage)})
}

func (s *Server) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	err := s.applicationService.DeleteStage(r.Context(), userIDFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "stageId"))
	if err != nil {
		s.fail(w, "stages/delete", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type createEventRequest struct {
	OccurredAt        *time.Time             `json:"occurredAt"`
	Channel           application.Channel    `json:"channel"`
	Direction         *application.Direction `json:"direction"`
	Notes             string                 `json:"notes"`
	Feedback          *string                `json:"feedback"`
	NextTalkingPoints *string                `json:"nextTalkingPoints"`
	FollowUpAt        *time.Time             `json:"followUpAt"`
	FollowUpDoneAt    *time.Time             `json:"followUpDoneAt"`
	Outcome           *application.Outcome   `json:"outcome"`
}

type updateEventRequest struct {
	OccurredAt        application.Optional[time.Time]             `json:"occurredAt"`
	Channel           application.Optional[application.Channel]   `json:"channel"`
	Direction         application.Optional[application.Direction] `json:"direction"`
	Notes             application.Optional[string]                `json:"notes"`
	Feedback          application.Optional[string]                `json:"feedback"`
	NextTalkingPoints application.Optional[string]                `json:"nextTalkingPoints"`
	FollowUpAt        application.Optional[time.Time]             `json:"followUpAt"`
	FollowUpDoneAt    application.Optional[time.Time]             `json:"followUpDoneAt"`
	Outcome           application.Optional[application.Outcome]   `json:"outcome"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.applicationService.ListEvents(r.Context(), userIDFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "stageId"))
	if err != nil {
		s.fail(w, "events/list", err)
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, toListedEventResponse(ev))
	}
	writeOK(w, http.StatusOK, map[string]any{"events": items})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "events/create", err)
		return
	}
	ev, err := s.applicationService.CreateEvent(r.Context(), application.CreateEventParams{
		UserID:            userIDFrom(r),
		ApplicationID:     chi.URLParam(r, "id"),
		StageID:           chi.URLParam(r, "stageId"),
		OccurredAt:        req.OccurredAt,
		Channel:           req.Channel,
		Direction:         req.Direction,
		Notes:             req.Notes,
		Feedback:          req.Feedback,
		NextTalkingPoints: req.NextTalkingPoints,
		FollowUpAt:        req.FollowUpAt,
		FollowUpDoneAt:    req.FollowUpDoneAt,
		Outcome:           req.Outcome,
	})
	if err != nil {
		s.fail(w, "events/create", err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"event": toEventResponse(ev)})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, "events/update", err)
		return
	}
	ev, err := s.applicationService.UpdateEvent(r.Context(), application.UpdateEventParams{
		UserID:            userIDFrom(r),
		ApplicationID:     chi.URLParam(r, "id"),
		StageID:           chi.URLParam(r, "stageId"),
		EventID:           chi.URLParam(r, "eventId"),
		OccurredAt:        req.OccurredAt,
		Channel:           req.Channel,
		Direction:         req.Direction,
		Notes:             req.Notes,
		Feedback:          req.Feedback,
		NextTalkingPoints: req.NextTalkingPoints,
		FollowUpAt:        req.FollowUpAt,
		FollowUpDoneAt:    req.FollowUpDoneAt,
		Outcome:           req.Outcome,
	})
	if err != nil {
		s.fail(w, "events/update", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"event": toEventResponse(ev)})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := s.applicationService.DeleteEvent(r.Context(), userIDFrom(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "stageId"), chi.URLParam(r, "eventId"))
	if err != nil {
		s.fail(w, "events/delete", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
