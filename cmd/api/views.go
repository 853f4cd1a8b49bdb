package main

import (
	"time"

	"jobtrail/application"
	"jobtrail/auth"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, CreatedAt: u.CreatedAt.UTC()}
}

type applicationResponse struct {
	ID              string                `json:"id"`
	CompanyName     string                `json:"companyName"`
	RoleTitle       string                `json:"roleTitle"`
	JobURL          *string               `json:"jobUrl"`
	Location        *string               `json:"location"`
	Source          *string               `json:"source"`
	Notes           *string               `json:"notes"`
	Status          application.Status    `json:"status"`
	StatusLabel     string                `json:"statusLabel"`
	WorkMode        *application.WorkMode `json:"workMode"`
	AppliedAt       time.Time             `json:"appliedAt"`
	FirstResponseAt *time.Time            `json:"firstResponseAt"`
	LastActivityAt  time.Time             `json:"lastActivityAt"`
	ClosedAt        *time.Time            `json:"closedAt"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func toApplicationResponse(a application.Application) applicationResponse {
	return applicationResponse{
		ID:              a.ID,
		CompanyName:     a.CompanyName,
		RoleTitle:       a.RoleTitle,
		JobURL:          a.JobURL,
		Location:        a.Location,
		Source:          a.Source,
		Notes:           a.Notes,
		Status:          a.Status,
		StatusLabel:     a.Status.Label(),
		WorkMode:        a.WorkMode,
		AppliedAt:       a.AppliedAt.UTC(),
		FirstResponseAt: utc(a.FirstResponseAt),
		LastActivityAt:  a.LastActivityAt.UTC(),
		ClosedAt:        utc(a.ClosedAt),
		CreatedAt:       a.CreatedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

type stageResponse struct {
	ID             string                 `json:"id"`
	ApplicationID  string                 `json:"applicationId"`
	StageType      *application.StageType `json:"stageType"`
	StageTypeLabel *string                `json:"stageTypeLabel"`
	Title          string                 `json:"title"`
	OrderIndex     int                    `json:"orderIndex"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toStageResponse(st application.Stage) stageResponse {
	resp := stageResponse{
		ID:            st.ID,
		ApplicationID: st.ApplicationID,
		StageType:     st.StageType,
		Title:         st.Title,
		OrderIndex:    st.OrderIndex,
		CreatedAt:     st.CreatedAt.UTC(),
		UpdatedAt:     st.UpdatedAt.UTC(),
	}
	if st.StageType != nil {
		label := st.StageType.Label()
		resp.StageTypeLabel = &label
	}
	return resp
}

type eventResponse struct {
	ID                string                `json:"id"`
	StageID           string                `json:"stageId"`
	OccurredAt        time.Time             `json:"occurredAt"`
	Channel           application.Channel   `json:"channel"`
	Direction         application.Direction `json:"direction"`
	Notes             string                `json:"notes"`
	Feedback          *string               `json:"feedback"`
	NextTalkingPoints *string               `json:"nextTalkingPoints"`
	FollowUpAt        *time.Time            `json:"followUpAt"`
	FollowUpDoneAt    *time.Time            `json:"followUpDoneAt"`
	Outcome           *application.Outcome  `json:"outcome"`
	IsOverdue         *bool                 `json:"isOverdue,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

func toEventResponse(ev application.Event) eventResponse {
	return eventResponse{
		ID:                ev.ID,
		StageID:           ev.StageID,
		OccurredAt:        ev.OccurredAt.UTC(),
		Channel:           ev.Channel,
		Direction:         ev.Direction,
		Notes:             ev.Notes,
		Feedback:          ev.Feedback,
		NextTalkingPoints: ev.NextTalkingPoints,
		FollowUpAt:        utc(ev.FollowUpAt),
		FollowUpDoneAt:    utc(ev.FollowUpDoneAt),
		Outcome:           ev.Outcome,
		CreatedAt:         ev.CreatedAt.UTC(),
		UpdatedAt:         ev.UpdatedAt.UTC(),
	}
}

func toListedEventResponse(ev application.ListedEvent) eventResponse {
	resp := toEventResponse(ev.Event)
	overdue := ev.IsOverdue
	resp.IsOverdue = &overdue
	return resp
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
