package application

import (
	"context"
	"fmt"
	"time"
)

type CreateEventParams struct {
	UserID            string
	ApplicationID     string
	StageID           string
	OccurredAt        *time.Time
	Channel           Channel
	Direction         *Direction
	Notes             string
	Feedback          *string
	NextTalkingPoints *string
	FollowUpAt        *time.Time
	FollowUpDoneAt    *time.Time
	Outcome           *Outcome
}

type UpdateEventParams struct {
	UserID            string
	ApplicationID     string
	StageID           string
	EventID           string
	OccurredAt        Optional[time.Time]
	Channel           Optional[Channel]
	Direction         Optional[Direction]
	Notes             Optional[string]
	Feedback          Optional[string]
	NextTalkingPoints Optional[string]
	FollowUpAt        Optional[time.Time]
	FollowUpDoneAt    Optional[time.Time]
	Outcome           Optional[Outcome]
}

// ListedEvent decorates an event with its follow-up state at read time.
type ListedEvent struct {
	Event
	IsOverdue bool
}

func (s *Service) ListEvents(ctx context.Context, userID, applicationID, stageID string) ([]ListedEvent, error) {
	if _, err := s.repo.GetStage(ctx, userID, applicationID, stageID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, stageID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	listed := make([]ListedEvent, 0, len(events))
	for _, ev := range events {
		listed = append(listed, ListedEvent{Event: ev, IsOverdue: ev.Overdue(now)})
	}
	return listed, nil
}

// CreateEvent records an interaction under a stage and touches the parent
// application in the same transaction.
func (s *Service) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	if params.OccurredAt == nil || params.OccurredAt.IsZero() {
		return Event{}, invalid("occurredAt is required")
	}
	if !params.Channel.Valid() {
		return Event{}, invalid("channel must be one of EMAIL, CALL, VIDEO, ONSITE, CHAT, OTHER")
	}
	direction := DirectionUnknown
	if params.Direction != nil {
		if !params.Direction.Valid() {
			return Event{}, invalid("unknown direction %q", *params.Direction)
		}
		direction = *params.Direction
	}
	if params.Outcome != nil && !params.Outcome.Valid() {
		return Event{}, invalid("unknown outcome %q", *params.Outcome)
	}
	notes, err := requiredText("notes", params.Notes, maxEventNotes)
	if err != nil {
		return Event{}, err
	}
	feedback, err := optionalText("feedback", params.Feedback, maxEventLongTxt)
	if err != nil {
		return Event{}, err
	}
	talkingPoints, err := optionalText("nextTalkingPoints", params.NextTalkingPoints, maxEventLongTxt)
	if err != nil {
		return Event{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, params.UserID, params.ApplicationID)
	if err != nil {
		return Event{}, err
	}
	stage, err := s.repo.GetStageForUpdate(ctx, tx, app.ID, params.StageID)
	if err != nil {
		return Event{}, err
	}

	created, err := s.repo.CreateEvent(ctx, tx, Event{
		ID:                s.idGenerator(),
		StageID:           stage.ID,
		OccurredAt:        params.OccurredAt.UTC(),
		Channel:           params.Channel,
		Direction:         direction,
		Notes:             notes,
		Feedback:          feedback,
		NextTalkingPoints: talkingPoints,
		FollowUpAt:        utcPtr(params.FollowUpAt),
		FollowUpDoneAt:    utcPtr(params.FollowUpDoneAt),
		Outcome:           params.Outcome,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Event{}, err
	}
	if created.Direction == DirectionInbound {
		if err := s.repo.MarkFirstResponse(ctx, tx, app.ID, created.OccurredAt); err != nil {
			return Event{}, err
		}
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error) {
	if !eventPatchHasFields(params) {
		return Event{}, invalid("no fields to update")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, params.UserID, params.ApplicationID)
	if err != nil {
		return Event{}, err
	}
	if _, err := s.repo.GetStageForUpdate(ctx, tx, app.ID, params.StageID); err != nil {
		return Event{}, err
	}
	ev, err := s.repo.GetEventForUpdate(ctx, tx, params.StageID, params.EventID)
	if err != nil {
		return Event{}, err
	}

	if err := applyEventPatch(&ev, params); err != nil {
		return Event{}, err
	}
	ev.UpdatedAt = now

	updated, err := s.repo.UpdateEvent(ctx, tx, ev)
	if err != nil {
		return Event{}, err
	}
	if updated.Direction == DirectionInbound {
		if err := s.repo.MarkFirstResponse(ctx, tx, app.ID, updated.OccurredAt); err != nil {
			return Event{}, err
		}
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteEvent(ctx context.Context, userID, applicationID, stageID, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, userID, applicationID)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetStageForUpdate(ctx, tx, app.ID, stageID); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteEvent(ctx, tx, stageID, eventID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrEventNotFound
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("application: commit tx: %w", err)
	}
	return nil
}

func eventPatchHasFields(p UpdateEventParams) bool {
	return p.OccurredAt.Set || p.Channel.Set || p.Direction.Set || p.Notes.Set || p.Feedback.Set ||
		p.NextTalkingPoints.Set || p.FollowUpAt.Set || p.FollowUpDoneAt.Set || p.Outcome.Set
}

func applyEventPatch(ev *Event, p UpdateEventParams) error {
	var err error
	if p.OccurredAt.Set {
		if p.OccurredAt.Null || p.OccurredAt.Value.IsZero() {
			return invalid("occurredAt cannot be cleared")
		}
		ev.OccurredAt = p.OccurredAt.Value.UTC()
	}
	if p.Channel.Set {
		if p.Channel.Null || !p.Channel.Value.Valid() {
			return invalid("channel must be one of EMAIL, CALL, VIDEO, ONSITE, CHAT, OTHER")
		}
		ev.Channel = p.Channel.Value
	}
	if p.Direction.Set {
		switch {
		case p.Direction.Null:
			ev.Direction = DirectionUnknown
		case !p.Direction.Value.Valid():
			return invalid("unknown direction %q", p.Direction.Value)
		default:
			ev.Direction = p.Direction.Value
		}
	}
	if p.Notes.Set {
		notes := ""
		if !p.Notes.Null {
			notes = p.Notes.Value
		}
		if ev.Notes, err = requiredText("notes", notes, maxEventNotes); err != nil {
			return err
		}
	}
	if p.Feedback.Set {
		if ev.Feedback, err = optionalText("feedback", p.Feedback.Ptr(), maxEventLongTxt); err != nil {
			return err
		}
	}
	if p.NextTalkingPoints.Set {
		if ev.NextTalkingPoints, err = optionalText("nextTalkingPoints", p.NextTalkingPoints.Ptr(), maxEventLongTxt); err != nil {
			return err
		}
	}
	if p.FollowUpAt.Set {
		ev.FollowUpAt = utcPtr(p.FollowUpAt.Ptr())
	}
	if p.FollowUpDoneAt.Set {
		ev.FollowUpDoneAt = utcPtr(p.FollowUpDoneAt.Ptr())
	}
	if p.Outcome.Set {
		if p.Outcome.Null {
			ev.Outcome = nil
		} else {
			if !p.Outcome.Value.Valid() {
				return invalid("unknown outcome %q", p.Outcome.Value)
			}
			ev.Outcome = p.Outcome.Ptr()
		}
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
