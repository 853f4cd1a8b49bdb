package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the application does not exist or belongs to another user.
	ErrNotFound = errors.New("application: not found")
	// ErrStageNotFound signals the stage does not exist under the application.
	ErrStageNotFound = errors.New("application: stage not found")
	// ErrEventNotFound signals the event does not exist under the stage.
	ErrEventNotFound = errors.New("application: event not found")
	// ErrActivityTouch signals the parent lastActivityAt update did not land.
	// The surrounding transaction must be abandoned.
	ErrActivityTouch = errors.New("application: last activity touch failed")
)

// Repository handles data access for applications, stages and events. Write
// methods run inside the caller's transaction so the child write and the
// parent activity touch commit together.
type Repository interface {
	CreateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error)
	GetApplication(ctx context.Context, userID, id string) (Application, error)
	GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, userID, id string) (Application, error)
	ListApplications(ctx context.Context, filters ListFilters) ([]Application, error)
	UpdateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error)
	DeleteApplication(ctx context.Context, tx pgx.Tx, id string) error
	TouchActivity(ctx context.Context, tx pgx.Tx, applicationID string, at time.Time) error
	MarkFirstResponse(ctx context.Context, tx pgx.Tx, applicationID string, at time.Time) error

	ListStages(ctx context.Context, applicationID string) ([]Stage, error)
	GetStage(ctx context.Context, userID, applicationID, stageID string) (Stage, error)
	GetStageForUpdate(ctx context.Context, tx pgx.Tx, applicationID, stageID string) (Stage, error)
	MaxStageOrder(ctx context.Context, tx pgx.Tx, applicationID string) (int, error)
	ShiftStages(ctx context.Context, tx pgx.Tx, applicationID string, from, to, delta int, at time.Time) error
	CreateStage(ctx context.Context, tx pgx.Tx, stage Stage) (Stage, error)
	UpdateStage(ctx context.Context, tx pgx.Tx, stage Stage) (Stage, error)
	DeleteStage(ctx context.Context, tx pgx.Tx, stageID string) error

	ListEvents(ctx context.Context, stageID string) ([]Event, error)
	GetEventForUpdate(ctx context.Context, tx pgx.Tx, stageID, eventID string) (Event, error)
	CreateEvent(ctx context.Context, tx pgx.Tx, ev Event) (Event, error)
	UpdateEvent(ctx context.Context, tx pgx.Tx, ev Event) (Event, error)
	DeleteEvent(ctx context.Context, tx pgx.Tx, stageID, eventID string) (int64, error)
}

// ListFilters narrows the paginated application list.
type ListFilters struct {
	UserID string
	Status Status
	Query  string
	Limit  int
	Cursor string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed application repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const applicationColumns = `id, user_id, company_name, role_title, job_url, location, source, notes, status,
	work_mode, applied_at, first_response_at, last_activity_at, closed_at, created_at, updated_at`

func (r *PGRepository) CreateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error) {
	query := `
		INSERT INTO applications (id, user_id, company_name, role_title, job_url, location, source, notes, status,
			work_mode, applied_at, last_activity_at, closed_at, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $11, $11)
		RETURNING ` + applicationColumns

	created, err := scanApplication(tx.QueryRow(ctx, query,
		app.ID,
		app.UserID,
		app.CompanyName,
		app.RoleTitle,
		app.JobURL,
		app.Location,
		app.Source,
		app.Notes,
		string(app.Status),
		enumPtr(app.WorkMode),
		app.AppliedAt,
		app.LastActivityAt,
		app.ClosedAt,
	))
	if err != nil {
		return Application{}, fmt.Errorf("application: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetApplication(ctx context.Context, userID, id string) (Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 AND user_id = $2`

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("application: get: %w", err)
	}
	return app, nil
}

// GetApplicationForUpdate locks the application row, serialising stage
// reordering and activity touches for the same application.
func (r *PGRepository) GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, userID, id string) (Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 AND user_id = $2 FOR UPDATE`

	app, err := scanApplication(tx.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("application: get for update: %w", err)
	}
	return app, nil
}

func (r *PGRepository) ListApplications(ctx context.Context, filters ListFilters) ([]Application, error) {
	where := []string{"user_id = $1"}
	args := []any{filters.UserID}

	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Query != "" {
		args = append(args, "%"+escapeLike(filters.Query)+"%")
		where = append(where, fmt.Sprintf("(company_name ILIKE $%d OR role_title ILIKE $%d)", len(args), len(args)))
	}
	if filters.Cursor != "" {
		args = append(args, filters.Cursor)
		where = append(where, fmt.Sprintf(
			"(updated_at, id) < (SELECT c.updated_at, c.id FROM applications c WHERE c.id = $%d AND c.user_id = $1)", len(args)))
	}

	// One extra row tells the caller whether another page exists.
	args = append(args, filters.Limit+1)
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE %s ORDER BY updated_at DESC, id DESC LIMIT $%d`,
		applicationColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("application: list: %w", err)
	}
	defer rows.Close()

	list := make([]Application, 0, filters.Limit+1)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("application: scan: %w", err)
		}
		list = append(list, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("application: iterate: %w", err)
	}
	return list, nil
}

// UpdateApplication persists every mutable column. last_activity_at is
// written from the caller's value so the touch is part of the same statement.
func (r *PGRepository) UpdateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error) {
	query := `
		UPDATE applications
		SET company_name = $2,
		    role_title = $3,
		    job_url = $4,
		    location = $5,
		    source = $6,
		    notes = $7,
		    status = $8,
		    work_mode = $9,
		    closed_at = $10,
		    last_activity_at = $11,
		    updated_at = $11
		WHERE id = $1
		RETURNING ` + applicationColumns

	updated, err := scanApplication(tx.QueryRow(ctx, query,
		app.ID,
		app.CompanyName,
		app.RoleTitle,
		app.JobURL,
		app.Location,
		app.Source,
		app.Notes,
		string(app.Status),
		enumPtr(app.WorkMode),
		app.ClosedAt,
		app.LastActivityAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("application: update: %w", err)
	}
	return updated, nil
}

func (r *PGRepository) DeleteApplication(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("application: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) TouchActivity(ctx context.Context, tx pgx.Tx, applicationID string, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE applications SET last_activity_at = $2, updated_at = $2 WHERE id = $1`, applicationID, at)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrActivityTouch, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: %d rows touched", ErrActivityTouch, tag.RowsAffected())
	}
	return nil
}

// MarkFirstResponse records the first inbound contact; later calls are no-ops.
func (r *PGRepository) MarkFirstResponse(ctx context.Context, tx pgx.Tx, applicationID string, at time.Time) error {
	const query = `UPDATE applications SET first_response_at = $2 WHERE id = $1 AND first_response_at IS NULL`
	if _, err := tx.Exec(ctx, query, applicationID, at); err != nil {
		return fmt.Errorf("application: mark first response: %w", err)
	}
	return nil
}

const stageColumns = `id, application_id, stage_type, title, order_index, created_at, updated_at`

func (r *PGRepository) ListStages(ctx context.Context, applicationID string) ([]Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM interview_stages WHERE application_id = $1 ORDER BY order_index ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("application: list stages: %w", err)
	}
	defer rows.Close()

	stages := make([]Stage, 0, 8)
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("application: scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("application: iterate stages: %w", err)
	}
	return stages, nil
}

func (r *PGRepository) GetStage(ctx context.Context, userID, applicationID, stageID string) (Stage, error) {
	const query = `
		SELECT s.id, s.application_id, s.stage_type, s.title, s.order_index, s.created_at, s.updated_at
		FROM interview_stages s
		JOIN applications a ON a.id = s.application_id
		WHERE s.id = $1 AND s.application_id = $2 AND a.user_id = $3
	`
	stage, err := scanStage(r.pool.QueryRow(ctx, query, stageID, applicationID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("application: get stage: %w", err)
	}
	return stage, nil
}

func (r *PGRepository) GetStageForUpdate(ctx context.Context, tx pgx.Tx, applicationID, stageID string) (Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM interview_stages WHERE id = $1 AND application_id = $2 FOR UPDATE`

	stage, err := scanStage(tx.QueryRow(ctx, query, stageID, applicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("application: get stage for update: %w", err)
	}
	return stage, nil
}

// MaxStageOrder returns the highest order index, or -1 when the application has no stages.
func (r *PGRepository) MaxStageOrder(ctx context.Context, tx pgx.Tx, applicationID string) (int, error) {
	var max int
	err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(order_index), -1) FROM interview_stages WHERE application_id = $1`, applicationID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("application: max stage order: %w", err)
	}
	return max, nil
}

// ShiftStages adds delta to order_index for stages whose index lies in [from, to].
func (r *PGRepository) ShiftStages(ctx context.Context, tx pgx.Tx, applicationID string, from, to, delta int, at time.Time) error {
	if from > to {
		return nil
	}
	const query = `
		UPDATE interview_stages
		SET order_index = order_index + $4,
		    updated_at = $5
		WHERE application_id = $1 AND order_index >= $2 AND order_index <= $3
	`
	if _, err := tx.Exec(ctx, query, applicationID, from, to, delta, at); err != nil {
		return fmt.Errorf("application: shift stages: %w", err)
	}
	return nil
}

func (r *PGRepository) CreateStage(ctx context.Context, tx pgx.Tx, stage Stage) (Stage, error) {
	query := `
		INSERT INTO interview_stages (id, application_id, stage_type, title, order_index, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $6)
		RETURNING ` + stageColumns

	created, err := scanStage(tx.QueryRow(ctx, query,
		stage.ID,
		stage.ApplicationID,
		enumPtr(stage.StageType),
		stage.Title,
		stage.OrderIndex,
		stage.CreatedAt,
	))
	if err != nil {
		return Stage{}, fmt.Errorf("application: insert stage: %w", err)
	}
	return created, nil
}

func (r *PGRepository) UpdateStage(ctx context.Context, tx pgx.Tx, stage Stage) (Stage, error) {
	query := `
		UPDATE interview_stages
		SET stage_type = $2,
		    title = $3,
		    order_index = $4,
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + stageColumns

	updated, err := scanStage(tx.QueryRow(ctx, query,
		stage.ID,
		enumPtr(stage.StageType),
		stage.Title,
		stage.OrderIndex,
		stage.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("application: update stage: %w", err)
	}
	return updated, nil
}

func (r *PGRepository) DeleteStage(ctx context.Context, tx pgx.Tx, stageID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM interview_stages WHERE id = $1`, stageID)
	if err != nil {
		return fmt.Errorf("application: delete stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

const eventColumns = `id, stage_id, occurred_at, channel, direction, notes, feedback, next_talking_points,
	follow_up_at, follow_up_done_at, outcome, created_at, updated_at`

func (r *PGRepository) ListEvents(ctx context.Context, stageID string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM interview_events WHERE stage_id = $1 ORDER BY occurred_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, stageID)
	if err != nil {
		return nil, fmt.Errorf("application: list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, 8)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("application: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("application: iterate events: %w", err)
	}
	return events, nil
}

func (r *PGRepository) GetEventForUpdate(ctx context.Context, tx pgx.Tx, stageID, eventID string) (Event, error) {
	query := `SELECT ` + eventColumns + ` FROM interview_events WHERE id = $1 AND stage_id = $2 FOR UPDATE`

	ev, err := scanEvent(tx.QueryRow(ctx, query, eventID, stageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("application: get event for update: %w", err)
	}
	return ev, nil
}

func (r *PGRepository) CreateEvent(ctx context.Context, tx pgx.Tx, ev Event) (Event, error) {
	query := `
		INSERT INTO interview_events (id, stage_id, occurred_at, channel, direction, notes, feedback, next_talking_points,
			follow_up_at, follow_up_done_at, outcome, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING ` + eventColumns

	created, err := scanEvent(tx.QueryRow(ctx, query,
		ev.ID,
		ev.StageID,
		ev.OccurredAt,
		string(ev.Channel),
		string(ev.Direction),
		ev.Notes,
		ev.Feedback,
		ev.NextTalkingPoints,
		ev.FollowUpAt,
		ev.FollowUpDoneAt,
		enumPtr(ev.Outcome),
		ev.CreatedAt,
	))
	if err != nil {
		return Event{}, fmt.Errorf("application: insert event: %w", err)
	}
	return created, nil
}

func (r *PGRepository) UpdateEvent(ctx context.Context, tx pgx.Tx, ev Event) (Event, error) {
	query := `
		UPDATE interview_events
		SET occurred_at = $2,
		    channel = $3,
		    direction = $4,
		    notes = $5,
		    feedback = $6,
		    next_talking_points = $7,
		    follow_up_at = $8,
		    follow_up_done_at = $9,
		    outcome = $10,
		    updated_at = $11
		WHERE id = $1
		RETURNING ` + eventColumns

	updated, err := scanEvent(tx.QueryRow(ctx, query,
		ev.ID,
		ev.OccurredAt,
		string(ev.Channel),
		string(ev.Direction),
		ev.Notes,
		ev.Feedback,
		ev.NextTalkingPoints,
		ev.FollowUpAt,
		ev.FollowUpDoneAt,
		enumPtr(ev.Outcome),
		ev.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("application: update event: %w", err)
	}
	return updated, nil
}

func (r *PGRepository) DeleteEvent(ctx context.Context, tx pgx.Tx, stageID, eventID string) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM interview_events WHERE id = $1 AND stage_id = $2`, eventID, stageID)
	if err != nil {
		return 0, fmt.Errorf("application: delete event: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanApplication(row pgx.Row) (Application, error) {
	var (
		app      Application
		status   string
		workMode *string
	)
	err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.CompanyName,
		&app.RoleTitle,
		&app.JobURL,
		&app.Location,
		&app.Source,
		&app.Notes,
		&status,
		&workMode,
		&app.AppliedAt,
		&app.FirstResponseAt,
		&app.LastActivityAt,
		&app.ClosedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return Application{}, err
	}
	app.Status = Status(status)
	app.WorkMode = enumFrom[WorkMode](workMode)
	return app, nil
}

func scanStage(row pgx.Row) (Stage, error) {
	var (
		stage     Stage
		stageType *string
	)
	err := row.Scan(
		&stage.ID,
		&stage.ApplicationID,
		&stageType,
		&stage.Title,
		&stage.OrderIndex,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	)
	if err != nil {
		return Stage{}, err
	}
	stage.StageType = enumFrom[StageType](stageType)
	return stage, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		ev        Event
		channel   string
		direction string
		outcome   *string
	)
	err := row.Scan(
		&ev.ID,
		&ev.StageID,
		&ev.OccurredAt,
		&channel,
		&direction,
		&ev.Notes,
		&ev.Feedback,
		&ev.NextTalkingPoints,
		&ev.FollowUpAt,
		&ev.FollowUpDoneAt,
		&outcome,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	ev.Channel = Channel(channel)
	ev.Direction = Direction(direction)
	ev.Outcome = enumFrom[Outcome](outcome)
	return ev, nil
}

func enumPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func enumFrom[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
