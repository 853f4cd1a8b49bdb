package dashboard

import (
	"context"
	"fmt"
	"strings"

	"jobtrail/application"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Candidate is a cohort row before the in-memory source-bucket filter.
type Candidate struct {
	ID     string
	Source *string
}

// EventRow is an interview event joined with the stage and application it belongs to.
type EventRow struct {
	application.Event
	ApplicationID string
	StageType     *application.StageType
	StageTitle    string
}

// StageLabel returns the stage type, or the stage title when the type is unset.
func (e EventRow) StageLabel() string {
	if e.StageType != nil && *e.StageType != "" {
		return string(*e.StageType)
	}
	return e.StageTitle
}

// Reader provides the read-only snapshots the aggregators reduce over.
type Reader interface {
	CohortCandidates(ctx context.Context, userID string, q Query) ([]Candidate, error)
	Applications(ctx context.Context, ids []string) ([]application.Application, error)
	Events(ctx context.Context, ids []string) ([]EventRow, error)
}

// PGReader implements Reader backed by PostgreSQL.
type PGReader struct {
	pool *pgxpool.Pool
}

// NewReader wires a pgxpool-backed dashboard reader.
func NewReader(pool *pgxpool.Pool) *PGReader {
	return &PGReader{pool: pool}
}

// CohortCandidates pushes every filter except the derived source bucket down to SQL.
func (r *PGReader) CohortCandidates(ctx context.Context, userID string, q Query) ([]Candidate, error) {
	where := []string{"user_id = $1", "applied_at >= $2", "applied_at <= $3"}
	args := []any{userID, q.From, q.To}

	if q.Filters.Status != nil {
		args = append(args, string(*q.Filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Filters.WorkMode != nil {
		args = append(args, string(*q.Filters.WorkMode))
		where = append(where, fmt.Sprintf("work_mode = $%d", len(args)))
	}
	if q.Filters.Source != "" {
		args = append(args, "%"+escapeLike(q.Filters.Source)+"%")
		where = append(where, fmt.Sprintf("source ILIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT id, source FROM applications WHERE %s ORDER BY applied_at ASC, id ASC`, strings.Join(where, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dashboard: cohort: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0, 64)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Source); err != nil {
			return nil, fmt.Errorf("dashboard: scan cohort: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterate cohort: %w", err)
	}
	return candidates, nil
}

func (r *PGReader) Applications(ctx context.Context, ids []string) ([]application.Application, error) {
	const query = `
		SELECT id, user_id, company_name, role_title, source, status, work_mode,
		       applied_at, first_response_at, last_activity_at, closed_at
		FROM applications
		WHERE id = ANY($1::uuid[])
		ORDER BY applied_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("dashboard: applications: %w", err)
	}
	defer rows.Close()

	apps := make([]application.Application, 0, len(ids))
	for rows.Next() {
		var (
			app      application.Application
			status   string
			workMode *string
		)
		err := rows.Scan(
			&app.ID,
			&app.UserID,
			&app.CompanyName,
			&app.RoleTitle,
			&app.Source,
			&status,
			&workMode,
			&app.AppliedAt,
			&app.FirstResponseAt,
			&app.LastActivityAt,
			&app.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("dashboard: scan application: %w", err)
		}
		app.Status = application.Status(status)
		if workMode != nil {
			mode := application.WorkMode(*workMode)
			app.WorkMode = &mode
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterate applications: %w", err)
	}
	return apps, nil
}

func (r *PGReader) Events(ctx context.Context, ids []string) ([]EventRow, error) {
	const query = `
		SELECT e.id, e.stage_id, e.occurred_at, e.channel, e.direction, e.feedback, e.next_talking_points,
		       e.follow_up_at, e.follow_up_done_at, e.outcome,
		       s.application_id, s.stage_type, s.title
		FROM interview_events e
		JOIN interview_stages s ON s.id = e.stage_id
		WHERE s.application_id = ANY($1::uuid[])
		ORDER BY e.occurred_at ASC, e.id ASC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("dashboard: events: %w", err)
	}
	defer rows.Close()

	events := make([]EventRow, 0, len(ids)*2)
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("dashboard: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterate events: %w", err)
	}
	return events, nil
}

func scanEventRow(row pgx.Row) (EventRow, error) {
	var (
		ev        EventRow
		channel   string
		direction string
		outcome   *string
		stageType *string
	)
	err := row.Scan(
		&ev.ID,
		&ev.StageID,
		&ev.OccurredAt,
		&channel,
		&direction,
		&ev.Feedback,
		&ev.NextTalkingPoints,
		&ev.FollowUpAt,
		&ev.FollowUpDoneAt,
		&outcome,
		&ev.ApplicationID,
		&stageType,
		&ev.StageTitle,
	)
	if err != nil {
		return EventRow{}, err
	}
	ev.Channel = application.Channel(channel)
	ev.Direction = application.Direction(direction)
	if outcome != nil {
		o := application.Outcome(*outcome)
		ev.Outcome = &o
	}
	if stageType != nil {
		st := application.StageType(*stageType)
		ev.StageType = &st
	}
	return ev, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
