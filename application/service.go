package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrLocked signals a REJECTED or GHOSTED application; only notes may change.
	ErrLocked = errors.New("application: application is closed")
	// ErrNotDeletable signals a delete on an application that is no longer OPEN.
	ErrNotDeletable = errors.New("application: only open applications can be deleted")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	UserID      string
	CompanyName string
	RoleTitle   string
	JobURL      *string
	Location    *string
	Source      *string
	Notes       *string
	Status      *Status
	WorkMode    *WorkMode
}

type UpdateParams struct {
	UserID        string
	ApplicationID string
	CompanyName   Optional[string]
	RoleTitle     Optional[string]
	JobURL        Optional[string]
	Location      Optional[string]
	Source        Optional[string]
	Notes         Optional[string]
	Status        Optional[Status]
	WorkMode      Optional[WorkMode]
}

type ListParams struct {
	UserID string
	Status *Status
	Query  string
	Limit  int
	Cursor string
}

type ListResult struct {
	Items       []Application
	Limit       int
	NextCursor  *string
	HasNextPage bool
}

// Create inserts the application together with its APPLIED stage.
func (s *Service) Create(ctx context.Context, params CreateParams) (Application, error) {
	if params.UserID == "" {
		return Application{}, fmt.Errorf("application: missing user id")
	}
	app, err := s.buildApplication(params)
	if err != nil {
		return Application{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.CreateApplication(ctx, tx, app)
	if err != nil {
		return Application{}, err
	}

	applied := StageApplied
	stage := Stage{
		ID:            s.idGenerator(),
		ApplicationID: created.ID,
		StageType:     &applied,
		Title:         "Applied",
		OrderIndex:    0,
		CreatedAt:     created.AppliedAt,
		UpdatedAt:     created.AppliedAt,
	}
	if _, err := s.repo.CreateStage(ctx, tx, stage); err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return created, nil
}

func (s *Service) buildApplication(params CreateParams) (Application, error) {
	company, err := requiredText("companyName", params.CompanyName, maxNameLen)
	if err != nil {
		return Application{}, err
	}
	role, err := requiredText("roleTitle", params.RoleTitle, maxNameLen)
	if err != nil {
		return Application{}, err
	}
	link, err := jobURL(params.JobURL)
	if err != nil {
		return Application{}, err
	}
	location, err := optionalText("location", params.Location, maxLocationLen)
	if err != nil {
		return Application{}, err
	}
	source, err := optionalText("source", params.Source, maxSourceLen)
	if err != nil {
		return Application{}, err
	}
	notes, err := optionalText("notes", params.Notes, maxAppNotesLen)
	if err != nil {
		return Application{}, err
	}

	status := StatusOpen
	if params.Status != nil {
		if !params.Status.Valid() {
			return Application{}, invalid("unknown status %q", *params.Status)
		}
		status = *params.Status
	}
	if params.WorkMode != nil && !params.WorkMode.Valid() {
		return Application{}, invalid("unknown work mode %q", *params.WorkMode)
	}

	now := s.now().UTC()
	app := Application{
		ID:             s.idGenerator(),
		UserID:         params.UserID,
		CompanyName:    company,
		RoleTitle:      role,
		JobURL:         link,
		Location:       location,
		Source:         source,
		Notes:          notes,
		Status:         status,
		WorkMode:       params.WorkMode,
		AppliedAt:      now,
		LastActivityAt: now,
	}
	if status.Terminal() {
		app.ClosedAt = &now
	}
	return app, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Application, error) {
	return s.repo.GetApplication(ctx, userID, id)
}

// List pages through the user's applications ordered by most recent update.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.UserID == "" {
		return ListResult{}, fmt.Errorf("application: missing user id")
	}
	q := strings.TrimSpace(params.Query)
	if len([]rune(q)) > maxQueryLen {
		return ListResult{}, invalid("q exceeds %d characters", maxQueryLen)
	}
	filters := ListFilters{
		UserID: params.UserID,
		Query:  q,
		Limit:  clampLimit(params.Limit),
		Cursor: params.Cursor,
	}
	if params.Status != nil {
		if !params.Status.Valid() {
			return ListResult{}, invalid("unknown status %q", *params.Status)
		}
		filters.Status = *params.Status
	}
	if filters.Cursor != "" {
		if _, err := uuid.Parse(filters.Cursor); err != nil {
			return ListResult{}, invalid("malformed cursor")
		}
	}

	items, err := s.repo.ListApplications(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{Items: items, Limit: filters.Limit}
	if len(items) > filters.Limit {
		result.Items = items[:filters.Limit]
		result.HasNextPage = true
		next := result.Items[len(result.Items)-1].ID
		result.NextCursor = &next
	}
	return result, nil
}

// Update applies a partial patch. Locked applications accept notes only.
func (s *Service) Update(ctx context.Context, params UpdateParams) (Application, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, err := s.repo.GetApplicationForUpdate(ctx, tx, params.UserID, params.ApplicationID)
	if err != nil {
		return Application{}, err
	}
	if app.Status.Locked() && touchesMoreThanNotes(params) {
		return Application{}, ErrLocked
	}

	if err := applyPatch(&app, params); err != nil {
		return Application{}, err
	}

	now := s.now().UTC()
	if app.Status.Terminal() {
		if app.ClosedAt == nil {
			app.ClosedAt = &now
		}
	} else {
		app.ClosedAt = nil
	}
	app.LastActivityAt = now

	updated, err := s.repo.UpdateApplication(ctx, tx, app)
	if err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return updated, nil
}

func touchesMoreThanNotes(p UpdateParams) bool {
	return p.CompanyName.Set || p.RoleTitle.Set || p.JobURL.Set || p.Location.Set ||
		p.Source.Set || p.Status.Set || p.WorkMode.Set
}

func applyPatch(app *Application, p UpdateParams) error {
	var err error
	if p.CompanyName.Set {
		if app.CompanyName, err = requiredText("companyName", p.CompanyName.Value, maxNameLen); err != nil {
			return err
		}
	}
	if p.RoleTitle.Set {
		if app.RoleTitle, err = requiredText("roleTitle", p.RoleTitle.Value, maxNameLen); err != nil {
			return err
		}
	}
	if p.JobURL.Set {
		if app.JobURL, err = jobURL(p.JobURL.Ptr()); err != nil {
			return err
		}
	}
	if p.Location.Set {
		if app.Location, err = optionalText("location", p.Location.Ptr(), maxLocationLen); err != nil {
			return err
		}
	}
	if p.Source.Set {
		if app.Source, err = optionalText("source", p.Source.Ptr(), maxSourceLen); err != nil {
			return err
		}
	}
	if p.Notes.Set {
		if app.Notes, err = optionalText("notes", p.Notes.Ptr(), maxAppNotesLen); err != nil {
			return err
		}
	}
	if p.Status.Set {
		if p.Status.Null || !p.Status.Value.Valid() {
			return invalid("status must be one of OPEN, HIRED, REJECTED, GHOSTED")
		}
		app.Status = p.Status.Value
	}
	if p.WorkMode.Set {
		if p.WorkMode.Null {
			app.WorkMode = nil
		} else {
			if !p.WorkMode.Value.Valid() {
				return invalid("unknown work mode %q", p.WorkMode.Value)
			}
			app.WorkMode = p.WorkMode.Ptr()
		}
	}
	return nil
}

// Delete removes an OPEN application; its stages and events cascade.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, err := s.repo.GetApplicationForUpdate(ctx, tx, userID, id)
	if err != nil {
		return err
	}
	if app.Status != StatusOpen {
		return ErrNotDeletable
	}
	if err := s.repo.DeleteApplication(ctx, tx, app.ID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("application: commit tx: %w", err)
	}
	return nil
}

// lockOpen loads and locks the parent application for a child mutation and
// returns the activity timestamp to stamp on both rows. The clock is read
// after the row lock so concurrent writers stamp in commit order.
func (s *Service) lockOpen(ctx context.Context, tx pgx.Tx, userID, applicationID string) (Application, time.Time, error) {
	app, err := s.repo.GetApplicationForUpdate(ctx, tx, userID, applicationID)
	if err != nil {
		return Application{}, time.Time{}, err
	}
	if app.Status.Locked() {
		return Application{}, time.Time{}, ErrLocked
	}
	return app, s.now().UTC(), nil
}
