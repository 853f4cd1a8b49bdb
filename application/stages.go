package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrProtectedStage signals an attempt to remove, retype or duplicate the APPLIED stage.
var ErrProtectedStage = errors.New("application: applied stage is protected")

type CreateStageParams struct {
	UserID        string
	ApplicationID string
	StageType     *StageType
	Title         string
	OrderIndex    *int
}

type UpdateStageParams struct {
	UserID        string
	ApplicationID string
	StageID       string
	StageType     Optional[StageType]
	Title         Optional[string]
	OrderIndex    Optional[int]
}

func (s *Service) ListStages(ctx context.Context, userID, applicationID string) ([]Stage, error) {
	if _, err := s.repo.GetApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	return s.repo.ListStages(ctx, applicationID)
}

// CreateStage inserts a stage at OrderIndex, shifting later stages up, or
// appends it when no index is given.
func (s *Service) CreateStage(ctx context.Context, params CreateStageParams) (Stage, error) {
	if params.StageType != nil {
		if !params.StageType.Valid() {
			return Stage{}, invalid("unknown stage type %q", *params.StageType)
		}
		if *params.StageType == StageApplied {
			return Stage{}, ErrProtectedStage
		}
	}
	title, err := stageTitle(params.Title, params.StageType)
	if err != nil {
		return Stage{}, err
	}
	if params.OrderIndex != nil && *params.OrderIndex < 0 {
		return Stage{}, invalid("orderIndex must be >= 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Stage{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, params.UserID, params.ApplicationID)
	if err != nil {
		return Stage{}, err
	}

	max, err := s.repo.MaxStageOrder(ctx, tx, app.ID)
	if err != nil {
		return Stage{}, err
	}
	index := max + 1
	if params.OrderIndex != nil && *params.OrderIndex < index {
		index = *params.OrderIndex
		if err := s.repo.ShiftStages(ctx, tx, app.ID, index, max, 1, now); err != nil {
			return Stage{}, err
		}
	}

	created, err := s.repo.CreateStage(ctx, tx, Stage{
		ID:            s.idGenerator(),
		ApplicationID: app.ID,
		StageType:     params.StageType,
		Title:         title,
		OrderIndex:    index,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Stage{}, err
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return Stage{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Stage{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return created, nil
}

// UpdateStage retitles, retypes or moves a stage. A move shifts the stages
// between the old and new index by one to keep ordering dense.
func (s *Service) UpdateStage(ctx context.Context, params UpdateStageParams) (Stage, error) {
	if !params.StageType.Set && !params.Title.Set && !params.OrderIndex.Set {
		return Stage{}, invalid("no fields to update")
	}
	if params.OrderIndex.Set && (params.OrderIndex.Null || params.OrderIndex.Value < 0) {
		return Stage{}, invalid("orderIndex must be >= 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Stage{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, params.UserID, params.ApplicationID)
	if err != nil {
		return Stage{}, err
	}
	stage, err := s.repo.GetStageForUpdate(ctx, tx, app.ID, params.StageID)
	if err != nil {
		return Stage{}, err
	}

	isApplied := stage.StageType != nil && *stage.StageType == StageApplied
	if params.StageType.Set {
		next := params.StageType.Ptr()
		if next != nil && !next.Valid() {
			return Stage{}, invalid("unknown stage type %q", *next)
		}
		becomesApplied := next != nil && *next == StageApplied
		if isApplied != becomesApplied {
			return Stage{}, ErrProtectedStage
		}
		stage.StageType = next
	}
	if params.Title.Set {
		title := ""
		if !params.Title.Null {
			title = params.Title.Value
		}
		if stage.Title, err = stageTitle(title, stage.StageType); err != nil {
			return Stage{}, err
		}
	}

	if params.OrderIndex.Set {
		max, err := s.repo.MaxStageOrder(ctx, tx, app.ID)
		if err != nil {
			return Stage{}, err
		}
		from, to := stage.OrderIndex, params.OrderIndex.Value
		if to > max {
			to = max
		}
		switch {
		case to < from:
			err = s.repo.ShiftStages(ctx, tx, app.ID, to, from-1, 1, now)
		case to > from:
			err = s.repo.ShiftStages(ctx, tx, app.ID, from+1, to, -1, now)
		}
		if err != nil {
			return Stage{}, err
		}
		stage.OrderIndex = to
	}

	stage.UpdatedAt = now
	updated, err := s.repo.UpdateStage(ctx, tx, stage)
	if err != nil {
		return Stage{}, err
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return Stage{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Stage{}, fmt.Errorf("application: commit tx: %w", err)
	}
	return updated, nil
}

// DeleteStage removes a stage with its events and closes the ordering gap.
func (s *Service) DeleteStage(ctx context.Context, userID, applicationID, stageID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, now, err := s.lockOpen(ctx, tx, userID, applicationID)
	if err != nil {
		return err
	}
	stage, err := s.repo.GetStageForUpdate(ctx, tx, app.ID, stageID)
	if err != nil {
		return err
	}
	if stage.StageType != nil && *stage.StageType == StageApplied {
		return ErrProtectedStage
	}

	if err := s.repo.DeleteStage(ctx, tx, stage.ID); err != nil {
		return err
	}
	max, err := s.repo.MaxStageOrder(ctx, tx, app.ID)
	if err != nil {
		return err
	}
	if err := s.repo.ShiftStages(ctx, tx, app.ID, stage.OrderIndex+1, max, -1, now); err != nil {
		return err
	}
	if err := s.repo.TouchActivity(ctx, tx, app.ID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("application: commit tx: %w", err)
	}
	return nil
}

// stageTitle trims the title, falling back to the stage type's label.
func stageTitle(title string, stageType *StageType) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" && stageType != nil {
		title = stageType.Label()
	}
	return requiredText("title", title, maxStageTitle)
}
