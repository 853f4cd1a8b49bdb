package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"jobtrail/application"
	"jobtrail/dashboard"
)

// Stats counts actor outcomes across goroutines.
type Stats struct {
	Committed atomic.Int64
	Rejected  atomic.Int64
	Failed    atomic.Int64
	Reads     atomic.Int64
}

func (s *Stats) record(err error) {
	switch {
	case err == nil:
		s.Committed.Add(1)
	case expected(err):
		s.Rejected.Add(1)
	default:
		s.Failed.Add(1)
	}
}

// expected reports business-rule refusals that contention legitimately produces.
func expected(err error) bool {
	for _, target := range []error{
		application.ErrNotFound,
		application.ErrStageNotFound,
		application.ErrEventNotFound,
		application.ErrLocked,
		application.ErrNotDeletable,
		application.ErrProtectedStage,
		application.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var (
	sources = []string{"LinkedIn", "li", "Referral from Dana", "Recruiter outreach", "Company careers page",
		"Indeed", "Greenhouse", "wellfound", "meetup", ""}
	roles = []string{"Backend Engineer", "backend engineer ", "Platform Engineer", "SRE"}
)

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

// Seeker performs a random mix of mutations against one user's applications.
// Several seekers share a user so stage reorders and status flips contend.
func Seeker(ctx context.Context, svc *application.Service, userID string, rng *rand.Rand, stats *Stats, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}

		var err error
		if rng.Intn(6) == 0 {
			err = createApplication(ctx, svc, userID, rng)
		} else {
			err = mutateExisting(ctx, svc, userID, rng)
		}
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		stats.record(err)
		time.Sleep(time.Duration(5+rng.Intn(20)) * time.Millisecond)
	}
}

func createApplication(ctx context.Context, svc *application.Service, userID string, rng *rand.Rand) error {
	source := pick(rng, sources)
	mode := pick(rng, application.WorkModes)
	_, err := svc.Create(ctx, application.CreateParams{
		UserID:      userID,
		CompanyName: fmt.Sprintf("Company %d", rng.Intn(40)),
		RoleTitle:   pick(rng, roles),
		Source:      &source,
		WorkMode:    &mode,
	})
	return err
}

func mutateExisting(ctx context.Context, svc *application.Service, userID string, rng *rand.Rand) error {
	page, err := svc.List(ctx, application.ListParams{UserID: userID, Limit: 50})
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		return createApplication(ctx, svc, userID, rng)
	}
	app := pick(rng, page.Items)

	switch rng.Intn(8) {
	case 0:
		st := pick(rng, application.StageTypes[1:])
		idx := rng.Intn(4)
		_, err = svc.CreateStage(ctx, application.CreateStageParams{
			UserID: userID, ApplicationID: app.ID, StageType: &st, OrderIndex: &idx,
		})
	case 1:
		err = withStage(ctx, svc, userID, app.ID, rng, func(stage application.Stage) error {
			_, err := svc.UpdateStage(ctx, application.UpdateStageParams{
				UserID: userID, ApplicationID: app.ID, StageID: stage.ID,
				OrderIndex: application.Some(rng.Intn(5)),
			})
			return err
		})
	case 2:
		err = withStage(ctx, svc, userID, app.ID, rng, func(stage application.Stage) error {
			return svc.DeleteStage(ctx, userID, app.ID, stage.ID)
		})
	case 3, 4:
		err = withStage(ctx, svc, userID, app.ID, rng, func(stage application.Stage) error {
			return createEvent(ctx, svc, userID, app.ID, stage.ID, rng)
		})
	case 5:
		err = withStage(ctx, svc, userID, app.ID, rng, func(stage application.Stage) error {
			events, err := svc.ListEvents(ctx, userID, app.ID, stage.ID)
			if err != nil || len(events) == 0 {
				return err
			}
			ev := pick(rng, events)
			if rng.Intn(3) == 0 {
				return svc.DeleteEvent(ctx, userID, app.ID, stage.ID, ev.ID)
			}
			outcome := pick(rng, application.Outcomes)
			_, err = svc.UpdateEvent(ctx, application.UpdateEventParams{
				UserID: userID, ApplicationID: app.ID, StageID: stage.ID, EventID: ev.ID,
				FollowUpDoneAt: application.Some(time.Now().UTC()),
				Outcome:        application.Some(outcome),
			})
			return err
		})
	case 6:
		_, err = svc.Update(ctx, application.UpdateParams{
			UserID: userID, ApplicationID: app.ID,
			Status: application.Some(pick(rng, application.Statuses)),
		})
	default:
		if rng.Intn(4) == 0 {
			err = svc.Delete(ctx, userID, app.ID)
		} else {
			_, err = svc.Update(ctx, application.UpdateParams{
				UserID: userID, ApplicationID: app.ID,
				Notes: application.Some(fmt.Sprintf("checked at %s", time.Now().UTC().Format(time.RFC3339))),
			})
		}
	}
	return err
}

func withStage(ctx context.Context, svc *application.Service, userID, appID string, rng *rand.Rand, fn func(application.Stage) error) error {
	stages, err := svc.ListStages(ctx, userID, appID)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return application.ErrStageNotFound
	}
	return fn(pick(rng, stages))
}

func createEvent(ctx context.Context, svc *application.Service, userID, appID, stageID string, rng *rand.Rand) error {
	now := time.Now().UTC()
	occurred := now.Add(-time.Duration(rng.Intn(72)) * time.Hour)
	direction := pick(rng, []application.Direction{
		application.DirectionInbound, application.DirectionOutbound, application.DirectionUnknown,
	})
	params := application.CreateEventParams{
		UserID:        userID,
		ApplicationID: appID,
		StageID:       stageID,
		OccurredAt:    &occurred,
		Channel:       pick(rng, application.Channels),
		Direction:     &direction,
		Notes:         "stress event",
	}
	if rng.Intn(2) == 0 {
		followUp := now.Add(time.Duration(rng.Intn(240)-120) * time.Hour)
		params.FollowUpAt = &followUp
	}
	_, err := svc.CreateEvent(ctx, params)
	return err
}

// DashboardReader computes the overview for a user and checks that panels
// derived from one snapshot agree with each other.
func DashboardReader(ctx context.Context, svc *dashboard.Service, userID string, rng *rand.Rand, stats *Stats, stop <-chan struct{}) error {
	offsets := []int{-180, -60, 0, 120, 300, 330}
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}

		now := time.Now().UTC()
		q := dashboard.Query{
			From:            now.Add(-24 * time.Hour),
			To:              now.Add(time.Hour),
			TZOffsetMinutes: pick(rng, offsets),
		}
		overview, err := svc.Overview(ctx, userID, q)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed.Add(1)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		stats.Reads.Add(1)
		if err := checkOverview(overview); err != nil {
			return fmt.Errorf("dashboard reader %s: %w", userID, err)
		}
		time.Sleep(time.Duration(20+rng.Intn(40)) * time.Millisecond)
	}
}

func checkOverview(o dashboard.Overview) error {
	total := 0
	for _, n := range o.ActionCenter.KPIs.CountsByStatus {
		total += n
	}
	sum := func(rows []dashboard.ROIRow) int {
		n := 0
		for _, r := range rows {
			n += r.Count
		}
		return n
	}
	if byMode := sum(o.ROI.ByWorkMode); byMode != total {
		return fmt.Errorf("work mode groups cover %d applications, status counts %d", byMode, total)
	}
	if byBucket := sum(o.ROI.BySourceBucket); byBucket != total {
		return fmt.Errorf("source bucket groups cover %d applications, status counts %d", byBucket, total)
	}
	if len(o.ActionCenter.Charts.UpcomingFollowupsByDay) != 7 {
		return fmt.Errorf("upcoming histogram has %d days", len(o.ActionCenter.Charts.UpcomingFollowupsByDay))
	}
	if o.ActionCenter.KPIs.StaleOpenCount21 > o.ActionCenter.KPIs.StaleOpenCount14 ||
		o.ActionCenter.KPIs.StaleOpenCount14 > o.ActionCenter.KPIs.StaleOpenCount7 {
		return errors.New("stale counts are not nested")
	}
	if o.Funnel.OfferToHire.Hires > o.Funnel.OfferToHire.Offers {
		return fmt.Errorf("hires %d exceed offers %d", o.Funnel.OfferToHire.Hires, o.Funnel.OfferToHire.Offers)
	}
	return nil
}
