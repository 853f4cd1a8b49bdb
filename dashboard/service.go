package dashboard

import (
	"context"
	"time"

	"jobtrail/application"

	"golang.org/x/sync/errgroup"
)

// Service computes dashboard panels for a single user's cohort. It never writes.
type Service struct {
	reader Reader
	now    func() time.Time
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Overview bundles every panel computed from one cohort snapshot.
type Overview struct {
	ActionCenter ActionCenterReport `json:"actionCenter"`
	Speed        SpeedReport        `json:"speed"`
	Funnel       FunnelReport       `json:"funnel"`
	Outcomes     OutcomesReport     `json:"outcomes"`
	Hygiene      HygieneReport      `json:"hygiene"`
	ROI          ROIReport          `json:"roi"`
	RoleROI      RoleROIReport      `json:"roleRoi"`
}

type snapshot struct {
	apps   []application.Application
	events []EventRow
}

// load resolves the cohort and reads the requested row sets concurrently.
// An empty cohort returns an empty snapshot without further reads.
func (s *Service) load(ctx context.Context, userID string, q Query, withApps, withEvents bool) (snapshot, error) {
	ids, err := ResolveCohort(ctx, s.reader, userID, q)
	if err != nil || len(ids) == 0 {
		return snapshot{}, err
	}

	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	if withApps {
		g.Go(func() error {
			apps, err := s.reader.Applications(gctx, ids)
			snap.apps = apps
			return err
		})
	}
	if withEvents {
		g.Go(func() error {
			events, err := s.reader.Events(gctx, ids)
			snap.events = events
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (s *Service) ActionCenter(ctx context.Context, userID string, q Query) (ActionCenterReport, error) {
	snap, err := s.load(ctx, userID, q, true, true)
	if err != nil {
		return ActionCenterReport{}, err
	}
	return ActionCenter(snap.apps, snap.events, s.now(), q.TZOffsetMinutes), nil
}

func (s *Service) Speed(ctx context.Context, userID string, q Query) (SpeedReport, error) {
	snap, err := s.load(ctx, userID, q, true, false)
	if err != nil {
		return SpeedReport{}, err
	}
	return Speed(snap.apps, q.TZOffsetMinutes), nil
}

func (s *Service) Funnel(ctx context.Context, userID string, q Query) (FunnelReport, error) {
	snap, err := s.load(ctx, userID, q, true, true)
	if err != nil {
		return FunnelReport{}, err
	}
	return Funnel(snap.apps, snap.events), nil
}

func (s *Service) Outcomes(ctx context.Context, userID string, q Query) (OutcomesReport, error) {
	snap, err := s.load(ctx, userID, q, false, true)
	if err != nil {
		return OutcomesReport{}, err
	}
	return Outcomes(snap.events), nil
}

func (s *Service) Hygiene(ctx context.Context, userID string, q Query) (HygieneReport, error) {
	snap, err := s.load(ctx, userID, q, false, true)
	if err != nil {
		return HygieneReport{}, err
	}
	return Hygiene(snap.events), nil
}

func (s *Service) ROI(ctx context.Context, userID string, q Query) (ROIReport, error) {
	snap, err := s.load(ctx, userID, q, true, false)
	if err != nil {
		return ROIReport{}, err
	}
	return ROI(snap.apps), nil
}

func (s *Service) RoleROI(ctx context.Context, userID string, q Query) (RoleROIReport, error) {
	snap, err := s.load(ctx, userID, q, true, true)
	if err != nil {
		return RoleROIReport{}, err
	}
	return RoleROI(snap.apps, snap.events), nil
}

// Overview computes all seven panels from a single cohort snapshot, one
// goroutine per panel.
func (s *Service) Overview(ctx context.Context, userID string, q Query) (Overview, error) {
	snap, err := s.load(ctx, userID, q, true, true)
	if err != nil {
		return Overview{}, err
	}

	now := s.now()
	var out Overview
	var g errgroup.Group
	g.Go(func() error {
		out.ActionCenter = ActionCenter(snap.apps, snap.events, now, q.TZOffsetMinutes)
		return nil
	})
	g.Go(func() error { out.Speed = Speed(snap.apps, q.TZOffsetMinutes); return nil })
	g.Go(func() error { out.Funnel = Funnel(snap.apps, snap.events); return nil })
	g.Go(func() error { out.Outcomes = Outcomes(snap.events); return nil })
	g.Go(func() error { out.Hygiene = Hygiene(snap.events); return nil })
	g.Go(func() error { out.ROI = ROI(snap.apps); return nil })
	g.Go(func() error { out.RoleROI = RoleROI(snap.apps, snap.events); return nil })
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
