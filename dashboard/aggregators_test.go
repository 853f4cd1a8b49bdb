package dashboard

import (
	"fmt"
	"math"
	"testing"
	"time"

	"jobtrail/application"
)

var (
	fixedNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	hour     = time.Hour
)

func ptr[T any](v T) *T { return &v }

func app(id string, status application.Status, appliedAgo time.Duration) application.Application {
	applied := fixedNow.Add(-appliedAgo)
	return application.Application{
		ID:             id,
		CompanyName:    "Company " + id,
		RoleTitle:      "Engineer",
		Status:         status,
		AppliedAt:      applied,
		LastActivityAt: applied,
	}
}

func event(appID string, stage application.StageType) EventRow {
	return EventRow{
		Event: application.Event{
			ID:         fmt.Sprintf("%s-%s-%d", appID, stage, time.Now().UnixNano()),
			OccurredAt: fixedNow.Add(-24 * hour),
			Channel:    application.ChannelEmail,
			Direction:  application.DirectionUnknown,
		},
		ApplicationID: appID,
		StageType:     ptr(stage),
		StageTitle:    string(stage),
	}
}

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: got nil, want %v", name, want)
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Fatalf("%s: got %v, want %v", name, *got, want)
	}
}

func TestActionCenterEmptyCohortIsFullyPopulated(t *testing.T) {
	report := ActionCenter(nil, nil, fixedNow, -180)

	if len(report.KPIs.CountsByStatus) != 4 {
		t.Fatalf("expected 4 status keys, got %v", report.KPIs.CountsByStatus)
	}
	if report.Lists.OverdueFollowups == nil || report.Lists.NoActivityRiskApps == nil {
		t.Fatalf("expected non-nil empty lists")
	}
	days := report.Charts.UpcomingFollowupsByDay
	if len(days) != 7 {
		t.Fatalf("expected 7 day buckets, got %d", len(days))
	}
	if days[0].Date != "2024-06-12" || days[6].Date != "2024-06-18" {
		t.Fatalf("unexpected day keys %v", days)
	}
}

func TestActionCenterFollowups(t *testing.T) {
	a := app("a", application.StatusOpen, 3*24*hour)
	todayStart, _ := ClientDayBounds(fixedNow, 0)

	overdueOld := event("a", application.StageTechScreen)
	overdueOld.FollowUpAt = ptr(todayStart.Add(-49 * hour))
	overdueNew := event("a", application.StageTechScreen)
	overdueNew.FollowUpAt = ptr(todayStart.Add(-time.Minute))
	done := event("a", application.StageTechScreen)
	done.FollowUpAt = ptr(todayStart.Add(-72 * hour))
	done.FollowUpDoneAt = ptr(fixedNow)
	due := event("a", application.StageOnsite)
	due.StageType = nil
	due.StageTitle = "Panel"
	due.FollowUpAt = ptr(todayStart.Add(20 * hour))
	future := event("a", application.StageOnsite)
	future.FollowUpAt = ptr(todayStart.Add(3*24*hour + hour))
	farFuture := event("a", application.StageOnsite)
	farFuture.FollowUpAt = ptr(todayStart.Add(8 * 24 * hour))

	report := ActionCenter([]application.Application{a},
		[]EventRow{overdueNew, overdueOld, done, due, future, farFuture}, fixedNow, 0)

	if report.KPIs.OverdueFollowupsCount != 2 {
		t.Fatalf("overdue count = %d, want 2", report.KPIs.OverdueFollowupsCount)
	}
	overdue := report.Lists.OverdueFollowups
	if overdue[0].DaysOverdue != 3 || overdue[1].DaysOverdue != 1 {
		t.Fatalf("expected oldest first with ceil days (3, 1), got %+v", overdue)
	}
	if report.KPIs.DueTodayFollowupsCount != 1 || report.Lists.DueTodayFollowups[0].Stage != "Panel" {
		t.Fatalf("expected due-today item labelled by title, got %+v", report.Lists.DueTodayFollowups)
	}
	if report.Lists.DueTodayFollowups[0].DaysOverdue != 0 {
		t.Fatalf("expected daysOverdue 0 for due today")
	}

	days := report.Charts.UpcomingFollowupsByDay
	if days[0].Count != 1 || days[3].Count != 1 {
		t.Fatalf("unexpected histogram %v", days)
	}
	total := 0
	for _, d := range days {
		total += d.Count
	}
	if total != 2 {
		t.Fatalf("expected 2 follow-ups in the 7-day window, got %d", total)
	}
}

func TestActionCenterListsAreCapped(t *testing.T) {
	a := app("a", application.StatusOpen, 24*hour)
	var events []EventRow
	for i := 0; i < 15; i++ {
		ev := event("a", application.StageRecruiterScreen)
		ev.ID = fmt.Sprintf("e%d", i)
		ev.FollowUpAt = ptr(fixedNow.Add(-time.Duration(i+30) * hour))
		events = append(events, ev)
	}
	report := ActionCenter([]application.Application{a}, events, fixedNow, 0)
	if report.KPIs.OverdueFollowupsCount != 15 {
		t.Fatalf("expected uncapped count 15, got %d", report.KPIs.OverdueFollowupsCount)
	}
	if len(report.Lists.OverdueFollowups) != listCap {
		t.Fatalf("expected list capped at %d, got %d", listCap, len(report.Lists.OverdueFollowups))
	}
}

func TestActionCenterStaleAndRisk(t *testing.T) {
	stale8 := app("s8", application.StatusOpen, 40*24*hour)
	stale8.LastActivityAt = fixedNow.Add(-8 * 24 * hour)
	stale15 := app("s15", application.StatusOpen, 40*24*hour)
	stale15.LastActivityAt = fixedNow.Add(-15 * 24 * hour)
	stale22 := app("s22", application.StatusOpen, 40*24*hour)
	stale22.LastActivityAt = fixedNow.Add(-22 * 24 * hour)
	stale22.FirstResponseAt = ptr(stale22.AppliedAt.Add(hour))
	fresh := app("fresh", application.StatusOpen, 2*24*hour)
	closed := app("closed", application.StatusRejected, 60*24*hour)

	events := []EventRow{event("s15", application.StageRecruiterScreen)}
	report := ActionCenter([]application.Application{stale8, stale15, stale22, fresh, closed}, events, fixedNow, 0)

	k := report.KPIs
	if k.StaleOpenCount7 != 3 || k.StaleOpenCount14 != 2 || k.StaleOpenCount21 != 1 {
		t.Fatalf("stale counts = %d/%d/%d, want 3/2/1", k.StaleOpenCount7, k.StaleOpenCount14, k.StaleOpenCount21)
	}
	stale := report.Lists.StaleOpenApps
	if len(stale) != 3 || stale[0].AppID != "s22" || stale[0].DaysSinceLastActivity != 22 {
		t.Fatalf("expected stalest first, got %+v", stale)
	}
	if k.NoResponseRiskCount != 2 {
		t.Fatalf("no-response = %d, want 2", k.NoResponseRiskCount)
	}
	if k.NoActivityRiskCount != 2 {
		t.Fatalf("no-activity = %d, want 2 (s15 has an event)", k.NoActivityRiskCount)
	}
	for _, item := range report.Lists.NoActivityRiskApps {
		if item.AppID == "s15" {
			t.Fatalf("application with events must not be flagged no-activity")
		}
	}

	sum := 0
	for _, n := range k.CountsByStatus {
		sum += n
	}
	if sum != 5 {
		t.Fatalf("status counts sum = %d, want cohort size 5", sum)
	}
}

func TestEndToEndScenario(t *testing.T) {
	hired := app("hired", application.StatusHired, 45*24*hour)
	hired.ClosedAt = ptr(fixedNow.Add(-5 * 24 * hour))
	rejected := app("rejected", application.StatusRejected, 35*24*hour)
	rejected.ClosedAt = ptr(fixedNow.Add(-20 * 24 * hour))
	open := app("open", application.StatusOpen, 30*24*hour)
	apps := []application.Application{hired, rejected, open}

	ac := ActionCenter(apps, nil, fixedNow, 0)
	if ac.KPIs.NoResponseRiskCount != 1 {
		t.Fatalf("noResponseRiskCount = %d, want 1", ac.KPIs.NoResponseRiskCount)
	}
	want := map[application.Status]int{
		application.StatusOpen: 1, application.StatusHired: 1, application.StatusRejected: 1, application.StatusGhosted: 0,
	}
	for status, n := range want {
		if ac.KPIs.CountsByStatus[status] != n {
			t.Fatalf("countsByStatus[%s] = %d, want %d", status, ac.KPIs.CountsByStatus[status], n)
		}
	}

	speed := Speed(apps, 0)
	approx(t, "HIRED time to close", speed.TimeToCloseByStatus[application.StatusHired], 40*24)
	approx(t, "REJECTED time to close", speed.TimeToCloseByStatus[application.StatusRejected], 15*24)
	if speed.TimeToCloseByStatus[application.StatusGhosted] != nil {
		t.Fatalf("expected nil GHOSTED time to close")
	}
}

func TestSpeed(t *testing.T) {
	a := app("a", application.StatusOpen, 10*24*hour)
	a.FirstResponseAt = ptr(a.AppliedAt.Add(10 * hour))
	b := app("b", application.StatusOpen, 10*24*hour)
	b.FirstResponseAt = ptr(b.AppliedAt.Add(30 * hour))
	anomaly := app("c", application.StatusOpen, 3*24*hour)
	anomaly.FirstResponseAt = ptr(anomaly.AppliedAt.Add(-hour))
	badClose := app("d", application.StatusGhosted, 5*24*hour)
	badClose.ClosedAt = ptr(badClose.AppliedAt.Add(-hour))

	report := Speed([]application.Application{a, b, anomaly, badClose}, 0)

	approx(t, "median", report.FirstResponse.MedianHours, 20)
	approx(t, "p75", report.FirstResponse.P75Hours, 25)
	if len(report.WeeklyTrend) != 1 {
		t.Fatalf("expected one week bucket, got %v", report.WeeklyTrend)
	}
	approx(t, "weekly median", report.WeeklyTrend[0].MedianHours, 20)
	if report.TimeToCloseByStatus[application.StatusGhosted] != nil {
		t.Fatalf("negative close delta must be excluded")
	}

	empty := Speed(nil, 0)
	if empty.FirstResponse.MedianHours != nil || empty.WeeklyTrend == nil || len(empty.TimeToCloseByStatus) != 3 {
		t.Fatalf("unexpected empty speed report %+v", empty)
	}
}

func TestSpeedWeeklyTrendSorted(t *testing.T) {
	older := app("old", application.StatusOpen, 20*24*hour)
	older.FirstResponseAt = ptr(older.AppliedAt.Add(5 * hour))
	newer := app("new", application.StatusOpen, 2*24*hour)
	newer.FirstResponseAt = ptr(newer.AppliedAt.Add(hour))

	report := Speed([]application.Application{newer, older}, 0)
	if len(report.WeeklyTrend) != 2 || report.WeeklyTrend[0].WeekStart >= report.WeeklyTrend[1].WeekStart {
		t.Fatalf("expected ascending week keys, got %+v", report.WeeklyTrend)
	}
}

func TestFunnel(t *testing.T) {
	apps := []application.Application{
		app("a", application.StatusHired, 30*24*hour),
		app("b", application.StatusOpen, 30*24*hour),
		app("c", application.StatusRejected, 30*24*hour),
	}
	untyped := event("c", application.StageOther)
	untyped.StageType = nil
	events := []EventRow{
		event("a", application.StageApplied), event("a", application.StageRecruiterScreen),
		event("a", application.StageTechScreen), event("a", application.StageOnsite), event("a", application.StageOffer),
		event("b", application.StageApplied), event("b", application.StageRecruiterScreen),
		event("b", application.StageOffer),
		event("c", application.StageApplied), event("c", application.StageTakeHome), untyped,
	}

	report := Funnel(apps, events)

	if len(report.ReachedCounts) != len(application.StageTypes) {
		t.Fatalf("expected every stage type in reachedCounts")
	}
	if report.ReachedCounts[application.StageApplied] != 3 || report.ReachedCounts[application.StageTakeHome] != 1 {
		t.Fatalf("unexpected reached counts %v", report.ReachedCounts)
	}
	if report.ReachedCounts[application.StageOther] != 1 {
		t.Fatalf("untyped stage should count as OTHER, got %d", report.ReachedCounts[application.StageOther])
	}

	first := report.Conversions[0]
	if first.From != application.StageApplied || first.FromCount != 3 || first.ToCount != 2 {
		t.Fatalf("unexpected first conversion %+v", first)
	}
	approx(t, "applied->screen", first.Rate, 2.0/3.0)

	onsiteToOffer := report.Conversions[3]
	if onsiteToOffer.FromCount != 1 || onsiteToOffer.ToCount != 1 {
		t.Fatalf("unexpected onsite->offer %+v", onsiteToOffer)
	}
	if report.OfferToHire.Offers != 2 || report.OfferToHire.Hires != 1 {
		t.Fatalf("unexpected offer to hire %+v", report.OfferToHire)
	}
	approx(t, "offer->hire", report.OfferToHire.Rate, 0.5)
}

func TestFunnelEmptyHasNullRates(t *testing.T) {
	report := Funnel(nil, nil)
	if len(report.Conversions) != len(KeyPath)-1 {
		t.Fatalf("expected %d conversions, got %d", len(KeyPath)-1, len(report.Conversions))
	}
	for _, c := range report.Conversions {
		if c.Rate != nil {
			t.Fatalf("expected nil rate with empty denominator, got %v", *c.Rate)
		}
	}
	if report.OfferToHire.Rate != nil {
		t.Fatalf("expected nil offer-to-hire rate")
	}
}

func TestOutcomes(t *testing.T) {
	var events []EventRow
	add := func(stage application.StageType, channel application.Channel, outcome *application.Outcome, n int) {
		for i := 0; i < n; i++ {
			ev := event("a", stage)
			ev.Channel = channel
			ev.Outcome = outcome
			events = append(events, ev)
		}
	}
	fail := ptr(application.OutcomeFail)
	pass := ptr(application.OutcomePass)
	add(application.StageTechScreen, application.ChannelVideo, fail, 2)
	add(application.StageTechScreen, application.ChannelVideo, pass, 2)
	add(application.StageOnsite, application.ChannelOnsite, fail, 2)
	add(application.StageRecruiterScreen, application.ChannelCall, nil, 3)
	add(application.StageOffer, application.ChannelEmail, fail, 1)

	report := Outcomes(events)

	if len(report.ByStageType) != 10 || len(report.ByChannel) != 6 {
		t.Fatalf("expected full matrices, got %d x %d", len(report.ByStageType), len(report.ByChannel))
	}
	if report.ByStageType[application.StageRecruiterScreen][application.OutcomePending] != 3 {
		t.Fatalf("nil outcome should count as PENDING")
	}
	if report.ByChannel[application.ChannelVideo][application.OutcomeFail] != 2 {
		t.Fatalf("unexpected channel tally %v", report.ByChannel[application.ChannelVideo])
	}
	if report.ByChannel[application.ChannelChat][application.OutcomePass] != 0 {
		t.Fatalf("expected zero-filled chat row")
	}

	top := report.TopDropoffStages
	if len(top) != 4 {
		t.Fatalf("expected 4 stage types with events, got %+v", top)
	}
	if top[0].StageType != application.StageOnsite || top[1].StageType != application.StageTechScreen {
		t.Fatalf("expected ONSITE (rate 1.0) before TECH_SCREEN (rate 0.5) on equal fail counts, got %+v", top)
	}
	if top[3].StageType != application.StageRecruiterScreen || top[3].FailCount != 0 {
		t.Fatalf("expected zero-fail stage last, got %+v", top[3])
	}
}

func TestHygiene(t *testing.T) {
	deadline := fixedNow.Add(-48 * hour)

	onTime := event("a", application.StageTechScreen)
	onTime.FollowUpAt = ptr(deadline)
	onTime.FollowUpDoneAt = ptr(deadline)
	onTime.Outcome = ptr(application.OutcomePass)
	onTime.Feedback = ptr("solid")

	late := event("a", application.StageTechScreen)
	late.FollowUpAt = ptr(deadline)
	late.FollowUpDoneAt = ptr(deadline.Add(6 * hour))
	late.NextTalkingPoints = ptr("  ")

	pendingNoFollow := event("a", application.StageOnsite)
	pendingNoFollow.Feedback = ptr("   ")
	pendingNoFollow.NextTalkingPoints = ptr("ask about team")

	overdue := event("a", application.StageOnsite)
	overdue.FollowUpAt = ptr(deadline)

	report := Hygiene([]EventRow{onTime, late, pendingNoFollow, overdue})
	c := report.Counts

	if c.TotalEvents != 4 || c.PendingEvents != 3 || c.PendingWithFollowUp != 2 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if c.FollowUpsDone != 2 || c.FollowUpsOnTime != 1 || c.LateCount != 1 {
		t.Fatalf("unexpected follow-up counts %+v", c)
	}
	approx(t, "followUpSetRate", report.Rates.FollowUpSetRate, 2.0/3.0)
	approx(t, "onTimeRate", report.Rates.OnTimeFollowUpCompletionRate, 0.5)
	approx(t, "avgLateHours", report.Rates.AvgLateHours, 6)
	approx(t, "feedbackCoverage", report.Rates.FeedbackCoverageRate, 0.25)
	approx(t, "talkingPointsCoverage", report.Rates.NextTalkingPointsCoverageRate, 0.25)

	empty := Hygiene(nil)
	r := empty.Rates
	if r.FollowUpSetRate != nil || r.OnTimeFollowUpCompletionRate != nil || r.AvgLateHours != nil ||
		r.FeedbackCoverageRate != nil || r.NextTalkingPointsCoverageRate != nil {
		t.Fatalf("expected nil rates for empty cohort, got %+v", r)
	}
}

func TestOverdueAndLateAreExclusive(t *testing.T) {
	a := app("a", application.StatusOpen, 10*24*hour)
	ev := event("a", application.StageTechScreen)
	ev.FollowUpAt = ptr(fixedNow.Add(-72 * hour))

	before := ActionCenter([]application.Application{a}, []EventRow{ev}, fixedNow, 0)
	if before.KPIs.OverdueFollowupsCount != 1 || Hygiene([]EventRow{ev}).Counts.LateCount != 0 {
		t.Fatalf("expected overdue and not late before completion")
	}

	ev.FollowUpDoneAt = ptr(fixedNow)
	after := ActionCenter([]application.Application{a}, []EventRow{ev}, fixedNow, 0)
	if after.KPIs.OverdueFollowupsCount != 0 || Hygiene([]EventRow{ev}).Counts.LateCount != 1 {
		t.Fatalf("expected late and not overdue after completion")
	}
}

func TestROI(t *testing.T) {
	remote := application.WorkModeRemote
	mk := func(id string, status application.Status, source string, mode *application.WorkMode) application.Application {
		a := app(id, status, 20*24*hour)
		if source != "" {
			a.Source = ptr(source)
		}
		a.WorkMode = mode
		return a
	}
	a := mk("a", application.StatusHired, "LinkedIn", &remote)
	a.FirstResponseAt = ptr(a.AppliedAt.Add(4 * hour))
	b := mk("b", application.StatusGhosted, " linkedin ", &remote)
	c := mk("c", application.StatusOpen, "Indeed", nil)
	d := mk("d", application.StatusOpen, "", nil)
	e := mk("e", application.StatusOpen, "LinkedIn Easy Apply", &remote)

	report := ROI([]application.Application{a, b, c, d, e})

	if report.ByWorkMode[0].Key != "REMOTE" || report.ByWorkMode[0].Count != 3 {
		t.Fatalf("unexpected work mode rows %+v", report.ByWorkMode)
	}
	if report.ByWorkMode[1].Key != "UNKNOWN" || report.ByWorkMode[1].Count != 2 {
		t.Fatalf("expected UNKNOWN group for missing work mode, got %+v", report.ByWorkMode)
	}
	approx(t, "remote hire rate", report.ByWorkMode[0].HireRate, 1.0/3.0)
	approx(t, "remote ghost rate", report.ByWorkMode[0].GhostRate, 1.0/3.0)
	approx(t, "remote median first response", report.ByWorkMode[0].MedianFirstResponseHours, 4)
	if report.ByWorkMode[1].MedianFirstResponseHours != nil {
		t.Fatalf("expected nil median without responses")
	}

	if report.BySourceBucket[0].Key != string(BucketLinkedIn) || report.BySourceBucket[0].Count != 3 {
		t.Fatalf("unexpected bucket rows %+v", report.BySourceBucket)
	}

	if len(report.TopRawSourcesByBucket) != len(SourceBuckets) {
		t.Fatalf("expected every bucket key, got %v", report.TopRawSourcesByBucket)
	}
	li := report.TopRawSourcesByBucket[BucketLinkedIn]
	if li[0].Source != "linkedin" || li[0].Count != 2 || li[1].Source != "linkedin easy apply" {
		t.Fatalf("unexpected raw sources %+v", li)
	}
	other := report.TopRawSourcesByBucket[BucketOther]
	if len(other) != 1 || other[0].Source != "(empty)" {
		t.Fatalf("expected (empty) raw source, got %+v", other)
	}
	if len(report.TopRawSourcesByBucket[BucketReferral]) != 0 {
		t.Fatalf("expected empty referral list")
	}
}

func TestRoleROI(t *testing.T) {
	a := app("a", application.StatusOpen, 20*24*hour)
	a.RoleTitle = "Frontend Engineer"
	b := app("b", application.StatusRejected, 20*24*hour)
	b.RoleTitle = "frontend engineer "
	c := app("c", application.StatusHired, 20*24*hour)
	c.RoleTitle = "Data Scientist"
	d := app("d", application.StatusOpen, 20*24*hour)
	d.RoleTitle = "   "

	var events []EventRow
	for i := 0; i < 3; i++ {
		events = append(events, event("a", application.StageTechScreen), event("b", application.StageOnsite), event("c", application.StageOnsite))
	}
	events = append(events, event("b", application.StageOffer))

	report := RoleROI([]application.Application{a, b, c, d}, events)

	if len(report.Roles) != 3 {
		t.Fatalf("expected 3 role groups, got %+v", report.Roles)
	}
	fe := report.Roles[0]
	if fe.Key != "frontend engineer" || fe.RoleTitle != "Frontend Engineer" || fe.Count != 2 {
		t.Fatalf("unexpected frontend row %+v", fe)
	}
	approx(t, "median events", fe.MedianEventsPerApplication, 3.5)
	if !fe.HighEffortLowReturn {
		t.Fatalf("expected frontend flagged high effort, low return")
	}

	for _, r := range report.Roles[1:] {
		switch r.Key {
		case "data scientist":
			if r.HighEffortLowReturn {
				t.Fatalf("hired role must not be flagged")
			}
		case "unknown role":
			if r.RoleTitle != "Unknown role" || r.HighEffortLowReturn {
				t.Fatalf("unexpected unknown role row %+v", r)
			}
			approx(t, "unknown role median events", r.MedianEventsPerApplication, 0)
		default:
			t.Fatalf("unexpected role %q", r.Key)
		}
	}
}
