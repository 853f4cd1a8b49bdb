package dashboard

import (
	"sort"
	"time"

	"jobtrail/application"
)

const (
	listCap        = 10
	riskAfterDays  = 7
	upcomingWindow = 7
)

var staleThresholds = [3]int{7, 14, 21}

type ActionCenterKPIs struct {
	CountsByStatus         map[application.Status]int `json:"countsByStatus"`
	OverdueFollowupsCount  int                        `json:"overdueFollowupsCount"`
	DueTodayFollowupsCount int                        `json:"dueTodayFollowupsCount"`
	StaleOpenCount7        int                        `json:"staleOpenCount7"`
	StaleOpenCount14       int                        `json:"staleOpenCount14"`
	StaleOpenCount21       int                        `json:"staleOpenCount21"`
	NoResponseRiskCount    int                        `json:"noResponseRiskCount"`
	NoActivityRiskCount    int                        `json:"noActivityRiskCount"`
}

type FollowupItem struct {
	AppID       string    `json:"appId"`
	CompanyName string    `json:"companyName"`
	RoleTitle   string    `json:"roleTitle"`
	Stage       string    `json:"stage"`
	FollowUpAt  time.Time `json:"followUpAt"`
	DaysOverdue int       `json:"daysOverdue"`
}

type StaleItem struct {
	AppID                 string `json:"appId"`
	CompanyName           string `json:"companyName"`
	RoleTitle             string `json:"roleTitle"`
	DaysSinceLastActivity int    `json:"daysSinceLastActivity"`
}

type RiskItem struct {
	AppID            string `json:"appId"`
	CompanyName      string `json:"companyName"`
	RoleTitle        string `json:"roleTitle"`
	DaysSinceApplied int    `json:"daysSinceApplied"`
}

type ActionCenterLists struct {
	OverdueFollowups   []FollowupItem `json:"overdueFollowups"`
	DueTodayFollowups  []FollowupItem `json:"dueTodayFollowups"`
	StaleOpenApps      []StaleItem    `json:"staleOpenApps"`
	NoResponseRiskApps []RiskItem     `json:"noResponseRiskApps"`
	NoActivityRiskApps []RiskItem     `json:"noActivityRiskApps"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ActionCenterCharts struct {
	UpcomingFollowupsByDay []DayCount `json:"upcomingFollowupsByDay"`
}

type ActionCenterReport struct {
	KPIs   ActionCenterKPIs   `json:"kpis"`
	Lists  ActionCenterLists  `json:"lists"`
	Charts ActionCenterCharts `json:"charts"`
}

// ActionCenter classifies pending follow-ups and at-risk applications
// relative to the client's local day.
func ActionCenter(apps []application.Application, events []EventRow, now time.Time, tzOffsetMinutes int) ActionCenterReport {
	todayStart, tomorrowStart := ClientDayBounds(now, tzOffsetMinutes)

	report := ActionCenterReport{
		KPIs: ActionCenterKPIs{CountsByStatus: zeroStatusCounts()},
		Lists: ActionCenterLists{
			OverdueFollowups:   []FollowupItem{},
			DueTodayFollowups:  []FollowupItem{},
			StaleOpenApps:      []StaleItem{},
			NoResponseRiskApps: []RiskItem{},
			NoActivityRiskApps: []RiskItem{},
		},
		Charts: ActionCenterCharts{UpcomingFollowupsByDay: upcomingDays(todayStart, tzOffsetMinutes)},
	}

	byID := make(map[string]application.Application, len(apps))
	for _, app := range apps {
		byID[app.ID] = app
	}

	eventsPerApp := make(map[string]int, len(apps))
	var overdue, dueToday []FollowupItem
	dayIndex := make(map[string]int, upcomingWindow)
	for i, d := range report.Charts.UpcomingFollowupsByDay {
		dayIndex[d.Date] = i
	}
	windowEnd := AddDays(todayStart, upcomingWindow)

	for _, ev := range events {
		eventsPerApp[ev.ApplicationID]++
		if ev.FollowUpAt == nil || ev.FollowUpDoneAt != nil {
			continue
		}
		app, ok := byID[ev.ApplicationID]
		if !ok {
			continue
		}
		at := *ev.FollowUpAt
		item := FollowupItem{
			AppID:       app.ID,
			CompanyName: app.CompanyName,
			RoleTitle:   app.RoleTitle,
			Stage:       ev.StageLabel(),
			FollowUpAt:  at.UTC(),
		}
		switch {
		case at.Before(todayStart):
			item.DaysOverdue = DiffDaysCeil(todayStart, at)
			overdue = append(overdue, item)
		case at.Before(tomorrowStart):
			dueToday = append(dueToday, item)
		}
		if !at.Before(todayStart) && at.Before(windowEnd) {
			if i, ok := dayIndex[DayKeyClientLocal(at, tzOffsetMinutes)]; ok {
				report.Charts.UpcomingFollowupsByDay[i].Count++
			}
		}
	}

	byFollowUp := func(items []FollowupItem) {
		sort.SliceStable(items, func(i, j int) bool { return items[i].FollowUpAt.Before(items[j].FollowUpAt) })
	}
	byFollowUp(overdue)
	byFollowUp(dueToday)
	report.KPIs.OverdueFollowupsCount = len(overdue)
	report.KPIs.DueTodayFollowupsCount = len(dueToday)
	report.Lists.OverdueFollowups = append(report.Lists.OverdueFollowups, capped(overdue)...)
	report.Lists.DueTodayFollowups = append(report.Lists.DueTodayFollowups, capped(dueToday)...)

	var staleThresholdsAt [3]time.Time
	for i, days := range staleThresholds {
		staleThresholdsAt[i] = AddDays(now, -days)
	}
	riskBefore := AddDays(now, -riskAfterDays)

	var stale []application.Application
	var noResponse, noActivity []application.Application
	for _, app := range apps {
		report.KPIs.CountsByStatus[app.Status]++
		if app.Status != application.StatusOpen {
			continue
		}

		if !app.LastActivityAt.After(staleThresholdsAt[0]) {
			report.KPIs.StaleOpenCount7++
			stale = append(stale, app)
		}
		if !app.LastActivityAt.After(staleThresholdsAt[1]) {
			report.KPIs.StaleOpenCount14++
		}
		if !app.LastActivityAt.After(staleThresholdsAt[2]) {
			report.KPIs.StaleOpenCount21++
		}

		if app.AppliedAt.After(riskBefore) {
			continue
		}
		if app.FirstResponseAt == nil {
			noResponse = append(noResponse, app)
		}
		if eventsPerApp[app.ID] == 0 {
			noActivity = append(noActivity, app)
		}
	}
	report.KPIs.NoResponseRiskCount = len(noResponse)
	report.KPIs.NoActivityRiskCount = len(noActivity)

	sort.SliceStable(stale, func(i, j int) bool { return stale[i].LastActivityAt.Before(stale[j].LastActivityAt) })
	for _, app := range capped(stale) {
		report.Lists.StaleOpenApps = append(report.Lists.StaleOpenApps, StaleItem{
			AppID:                 app.ID,
			CompanyName:           app.CompanyName,
			RoleTitle:             app.RoleTitle,
			DaysSinceLastActivity: DiffDaysFloor(now, app.LastActivityAt),
		})
	}
	report.Lists.NoResponseRiskApps = append(report.Lists.NoResponseRiskApps, riskItems(noResponse, now)...)
	report.Lists.NoActivityRiskApps = append(report.Lists.NoActivityRiskApps, riskItems(noActivity, now)...)

	return report
}

func riskItems(apps []application.Application, now time.Time) []RiskItem {
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].AppliedAt.Before(apps[j].AppliedAt) })
	items := make([]RiskItem, 0, listCap)
	for _, app := range capped(apps) {
		items = append(items, RiskItem{
			AppID:            app.ID,
			CompanyName:      app.CompanyName,
			RoleTitle:        app.RoleTitle,
			DaysSinceApplied: DiffDaysFloor(now, app.AppliedAt),
		})
	}
	return items
}

// upcomingDays returns the seven client-local day keys starting today, zero-filled.
func upcomingDays(todayStart time.Time, tzOffsetMinutes int) []DayCount {
	days := make([]DayCount, upcomingWindow)
	for i := range days {
		days[i] = DayCount{Date: DayKeyClientLocal(AddDays(todayStart, i), tzOffsetMinutes)}
	}
	return days
}

func zeroStatusCounts() map[application.Status]int {
	counts := make(map[application.Status]int, len(application.Statuses))
	for _, s := range application.Statuses {
		counts[s] = 0
	}
	return counts
}

func capped[T any](items []T) []T {
	if len(items) > listCap {
		return items[:listCap]
	}
	return items
}
