package dashboard

import (
	"sort"
	"strings"

	"jobtrail/application"
)

const (
	topSourcesCap  = 5
	unknownMode    = "UNKNOWN"
	emptySource    = "(empty)"
	unknownRole    = "Unknown role"
	highEffortBase = 3
)

type ROIRow struct {
	Key                      string   `json:"key"`
	Count                    int      `json:"count"`
	HireRate                 *float64 `json:"hireRate"`
	GhostRate                *float64 `json:"ghostRate"`
	MedianFirstResponseHours *float64 `json:"medianFirstResponseHours"`
}

type RawSourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type ROIReport struct {
	ByWorkMode            []ROIRow                          `json:"byWorkMode"`
	BySourceBucket        []ROIRow                          `json:"bySourceBucket"`
	TopRawSourcesByBucket map[SourceBucket][]RawSourceCount `json:"topRawSourcesByBucket"`
}

type RoleROIRow struct {
	RoleTitle                  string   `json:"roleTitle"`
	Key                        string   `json:"key"`
	Count                      int      `json:"count"`
	HireRate                   *float64 `json:"hireRate"`
	GhostRate                  *float64 `json:"ghostRate"`
	MedianFirstResponseHours   *float64 `json:"medianFirstResponseHours"`
	MedianEventsPerApplication *float64 `json:"medianEventsPerApplication"`
	HighEffortLowReturn        bool     `json:"highEffortLowReturn"`
}

type RoleROIReport struct {
	Roles []RoleROIRow `json:"roles"`
}

// roiGroup accumulates the per-group tallies shared by every ROI grouping.
type roiGroup struct {
	key        string
	count      int
	hires      int
	ghosts     int
	responseMs []float64
}

func (g *roiGroup) add(app application.Application) {
	g.count++
	switch app.Status {
	case application.StatusHired:
		g.hires++
	case application.StatusGhosted:
		g.ghosts++
	}
	if ms, ok := firstResponseMillis(app); ok {
		g.responseMs = append(g.responseMs, ms)
	}
}

func (g *roiGroup) row() ROIRow {
	return ROIRow{
		Key:                      g.key,
		Count:                    g.count,
		HireRate:                 ratio(g.hires, g.count),
		GhostRate:                ratio(g.ghosts, g.count),
		MedianFirstResponseHours: hoursOf(Median(SortSample(g.responseMs))),
	}
}

// ROI groups applications by work mode and, independently, by source bucket.
func ROI(apps []application.Application) ROIReport {
	report := ROIReport{
		ByWorkMode:            roiRows(apps, workModeKey),
		BySourceBucket:        roiRows(apps, func(a application.Application) string { return string(classifyPtr(a.Source)) }),
		TopRawSourcesByBucket: make(map[SourceBucket][]RawSourceCount, len(SourceBuckets)),
	}

	raw := make(map[SourceBucket]map[string]int, len(SourceBuckets))
	for _, b := range SourceBuckets {
		raw[b] = map[string]int{}
	}
	for _, app := range apps {
		bucket := classifyPtr(app.Source)
		raw[bucket][normalizedSource(app.Source)]++
	}
	for _, b := range SourceBuckets {
		counts := make([]RawSourceCount, 0, len(raw[b]))
		for source, n := range raw[b] {
			counts = append(counts, RawSourceCount{Source: source, Count: n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			return counts[i].Source < counts[j].Source
		})
		if len(counts) > topSourcesCap {
			counts = counts[:topSourcesCap]
		}
		report.TopRawSourcesByBucket[b] = counts
	}
	return report
}

func roiRows(apps []application.Application, keyOf func(application.Application) string) []ROIRow {
	groups := map[string]*roiGroup{}
	for _, app := range apps {
		key := keyOf(app)
		g, ok := groups[key]
		if !ok {
			g = &roiGroup{key: key}
			groups[key] = g
		}
		g.add(app)
	}

	rows := make([]ROIRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, g.row())
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

func workModeKey(app application.Application) string {
	if app.WorkMode == nil || *app.WorkMode == "" {
		return unknownMode
	}
	return string(*app.WorkMode)
}

func normalizedSource(source *string) string {
	if source == nil {
		return emptySource
	}
	s := strings.TrimSpace(*source)
	if s == "" {
		return emptySource
	}
	return strings.ToLower(s)
}

// RoleROI groups applications by case-folded role title. A role is flagged
// high effort, low return when its median events per application is at
// least 3 and none of its applications were hired.
func RoleROI(apps []application.Application, events []EventRow) RoleROIReport {
	eventsPerApp := make(map[string]int, len(apps))
	for _, ev := range events {
		eventsPerApp[ev.ApplicationID]++
	}

	type roleGroup struct {
		roiGroup
		display string
		events  []float64
	}
	groups := map[string]*roleGroup{}
	var order []string
	for _, app := range apps {
		display := strings.TrimSpace(app.RoleTitle)
		if display == "" {
			display = unknownRole
		}
		key := strings.ToLower(display)
		g, ok := groups[key]
		if !ok {
			g = &roleGroup{roiGroup: roiGroup{key: key}, display: display}
			groups[key] = g
			order = append(order, key)
		}
		g.add(app)
		g.events = append(g.events, float64(eventsPerApp[app.ID]))
	}

	report := RoleROIReport{Roles: make([]RoleROIRow, 0, len(groups))}
	for _, key := range order {
		g := groups[key]
		base := g.row()
		medianEvents := Median(SortSample(g.events))
		report.Roles = append(report.Roles, RoleROIRow{
			RoleTitle:                  g.display,
			Key:                        g.key,
			Count:                      base.Count,
			HireRate:                   base.HireRate,
			GhostRate:                  base.GhostRate,
			MedianFirstResponseHours:   base.MedianFirstResponseHours,
			MedianEventsPerApplication: medianEvents,
			HighEffortLowReturn:        medianEvents != nil && *medianEvents >= highEffortBase && g.hires == 0,
		})
	}
	sort.SliceStable(report.Roles, func(i, j int) bool { return report.Roles[i].Count > report.Roles[j].Count })
	return report
}
