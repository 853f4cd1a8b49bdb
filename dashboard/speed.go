package dashboard

import (
	"sort"

	"jobtrail/application"
)

type FirstResponse struct {
	MedianHours *float64 `json:"medianHours"`
	P75Hours    *float64 `json:"p75Hours"`
}

type WeekMedian struct {
	WeekStart   string   `json:"weekStart"`
	MedianHours *float64 `json:"medianHours"`
}

type SpeedReport struct {
	FirstResponse       FirstResponse                   `json:"firstResponse"`
	WeeklyTrend         []WeekMedian                    `json:"weeklyTrend"`
	TimeToCloseByStatus map[application.Status]*float64 `json:"timeToCloseByStatus"`
}

var closingStatuses = []application.Status{
	application.StatusHired,
	application.StatusRejected,
	application.StatusGhosted,
}

// Speed reports first-response latency and time-to-close. Negative deltas
// are data anomalies and are left out of every sample.
func Speed(apps []application.Application, tzOffsetMinutes int) SpeedReport {
	report := SpeedReport{
		WeeklyTrend:         []WeekMedian{},
		TimeToCloseByStatus: make(map[application.Status]*float64, len(closingStatuses)),
	}

	var firstResponse []float64
	byWeek := map[string][]float64{}
	closeSamples := make(map[application.Status][]float64, len(closingStatuses))

	for _, app := range apps {
		if ms, ok := firstResponseMillis(app); ok {
			firstResponse = append(firstResponse, ms)
			week := WeekKeyClientLocal(app.AppliedAt, tzOffsetMinutes)
			byWeek[week] = append(byWeek[week], ms)
		}
		if app.ClosedAt != nil && app.Status.Terminal() {
			if ms := millisBetween(*app.ClosedAt, app.AppliedAt); ms >= 0 {
				closeSamples[app.Status] = append(closeSamples[app.Status], ms)
			}
		}
	}

	sample := SortSample(firstResponse)
	report.FirstResponse = FirstResponse{
		MedianHours: hoursOf(Median(sample)),
		P75Hours:    hoursOf(P75(sample)),
	}

	for week, values := range byWeek {
		report.WeeklyTrend = append(report.WeeklyTrend, WeekMedian{
			WeekStart:   week,
			MedianHours: hoursOf(Median(SortSample(values))),
		})
	}
	sort.Slice(report.WeeklyTrend, func(i, j int) bool {
		return report.WeeklyTrend[i].WeekStart < report.WeeklyTrend[j].WeekStart
	})

	for _, status := range closingStatuses {
		report.TimeToCloseByStatus[status] = hoursOf(Median(SortSample(closeSamples[status])))
	}
	return report
}

// firstResponseMillis returns the applied-to-first-response delta when it is
// present and non-negative.
func firstResponseMillis(app application.Application) (float64, bool) {
	if app.FirstResponseAt == nil {
		return 0, false
	}
	ms := millisBetween(*app.FirstResponseAt, app.AppliedAt)
	if ms < 0 {
		return 0, false
	}
	return ms, true
}
