package dashboard

import (
	"strings"

	"jobtrail/application"
)

type HygieneRates struct {
	FollowUpSetRate               *float64 `json:"followUpSetRate"`
	OnTimeFollowUpCompletionRate  *float64 `json:"onTimeFollowUpCompletionRate"`
	AvgLateHours                  *float64 `json:"avgLateHours"`
	FeedbackCoverageRate          *float64 `json:"feedbackCoverageRate"`
	NextTalkingPointsCoverageRate *float64 `json:"nextTalkingPointsCoverageRate"`
}

type HygieneCounts struct {
	PendingEvents         int `json:"pendingEvents"`
	PendingWithFollowUp   int `json:"pendingWithFollowUp"`
	FollowUpsDone         int `json:"followUpsDone"`
	FollowUpsOnTime       int `json:"followUpsOnTime"`
	LateCount             int `json:"lateCount"`
	WithFeedback          int `json:"withFeedback"`
	WithNextTalkingPoints int `json:"withNextTalkingPoints"`
	TotalEvents           int `json:"totalEvents"`
}

type HygieneReport struct {
	Rates  HygieneRates  `json:"rates"`
	Counts HygieneCounts `json:"counts"`
}

// Hygiene measures follow-up discipline and note coverage over the cohort's events.
func Hygiene(events []EventRow) HygieneReport {
	var c HygieneCounts
	var lateMillis float64

	for _, ev := range events {
		c.TotalEvents++
		if application.OutcomeOf(ev.Outcome) == application.OutcomePending {
			c.PendingEvents++
			if ev.FollowUpAt != nil {
				c.PendingWithFollowUp++
			}
		}
		if ev.FollowUpAt != nil && ev.FollowUpDoneAt != nil {
			c.FollowUpsDone++
			if !ev.FollowUpDoneAt.After(*ev.FollowUpAt) {
				c.FollowUpsOnTime++
			} else {
				c.LateCount++
				lateMillis += millisBetween(*ev.FollowUpDoneAt, *ev.FollowUpAt)
			}
		}
		if hasText(ev.Feedback) {
			c.WithFeedback++
		}
		if hasText(ev.NextTalkingPoints) {
			c.WithNextTalkingPoints++
		}
	}

	report := HygieneReport{
		Counts: c,
		Rates: HygieneRates{
			FollowUpSetRate:               ratio(c.PendingWithFollowUp, c.PendingEvents),
			OnTimeFollowUpCompletionRate:  ratio(c.FollowUpsOnTime, c.FollowUpsDone),
			FeedbackCoverageRate:          ratio(c.WithFeedback, c.TotalEvents),
			NextTalkingPointsCoverageRate: ratio(c.WithNextTalkingPoints, c.TotalEvents),
		},
	}
	if c.LateCount > 0 {
		avg := ToHours(lateMillis / float64(c.LateCount))
		report.Rates.AvgLateHours = &avg
	}
	return report
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
