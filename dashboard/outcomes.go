package dashboard

import (
	"sort"

	"jobtrail/application"
)

const dropoffCap = 5

// OutcomeCounts is one row of an outcome matrix.
type OutcomeCounts map[application.Outcome]int

// channelOrder is the column order the outcome matrix reports channels in.
var channelOrder = []application.Channel{
	application.ChannelEmail,
	application.ChannelCall,
	application.ChannelChat,
	application.ChannelOnsite,
	application.ChannelVideo,
	application.ChannelOther,
}

type Dropoff struct {
	StageType application.StageType `json:"stageType"`
	FailCount int                   `json:"failCount"`
	FailRate  *float64              `json:"failRate"`
}

type OutcomesReport struct {
	ByStageType      map[application.StageType]OutcomeCounts `json:"byStageType"`
	ByChannel        map[application.Channel]OutcomeCounts   `json:"byChannel"`
	TopDropoffStages []Dropoff                               `json:"topDropoffStages"`
}

// Outcomes tallies event outcomes by stage type and by channel. A missing
// outcome counts as PENDING.
func Outcomes(events []EventRow) OutcomesReport {
	report := OutcomesReport{
		ByStageType:      make(map[application.StageType]OutcomeCounts, len(application.StageTypes)),
		ByChannel:        make(map[application.Channel]OutcomeCounts, len(channelOrder)),
		TopDropoffStages: []Dropoff{},
	}
	for _, st := range application.StageTypes {
		report.ByStageType[st] = zeroOutcomes()
	}
	for _, ch := range channelOrder {
		report.ByChannel[ch] = zeroOutcomes()
	}

	for _, ev := range events {
		outcome := application.OutcomeOf(ev.Outcome)
		report.ByStageType[stageTypeOrOther(ev.StageType)][outcome]++
		channel := ev.Channel
		if _, ok := report.ByChannel[channel]; !ok {
			channel = application.ChannelOther
		}
		report.ByChannel[channel][outcome]++
	}

	type ranked struct {
		Dropoff
		total int
	}
	var candidates []ranked
	for _, st := range application.StageTypes {
		row := report.ByStageType[st]
		total := row[application.OutcomePass] + row[application.OutcomeFail] + row[application.OutcomePending]
		if total == 0 {
			continue
		}
		fail := row[application.OutcomeFail]
		candidates = append(candidates, ranked{
			Dropoff: Dropoff{StageType: st, FailCount: fail, FailRate: ratio(fail, total)},
			total:   total,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FailCount != candidates[j].FailCount {
			return candidates[i].FailCount > candidates[j].FailCount
		}
		return *candidates[i].FailRate > *candidates[j].FailRate
	})
	for i, c := range candidates {
		if i == dropoffCap {
			break
		}
		report.TopDropoffStages = append(report.TopDropoffStages, c.Dropoff)
	}
	return report
}

func zeroOutcomes() OutcomeCounts {
	return OutcomeCounts{
		application.OutcomePass:    0,
		application.OutcomeFail:    0,
		application.OutcomePending: 0,
	}
}
