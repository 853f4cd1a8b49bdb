package dashboard

import "jobtrail/application"

// KeyPath is the stage sequence conversions are reported along. Other stage
// types still appear in ReachedCounts.
var KeyPath = []application.StageType{
	application.StageApplied,
	application.StageRecruiterScreen,
	application.StageTechScreen,
	application.StageOnsite,
	application.StageOffer,
}

type Conversion struct {
	From      application.StageType `json:"from"`
	To        application.StageType `json:"to"`
	FromCount int                   `json:"fromCount"`
	ToCount   int                   `json:"toCount"`
	Rate      *float64              `json:"rate"`
}

type OfferToHire struct {
	Offers int      `json:"offers"`
	Hires  int      `json:"hires"`
	Rate   *float64 `json:"rate"`
}

type FunnelReport struct {
	ReachedCounts map[application.StageType]int `json:"reachedCounts"`
	Conversions   []Conversion                  `json:"conversions"`
	OfferToHire   OfferToHire                   `json:"offerToHire"`
}

// Funnel treats an application as having reached a stage type once any event
// was recorded under a stage of that type. Hires come from application status.
// Retyping a stage reinterprets the events already recorded under it.
func Funnel(apps []application.Application, events []EventRow) FunnelReport {
	reached := make(map[application.StageType]map[string]struct{}, len(application.StageTypes))
	for _, st := range application.StageTypes {
		reached[st] = map[string]struct{}{}
	}
	for _, ev := range events {
		reached[stageTypeOrOther(ev.StageType)][ev.ApplicationID] = struct{}{}
	}

	report := FunnelReport{
		ReachedCounts: make(map[application.StageType]int, len(application.StageTypes)),
		Conversions:   make([]Conversion, 0, len(KeyPath)-1),
	}
	for _, st := range application.StageTypes {
		report.ReachedCounts[st] = len(reached[st])
	}

	for i := 0; i+1 < len(KeyPath); i++ {
		from, to := reached[KeyPath[i]], reached[KeyPath[i+1]]
		both := 0
		for id := range from {
			if _, ok := to[id]; ok {
				both++
			}
		}
		report.Conversions = append(report.Conversions, Conversion{
			From:      KeyPath[i],
			To:        KeyPath[i+1],
			FromCount: len(from),
			ToCount:   both,
			Rate:      ratio(both, len(from)),
		})
	}

	hired := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if app.Status == application.StatusHired {
			hired[app.ID] = struct{}{}
		}
	}
	offers := reached[application.StageOffer]
	hires := 0
	for id := range offers {
		if _, ok := hired[id]; ok {
			hires++
		}
	}
	report.OfferToHire = OfferToHire{Offers: len(offers), Hires: hires, Rate: ratio(hires, len(offers))}
	return report
}

// stageTypeOrOther classifies an untyped stage as OTHER.
func stageTypeOrOther(st *application.StageType) application.StageType {
	if st == nil || !st.Valid() {
		return application.StageOther
	}
	return *st
}
