package application

// Display labels live apart from the enums so presentation wording can
// change without touching persisted values.

var StatusLabels = map[Status]string{
	StatusOpen:     "Open",
	StatusHired:    "Hired",
	StatusRejected: "Rejected",
	StatusGhosted:  "Ghosted",
}

var WorkModeLabels = map[WorkMode]string{
	WorkModeOnsite: "On-site",
	WorkModeHybrid: "Hybrid",
	WorkModeRemote: "Remote",
}

var StageTypeLabels = map[StageType]string{
	StageApplied:         "Applied",
	StageRecruiterScreen: "Recruiter screen",
	StageTechScreen:      "Technical screen",
	StageCultural:        "Culture fit",
	StageTakeHome:        "Take-home",
	StageOnsite:          "Onsite",
	StageHMChat:          "Hiring manager chat",
	StageOffer:           "Offer",
	StageNegotiation:     "Negotiation",
	StageOther:           "Other",
}

var ChannelLabels = map[Channel]string{
	ChannelEmail:  "Email",
	ChannelCall:   "Call",
	ChannelVideo:  "Video",
	ChannelOnsite: "Onsite",
	ChannelChat:   "Chat",
	ChannelOther:  "Other",
}

var OutcomeLabels = map[Outcome]string{
	OutcomePass:    "Pass",
	OutcomeFail:    "Fail",
	OutcomePending: "Pending",
}

// Label returns the display label for a status, falling back to the raw value.
func (s Status) Label() string {
	if l, ok := StatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (t StageType) Label() string {
	if l, ok := StageTypeLabels[t]; ok {
		return l
	}
	return string(t)
}
