package application

import "time"

type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusHired    Status = "HIRED"
	StatusRejected Status = "REJECTED"
	StatusGhosted  Status = "GHOSTED"
)

// Statuses lists every application status in display order.
var Statuses = []Status{StatusOpen, StatusHired, StatusRejected, StatusGhosted}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusHired, StatusRejected, StatusGhosted:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status closes the application and stamps closedAt.
func (s Status) Terminal() bool {
	return s == StatusHired || s == StatusRejected || s == StatusGhosted
}

// Locked reports whether the application only accepts note edits.
func (s Status) Locked() bool {
	return s == StatusRejected || s == StatusGhosted
}

type WorkMode string

const (
	WorkModeOnsite WorkMode = "ONSITE"
	WorkModeHybrid WorkMode = "HYBRID"
	WorkModeRemote WorkMode = "REMOTE"
)

var WorkModes = []WorkMode{WorkModeOnsite, WorkModeHybrid, WorkModeRemote}

func (m WorkMode) Valid() bool {
	switch m {
	case WorkModeOnsite, WorkModeHybrid, WorkModeRemote:
		return true
	default:
		return false
	}
}

type StageType string

const (
	StageApplied         StageType = "APPLIED"
	StageRecruiterScreen StageType = "RECRUITER_SCREEN"
	StageTechScreen      StageType = "TECH_SCREEN"
	StageCultural        StageType = "CULTURAL"
	StageTakeHome        StageType = "TAKE_HOME"
	StageOnsite          StageType = "ONSITE"
	StageHMChat          StageType = "HM_CHAT"
	StageOffer           StageType = "OFFER"
	StageNegotiation     StageType = "NEGOTIATION"
	StageOther           StageType = "OTHER"
)

// StageTypes lists every stage type; analytics matrices use this order for rows.
var StageTypes = []StageType{
	StageApplied,
	StageRecruiterScreen,
	StageTechScreen,
	StageCultural,
	StageTakeHome,
	StageOnsite,
	StageHMChat,
	StageOffer,
	StageNegotiation,
	StageOther,
}

func (t StageType) Valid() bool {
	for _, v := range StageTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Channel string

const (
	ChannelEmail  Channel = "EMAIL"
	ChannelCall   Channel = "CALL"
	ChannelVideo  Channel = "VIDEO"
	ChannelOnsite Channel = "ONSITE"
	ChannelChat   Channel = "CHAT"
	ChannelOther  Channel = "OTHER"
)

var Channels = []Channel{ChannelEmail, ChannelCall, ChannelVideo, ChannelOnsite, ChannelChat, ChannelOther}

func (c Channel) Valid() bool {
	for _, v := range Channels {
		if v == c {
			return true
		}
	}
	return false
}

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
	DirectionUnknown  Direction = "UNKNOWN"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound || d == DirectionUnknown
}

type Outcome string

const (
	OutcomePass    Outcome = "PASS"
	OutcomeFail    Outcome = "FAIL"
	OutcomePending Outcome = "PENDING"
)

var Outcomes = []Outcome{OutcomePass, OutcomeFail, OutcomePending}

func (o Outcome) Valid() bool {
	return o == OutcomePass || o == OutcomeFail || o == OutcomePending
}

// OutcomeOf resolves an optional outcome; absence counts as PENDING.
func OutcomeOf(o *Outcome) Outcome {
	if o == nil || *o == "" {
		return OutcomePending
	}
	return *o
}

// Application mirrors the applications table.
type Application struct {
	ID              string
	UserID          string
	CompanyName     string
	RoleTitle       string
	JobURL          *string
	Location        *string
	Source          *string
	Notes           *string
	Status          Status
	WorkMode        *WorkMode
	AppliedAt       time.Time
	FirstResponseAt *time.Time
	LastActivityAt  time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stage mirrors the interview_stages table.
type Stage struct {
	ID            string
	ApplicationID string
	StageType     *StageType
	Title         string
	OrderIndex    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Label returns the stage type, or the free-text title when the type is unset.
func (s Stage) Label() string {
	if s.StageType != nil && *s.StageType != "" {
		return string(*s.StageType)
	}
	return s.Title
}

// Event mirrors the interview_events table.
type Event struct {
	ID                string
	StageID           string
	OccurredAt        time.Time
	Channel           Channel
	Direction         Direction
	Notes             string
	Feedback          *string
	NextTalkingPoints *string
	FollowUpAt        *time.Time
	FollowUpDoneAt    *time.Time
	Outcome           *Outcome
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Overdue reports whether the follow-up deadline passed without being marked done.
func (e Event) Overdue(now time.Time) bool {
	return e.FollowUpAt != nil && e.FollowUpAt.Before(now) && e.FollowUpDoneAt == nil
}
