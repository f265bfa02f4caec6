package reconcile

import (
	"context"
	"encoding/json"
	"time"
)

// CampaignDayRollup is one pre-aggregated per-campaign-per-day row from the
// campaign stats source. StepStats carries the raw per-sequence-step counter
// payload when the source includes one; it is decoded lazily because upstream
// rows are not guaranteed to be well-formed.
type CampaignDayRollup struct {
	CampaignID     string          `json:"campaign_id"`
	CampaignName   string          `json:"campaign_name"`
	Client         string          `json:"client"`
	Date           string          `json:"date"` // YYYY-MM-DD
	EmailsSent     int             `json:"emails_sent"`
	LeadsContacted int             `json:"leads_contacted"`
	Bounced        int             `json:"bounced"`
	Interested     int             `json:"interested"`
	StepStats      json.RawMessage `json:"step_stats,omitempty"`
}

// StepStat is one decoded entry of a rollup's per-step counter payload.
type StepStat struct {
	Step           int `json:"step"`
	EmailsSent     int `json:"emails_sent"`
	LeadsContacted int `json:"leads_contacted"`
	Bounced        int `json:"bounced"`
	Interested     int `json:"interested"`
}

// ReplyEvent is one inbound reply from the reply-events source. Either LeadID
// or FromEmail identifies the lead; both may be empty on malformed rows.
type ReplyEvent struct {
	CampaignID   string    `json:"campaign_id"`
	Client       string    `json:"client"`
	LeadID       string    `json:"lead_id"`
	FromEmail    string    `json:"from_email"`
	Category     string    `json:"category"`
	SequenceStep int       `json:"sequence_step"`
	ReceivedAt   time.Time `json:"received_at"`
}

// MeetingEvent is one meeting-booked event. Some upstream integrations fill
// only the campaign name, not the id.
type MeetingEvent struct {
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	Client       string    `json:"client"`
	CreatedAt    time.Time `json:"created_at"`
}

// CampaignStatusRecord is one row of the campaign status registry.
type CampaignStatusRecord struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

// DailyPoint holds one calendar day of funnel counters inside a campaign
// aggregate. Date is the display label; ordering uses the raw date key.
type DailyPoint struct {
	Date            string `json:"date"` // display label, e.g. "Feb 1"
	EmailsSent      int    `json:"emails_sent"`
	LeadsContacted  int    `json:"leads_contacted"`
	RealReplies     int    `json:"real_replies"`
	PositiveReplies int    `json:"positive_replies"`
	Meetings        int    `json:"meetings"`

	sortKey string // YYYY-MM-DD
}

// CampaignAggregate is the reconciled funnel for one campaign over one scope.
// Built fresh on every reconciliation run and never mutated afterwards.
type CampaignAggregate struct {
	CampaignID      string         `json:"campaign_id"`
	CampaignName    string         `json:"campaign_name"`
	Client          string         `json:"client"`
	Status          CampaignStatus `json:"status"`
	EmailsSent      int            `json:"emails_sent"`
	UniqueProspects int            `json:"unique_prospects"`
	TotalReplies    int            `json:"total_replies"`
	RealReplies     int            `json:"real_replies"`
	PositiveReplies int            `json:"positive_replies"`
	Bounces         int            `json:"bounces"`
	MeetingsBooked  int            `json:"meetings_booked"`
	LastActivity    string         `json:"last_activity,omitempty"` // YYYY-MM-DD
	Daily           []DailyPoint   `json:"daily"`
}

// SequenceStepAggregate is the reconciled funnel for one step of one
// campaign's outreach sequence.
type SequenceStepAggregate struct {
	CampaignID      string `json:"campaign_id"`
	Step            int    `json:"step"`
	EmailsSent      int    `json:"emails_sent"`
	LeadsContacted  int    `json:"leads_contacted"`
	TotalReplies    int    `json:"total_replies"`
	RealReplies     int    `json:"real_replies"`
	PositiveReplies int    `json:"positive_replies"`
	Bounces         int    `json:"bounces"`
}

// Filter carries the query predicate plus an explicit page window for one
// source call. The sources cap response sizes, so Limit/Offset are always set
// by the fetch loop, never left to a server default.
type Filter struct {
	Client     string
	CampaignID string
	From       time.Time // inclusive calendar date
	To         time.Time // inclusive calendar date
	Limit      int
	Offset     int
}

// Source is the paginated query collaborator the engine reads from. Each call
// returns at most Limit rows starting at Offset, in a stable sort order.
// Implementations must never return an unpaged "everything" response.
type Source interface {
	RollupPage(ctx context.Context, f Filter) ([]CampaignDayRollup, error)
	ReplyPage(ctx context.Context, f Filter) ([]ReplyEvent, error)
	MeetingPage(ctx context.Context, f Filter) ([]MeetingEvent, error)
	StatusPage(ctx context.Context, f Filter) ([]CampaignStatusRecord, error)
}
