package reconcile

import "strings"

// CampaignStatus is the closed lifecycle set a free-text registry status
// resolves to.
type CampaignStatus string

const (
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusUnknown   CampaignStatus = "unknown"
)

// statusKeywords lists the classification groups in evaluation order. Order
// matters: a string matching both an active and a completed keyword resolves
// to active because that group runs first.
var statusKeywords = []struct {
	status   CampaignStatus
	keywords []string
}{
	{StatusActive, []string{"active", "running", "in_progress", "in progress"}},
	{StatusPaused, []string{"paused", "pause", "on_hold", "on hold"}},
	{StatusCompleted, []string{"completed", "complete", "stopped", "finished", "done", "ended"}},
}

// ClassifyStatus maps a free-text campaign status to the closed status set.
// Matching is case-insensitive containment over the trimmed input. A
// non-empty string matching no keyword group falls back to active, legacy
// behavior the dashboard counts depend on. Only an empty string yields
// unknown.
func ClassifyStatus(raw string) CampaignStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusUnknown
	}
	for _, group := range statusKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(s, kw) {
				return group.status
			}
		}
	}
	return StatusActive
}
