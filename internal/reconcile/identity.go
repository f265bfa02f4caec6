package reconcile

import (
	"sort"
	"strings"
)

// IdentityKey returns the canonical identity of a reply event: the lead id
// when present, else the sender address. An empty result means the record
// cannot participate in identity-sensitive counts.
func IdentityKey(ev ReplyEvent) string {
	if id := strings.TrimSpace(ev.LeadID); id != "" {
		return id
	}
	return strings.TrimSpace(ev.FromEmail)
}

// identityScope is the dedup grouping key. The same literal identity under a
// different campaign or client is a distinct lead.
type identityScope struct {
	campaignID string
	client     string
	key        string
}

// DeduplicateReplies collapses a reply stream to one canonical record per
// (identity, campaign, client). Records are scanned in ascending ReceivedAt
// order and the earliest record for each identity wins; later duplicates are
// ignored even if categorized differently. Records with no identity are
// dropped and counted in the second return value.
//
// The function is idempotent: running it over its own output yields the same
// set.
func DeduplicateReplies(events []ReplyEvent) ([]ReplyEvent, int) {
	sorted := make([]ReplyEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
	})

	seen := make(map[identityScope]struct{}, len(sorted))
	kept := make([]ReplyEvent, 0, len(sorted))
	invalid := 0

	for _, ev := range sorted {
		key := IdentityKey(ev)
		if key == "" {
			invalid++
			continue
		}
		scope := identityScope{campaignID: ev.CampaignID, client: ev.Client, key: key}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		kept = append(kept, ev)
	}

	return kept, invalid
}
