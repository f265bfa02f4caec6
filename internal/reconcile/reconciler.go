package reconcile

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/ignite/outreach-analytics/internal/pkg/logger"
)

// Scope bounds one reconciliation run: one client and an inclusive calendar
// date range.
type Scope struct {
	Client string
	From   time.Time
	To     time.Time
}

// Reconciler folds the four event sources into funnel aggregates. It holds no
// state between runs; every run fetches fresh and builds a new aggregate set,
// so concurrent runs never share anything.
type Reconciler struct {
	src Source
}

// New creates a Reconciler over the given source.
func New(src Source) *Reconciler {
	return &Reconciler{src: src}
}

func (r *Reconciler) pageFilter(scope Scope, campaignID string, limit, offset int) Filter {
	return Filter{
		Client:     scope.Client,
		CampaignID: campaignID,
		From:       scope.From,
		To:         scope.To,
		Limit:      limit,
		Offset:     offset,
	}
}

func (r *Reconciler) fetchRollups(ctx context.Context, scope Scope, campaignID string) ([]CampaignDayRollup, error) {
	rows, err := fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]CampaignDayRollup, error) {
		return r.src.RollupPage(ctx, r.pageFilter(scope, campaignID, limit, offset))
	})
	if err != nil {
		return nil, &StageError{Stage: StageRollups, Err: err}
	}
	return rows, nil
}

func (r *Reconciler) fetchReplies(ctx context.Context, scope Scope, campaignID string) ([]ReplyEvent, error) {
	rows, err := fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]ReplyEvent, error) {
		return r.src.ReplyPage(ctx, r.pageFilter(scope, campaignID, limit, offset))
	})
	if err != nil {
		return nil, &StageError{Stage: StageReplies, Err: err}
	}
	return rows, nil
}

func (r *Reconciler) fetchMeetings(ctx context.Context, scope Scope) ([]MeetingEvent, error) {
	rows, err := fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]MeetingEvent, error) {
		return r.src.MeetingPage(ctx, r.pageFilter(scope, "", limit, offset))
	})
	if err != nil {
		return nil, &StageError{Stage: StageMeetings, Err: err}
	}
	return rows, nil
}

func (r *Reconciler) fetchStatuses(ctx context.Context, scope Scope) ([]CampaignStatusRecord, error) {
	rows, err := fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]CampaignStatusRecord, error) {
		return r.src.StatusPage(ctx, r.pageFilter(scope, "", limit, offset))
	})
	if err != nil {
		return nil, &StageError{Stage: StageStatuses, Err: err}
	}
	return rows, nil
}

// CampaignFunnel reconciles one scope into per-campaign funnel aggregates
// with daily series, sorted by emails sent descending (ties broken by
// campaign id). The fetch stages run strictly in sequence because later
// stages match against the campaign set established by the rollup stage.
func (r *Reconciler) CampaignFunnel(ctx context.Context, scope Scope) ([]CampaignAggregate, error) {
	rollups, err := r.fetchRollups(ctx, scope, "")
	if err != nil {
		return nil, err
	}
	replies, err := r.fetchReplies(ctx, scope, "")
	if err != nil {
		return nil, err
	}
	meetings, err := r.fetchMeetings(ctx, scope)
	if err != nil {
		return nil, err
	}
	statuses, err := r.fetchStatuses(ctx, scope)
	if err != nil {
		return nil, err
	}

	aggs := make(map[string]*CampaignAggregate)
	series := make(map[string]*dailySeries)
	nameToID := make(map[string]string)

	// Stage 1: rollups establish the campaign set and the volume counters.
	for _, row := range rollups {
		agg, ok := aggs[row.CampaignID]
		if !ok {
			agg = &CampaignAggregate{
				CampaignID:   row.CampaignID,
				CampaignName: row.CampaignName,
				Client:       row.Client,
			}
			aggs[row.CampaignID] = agg
			series[row.CampaignID] = newDailySeries()
			if name := strings.TrimSpace(row.CampaignName); name != "" {
				if _, taken := nameToID[name]; !taken {
					// First id wins when campaigns share a display name; the
					// name fallback below inherits that ambiguity.
					nameToID[name] = row.CampaignID
				}
			}
		}
		agg.EmailsSent += row.EmailsSent
		agg.UniqueProspects += row.LeadsContacted
		agg.Bounces += row.Bounced
		agg.PositiveReplies += row.Interested
		agg.LastActivity = laterDate(agg.LastActivity, row.Date)

		p := series[row.CampaignID].bucket(row.Date)
		p.EmailsSent += row.EmailsSent
		p.LeadsContacted += row.LeadsContacted
		p.PositiveReplies += row.Interested
	}

	// Stage 2: campaign-level reply uniques over the whole range.
	deduped, invalid := DeduplicateReplies(replies)
	if invalid > 0 {
		logger.Warn("dropped replies with no identity", "client", scope.Client, "count", invalid)
	}
	orphanReplies := 0
	for _, ev := range deduped {
		agg, ok := aggs[ev.CampaignID]
		if !ok {
			orphanReplies++
			continue
		}
		agg.TotalReplies++
		if !IsOutOfOffice(ev.Category) {
			agg.RealReplies++
		}
		agg.LastActivity = laterDate(agg.LastActivity, dateKey(ev.ReceivedAt))
	}
	if orphanReplies > 0 {
		logger.Warn("dropped replies for campaigns absent from rollups",
			"client", scope.Client, "count", orphanReplies)
	}

	// Stage 3: per-day reply uniques. Identity is resolved within each day
	// independently, so a lead replying on two days counts once per day even
	// though it counted once overall above.
	byDay := make(map[string][]ReplyEvent)
	for _, ev := range replies {
		day := dateKey(ev.ReceivedAt)
		byDay[day] = append(byDay[day], ev)
	}
	for day, dayEvents := range byDay {
		dayDeduped, _ := DeduplicateReplies(dayEvents)
		for _, ev := range dayDeduped {
			s, ok := series[ev.CampaignID]
			if !ok {
				continue
			}
			if !IsOutOfOffice(ev.Category) {
				s.bucket(day).RealReplies++
			}
		}
	}

	// Stage 4: meetings match by id, then by campaign name; unmatched events
	// are dropped, never merged into an arbitrary campaign.
	unmatchedMeetings := 0
	for _, m := range meetings {
		id := m.CampaignID
		if _, ok := aggs[id]; !ok {
			id = nameToID[strings.TrimSpace(m.CampaignName)]
		}
		agg, ok := aggs[id]
		if !ok {
			unmatchedMeetings++
			logger.Debug("meeting matched no campaign",
				"campaign_id", m.CampaignID, "campaign_name", m.CampaignName)
			continue
		}
		agg.MeetingsBooked++
		day := dateKey(m.CreatedAt)
		series[agg.CampaignID].bucket(day).Meetings++
		agg.LastActivity = laterDate(agg.LastActivity, day)
	}
	if unmatchedMeetings > 0 {
		logger.Warn("dropped meetings matching no campaign",
			"client", scope.Client, "count", unmatchedMeetings)
	}

	// Stage 5: status registry join. Ids are compared as strings because the
	// registry and the rollup source disagree on native id types.
	statusByID := make(map[string]string, len(statuses))
	for _, rec := range statuses {
		statusByID[strings.TrimSpace(rec.CampaignID)] = rec.Status
	}
	for id, agg := range aggs {
		agg.Status = ClassifyStatus(statusByID[strings.TrimSpace(id)])
	}

	out := make([]CampaignAggregate, 0, len(aggs))
	for id, agg := range aggs {
		agg.Daily = series[id].points()
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmailsSent != out[j].EmailsSent {
			return out[i].EmailsSent > out[j].EmailsSent
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out, nil
}

// SequenceSteps reconciles one campaign's per-sequence-step funnel for the
// scope, sorted ascending by step order. Rollup rows contribute volume
// counters from their embedded step payload; reply events contribute uniques
// through their step field. A malformed step payload skips that row's step
// contribution and nothing else.
func (r *Reconciler) SequenceSteps(ctx context.Context, scope Scope, campaignID string) ([]SequenceStepAggregate, error) {
	rollups, err := r.fetchRollups(ctx, scope, campaignID)
	if err != nil {
		return nil, err
	}
	replies, err := r.fetchReplies(ctx, scope, campaignID)
	if err != nil {
		return nil, err
	}

	steps := make(map[int]*SequenceStepAggregate)
	step := func(n int) *SequenceStepAggregate {
		if s, ok := steps[n]; ok {
			return s
		}
		s := &SequenceStepAggregate{CampaignID: campaignID, Step: n}
		steps[n] = s
		return s
	}

	malformed := 0
	for _, row := range rollups {
		if len(row.StepStats) == 0 {
			continue
		}
		var stats []StepStat
		if err := json.Unmarshal(row.StepStats, &stats); err != nil {
			malformed++
			continue
		}
		for _, st := range stats {
			if st.Step <= 0 {
				continue
			}
			s := step(st.Step)
			s.EmailsSent += st.EmailsSent
			s.LeadsContacted += st.LeadsContacted
			s.Bounces += st.Bounced
			s.PositiveReplies += st.Interested
		}
	}
	if malformed > 0 {
		logger.Debug("skipped malformed step payloads",
			"campaign_id", campaignID, "count", malformed)
	}

	deduped, _ := DeduplicateReplies(replies)
	for _, ev := range deduped {
		if ev.CampaignID != campaignID || ev.SequenceStep <= 0 {
			continue
		}
		s := step(ev.SequenceStep)
		s.TotalReplies++
		if !IsOutOfOffice(ev.Category) {
			s.RealReplies++
		}
	}

	out := make([]SequenceStepAggregate, 0, len(steps))
	for _, s := range steps {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// laterDate returns the later of two YYYY-MM-DD keys; lexicographic order is
// chronological for this layout.
func laterDate(a, b string) string {
	if b > a {
		return b
	}
	return a
}
