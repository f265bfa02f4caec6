package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeSource serves in-memory record sets with real limit/offset paging, so
// reconciler tests exercise the same drain path production uses. Setting one
// of the fail fields makes that stage error.
type fakeSource struct {
	rollups  []CampaignDayRollup
	replies  []ReplyEvent
	meetings []MeetingEvent
	statuses []CampaignStatusRecord

	failRollups  error
	failReplies  error
	failMeetings error
	failStatuses error
}

func page[T any](rows []T, f Filter) []T {
	if f.Offset >= len(rows) {
		return nil
	}
	end := f.Offset + f.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[f.Offset:end]
}

func (s *fakeSource) RollupPage(_ context.Context, f Filter) ([]CampaignDayRollup, error) {
	if s.failRollups != nil {
		return nil, s.failRollups
	}
	rows := s.rollups
	if f.CampaignID != "" {
		var filtered []CampaignDayRollup
		for _, r := range rows {
			if r.CampaignID == f.CampaignID {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	return page(rows, f), nil
}

func (s *fakeSource) ReplyPage(_ context.Context, f Filter) ([]ReplyEvent, error) {
	if s.failReplies != nil {
		return nil, s.failReplies
	}
	rows := s.replies
	if f.CampaignID != "" {
		var filtered []ReplyEvent
		for _, r := range rows {
			if r.CampaignID == f.CampaignID {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	return page(rows, f), nil
}

func (s *fakeSource) MeetingPage(_ context.Context, f Filter) ([]MeetingEvent, error) {
	if s.failMeetings != nil {
		return nil, s.failMeetings
	}
	return page(s.meetings, f), nil
}

func (s *fakeSource) StatusPage(_ context.Context, f Filter) ([]CampaignStatusRecord, error) {
	if s.failStatuses != nil {
		return nil, s.failStatuses
	}
	return page(s.statuses, f), nil
}

func testScope() Scope {
	return Scope{
		Client: "acme",
		From:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	}
}

func TestCampaignFunnelEndToEnd(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c1", CampaignName: "Alpha", Client: "acme",
				Date: "2024-02-01", EmailsSent: 100, LeadsContacted: 80},
			{CampaignID: "c1", CampaignName: "Alpha", Client: "acme",
				Date: "2024-02-02", EmailsSent: 50, LeadsContacted: 40},
		},
		replies: []ReplyEvent{
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com", Category: "Interested",
				ReceivedAt: mustTime(t, "2024-02-01T10:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com", Category: "Interested",
				ReceivedAt: mustTime(t, "2024-02-02T11:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "b@x.com", Category: "ooo",
				ReceivedAt: mustTime(t, "2024-02-01T12:00:00Z")},
		},
		meetings: []MeetingEvent{
			{CampaignID: "c1", Client: "acme", CreatedAt: mustTime(t, "2024-02-02T15:00:00Z")},
		},
		statuses: []CampaignStatusRecord{
			{CampaignID: "c1", Status: "active"},
		},
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected 1 campaign, got %d", len(aggs))
	}

	agg := aggs[0]
	if agg.EmailsSent != 150 {
		t.Errorf("EmailsSent = %d, expected 150", agg.EmailsSent)
	}
	if agg.UniqueProspects != 120 {
		t.Errorf("UniqueProspects = %d, expected 120", agg.UniqueProspects)
	}
	if agg.TotalReplies != 2 {
		t.Errorf("TotalReplies = %d, expected 2", agg.TotalReplies)
	}
	// b@x.com is out-of-office, so only a@x.com counts as real.
	if agg.RealReplies != 1 {
		t.Errorf("RealReplies = %d, expected 1", agg.RealReplies)
	}
	if agg.MeetingsBooked != 1 {
		t.Errorf("MeetingsBooked = %d, expected 1", agg.MeetingsBooked)
	}
	if agg.Status != StatusActive {
		t.Errorf("Status = %q, expected active", agg.Status)
	}
	if agg.LastActivity != "2024-02-02" {
		t.Errorf("LastActivity = %q, expected 2024-02-02", agg.LastActivity)
	}

	if len(agg.Daily) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(agg.Daily))
	}
	day1, day2 := agg.Daily[0], agg.Daily[1]
	if day1.Date != "Feb 1" || day2.Date != "Feb 2" {
		t.Errorf("daily labels = %q, %q", day1.Date, day2.Date)
	}
	if day1.EmailsSent+day2.EmailsSent != agg.EmailsSent {
		t.Error("daily emails do not sum to campaign total")
	}
	if day1.LeadsContacted+day2.LeadsContacted != agg.UniqueProspects {
		t.Error("daily contacts do not sum to campaign total")
	}
	if day1.Meetings+day2.Meetings != agg.MeetingsBooked {
		t.Error("daily meetings do not sum to campaign total")
	}
	// a@x.com replied both days: one real unique per day, even though the
	// campaign total counts it once.
	if day1.RealReplies != 1 || day2.RealReplies != 1 {
		t.Errorf("daily real replies = %d, %d, expected 1 each", day1.RealReplies, day2.RealReplies)
	}
}

func TestCampaignFunnelRealNeverExceedsTotal(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c1", Client: "acme", Date: "2024-02-01", EmailsSent: 10},
		},
		replies: []ReplyEvent{
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com", Category: "Interested",
				ReceivedAt: mustTime(t, "2024-02-01T10:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "b@x.com", Category: "OOO",
				ReceivedAt: mustTime(t, "2024-02-01T11:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "c@x.com", Category: "Out of Office",
				ReceivedAt: mustTime(t, "2024-02-01T12:00:00Z")},
		},
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	for _, agg := range aggs {
		if agg.RealReplies > agg.TotalReplies {
			t.Errorf("campaign %s: real %d > total %d",
				agg.CampaignID, agg.RealReplies, agg.TotalReplies)
		}
	}
}

func TestCampaignFunnelOrderedByEmailsSentDesc(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "small", Client: "acme", Date: "2024-02-01", EmailsSent: 10},
			{CampaignID: "big", Client: "acme", Date: "2024-02-01", EmailsSent: 500},
			{CampaignID: "mid", Client: "acme", Date: "2024-02-01", EmailsSent: 100},
		},
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	want := []string{"big", "mid", "small"}
	for i, id := range want {
		if aggs[i].CampaignID != id {
			t.Errorf("position %d: got %q, expected %q", i, aggs[i].CampaignID, id)
		}
	}
}

func TestCampaignFunnelMeetingNameFallback(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c1", CampaignName: "Alpha Outreach", Client: "acme",
				Date: "2024-02-01", EmailsSent: 10},
		},
		meetings: []MeetingEvent{
			// No id match; falls back to the campaign name.
			{CampaignName: "Alpha Outreach", Client: "acme",
				CreatedAt: mustTime(t, "2024-02-01T09:00:00Z")},
			// Matches nothing; must be dropped, not merged anywhere.
			{CampaignID: "ghost", CampaignName: "No Such Campaign", Client: "acme",
				CreatedAt: mustTime(t, "2024-02-01T09:00:00Z")},
		},
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	if aggs[0].MeetingsBooked != 1 {
		t.Errorf("MeetingsBooked = %d, expected 1", aggs[0].MeetingsBooked)
	}
}

func TestCampaignFunnelStatusDefaults(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "listed", Client: "acme", Date: "2024-02-01", EmailsSent: 1},
			{CampaignID: "unlisted", Client: "acme", Date: "2024-02-01", EmailsSent: 2},
		},
		statuses: []CampaignStatusRecord{
			{CampaignID: "listed", Status: "on_hold"},
		},
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	byID := map[string]CampaignAggregate{}
	for _, a := range aggs {
		byID[a.CampaignID] = a
	}
	if byID["listed"].Status != StatusPaused {
		t.Errorf("listed status = %q, expected paused", byID["listed"].Status)
	}
	// A campaign absent from the registry has an empty status string, which
	// classifies as unknown.
	if byID["unlisted"].Status != StatusUnknown {
		t.Errorf("unlisted status = %q, expected unknown", byID["unlisted"].Status)
	}
}

func TestCampaignFunnelDeterministic(t *testing.T) {
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c2", Client: "acme", Date: "2024-02-02", EmailsSent: 20},
			{CampaignID: "c1", Client: "acme", Date: "2024-02-01", EmailsSent: 20},
		},
		replies: []ReplyEvent{
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com",
				ReceivedAt: mustTime(t, "2024-02-01T10:00:00Z")},
			{CampaignID: "c2", Client: "acme", FromEmail: "a@x.com",
				ReceivedAt: mustTime(t, "2024-02-02T10:00:00Z")},
		},
	}

	r := New(src)
	first, err := r.CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	second, err := r.CampaignFunnel(context.Background(), testScope())
	if err != nil {
		t.Fatalf("CampaignFunnel failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different aggregate sets")
	}
}

func TestCampaignFunnelStageErrorAborts(t *testing.T) {
	boom := errors.New("connection refused")
	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c1", Client: "acme", Date: "2024-02-01", EmailsSent: 1},
		},
		failReplies: boom,
	}

	aggs, err := New(src).CampaignFunnel(context.Background(), testScope())
	if aggs != nil {
		t.Error("partial aggregates returned alongside error")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StageReplies {
		t.Errorf("failing stage = %q, expected %q", stageErr.Stage, StageReplies)
	}
	if !errors.Is(err, boom) {
		t.Error("underlying error not preserved")
	}
}

func TestSequenceSteps(t *testing.T) {
	goodPayload, _ := json.Marshal([]StepStat{
		{Step: 1, EmailsSent: 60, LeadsContacted: 50},
		{Step: 2, EmailsSent: 40, LeadsContacted: 30},
	})

	src := &fakeSource{
		rollups: []CampaignDayRollup{
			{CampaignID: "c1", Client: "acme", Date: "2024-02-01",
				EmailsSent: 100, StepStats: goodPayload},
			// Malformed payload: its step contribution is skipped, the run
			// continues.
			{CampaignID: "c1", Client: "acme", Date: "2024-02-02",
				EmailsSent: 50, StepStats: json.RawMessage(`{"not":"a list"}`)},
			// Other campaigns never leak into a scoped step view.
			{CampaignID: "c2", Client: "acme", Date: "2024-02-01",
				EmailsSent: 10, StepStats: goodPayload},
		},
		replies: []ReplyEvent{
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com", SequenceStep: 1,
				Category: "Interested", ReceivedAt: mustTime(t, "2024-02-01T10:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "a@x.com", SequenceStep: 1,
				Category: "Interested", ReceivedAt: mustTime(t, "2024-02-03T10:00:00Z")},
			{CampaignID: "c1", Client: "acme", FromEmail: "b@x.com", SequenceStep: 2,
				Category: "ooo", ReceivedAt: mustTime(t, "2024-02-02T10:00:00Z")},
		},
	}

	steps, err := New(src).SequenceSteps(context.Background(), testScope(), "c1")
	if err != nil {
		t.Fatalf("SequenceSteps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Step != 1 || steps[1].Step != 2 {
		t.Errorf("steps out of order: %d, %d", steps[0].Step, steps[1].Step)
	}

	s1 := steps[0]
	if s1.EmailsSent != 60 || s1.LeadsContacted != 50 {
		t.Errorf("step 1 volume = %d/%d, expected 60/50", s1.EmailsSent, s1.LeadsContacted)
	}
	if s1.TotalReplies != 1 || s1.RealReplies != 1 {
		t.Errorf("step 1 replies = %d/%d, expected 1/1", s1.TotalReplies, s1.RealReplies)
	}

	s2 := steps[1]
	if s2.TotalReplies != 1 || s2.RealReplies != 0 {
		t.Errorf("step 2 replies = %d/%d, expected 1/0", s2.TotalReplies, s2.RealReplies)
	}
}
