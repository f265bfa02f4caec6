package gridapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/outreach-analytics/internal/reconcile"
)

func testFilter() reconcile.Filter {
	return reconcile.Filter{
		Client: "acme",
		From:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Limit:  1000,
		Offset: 0,
	}
}

func TestRollupPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("client") != "acme" {
			t.Errorf("client param = %q", q.Get("client"))
		}
		if q.Get("limit") != "1000" || q.Get("offset") != "0" {
			t.Errorf("page params = limit %q offset %q", q.Get("limit"), q.Get("offset"))
		}
		if q.Get("date_from") != "2024-02-01" || q.Get("date_to") != "2024-02-29" {
			t.Errorf("date params = %q..%q", q.Get("date_from"), q.Get("date_to"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{
					// Numeric campaign id: must come back as a string.
					"campaign_id":     12345,
					"campaign_name":   "Alpha",
					"client":          "acme",
					"date":            "2024-02-01",
					"emails_sent":     100,
					"leads_contacted": 80,
					"bounced":         3,
					"interested":      5,
					"step_stats":      []map[string]any{{"step": 1, "emails_sent": 60}},
				},
			},
			"total": 1,
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIToken: "test-token"})
	rollups, err := client.RollupPage(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("RollupPage failed: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected 1 rollup, got %d", len(rollups))
	}

	r := rollups[0]
	if r.CampaignID != "12345" {
		t.Errorf("CampaignID = %q, expected \"12345\"", r.CampaignID)
	}
	if r.EmailsSent != 100 || r.LeadsContacted != 80 || r.Bounced != 3 || r.Interested != 5 {
		t.Errorf("counters = %d/%d/%d/%d", r.EmailsSent, r.LeadsContacted, r.Bounced, r.Interested)
	}
	var steps []reconcile.StepStat
	if err := json.Unmarshal(r.StepStats, &steps); err != nil {
		t.Fatalf("step payload does not decode: %v", err)
	}
	if len(steps) != 1 || steps[0].Step != 1 || steps[0].EmailsSent != 60 {
		t.Errorf("decoded steps = %+v", steps)
	}
}

func TestReplyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{
					"campaign_id": "c1",
					"client":      "acme",
					"from_email":  "a@x.com",
					"category":    "Interested",
					"received_at": "2024-02-01T10:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIToken: "t"})
	replies, err := client.ReplyPage(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("ReplyPage failed: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if replies[0].FromEmail != "a@x.com" || replies[0].LeadID != "" {
		t.Errorf("identity fields = %q/%q", replies[0].LeadID, replies[0].FromEmail)
	}
	if replies[0].ReceivedAt.IsZero() {
		t.Error("ReceivedAt not parsed")
	}
}

func TestListRowsPaginatesWithOffset(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]any{}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIToken: "t"})
	f := testFilter()
	f.Offset = 2000
	if _, err := client.StatusPage(context.Background(), f); err != nil {
		t.Fatalf("StatusPage failed: %v", err)
	}
	if len(offsets) != 1 || offsets[0] != "2000" {
		t.Errorf("offset params sent = %v", offsets)
	}
}

func TestDoRequestSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such table", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIToken: "t"})
	if _, err := client.MeetingPage(context.Background(), testFilter()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
