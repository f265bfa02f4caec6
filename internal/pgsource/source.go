// Package pgsource implements the reconciliation source interface over a
// Postgres mirror of the outreach event tables. Deployments that replicate
// the grid tables into Postgres can point the engine here instead of at the
// grid API; the pagination contract is identical.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-analytics/internal/reconcile"
)

// Source reads event pages from Postgres. It implements reconcile.Source.
// Every query carries an ORDER BY over a stable key so that successive pages
// never duplicate or drop rows.
type Source struct {
	db *sql.DB
}

// New creates a Source over an open database handle.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Open connects to Postgres with the lib/pq driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres source: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres source: %w", err)
	}
	return &Source{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Source) Close() error {
	return s.db.Close()
}

// dayAfter returns the exclusive upper bound for an inclusive end date, so
// timestamp columns can be range-filtered with a half-open comparison.
func dayAfter(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}

// RollupPage returns one page of daily campaign rollups.
func (s *Source) RollupPage(ctx context.Context, f reconcile.Filter) ([]reconcile.CampaignDayRollup, error) {
	query := `
		SELECT campaign_id, campaign_name, client, to_char(stat_date, 'YYYY-MM-DD'),
		       emails_sent, leads_contacted, bounced, interested, step_stats
		FROM campaign_daily_stats
		WHERE client = $1 AND stat_date >= $2 AND stat_date <= $3
		  AND ($4 = '' OR campaign_id = $4)
		ORDER BY stat_date, campaign_id
		LIMIT $5 OFFSET $6`

	rows, err := s.db.QueryContext(ctx, query,
		f.Client, f.From, f.To, f.CampaignID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying rollups: %w", err)
	}
	defer rows.Close()

	var out []reconcile.CampaignDayRollup
	for rows.Next() {
		var r reconcile.CampaignDayRollup
		var stepStats []byte
		if err := rows.Scan(&r.CampaignID, &r.CampaignName, &r.Client, &r.Date,
			&r.EmailsSent, &r.LeadsContacted, &r.Bounced, &r.Interested, &stepStats); err != nil {
			return nil, fmt.Errorf("scanning rollup row: %w", err)
		}
		r.StepStats = stepStats
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplyPage returns one page of inbound reply events.
func (s *Source) ReplyPage(ctx context.Context, f reconcile.Filter) ([]reconcile.ReplyEvent, error) {
	query := `
		SELECT campaign_id, client, COALESCE(lead_id, ''), COALESCE(from_email, ''),
		       COALESCE(category, ''), COALESCE(sequence_step, 0), received_at
		FROM reply_events
		WHERE client = $1 AND received_at >= $2 AND received_at < $3
		  AND ($4 = '' OR campaign_id = $4)
		ORDER BY received_at, id
		LIMIT $5 OFFSET $6`

	rows, err := s.db.QueryContext(ctx, query,
		f.Client, f.From, dayAfter(f.To), f.CampaignID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying replies: %w", err)
	}
	defer rows.Close()

	var out []reconcile.ReplyEvent
	for rows.Next() {
		var r reconcile.ReplyEvent
		if err := rows.Scan(&r.CampaignID, &r.Client, &r.LeadID, &r.FromEmail,
			&r.Category, &r.SequenceStep, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning reply row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MeetingPage returns one page of meeting-booked events.
func (s *Source) MeetingPage(ctx context.Context, f reconcile.Filter) ([]reconcile.MeetingEvent, error) {
	query := `
		SELECT COALESCE(campaign_id, ''), COALESCE(campaign_name, ''), client, created_at
		FROM meeting_events
		WHERE client = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
		LIMIT $4 OFFSET $5`

	rows, err := s.db.QueryContext(ctx, query,
		f.Client, f.From, dayAfter(f.To), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying meetings: %w", err)
	}
	defer rows.Close()

	var out []reconcile.MeetingEvent
	for rows.Next() {
		var m reconcile.MeetingEvent
		if err := rows.Scan(&m.CampaignID, &m.CampaignName, &m.Client, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning meeting row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StatusPage returns one page of the campaign status registry. Ids are cast
// to text in SQL because the registry table stores them numerically while the
// rollup tables store strings.
func (s *Source) StatusPage(ctx context.Context, f reconcile.Filter) ([]reconcile.CampaignStatusRecord, error) {
	query := `
		SELECT campaign_id::text, COALESCE(status, '')
		FROM campaign_statuses
		WHERE client = $1
		ORDER BY campaign_id
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, f.Client, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying statuses: %w", err)
	}
	defer rows.Close()

	var out []reconcile.CampaignStatusRecord
	for rows.Next() {
		var r reconcile.CampaignStatusRecord
		if err := rows.Scan(&r.CampaignID, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
