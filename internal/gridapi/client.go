// Package gridapi is the client for the grid table-store that holds the
// outreach event tables. Every list endpoint caps single responses, so all
// reads go through explicit limit/offset pages; the reconciliation fetcher is
// the only caller and always pages.
package gridapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/outreach-analytics/internal/pkg/httpretry"
	"github.com/ignite/outreach-analytics/internal/reconcile"
)

// Table names of the four event sources.
const (
	tableRollups  = "campaign_daily_stats"
	tableReplies  = "reply_events"
	tableMeetings = "meeting_events"
	tableStatuses = "campaign_statuses"
)

// Client is the grid API client. It implements reconcile.Source.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a grid API client from config.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: httpretry.New(&http.Client{Timeout: timeout}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request and returns the raw body.
func (c *Client) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// listRows queries one table page with the given filter.
func (c *Client) listRows(ctx context.Context, table string, f reconcile.Filter) ([]Row, error) {
	params := url.Values{}
	if f.Client != "" {
		params.Set("client", f.Client)
	}
	if f.CampaignID != "" {
		params.Set("campaign_id", f.CampaignID)
	}
	if !f.From.IsZero() {
		params.Set("date_from", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		params.Set("date_to", f.To.Format("2006-01-02"))
	}
	params.Set("limit", strconv.Itoa(f.Limit))
	params.Set("offset", strconv.Itoa(f.Offset))

	endpoint := fmt.Sprintf("/api/v1/tables/%s/rows?%s", table, params.Encode())
	body, err := c.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	var response listResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return response.Rows, nil
}

// RollupPage returns one page of daily campaign rollups.
func (c *Client) RollupPage(ctx context.Context, f reconcile.Filter) ([]reconcile.CampaignDayRollup, error) {
	rows, err := c.listRows(ctx, tableRollups, f)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.CampaignDayRollup, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.CampaignDayRollup{
			CampaignID:     getString(row, "campaign_id"),
			CampaignName:   getString(row, "campaign_name"),
			Client:         getString(row, "client"),
			Date:           getDate(row, "date"),
			EmailsSent:     getInt(row, "emails_sent"),
			LeadsContacted: getInt(row, "leads_contacted"),
			Bounced:        getInt(row, "bounced"),
			Interested:     getInt(row, "interested"),
			StepStats:      getRaw(row, "step_stats"),
		})
	}
	return out, nil
}

// ReplyPage returns one page of inbound reply events.
func (c *Client) ReplyPage(ctx context.Context, f reconcile.Filter) ([]reconcile.ReplyEvent, error) {
	rows, err := c.listRows(ctx, tableReplies, f)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.ReplyEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.ReplyEvent{
			CampaignID:   getString(row, "campaign_id"),
			Client:       getString(row, "client"),
			LeadID:       getString(row, "lead_id"),
			FromEmail:    getString(row, "from_email"),
			Category:     getString(row, "category"),
			SequenceStep: getInt(row, "sequence_step"),
			ReceivedAt:   getTime(row, "received_at"),
		})
	}
	return out, nil
}

// MeetingPage returns one page of meeting-booked events.
func (c *Client) MeetingPage(ctx context.Context, f reconcile.Filter) ([]reconcile.MeetingEvent, error) {
	rows, err := c.listRows(ctx, tableMeetings, f)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.MeetingEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.MeetingEvent{
			CampaignID:   getString(row, "campaign_id"),
			CampaignName: getString(row, "campaign_name"),
			Client:       getString(row, "client"),
			CreatedAt:    getTime(row, "created_at"),
		})
	}
	return out, nil
}

// StatusPage returns one page of the campaign status registry.
func (c *Client) StatusPage(ctx context.Context, f reconcile.Filter) ([]reconcile.CampaignStatusRecord, error) {
	rows, err := c.listRows(ctx, tableStatuses, f)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.CampaignStatusRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.CampaignStatusRecord{
			CampaignID: getString(row, "campaign_id"),
			Status:     getString(row, "status"),
		})
	}
	return out, nil
}
