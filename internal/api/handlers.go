package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-analytics/internal/pkg/httputil"
	"github.com/ignite/outreach-analytics/internal/reconcile"
)

// FunnelService is the reconciliation surface the handlers expose. Satisfied
// by *funnel.Service.
type FunnelService interface {
	CampaignFunnel(ctx context.Context, scope reconcile.Scope) ([]reconcile.CampaignAggregate, error)
	SequenceSteps(ctx context.Context, scope reconcile.Scope, campaignID string) ([]reconcile.SequenceStepAggregate, error)
}

// Handlers holds the HTTP handlers for the funnel API.
type Handlers struct {
	svc FunnelService
}

// NewHandlers creates the handler set.
func NewHandlers(svc FunnelService) *Handlers {
	return &Handlers{svc: svc}
}

const dateParamLayout = "2006-01-02"

// parseScope extracts client/from/to query params. The date range defaults to
// the trailing 30 days when absent.
func parseScope(r *http.Request) (reconcile.Scope, string) {
	q := r.URL.Query()

	client := q.Get("client")
	if client == "" {
		return reconcile.Scope{}, "missing required query param: client"
	}

	now := time.Now().UTC()
	scope := reconcile.Scope{
		Client: client,
		From:   now.AddDate(0, 0, -30),
		To:     now,
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return reconcile.Scope{}, "invalid from date, want YYYY-MM-DD"
		}
		scope.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return reconcile.Scope{}, "invalid to date, want YYYY-MM-DD"
		}
		scope.To = t
	}
	if scope.To.Before(scope.From) {
		return reconcile.Scope{}, "to date precedes from date"
	}
	return scope, ""
}

// writeFunnelError maps engine failures onto HTTP statuses. A failed fetch
// stage is an upstream problem, so it surfaces as 502 with the stage named.
func writeFunnelError(w http.ResponseWriter, err error) {
	var stageErr *reconcile.StageError
	if errors.As(err, &stageErr) {
		httputil.ErrorCode(w, http.StatusBadGateway,
			"source unavailable: "+stageErr.Stage, "source_unavailable")
		return
	}
	httputil.InternalError(w, err)
}

// GetCampaignFunnel handles GET /api/funnel/campaigns.
func (h *Handlers) GetCampaignFunnel(w http.ResponseWriter, r *http.Request) {
	scope, problem := parseScope(r)
	if problem != "" {
		httputil.BadRequest(w, problem)
		return
	}

	aggs, err := h.svc.CampaignFunnel(r.Context(), scope)
	if err != nil {
		writeFunnelError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"campaigns": aggs,
		"count":     len(aggs),
	})
}

// GetSequenceSteps handles GET /api/funnel/campaigns/{campaignID}/steps.
func (h *Handlers) GetSequenceSteps(w http.ResponseWriter, r *http.Request) {
	scope, problem := parseScope(r)
	if problem != "" {
		httputil.BadRequest(w, problem)
		return
	}
	campaignID := chi.URLParam(r, "campaignID")
	if campaignID == "" {
		httputil.BadRequest(w, "missing campaign id")
		return
	}

	steps, err := h.svc.SequenceSteps(r.Context(), scope, campaignID)
	if err != nil {
		writeFunnelError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"campaign_id": campaignID,
		"steps":       steps,
		"count":       len(steps),
	})
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
