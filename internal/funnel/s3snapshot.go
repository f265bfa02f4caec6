package funnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/outreach-analytics/internal/reconcile"
)

// SnapshotStore persists the last good reconciliation result per scope to
// S3 so dashboards have something to show right after a restart, before the
// first fresh run completes.
type SnapshotStore struct {
	client *s3.Client
	bucket string
}

// snapshotPayload is the JSON object stored per scope.
type snapshotPayload struct {
	RunID       string                        `json:"run_id"`
	Client      string                        `json:"client"`
	From        string                        `json:"from"`
	To          string                        `json:"to"`
	GeneratedAt time.Time                     `json:"generated_at"`
	Campaigns   []reconcile.CampaignAggregate `json:"campaigns"`
}

// NewSnapshotStore creates an S3-backed snapshot store.
func NewSnapshotStore(ctx context.Context, bucket, region string) (*SnapshotStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for snapshot store: %w", err)
	}
	return &SnapshotStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func (ss *SnapshotStore) key(scope reconcile.Scope) string {
	return fmt.Sprintf("funnel/snapshots/%s/%s_%s.json",
		scope.Client, scope.From.Format("2006-01-02"), scope.To.Format("2006-01-02"))
}

// Save writes the aggregate set for a scope, overwriting any prior snapshot.
func (ss *SnapshotStore) Save(ctx context.Context, runID string, scope reconcile.Scope, aggs []reconcile.CampaignAggregate) error {
	payload := snapshotPayload{
		RunID:       runID,
		Client:      scope.Client,
		From:        scope.From.Format("2006-01-02"),
		To:          scope.To.Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		Campaigns:   aggs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	key := ss.key(scope)
	_, err = ss.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", ss.bucket, key, err)
	}
	return nil
}

// Load retrieves the last snapshot for a scope. A missing object is a cache
// miss (nil aggregates, zero time), not an error.
func (ss *SnapshotStore) Load(ctx context.Context, scope reconcile.Scope) ([]reconcile.CampaignAggregate, time.Time, error) {
	key := ss.key(scope)
	resp, err := ss.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("S3 GetObject %s/%s: %w", ss.bucket, key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading snapshot body: %w", err)
	}
	var payload snapshotPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return payload.Campaigns, payload.GeneratedAt, nil
}

// isNotFound matches the AWS SDK v2 not-found error shapes by message; the
// SDK surfaces NoSuchKey or NotFound depending on the endpoint.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "404")
}
