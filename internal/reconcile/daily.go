package reconcile

import (
	"sort"
	"time"
)

const dateKeyLayout = "2006-01-02"

// dateKey converts a timestamp to the raw calendar-day bucket key.
func dateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// displayDate converts a raw YYYY-MM-DD key to the chart label the dashboard
// renders. Unparseable keys fall through unchanged rather than losing the
// bucket.
func displayDate(key string) string {
	t, err := time.Parse(dateKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2")
}

// dailySeries accumulates per-calendar-day counters for one campaign.
// Buckets exist only for days some source record actually touched; they are
// created zeroed on first touch and incremented from there.
type dailySeries struct {
	buckets map[string]*DailyPoint
}

func newDailySeries() *dailySeries {
	return &dailySeries{buckets: make(map[string]*DailyPoint)}
}

// bucket returns the point for the given raw date key, creating it lazily.
func (s *dailySeries) bucket(key string) *DailyPoint {
	if p, ok := s.buckets[key]; ok {
		return p
	}
	p := &DailyPoint{Date: displayDate(key), sortKey: key}
	s.buckets[key] = p
	return p
}

// points emits the accumulated buckets sorted ascending by calendar date.
func (s *dailySeries) points() []DailyPoint {
	out := make([]DailyPoint, 0, len(s.buckets))
	for _, p := range s.buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].sortKey < out[j].sortKey
	})
	return out
}
