package stores

import (
	"context"
	"sort"
	"time"

	"github.com/hogarcare/authcore/internal/audit"
)

// AuditStore is the full audit persistence contract: append-only writes
// plus history and aggregation reads.
type AuditStore interface {
	Append(ctx context.Context, event audit.Event) error
	Query(ctx context.Context, q AuditQuery) (*AuditPage, error)
	Aggregate(ctx context.Context, from, to time.Time) (*AuditStats, error)
}

// AuditQuery filters audit history. Zero values mean "any". From and To
// bound the record timestamp inclusively when non-zero.
type AuditQuery struct {
	ActorID  string
	Action   string
	Table    string
	RecordID string
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// AuditPage is one page of records, newest first.
type AuditPage struct {
	Records []audit.Event
	Total   int
	Page    int
	Limit   int
}

// ActorActivity ranks one actor by record count.
type ActorActivity struct {
	ActorID string
	Count   int
}

// AuditStats aggregates the audit log over an optional time range.
type AuditStats struct {
	Total      int
	ByAction   map[string]int
	ByTable    map[string]int
	TopActors  []ActorActivity
	MostRecent []audit.Event
}

const (
	defaultAuditPageLimit = 50
	topActorLimit         = 10
	recentActivityLimit   = 10
)

func (q *AuditQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultAuditPageLimit
	}
}

func (q AuditQuery) matches(e audit.Event) bool {
	if q.ActorID != "" && e.ActorID != q.ActorID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.Table != "" && e.Table != q.Table {
		return false
	}
	if q.RecordID != "" && e.RecordID != q.RecordID {
		return false
	}
	return inRange(e.Timestamp, q.From, q.To)
}

func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

// pageEvents slices newest-first events into the requested page.
func pageEvents(events []audit.Event, q AuditQuery) *AuditPage {
	total := len(events)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := make([]audit.Event, end-start)
	copy(page, events[start:end])

	return &AuditPage{
		Records: page,
		Total:   total,
		Page:    q.Page,
		Limit:   q.Limit,
	}
}

// aggregateEvents computes stats over newest-first events.
func aggregateEvents(events []audit.Event, from, to time.Time) *AuditStats {
	stats := &AuditStats{
		ByAction: make(map[string]int),
		ByTable:  make(map[string]int),
	}
	actorCounts := make(map[string]int)

	for _, e := range events {
		if !inRange(e.Timestamp, from, to) {
			continue
		}
		stats.Total++
		stats.ByAction[e.Action]++
		if e.Table != "" {
			stats.ByTable[e.Table]++
		}
		if e.ActorID != "" {
			actorCounts[e.ActorID]++
		}
		if len(stats.MostRecent) < recentActivityLimit {
			stats.MostRecent = append(stats.MostRecent, e)
		}
	}

	stats.TopActors = rankActors(actorCounts)
	return stats
}

func rankActors(counts map[string]int) []ActorActivity {
	ranked := make([]ActorActivity, 0, len(counts))
	for actor, count := range counts {
		ranked = append(ranked, ActorActivity{ActorID: actor, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].ActorID < ranked[j].ActorID
	})
	if len(ranked) > topActorLimit {
		ranked = ranked[:topActorLimit]
	}
	return ranked
}
