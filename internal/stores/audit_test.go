package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hogarcare/authcore/internal/audit"
)

func seedEvents(t *testing.T, store AuditStore, n int) []audit.Event {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]audit.Event, 0, n)
	for i := 0; i < n; i++ {
		e := audit.Event{
			ID:        fmt.Sprintf("evt-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    "view",
			ActorID:   fmt.Sprintf("actor-%d", i%3),
			Table:     "patients",
			RecordID:  fmt.Sprintf("p-%d", i),
			Success:   true,
		}
		if i%4 == 0 {
			e.Action = "update"
			e.Table = "reports"
		}
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func runAuditStoreSuite(t *testing.T, store AuditStore) {
	ctx := context.Background()
	seedEvents(t, store, 10)

	t.Run("newest first with defaults", func(t *testing.T) {
		page, err := store.Query(ctx, AuditQuery{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if page.Total != 10 || len(page.Records) != 10 {
			t.Fatalf("total = %d len = %d, want 10 and 10", page.Total, len(page.Records))
		}
		if page.Page != 1 || page.Limit != 50 {
			t.Fatalf("defaults: page = %d limit = %d", page.Page, page.Limit)
		}
		if page.Records[0].ID != "evt-9" {
			t.Fatalf("first record = %s, want evt-9", page.Records[0].ID)
		}
	})

	t.Run("paging", func(t *testing.T) {
		page, err := store.Query(ctx, AuditQuery{Page: 2, Limit: 4})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if page.Total != 10 || len(page.Records) != 4 {
			t.Fatalf("total = %d len = %d, want 10 and 4", page.Total, len(page.Records))
		}
		if page.Records[0].ID != "evt-5" {
			t.Fatalf("first record on page 2 = %s, want evt-5", page.Records[0].ID)
		}

		past, err := store.Query(ctx, AuditQuery{Page: 9, Limit: 4})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(past.Records) != 0 || past.Total != 10 {
			t.Fatalf("out of range page: len = %d total = %d", len(past.Records), past.Total)
		}
	})

	t.Run("filters", func(t *testing.T) {
		page, err := store.Query(ctx, AuditQuery{Action: "update"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if page.Total != 3 {
			t.Fatalf("action filter: total = %d, want 3", page.Total)
		}

		page, err = store.Query(ctx, AuditQuery{ActorID: "actor-1", Table: "patients"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for _, r := range page.Records {
			if r.ActorID != "actor-1" || r.Table != "patients" {
				t.Fatalf("filter leak: %+v", r)
			}
		}

		page, err = store.Query(ctx, AuditQuery{RecordID: "p-7"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if page.Total != 1 {
			t.Fatalf("record filter: total = %d, want 1", page.Total)
		}
	})

	t.Run("time range", func(t *testing.T) {
		from := time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)
		to := time.Date(2026, 3, 1, 12, 6, 0, 0, time.UTC)
		page, err := store.Query(ctx, AuditQuery{From: from, To: to})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if page.Total != 4 {
			t.Fatalf("range filter: total = %d, want 4", page.Total)
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		stats, err := store.Aggregate(ctx, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("Aggregate failed: %v", err)
		}
		if stats.Total != 10 {
			t.Fatalf("total = %d, want 10", stats.Total)
		}
		if stats.ByAction["update"] != 3 || stats.ByAction["view"] != 7 {
			t.Fatalf("unexpected actions: %v", stats.ByAction)
		}
		if stats.ByTable["reports"] != 3 {
			t.Fatalf("unexpected tables: %v", stats.ByTable)
		}
		if len(stats.TopActors) != 3 {
			t.Fatalf("top actors = %d, want 3", len(stats.TopActors))
		}
		// actor-0 appears in indexes 0,3,6,9.
		if stats.TopActors[0].ActorID != "actor-0" || stats.TopActors[0].Count != 4 {
			t.Fatalf("unexpected leader: %+v", stats.TopActors[0])
		}
		if len(stats.MostRecent) != 10 {
			t.Fatalf("recent = %d, want 10", len(stats.MostRecent))
		}
		if stats.MostRecent[0].ID != "evt-9" {
			t.Fatalf("recent[0] = %s, want evt-9", stats.MostRecent[0].ID)
		}
	})
}

func TestMemoryAuditStore(t *testing.T) {
	runAuditStoreSuite(t, NewMemoryAuditStore(0))
}

func TestRedisAuditStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	runAuditStoreSuite(t, NewRedisAuditStore(rdb, "", 0))
}

func TestMemoryAuditStoreCapsRetention(t *testing.T) {
	store := NewMemoryAuditStore(5)
	seedEvents(t, store, 10)

	page, err := store.Query(context.Background(), AuditQuery{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if page.Records[0].ID != "evt-9" || page.Records[4].ID != "evt-5" {
		t.Fatal("expected the newest five records to survive")
	}
}

func TestRedisAuditStoreCapsRetention(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisAuditStore(rdb, "", 5)
	seedEvents(t, store, 10)

	page, err := store.Query(context.Background(), AuditQuery{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if page.Records[0].ID != "evt-9" {
		t.Fatalf("first record = %s, want evt-9", page.Records[0].ID)
	}
}

func TestRedisAuditStoreSkipsUndecodableEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisAuditStore(rdb, "", 0)
	seedEvents(t, store, 2)
	if _, err := mr.Lpush("adt:log", "not json"); err != nil {
		t.Fatalf("lpush failed: %v", err)
	}

	page, err := store.Query(context.Background(), AuditQuery{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
}
