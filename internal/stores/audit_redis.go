package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hogarcare/authcore/internal/audit"
)

const auditKeyPrefix = "adt"

var ErrAuditUnavailable = errors.New("audit redis unavailable")

// RedisAuditStore keeps the audit log as a Redis list, newest first.
// Filtering and aggregation read the whole list and evaluate in process,
// so retention should stay bounded via max.
type RedisAuditStore struct {
	redis  *redis.Client
	prefix string
	max    int64
}

// NewRedisAuditStore caps retention at max events via LTRIM; max <= 0
// means unbounded.
func NewRedisAuditStore(redisClient *redis.Client, prefix string, max int) *RedisAuditStore {
	if prefix == "" {
		prefix = auditKeyPrefix
	}
	return &RedisAuditStore{
		redis:  redisClient,
		prefix: prefix,
		max:    int64(max),
	}
}

func (s *RedisAuditStore) key() string {
	return s.prefix + ":log"
}

func (s *RedisAuditStore) Append(ctx context.Context, event audit.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, s.key(), data)
	if s.max > 0 {
		pipe.LTrim(ctx, s.key(), 0, s.max-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	return nil
}

func (s *RedisAuditStore) Query(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	q.normalize()

	events, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]audit.Event, 0, len(events))
	for _, e := range events {
		if q.matches(e) {
			matched = append(matched, e)
		}
	}
	return pageEvents(matched, q), nil
}

func (s *RedisAuditStore) Aggregate(ctx context.Context, from, to time.Time) (*AuditStats, error) {
	events, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return aggregateEvents(events, from, to), nil
}

func (s *RedisAuditStore) load(ctx context.Context) ([]audit.Event, error) {
	raw, err := s.redis.LRange(ctx, s.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	events := make([]audit.Event, 0, len(raw))
	for _, item := range raw {
		var e audit.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Skip records written by an incompatible newer version
			// rather than failing the whole query.
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
