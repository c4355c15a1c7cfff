package audit

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "langop:audit"

// RedisSink appends events to a capped Redis list per organization so that
// every dashboard replica writes to the same log.
type RedisSink struct {
	rdb     redis.Cmdable
	prefix  string
	max     int64
	timeout time.Duration
}

func NewRedisSink(rdb redis.Cmdable, retention int) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{rdb: rdb, prefix: defaultKeyPrefix, max: int64(retention), timeout: 2 * time.Second}
}

func (s *RedisSink) key(org string) string {
	if org == "" {
		org = "_"
	}
	return s.prefix + ":" + org
}

func (s *RedisSink) Record(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	key := s.key(ev.OrganizationID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, raw)
		p.LTrim(ctx, key, 0, s.max-1)
		return nil
	})
	return err
}

func (s *RedisSink) Recent(ctx context.Context, organizationID string, limit int) ([]Event, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := s.rdb.LRange(ctx, s.key(organizationID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
