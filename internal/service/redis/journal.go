package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"tpa_auth/internal/model"
)

const keyPrefix = "tpa:messages:"

type (
	// Journal keeps the last messages received from each peer.
	Journal struct {
		svc        *RedisService
		maxEntries int64
		ttl        time.Duration
	}
)

// NewJournal keeps at most maxEntries messages per peer, expiring a peer's
// list ttl after its last message. Zero values disable either bound.
func NewJournal(svc *RedisService, maxEntries int64, ttl time.Duration) *Journal {
	return &Journal{
		svc:        svc,
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func journalKey(peer string) string {
	return keyPrefix + peer
}

func (j *Journal) Append(ctx context.Context, peer string, m *model.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("journal: marshal message: %w", err)
	}

	key := journalKey(peer)
	if err := j.svc.RPush(ctx, key, data); err != nil {
		return fmt.Errorf("journal: push: %w", err)
	}
	if j.maxEntries > 0 {
		if err := j.svc.LTrim(ctx, key, -j.maxEntries, -1); err != nil {
			return fmt.Errorf("journal: trim: %w", err)
		}
	}
	if j.ttl > 0 {
		if err := j.svc.Expire(ctx, key, j.ttl); err != nil {
			return fmt.Errorf("journal: expire: %w", err)
		}
	}
	return nil
}

// Recent returns the kept messages of peer, oldest first.
func (j *Journal) Recent(ctx context.Context, peer string) ([]*model.Message, error) {
	vals, err := j.svc.LRange(ctx, journalKey(peer))
	if err != nil {
		return nil, fmt.Errorf("journal: range: %w", err)
	}

	res := make([]*model.Message, 0, len(vals))
	for _, v := range vals {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("journal: unmarshal message: %w", err)
		}
		res = append(res, &m)
	}
	return res, nil
}

// Clear drops the messages of peer.
func (j *Journal) Clear(ctx context.Context, peer string) error {
	return j.svc.Del(ctx, journalKey(peer))
}
