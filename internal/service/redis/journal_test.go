package redis

import (
	"context"
	"fmt"
	"testing"
	"time"
	"tpa_auth/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T, maxEntries int64, ttl time.Duration) (*Journal, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	svc, err := Dial(context.Background(), &redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return NewJournal(svc, maxEntries, ttl), mr
}

func TestJournalAppendRecent(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	j, mr := newJournal(t, 3, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(j.Append(ctx, "10.0.0.1", &model.Message{
			SessionID: "s1",
			Peer:      "10.0.0.1",
			Text:      fmt.Sprintf("message %d", i),
		}))
	}

	got, err := j.Recent(ctx, "10.0.0.1")
	require.NoError(err)
	require.Len(got, 3)
	require.Equal("message 2", got[0].Text)
	require.Equal("message 4", got[2].Text)
	require.Equal(time.Minute, mr.TTL(journalKey("10.0.0.1")))

	none, err := j.Recent(ctx, "10.0.0.2")
	require.NoError(err)
	require.Empty(none)

	mr.FastForward(2 * time.Minute)
	got, err = j.Recent(ctx, "10.0.0.1")
	require.NoError(err)
	require.Empty(got)
}

func TestJournalClear(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	j, _ := newJournal(t, 0, 0)
	require.NoError(j.Append(ctx, "peer", &model.Message{Text: "hello"}))
	require.NoError(j.Clear(ctx, "peer"))

	got, err := j.Recent(ctx, "peer")
	require.NoError(err)
	require.Empty(got)
}

func TestDialUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1})
	require.Error(t, err)
}
