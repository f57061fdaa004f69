package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calicogames/lorechat/internal/domain"
)

func msg(id string, at time.Time) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(id),
		Sender:    domain.SenderUser,
		Text:      "text " + id,
		CreatedAt: at,
	}
}

func TestMessagesComeBackInTimestampOrder(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()
	base := time.Now()

	const n = 7
	for i := 0; i < n; i++ {
		_, err := store.AppendMessage(ctx, "u1", msg(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	msgs, err := store.Messages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i := 1; i < n; i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt),
			"messages must be ascending by timestamp")
	}
}

func TestOutOfOrderAppendIsReordered(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()
	base := time.Now()

	_, err := store.AppendMessage(ctx, "u1", msg("later", base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "u1", msg("earlier", base))
	require.NoError(t, err)

	msgs, err := store.Messages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageID("earlier"), msgs[0].ID)
	assert.Equal(t, domain.MessageID("later"), msgs[1].ID)
}

func TestSubscribeDeliversSnapshotThenIncrements(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()
	base := time.Now()

	_, err := store.AppendMessage(ctx, "u1", msg("m0", base))
	require.NoError(t, err)

	var deliveries [][]*domain.Message
	cancel, err := store.Subscribe(ctx, "u1", func(msgs []*domain.Message) {
		deliveries = append(deliveries, msgs)
	})
	require.NoError(t, err)

	require.Len(t, deliveries, 1, "full current transcript on first connection")
	assert.Len(t, deliveries[0], 1)

	_, err = store.AppendMessage(ctx, "u1", msg("m1", base.Add(time.Second)))
	require.NoError(t, err)

	require.Len(t, deliveries, 2)
	assert.Len(t, deliveries[1], 2)

	cancel()

	_, err = store.AppendMessage(ctx, "u1", msg("m2", base.Add(2*time.Second)))
	require.NoError(t, err)
	assert.Len(t, deliveries, 2, "no delivery after cancel")
}

func TestTranscriptsAreIsolatedPerIdentity(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.AppendMessage(ctx, "u1", msg("a", now))
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "u2", msg("b", now))
	require.NoError(t, err)

	msgs, err := store.Messages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageID("a"), msgs[0].ID)
}
