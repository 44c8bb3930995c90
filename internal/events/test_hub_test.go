package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nbcache/internal/output"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listing(docID, unitID string) output.Event {
	return output.Event{Type: output.EventListing, DocumentID: docID, UnitID: unitID}
}

func TestHubFiltersByDocument(t *testing.T) {
	hub := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docA := hub.Subscribe(ctx, "a")
	all := hub.Subscribe(ctx, "")
	require.NoError(t, hub.Publish(ctx, listing("b", "u1")))
	require.NoError(t, hub.Publish(ctx, listing("a", "u2")))

	got := <-docA
	assert.Equal(t, "u2", got.UnitID)
	assert.Len(t, docA, 0)

	assert.Equal(t, "u1", (<-all).UnitID)
	assert.Equal(t, "u2", (<-all).UnitID)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := NewHub(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := hub.Subscribe(ctx, "")
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, hub.Publish(ctx, listing("d", id)))
	}
	assert.Equal(t, "2", (<-sub).UnitID)
	assert.Equal(t, "3", (<-sub).UnitID)
}

func TestHubClosesOnCancel(t *testing.T) {
	hub := NewHub(0)
	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.Subscribe(ctx, "d")
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.Publish(context.Background(), listing("d", "u")))
}
