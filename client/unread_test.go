package client

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerFirstSnapshotIsRead(t *testing.T) {
	r := NewReconciler()
	r.OnSnapshot("general", 12)

	entry, ok := r.Entry("general")
	require.True(t, ok)
	assert.Equal(t, UnreadEntry{ChannelKey: "general", Total: 12, LastKnownTotal: 12}, entry)
	assert.Equal(t, 0, r.Count("general"))
}

func TestReconcilerCountsInactiveChannels(t *testing.T) {
	r := NewReconciler()
	r.OnSnapshot("general", 3)
	r.OnSnapshot("random", 5)
	r.OnChannelActivated("general")

	r.OnSnapshot("random", 8)
	r.OnSnapshot("general", 4)

	assert.Equal(t, 3, r.Count("random"))
	assert.Equal(t, 0, r.Count("general"))
}

func TestReconcilerSwitchReconcilesPreviousOnce(t *testing.T) {
	r := NewReconciler()
	r.OnSnapshot("a", 1)
	r.OnSnapshot("b", 1)
	r.OnChannelActivated("a")

	r.OnSnapshot("a", 4)
	r.OnSnapshot("b", 3)
	require.Equal(t, 2, r.Count("b"))

	r.OnChannelActivated("b")

	a, _ := r.Entry("a")
	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 0, a.Count)

	b, _ := r.Entry("b")
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, 3, b.LastKnownTotal)
	assert.Equal(t, 0, b.Count)

	// Messages that arrived in a while it was active are not unread.
	r.OnSnapshot("a", 5)
	assert.Equal(t, 1, r.Count("a"))

	// Activating the same channel again changes nothing.
	r.OnSnapshot("b", 6)
	r.OnChannelActivated("b")
	b, _ = r.Entry("b")
	assert.Equal(t, 3, b.Total)
}

func TestReconcilerClampsDecrease(t *testing.T) {
	r := NewReconciler()
	r.OnSnapshot("a", 10)
	r.OnSnapshot("a", 7)

	assert.Equal(t, 0, r.Count("a"))
	entry, _ := r.Entry("a")
	assert.Equal(t, 7, entry.LastKnownTotal)
}

func TestReconcilerUnknownChannel(t *testing.T) {
	r := NewReconciler()
	r.OnChannelActivated("ghost")
	assert.Equal(t, 0, r.Count("ghost"))

	// The active channel stays at 0 from its first snapshot on.
	r.OnSnapshot("ghost", 4)
	r.OnSnapshot("ghost", 9)
	assert.Equal(t, 0, r.Count("ghost"))
	assert.Equal(t, "ghost", r.Active())
}

func TestReconcilerInvariantsRandomized(t *testing.T) {
	channels := []string{"a", "b", "c", "d"}
	rng := rand.New(rand.NewSource(42))
	r := NewReconciler()
	totals := map[string]int{}

	for i := 0; i < 2000; i++ {
		ch := channels[rng.Intn(len(channels))]
		if rng.Intn(4) == 0 {
			r.OnChannelActivated(ch)
		} else {
			totals[ch] += rng.Intn(3)
			r.OnSnapshot(ch, totals[ch])
		}

		for _, entry := range r.Entries() {
			if entry.ChannelKey == r.Active() {
				require.Equal(t, 0, entry.Count, "active channel %s", entry.ChannelKey)
				continue
			}
			require.Equal(t, max(0, entry.LastKnownTotal-entry.Total), entry.Count, "channel %s", entry.ChannelKey)
		}
	}
}

func TestReconcilerForget(t *testing.T) {
	r := NewReconciler()
	r.OnSnapshot("a", 1)
	r.Forget("a")

	_, ok := r.Entry("a")
	assert.False(t, ok)
	assert.Empty(t, r.Entries())
}
