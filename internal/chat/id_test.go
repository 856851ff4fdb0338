package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageIDFormat(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 123456000, time.UTC)
	id, adjusted := NewMessageID(42, sent)

	require.Len(t, id, 28)
	assert.Equal(t, "0000002A", id[:8], "room id should be fixed-width hex")
	assert.Equal(t, fmt.Sprintf("%016X", adjusted.UnixMicro()), id[8:24])
	assert.Equal(t, "0000", id[24:])
	assert.Equal(t, sent.UnixMicro(), adjusted.UnixMicro(),
		"timestamp with microsecond resolution should not be jittered")
}

func TestNewMessageIDJittersWholeMilliseconds(t *testing.T) {
	sent := time.UnixMicro(1748779200_000_000) // zero sub-millisecond part

	id, adjusted := NewMessageID(1, sent)
	require.Len(t, id, 28)
	assert.GreaterOrEqual(t, adjusted.UnixMicro(), sent.UnixMicro())
	assert.Less(t, adjusted.UnixMicro(), sent.UnixMicro()+1000)
}

func TestNewMessageIDNoCollisions(t *testing.T) {
	// Same room, timestamps only at millisecond granularity, as fast as we
	// can generate them.
	seen := make(map[string]struct{}, 10000)
	base := time.Now().Truncate(time.Millisecond)

	for i := 0; i < 10000; i++ {
		sent := base.Add(time.Duration(i) * time.Millisecond)
		id, _ := NewMessageID(7, sent)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s at iteration %d", id, i)
		seen[id] = struct{}{}
	}
}

func TestNewMessageIDSortsByRoomThenTime(t *testing.T) {
	early, _ := NewMessageID(5, time.UnixMicro(1_000_001))
	late, _ := NewMessageID(5, time.UnixMicro(2_000_001))
	otherRoom, _ := NewMessageID(6, time.UnixMicro(1_000_001))

	assert.Less(t, early, late)
	assert.Less(t, late, otherRoom)
}
