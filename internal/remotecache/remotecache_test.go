package remotecache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/revision"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestStaleness(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now))

	assert.False(t, c.IsOutdated(), "empty cache is never outdated")
	clock.Advance(48 * time.Hour)
	assert.False(t, c.IsOutdated())

	c.UpdateForRemoteRevisions([]Entry{{ID: "r1", Timestamp: clock.Now()}})
	assert.False(t, c.IsOutdated())

	clock.Advance(StaleAfter)
	assert.False(t, c.IsOutdated(), "exactly one day is not stale yet")
	clock.Advance(time.Second)
	assert.True(t, c.IsOutdated())

	c.UpdateForRemoteRevisions(nil)
	assert.False(t, c.IsOutdated())
}

func TestUpdateForRemoteRevisionsReplaces(t *testing.T) {
	c := New()
	c.UpdateForRemoteRevisions([]Entry{{ID: "a"}, {ID: "b"}})
	assert.True(t, c.HasRevisionTracked("a"))

	c.UpdateForRemoteRevisions([]Entry{{ID: "c"}})
	assert.False(t, c.HasRevisionTracked("a"))
	assert.Equal(t, []string{"c"}, c.IDs())
}

func TestUpdateForLocalRevision(t *testing.T) {
	c := New()
	rev := revision.New("local", "")
	c.UpdateForLocalRevision(rev)
	assert.True(t, c.HasRevisionTracked(rev.ID()))
	ts, ok := c.Timestamp(rev.ID())
	require.True(t, ok)
	assert.Equal(t, rev.Timestamp(), ts)
	assert.True(t, c.LastSyncTime().IsZero(), "local updates are not a sync")
}

func TestSerializeRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1700000000000).UTC()}
	c := New(WithClock(clock.Now))
	c.UpdateForRemoteRevisions([]Entry{
		{ID: "a", Timestamp: time.UnixMilli(1).UTC()},
		{ID: "b", Timestamp: time.UnixMilli(2).UTC()},
	})

	got, err := Deserialize(c.Serialize(), WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, c.IDs(), got.IDs())
	assert.Equal(t, c.LastSyncTime(), got.LastSyncTime())
	ts, _ := got.Timestamp("b")
	assert.Equal(t, int64(2), ts.UnixMilli())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.UpdateForRemoteRevisions([]Entry{{ID: "x"}})
		}()
		go func() {
			defer wg.Done()
			_ = c.IsOutdated()
			_ = c.HasRevisionTracked("x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
