package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

func snap(repo string) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Repo:        repo,
		LastUpdated: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Commits:     snapshot.Commits{Count: 1, Items: []snapshot.CommitRow{{SHA: "abc", Title: "first"}}},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "o/r", Key("o/r", 0))
	assert.Equal(t, "o/r", Key("o/r", -1))
	assert.Equal(t, "o/r#5", Key("o/r", 5))
}

func TestSetThenGet(t *testing.T) {
	c := New(10, time.Minute)
	want := snap("o/r")

	c.Set("o/r", 0, want)
	got, ok := c.Get("o/r", 0)

	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestGet_Miss(t *testing.T) {
	c := New(10, time.Minute)

	got, ok := c.Get("o/r", 0)

	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestValuesAreCopied(t *testing.T) {
	c := New(10, time.Minute)
	orig := snap("o/r")
	c.Set("o/r", 0, orig)

	orig.Commits.Items[0].Title = "mutated after set"
	first, _ := c.Get("o/r", 0)
	first.Commits.Items[0].Title = "mutated after get"
	second, _ := c.Get("o/r", 0)

	assert.Equal(t, "first", second.Commits.Items[0].Title)
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 20*time.Millisecond)
	c.Set("o/r", 0, snap("o/r"))

	_, ok := c.Get("o/r", 0)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("o/r", 0)
	assert.False(t, ok, "entry must expire even below capacity")
}

func TestCapacityEvictsExactlyOne(t *testing.T) {
	const capacity = 3
	c := New(capacity, time.Minute)
	for i := range capacity {
		c.Set(fmt.Sprintf("o/r%d", i), 0, snap("o/r"))
	}
	require.Equal(t, capacity, c.Len())

	c.Set("o/extra", 0, snap("o/extra"))

	assert.Equal(t, capacity, c.Len())
	missing := 0
	for i := range capacity {
		if _, ok := c.Get(fmt.Sprintf("o/r%d", i), 0); !ok {
			missing++
		}
	}
	assert.Equal(t, 1, missing)
	_, ok := c.Get("o/extra", 0)
	assert.True(t, ok)
}

func TestLeastRecentlyUsedGoesFirst(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("a/a", 0, snap("a/a"))
	c.Set("b/b", 0, snap("b/b"))
	_, _ = c.Get("a/a", 0)

	c.Set("c/c", 0, snap("c/c"))

	_, okA := c.Get("a/a", 0)
	_, okB := c.Get("b/b", 0)
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestBoardAndFocusedKeysAreIndependent(t *testing.T) {
	c := New(10, time.Minute)
	board := snap("r/r")
	focused := snap("r/r")
	focused.Commits.Count = 99

	c.Set("r/r", 0, board)
	_, ok := c.Get("r/r", 5)
	assert.False(t, ok, "board entry must not satisfy a focused lookup")

	c.Set("r/r", 5, focused)
	gotBoard, ok := c.Get("r/r", 0)
	require.True(t, ok)
	gotFocused, ok := c.Get("r/r", 5)
	require.True(t, ok)

	assert.Equal(t, 1, gotBoard.Commits.Count)
	assert.Equal(t, 99, gotFocused.Commits.Count)
	assert.Equal(t, 2, c.Len())
}

func TestSetOverwrites(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("o/r", 0, snap("o/r"))
	newer := snap("o/r")
	newer.Commits.Count = 7

	c.Set("o/r", 0, newer)

	got, ok := c.Get("o/r", 0)
	require.True(t, ok)
	assert.Equal(t, 7, got.Commits.Count)
	assert.Equal(t, 1, c.Len())
}

func TestPurge(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("o/r", 0, snap("o/r"))
	c.Set("o/r", 1, snap("o/r"))

	c.Purge()

	assert.Equal(t, 0, c.Len())
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, 0)
	for i := range DefaultMaxEntries + 1 {
		c.Set(fmt.Sprintf("o/r%d", i), 0, snap("o/r"))
	}
	assert.Equal(t, DefaultMaxEntries, c.Len())
}
