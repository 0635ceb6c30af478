package session_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CellarSociety/internal/session"
)

func TestHistoryMostRecentFirst(t *testing.T) {
	h := session.NewHistory[string](10)
	h.Push("cabernet")
	h.Push("merlot")
	h.Push("syrah")

	got := h.List()
	require.Len(t, got, 3)
	assert.Equal(t, "syrah", got[0].Value)
	assert.Equal(t, "merlot", got[1].Value)
	assert.Equal(t, "cabernet", got[2].Value)
	assert.False(t, got[0].At.IsZero())
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	h := session.NewHistory[string](10)

	h.Push("cabernet")
	for i := 0; i < 10; i++ {
		h.Push(fmt.Sprintf("wine-%d", i))
	}

	require.Equal(t, 10, h.Len())
	got := h.List()
	assert.Equal(t, "wine-9", got[0].Value)
	assert.Equal(t, "wine-0", got[9].Value)
	for _, e := range got {
		assert.NotEqual(t, "cabernet", e.Value, "oldest entry must have been evicted")
	}
}

func TestHistoryKeepsDuplicates(t *testing.T) {
	h := session.NewHistory[string](5)
	h.Push("riesling")
	h.Push("riesling")
	h.Push("riesling")

	got := h.List()
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, "riesling", e.Value)
	}
}

func TestHistoryClear(t *testing.T) {
	h := session.NewHistory[int](3)
	h.Push(1)
	h.Push(2)
	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.List())

	h.Push(3)
	require.Equal(t, 1, h.Len())
	assert.Equal(t, 3, h.List()[0].Value)
}

func TestHistoryMinimumCapacity(t *testing.T) {
	h := session.NewHistory[string](0)
	assert.Equal(t, 1, h.Cap())

	h.Push("a")
	h.Push("b")
	got := h.List()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Value)
}
