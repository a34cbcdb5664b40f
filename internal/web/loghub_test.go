package web

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogHubSplitsLines(t *testing.T) {
	h := NewLogHub()
	h.Write([]byte("one\ntw"))
	assert.Equal(t, []string{"one"}, h.History())

	h.Write([]byte("o\nthree\n"))
	assert.Equal(t, []string{"one", "two", "three"}, h.History())
}

func TestLogHubHistoryBounded(t *testing.T) {
	h := NewLogHub()
	for i := 0; i < LogHistory+5; i++ {
		fmt.Fprintf(h, "line %d\n", i)
	}
	hist := h.History()
	require.Len(t, hist, LogHistory)
	assert.Equal(t, "line 5", hist[0])
	assert.Equal(t, fmt.Sprintf("line %d", LogHistory+4), hist[len(hist)-1])
}

func TestLogHubSubscribe(t *testing.T) {
	h := NewLogHub()
	fmt.Fprintln(h, "before")

	history, lines, unsubscribe := h.Subscribe()
	assert.Equal(t, []string{"before"}, history)

	fmt.Fprintln(h, "after")
	assert.Equal(t, "after", <-lines)

	unsubscribe()
	unsubscribe()
	fmt.Fprintln(h, "ignored")
	assert.Empty(t, lines)
}

func TestLogHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewLogHub()
	_, lines, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberQueue*2; i++ {
		fmt.Fprintf(h, "line %d\n", i)
	}
	assert.Len(t, lines, subscriberQueue)
}
