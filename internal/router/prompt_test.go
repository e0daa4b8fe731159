package router_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbot/internal/router"
)

const confirm = "white_check_mark"

func waitDone(t *testing.T, p *router.Prompt) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not finish")
	}
}

func TestPromptConfirmByAuthor(t *testing.T) {
	var confirmed, expired atomic.Int32
	p := router.NewPrompt("U1", confirm, time.Minute, func() { confirmed.Add(1) }, func() { expired.Add(1) })

	assert.True(t, p.React("U1", confirm))
	waitDone(t, p)

	assert.Equal(t, router.Confirmed, p.State())
	assert.Equal(t, int32(1), confirmed.Load())
	assert.Zero(t, expired.Load())

	// No re-arming after a terminal state.
	assert.False(t, p.React("U1", confirm))
	assert.Equal(t, int32(1), confirmed.Load())
}

func TestPromptIgnoresOtherUsersAndReactions(t *testing.T) {
	var confirmed, expired atomic.Int32
	p := router.NewPrompt("U1", confirm, 50*time.Millisecond, func() { confirmed.Add(1) }, func() { expired.Add(1) })

	assert.False(t, p.React("U2", confirm))
	assert.False(t, p.React("U1", "thumbsup"))
	assert.Equal(t, router.Proposed, p.State())

	waitDone(t, p)
	assert.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, router.Expired, p.State())
	assert.Zero(t, confirmed.Load())
}

func TestPromptExpiresOnce(t *testing.T) {
	var expired atomic.Int32
	p := router.NewPrompt("U1", confirm, 10*time.Millisecond, nil, func() { expired.Add(1) })

	waitDone(t, p)
	time.Sleep(30 * time.Millisecond)
	assert.False(t, p.React("U1", confirm))
	assert.Equal(t, int32(1), expired.Load())
}

func TestPromptStopRunsNoCallbacks(t *testing.T) {
	var calls atomic.Int32
	p := router.NewPrompt("U1", confirm, 10*time.Millisecond, func() { calls.Add(1) }, func() { calls.Add(1) })

	p.Stop()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, router.Expired, p.State())
	assert.Zero(t, calls.Load())
}

func TestTrackerRoutesAndForgets(t *testing.T) {
	tr := router.NewTracker()
	var confirmed atomic.Int32
	p := router.NewPrompt("U1", confirm, time.Minute, func() { confirmed.Add(1) }, nil)
	key := router.PromptKey("C1", "1700000000.000100")
	tr.Add(key, p)
	require.Equal(t, 1, tr.Len())

	assert.False(t, tr.React(router.PromptKey("C1", "other"), "U1", confirm))
	assert.True(t, tr.React(key, "U1", confirm))
	assert.Equal(t, int32(1), confirmed.Load())
	assert.Eventually(t, func() bool { return tr.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, tr.React(key, "U1", confirm))
}

func TestTrackerStopAll(t *testing.T) {
	tr := router.NewTracker()
	a := router.NewPrompt("U1", confirm, time.Minute, nil, nil)
	b := router.NewPrompt("U2", confirm, time.Minute, nil, nil)
	tr.Add("a", a)
	tr.Add("b", b)

	tr.StopAll()

	assert.Equal(t, router.Expired, a.State())
	assert.Equal(t, router.Expired, b.State())
	assert.Eventually(t, func() bool { return tr.Len() == 0 }, time.Second, 5*time.Millisecond)
}
