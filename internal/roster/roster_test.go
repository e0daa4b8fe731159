package roster_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbot/internal/domain"
	"clubbot/internal/roster"
)

func TestRefreshAndLookup(t *testing.T) {
	calls := 0
	r := roster.New(func() ([]domain.Member, error) {
		calls++
		return []domain.Member{
			{Name: "Jane Doe", SlackID: "U1", Groups: "board"},
			{Name: "Alex Roe", SlackID: "U2"},
		}, nil
	})

	assert.Empty(t, r.Members())
	assert.True(t, r.LoadedAt().IsZero())
	require.NoError(t, r.Refresh())
	assert.Equal(t, 1, calls)
	assert.False(t, r.LoadedAt().IsZero())

	m, ok := r.Find("jane DOE")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", m.Name)

	m, ok = r.FindBySlackID("U2")
	require.True(t, ok)
	assert.Equal(t, "Alex Roe", m.Name)

	_, ok = r.FindBySlackID("")
	assert.False(t, ok)
	_, ok = r.Find("Nobody")
	assert.False(t, ok)
}

func TestRefreshErrorKeepsPreviousList(t *testing.T) {
	fail := false
	r := roster.New(func() ([]domain.Member, error) {
		if fail {
			return nil, errors.New("db locked")
		}
		return []domain.Member{{Name: "Jane"}}, nil
	})
	require.NoError(t, r.Refresh())

	fail = true
	assert.Error(t, r.Refresh())
	assert.Len(t, r.Members(), 1)
}

func TestMembersReturnsCopy(t *testing.T) {
	r := roster.New(func() ([]domain.Member, error) {
		return []domain.Member{{Name: "Jane"}}, nil
	})
	require.NoError(t, r.Refresh())

	ms := r.Members()
	ms[0].Name = "Changed"
	assert.Equal(t, "Jane", r.Members()[0].Name)
}

func TestStartRefreshSchedulerDisabledAndInvalid(t *testing.T) {
	calls := 0
	r := roster.New(func() ([]domain.Member, error) {
		calls++
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roster.StartRefreshScheduler(ctx, r, "", time.UTC)
	roster.StartRefreshScheduler(ctx, r, "not a cron", time.UTC)
	assert.Zero(t, calls)
}
