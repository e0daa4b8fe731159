package router_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbot/internal/router"
)

func noop(context.Context, router.Request) error { return nil }

func newRegistry(t *testing.T, names ...string) *router.Registry {
	t.Helper()
	cmds := make([]router.Command, 0, len(names))
	for _, n := range names {
		cmds = append(cmds, router.Command{Name: n, Run: noop})
	}
	reg, err := router.NewRegistry(cmds...)
	require.NoError(t, err)
	return reg
}

func TestMatchExactAnyCase(t *testing.T) {
	reg := newRegistry(t, "ping", "pings", "pingg", "purge")

	for _, input := range []string{"!ping", "!PING", "!Ping extra args", "!ping\targs"} {
		m := reg.Match("!", input)
		require.True(t, m.Matched(), input)
		assert.Equal(t, "ping", m.Command.Name, input)
		assert.Equal(t, 1.0, m.Confidence, input)
		assert.Equal(t, router.TierExecute, m.Tier(), input)
	}
}

func TestMatchWithoutPrefix(t *testing.T) {
	reg := newRegistry(t, "ping", "purge")

	for _, input := range []string{"ping", "", "?ping", " !ping"} {
		m := reg.Match("!", input)
		assert.False(t, m.Matched(), input)
		assert.Zero(t, m.Confidence, input)
		assert.Equal(t, router.TierNone, m.Tier(), input)
	}
}

func TestMatchFuzzyPrefersCloserName(t *testing.T) {
	reg := newRegistry(t, "ping", "purge", "purple")

	m := reg.Match("!", "!purpel")

	require.True(t, m.Matched())
	assert.Equal(t, "purple", m.Command.Name)
	assert.Greater(t, m.Confidence, router.ConfirmThreshold)
	assert.Less(t, m.Confidence, 1.0)
	assert.Equal(t, router.TierConfirm, m.Tier())
}

func TestMatchFuzzyIsDeterministic(t *testing.T) {
	reg := newRegistry(t, "tophours", "timestats", "togglerole", "tbateam")

	first := reg.Match("!", "!tophour")
	for i := 0; i < 20; i++ {
		again := reg.Match("!", "!tophour")
		assert.Same(t, first.Command, again.Command)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}

func TestMatchTieKeepsFirstRegistered(t *testing.T) {
	// "ab" shares one bigram with each name and the names have equal length.
	reg := newRegistry(t, "abx", "aby")

	m := reg.Match("!", "!ab")

	require.True(t, m.Matched())
	assert.Equal(t, "abx", m.Command.Name)
}

func TestMatchDegradesGracefully(t *testing.T) {
	empty, err := router.NewRegistry()
	require.NoError(t, err)
	assert.False(t, empty.Match("!", "!ping").Matched())

	reg := newRegistry(t, "ping")
	assert.False(t, reg.Match("!", "!").Matched())
	assert.False(t, reg.Match("!", "! ping").Matched())

	var nilReg *router.Registry
	assert.False(t, nilReg.Match("!", "!ping").Matched())
}

func TestMatchUnrelatedFallsBelowThreshold(t *testing.T) {
	reg := newRegistry(t, "ping", "purge")

	m := reg.Match("!", "!xyzzy")

	assert.Equal(t, router.TierNone, m.Tier())
	assert.LessOrEqual(t, m.Confidence, router.ConfirmThreshold)
}

func TestNewRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := router.NewRegistry(router.Command{Name: "log"}, router.Command{Name: "LOG"})
	assert.ErrorIs(t, err, router.ErrDuplicateCommand)

	_, err = router.NewRegistry(router.Command{Name: "  "})
	assert.ErrorIs(t, err, router.ErrEmptyName)
}

func TestRegistryOrderAndVisibility(t *testing.T) {
	reg, err := router.NewRegistry(
		router.Command{Name: "Info"},
		router.Command{Name: "kys", Hidden: true},
		router.Command{Name: "help"},
	)
	require.NoError(t, err)

	var all, visible []string
	for _, c := range reg.Commands() {
		all = append(all, c.Name)
	}
	for _, c := range reg.Visible() {
		visible = append(visible, c.Name)
	}
	assert.Equal(t, []string{"info", "kys", "help"}, all)
	assert.Equal(t, []string{"info", "help"}, visible)

	c, ok := reg.Lookup("INFO")
	require.True(t, ok)
	assert.Equal(t, "info", c.Name)
}

func TestArgs(t *testing.T) {
	tests := map[string]string{
		"!log":                     "",
		"!log Jane Doe":            "Jane Doe",
		"!subtracthours  \"A B\" ": "\"A B\"",
		"!log\nJane":               "Jane",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, router.Args(in), "Args(%q)", in)
	}
}
