// Package router resolves chat text to a registered command, falling back
// to approximate name matching when there is no exact hit.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Confidence tiers applied by callers of Match.
const (
	ExactConfidence   = 1.0
	ConfirmThreshold  = 0.2
	HelpLookupMinimum = 0.5
)

var (
	ErrEmptyName        = errors.New("command name is empty")
	ErrDuplicateCommand = errors.New("duplicate command name")
)

// Request is what a handler sees. Args is the text after the command token.
type Request struct {
	ID        string
	UserID    string
	ChannelID string
	Timestamp string
	Text      string
	Args      string
}

type Handler func(ctx context.Context, req Request) error

type Command struct {
	Name        string
	Description string
	Usage       string
	Example     string
	Hidden      bool
	Run         Handler
}

// Registry is an ordered, read-only set of commands.
type Registry struct {
	commands []*Command
	byName   map[string]*Command
	metric   *metrics.SorensenDice
}

func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Command, len(cmds)),
		metric: metrics.NewSorensenDice(),
	}
	r.metric.CaseSensitive = false
	r.metric.NgramSize = 2
	for i := range cmds {
		c := cmds[i]
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Name == "" {
			return nil, ErrEmptyName
		}
		if _, exists := r.byName[c.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, c.Name)
		}
		r.commands = append(r.commands, &c)
		r.byName[c.Name] = &c
	}
	return r, nil
}

// Commands returns every command in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Visible returns the commands listed by help.
func (r *Registry) Visible() []*Command {
	var out []*Command
	for _, c := range r.commands {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

type Match struct {
	Command    *Command
	Confidence float64
}

func (m Match) Matched() bool {
	return m.Command != nil
}

type Tier int

const (
	TierNone Tier = iota
	TierConfirm
	TierExecute
)

func (m Match) Tier() Tier {
	switch {
	case m.Command == nil:
		return TierNone
	case m.Confidence >= ExactConfidence:
		return TierExecute
	case m.Confidence > ConfirmThreshold:
		return TierConfirm
	default:
		return TierNone
	}
}

// Match finds the command text invokes. An exact name wins with confidence
// 1; otherwise the most similar name is returned with its Dice score. Ties
// keep the earliest registered command. Text without the prefix, or with
// nothing after it, matches nothing.
func (r *Registry) Match(prefix, text string) Match {
	if r == nil || len(r.commands) == 0 || !strings.HasPrefix(text, prefix) {
		return Match{}
	}
	candidate := strings.ToLower(firstToken(text[len(prefix):]))
	if candidate == "" {
		return Match{}
	}
	if c, ok := r.byName[candidate]; ok {
		return Match{Command: c, Confidence: ExactConfidence}
	}

	var best *Command
	bestScore := 0.0
	for _, c := range r.commands {
		score := strutil.Similarity(candidate, c.Name, r.metric)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if best == nil {
		return Match{}
	}
	return Match{Command: best, Confidence: bestScore}
}

// Args returns the text after the first whitespace run, trimmed.
func Args(text string) string {
	text = strings.TrimSpace(text)
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}

func firstToken(s string) string {
	if idx := strings.IndexFunc(s, unicode.IsSpace); idx >= 0 {
		return s[:idx]
	}
	return s
}
