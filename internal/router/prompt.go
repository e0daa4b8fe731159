package router

import (
	"sync"
	"time"
)

type PromptState int

const (
	Proposed PromptState = iota
	Confirmed
	Expired
)

func (s PromptState) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case Confirmed:
		return "confirmed"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Prompt is a "did you mean" question waiting for one user to confirm with
// one reaction. The first of confirmation, timeout or Stop wins; later
// events are ignored.
type Prompt struct {
	mu        sync.Mutex
	state     PromptState
	reactor   string
	reaction  string
	timer     *time.Timer
	onConfirm func()
	onExpire  func()
	done      chan struct{}
}

// NewPrompt arms the timeout immediately. Callbacks run on their own
// goroutine (the timer's, or the caller of React).
func NewPrompt(reactor, reaction string, timeout time.Duration, onConfirm, onExpire func()) *Prompt {
	p := &Prompt{
		state:     Proposed,
		reactor:   reactor,
		reaction:  reaction,
		onConfirm: onConfirm,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
	p.mu.Lock()
	p.timer = time.AfterFunc(timeout, p.expire)
	p.mu.Unlock()
	return p
}

// React confirms the prompt if userID and reaction are the expected ones.
func (p *Prompt) React(userID, reaction string) bool {
	if userID != p.reactor || reaction != p.reaction {
		return false
	}
	if !p.transition(Confirmed) {
		return false
	}
	if p.onConfirm != nil {
		p.onConfirm()
	}
	return true
}

// Stop expires the prompt without running any callback.
func (p *Prompt) Stop() {
	p.transition(Expired)
}

func (p *Prompt) State() PromptState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the prompt leaves Proposed.
func (p *Prompt) Done() <-chan struct{} {
	return p.done
}

func (p *Prompt) expire() {
	if !p.transition(Expired) {
		return
	}
	if p.onExpire != nil {
		p.onExpire()
	}
}

func (p *Prompt) transition(to PromptState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Proposed {
		return false
	}
	p.state = to
	if p.timer != nil {
		p.timer.Stop()
	}
	close(p.done)
	return true
}

// Tracker indexes live prompts by the message they were posted as.
type Tracker struct {
	mu      sync.Mutex
	prompts map[string]*Prompt
}

func NewTracker() *Tracker {
	return &Tracker{prompts: make(map[string]*Prompt)}
}

func PromptKey(channelID, timestamp string) string {
	return channelID + "/" + timestamp
}

// Add tracks p until it reaches a terminal state.
func (t *Tracker) Add(key string, p *Prompt) {
	t.mu.Lock()
	t.prompts[key] = p
	t.mu.Unlock()
	go func() {
		<-p.Done()
		t.mu.Lock()
		if t.prompts[key] == p {
			delete(t.prompts, key)
		}
		t.mu.Unlock()
	}()
}

// React forwards a reaction to the prompt posted at key, if any.
func (t *Tracker) React(key, userID, reaction string) bool {
	t.mu.Lock()
	p := t.prompts[key]
	t.mu.Unlock()
	if p == nil {
		return false
	}
	return p.React(userID, reaction)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prompts)
}

// StopAll expires every live prompt.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	live := make([]*Prompt, 0, len(t.prompts))
	for _, p := range t.prompts {
		live = append(live, p)
	}
	t.mu.Unlock()
	for _, p := range live {
		p.Stop()
	}
}
