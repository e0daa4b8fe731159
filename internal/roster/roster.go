// Package roster caches the member list and keeps it fresh on a schedule.
package roster

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"clubbot/internal/domain"
)

// Loader reads the current member list from storage.
type Loader func() ([]domain.Member, error)

type Roster struct {
	load Loader

	mu      sync.RWMutex
	members []domain.Member
	loaded  time.Time
}

func New(load Loader) *Roster {
	return &Roster{load: load}
}

// Refresh replaces the cached list. On error the previous list is kept.
func (r *Roster) Refresh() error {
	members, err := r.load()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.members = members
	r.loaded = time.Now()
	r.mu.Unlock()
	return nil
}

// Members returns a copy of the cached list in storage order.
func (r *Roster) Members() []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Member(nil), r.members...)
}

func (r *Roster) Find(name string) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.FindMember(r.members, name)
}

func (r *Roster) FindBySlackID(slackID string) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.FindMemberBySlackID(r.members, slackID)
}

func (r *Roster) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// StartRefreshScheduler reloads the roster on a 5-field cron schedule until
// ctx is done. An empty schedule disables refreshing.
func StartRefreshScheduler(ctx context.Context, r *Roster, schedule string, loc *time.Location) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Member refresh disabled (member_refresh_schedule not set)")
		return
	}
	if loc == nil {
		loc = time.Local
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid member_refresh_schedule '%s': %v, member refresh disabled", schedule, err)
		return
	}
	log.Printf("Member refresh scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)

			select {
			case <-ctx.Done():
				log.Println("Member refresh stopped")
				return
			case <-time.After(wait):
			}

			if err := r.Refresh(); err != nil {
				log.Printf("member refresh error: %v", err)
				continue
			}
			log.Printf("member refresh complete members=%d", len(r.Members()))
		}
	}()
}
