package slackbot

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
)

const groupCacheTTL = 5 * time.Minute

type groupEntry struct {
	members   []string
	fetchedAt time.Time
}

// groupCache holds user group membership, which Slack does not push to
// Socket Mode clients.
type groupCache struct {
	mu      sync.Mutex
	entries map[string]groupEntry
}

func (b *Bot) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	b.groups.mu.Lock()
	defer b.groups.mu.Unlock()

	if e, ok := b.groups.entries[groupID]; ok && time.Since(e.fetchedAt) < groupCacheTTL {
		return e.members, nil
	}
	members, err := b.api.GetUserGroupMembersContext(ctx, groupID)
	if err != nil {
		return nil, err
	}
	b.groups.entries[groupID] = groupEntry{members: members, fetchedAt: time.Now()}
	return members, nil
}

func (b *Bot) forgetGroup(groupID string) {
	b.groups.mu.Lock()
	delete(b.groups.entries, groupID)
	b.groups.mu.Unlock()
}

// inGroup reports membership. Lookup failures count as not a member.
func (b *Bot) inGroup(ctx context.Context, groupID, userID string) bool {
	if groupID == "" || userID == "" {
		return false
	}
	members, err := b.groupMembers(ctx, groupID)
	if err != nil {
		log.Printf("user group lookup error group=%s: %v", groupID, err)
		return false
	}
	return slices.Contains(members, userID)
}

func (b *Bot) isAdmin(ctx context.Context, userID string) bool {
	return b.cfg.IsAdminID(userID) || b.cfg.IsBotCreator(userID) || b.inGroup(ctx, b.cfg.AdminUserGroupID, userID)
}

// isNewcomer is true for people the club has not identified yet, or who
// belong to another team.
func (b *Bot) isNewcomer(ctx context.Context, userID string) bool {
	return b.inGroup(ctx, b.cfg.NewMemberUserGroupID, userID) || b.inGroup(ctx, b.cfg.OtherTeamUserGroupID, userID)
}

// setGroupMembership adds or removes userID and rewrites the group.
func (b *Bot) setGroupMembership(ctx context.Context, groupID, userID string, member bool) error {
	current, err := b.groupMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list user group %s: %w", groupID, err)
	}
	next := make([]string, 0, len(current)+1)
	for _, id := range current {
		if id != userID {
			next = append(next, id)
		}
	}
	if member {
		next = append(next, userID)
	}
	if _, err := b.api.UpdateUserGroupMembersContext(ctx, groupID, strings.Join(next, ",")); err != nil {
		return fmt.Errorf("update user group %s: %w", groupID, err)
	}
	b.forgetGroup(groupID)
	log.Printf("user group updated group=%s user=%s member=%t", groupID, userID, member)
	return nil
}
