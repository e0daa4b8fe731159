package slackbot

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const userCacheTTL = 5 * time.Minute

type userCache struct {
	sync.Mutex
	users     []slack.User
	fetchedAt time.Time
}

func (b *Bot) cachedUsers(ctx context.Context) ([]slack.User, error) {
	b.users.Lock()
	defer b.users.Unlock()

	if b.users.users != nil && time.Since(b.users.fetchedAt) < userCacheTTL {
		return b.users.users, nil
	}

	users, err := b.api.GetUsersContext(ctx)
	if err != nil {
		return nil, err
	}
	b.users.users = users
	b.users.fetchedAt = time.Now()
	return users, nil
}

// findUser looks in the cached directory first, then asks Slack directly.
func (b *Bot) findUser(ctx context.Context, userID string) (slack.User, bool) {
	if users, err := b.cachedUsers(ctx); err == nil {
		for _, u := range users {
			if u.ID == userID {
				return u, true
			}
		}
	} else {
		log.Printf("user list error: %v", err)
	}
	u, err := b.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.Printf("user info error user=%s: %v", userID, err)
		return slack.User{}, false
	}
	return *u, true
}

// nickname is the name people see for userID in chat.
func (b *Bot) nickname(ctx context.Context, userID string) string {
	if u, ok := b.findUser(ctx, userID); ok {
		if name := displayName(u); name != "" {
			return name
		}
	}
	return userID
}

func displayName(u slack.User) string {
	for _, n := range []string{u.Profile.DisplayName, u.RealName, u.Name} {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}

var mentionPattern = regexp.MustCompile(`^<@([UW][A-Z0-9]+)(?:\|[^>]*)?>$`)

// resolveUser accepts a mention, a raw user ID or a name as shown in the
// directory.
func (b *Bot) resolveUser(ctx context.Context, query string) (slack.User, bool, error) {
	query = strings.TrimSpace(query)
	if m := mentionPattern.FindStringSubmatch(query); m != nil {
		query = m[1]
	}

	users, err := b.cachedUsers(ctx)
	if err != nil {
		return slack.User{}, false, err
	}
	if isLikelySlackID(query) {
		for _, u := range users {
			if u.ID == query {
				return u, true, nil
			}
		}
		u, ok := b.findUser(ctx, query)
		return u, ok, nil
	}

	key := strings.ToLower(strings.TrimPrefix(query, "@"))
	for _, u := range users {
		for _, n := range []string{u.Name, u.RealName, u.Profile.DisplayName} {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" && n == key {
				return u, true, nil
			}
		}
	}
	return slack.User{}, false, nil
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
