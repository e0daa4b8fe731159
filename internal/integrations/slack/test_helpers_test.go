package slackbot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"clubbot/internal/config"
	"clubbot/internal/roster"
	sqlitedb "clubbot/internal/storage/sqlite"
)

var testNow = time.Date(2024, 3, 14, 19, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlitedb.InitDB(dbPath)
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type slackCall struct {
	Method string
	Form   url.Values
}

// mockSlack is a fake Web API that records every call.
type mockSlack struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	calls    []slackCall
	nextTS   int
	channels map[string]string
	groups   map[string][]string
	users    []map[string]any
	emoji    map[string]string
	history  []string
	webhooks []string
}

func newMockSlack(t *testing.T) *mockSlack {
	t.Helper()
	m := &mockSlack{
		t:        t,
		channels: map[string]string{"C_SPAM": "spam", "C_GENERAL": "general", "C_OTHER": "random"},
		groups:   map[string][]string{},
		users: []map[string]any{
			{"id": "U_JANE", "name": "jane", "real_name": "Jane Doe", "profile": map[string]any{"display_name": "Jane"}},
			{"id": "U_ADMIN", "name": "admin", "real_name": "Ada Admin", "profile": map[string]any{"display_name": "Ada"}},
			{"id": "U_CREATOR", "name": "creator", "real_name": "Cray Creator", "profile": map[string]any{"display_name": "Cray"}},
		},
		emoji: map[string]string{},
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockSlack) client() *slack.Client {
	return slack.New("xoxb-test", slack.OptionAPIURL(m.server.URL+"/api/"))
}

func (m *mockSlack) webhookURL() string {
	return m.server.URL + "/webhook"
}

func (m *mockSlack) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/webhook" {
		var msg slack.WebhookMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		m.mu.Lock()
		m.webhooks = append(m.webhooks, msg.Text)
		m.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}

	_ = r.ParseForm()
	path := strings.TrimPrefix(r.URL.Path, "/api/")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, slackCall{Method: path, Form: r.Form})

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"ok": true}
	switch path {
	case "auth.test":
		resp["user_id"] = "U_BOT"
		resp["user"] = "clubbot"
	case "chat.postMessage":
		m.nextTS++
		resp["channel"] = r.Form.Get("channel")
		resp["ts"] = fmt.Sprintf("1700000000.%06d", m.nextTS)
	case "chat.update", "chat.delete":
		resp["channel"] = r.Form.Get("channel")
		resp["ts"] = r.Form.Get("ts")
	case "conversations.info":
		id := r.Form.Get("channel")
		resp["channel"] = map[string]any{"id": id, "name": m.channels[id]}
	case "conversations.open":
		resp["channel"] = map[string]any{"id": "D_DM"}
	case "conversations.history":
		msgs := make([]map[string]any, 0, len(m.history))
		for _, ts := range m.history {
			msgs = append(msgs, map[string]any{"type": "message", "ts": ts})
		}
		resp["messages"] = msgs
	case "usergroups.users.list":
		users := m.groups[r.Form.Get("usergroup")]
		if users == nil {
			users = []string{}
		}
		resp["users"] = users
	case "usergroups.users.update":
		group := r.Form.Get("usergroup")
		var users []string
		if v := r.Form.Get("users"); v != "" {
			users = strings.Split(v, ",")
		}
		m.groups[group] = users
		resp["usergroup"] = map[string]any{"id": group, "users": users}
	case "users.list":
		resp["members"] = m.users
	case "users.info":
		id := r.Form.Get("user")
		for _, u := range m.users {
			if u["id"] == id {
				resp["user"] = u
			}
		}
		if resp["user"] == nil {
			resp = map[string]any{"ok": false, "error": "user_not_found"}
		}
	case "users.getPresence":
		resp["presence"] = "active"
	case "emoji.list":
		resp["emoji"] = m.emoji
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type postedMessage struct {
	Channel  string
	Text     string
	ThreadTS string
	Blocks   string
}

func (m *mockSlack) posts() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []postedMessage
	for _, c := range m.calls {
		if c.Method != "chat.postMessage" {
			continue
		}
		out = append(out, postedMessage{
			Channel:  c.Form.Get("channel"),
			Text:     c.Form.Get("text"),
			ThreadTS: c.Form.Get("thread_ts"),
			Blocks:   c.Form.Get("blocks"),
		})
	}
	return out
}

func (m *mockSlack) texts() []string {
	var out []string
	for _, p := range m.posts() {
		out = append(out, p.Text)
	}
	return out
}

func (m *mockSlack) callsTo(method string) []slackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []slackCall
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockSlack) webhookTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.webhooks...)
}

func (m *mockSlack) setGroup(id string, users ...string) {
	m.mu.Lock()
	m.groups[id] = users
	m.mu.Unlock()
}

func (m *mockSlack) group(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.groups[id]...)
}

func testConfig() Config {
	return Config{
		Prefix:                "!",
		ConfirmTimeoutSeconds: 8,
		SpamChannelName:       "spam",
		BotCreatorID:          "U_CREATOR",
		AdminSlackIDs:         []string{"U_ADMIN"},
		NewMemberUserGroupID:  "S_NEW",
		OtherTeamUserGroupID:  "S_OTHER",
		Location:              time.UTC,
		Options:               config.Options{EnableLogCommand: true},
	}
}

func newTestBot(t *testing.T, mock *mockSlack, cfg Config, members ...Member) (*Bot, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	for _, m := range members {
		if err := sqlitedb.UpsertMember(db, m); err != nil {
			t.Fatalf("upsert member: %v", err)
		}
	}
	r := roster.New(func() ([]Member, error) { return sqlitedb.GetMembers(db) })
	if err := r.Refresh(); err != nil {
		t.Fatalf("refresh roster: %v", err)
	}

	b, err := New(cfg, db, mock.client(), r, nil)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	t.Cleanup(b.prompts.StopAll)
	b.now = func() time.Time { return testNow }
	b.rand = func(int) int { return 0 }
	if err := b.identify(context.Background()); err != nil {
		t.Fatalf("identify: %v", err)
	}
	return b, db
}

func request(user, channel, text string) Request {
	return Request{ID: "req-1", UserID: user, ChannelID: channel, Timestamp: "1699999999.000001", Text: text}
}

func containsText(texts []string, want string) bool {
	for _, s := range texts {
		if strings.Contains(s, want) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
