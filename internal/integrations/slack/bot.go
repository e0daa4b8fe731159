// Package slackbot is the chat front end: it reads messages over Socket
// Mode, routes them to commands and posts the answers.
package slackbot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"clubbot/internal/integrations/tba"
	"clubbot/internal/passive"
	"clubbot/internal/roster"
	"clubbot/internal/router"
)

const (
	confirmReaction = "white_check_mark"
	defaultBotName  = "clubbot"
)

type Bot struct {
	cfg     Config
	db      *sql.DB
	api     *slack.Client
	roster  *roster.Roster
	tba     *tba.Client
	passive *passive.Responder

	commands *router.Registry
	prompts  *router.Tracker

	groups   *groupCache
	users    *userCache
	channels *channelCache

	shutdown  context.CancelFunc
	startedAt time.Time
	now       func() time.Time
	rand      func(n int) int

	botUserID string
	botName   string
}

// New wires the bot. shutdown is called by the kys command.
func New(cfg Config, db *sql.DB, api *slack.Client, members *roster.Roster, shutdown context.CancelFunc) (*Bot, error) {
	if shutdown == nil {
		shutdown = func() {}
	}
	b := &Bot{
		cfg:       cfg,
		db:        db,
		api:       api,
		roster:    members,
		tba:       tba.NewClient(cfg.TBAAuthKey),
		prompts:   router.NewTracker(),
		groups:    &groupCache{entries: make(map[string]groupEntry)},
		users:     &userCache{},
		channels:  &channelCache{names: make(map[string]string)},
		shutdown:  shutdown,
		startedAt: time.Now(),
		now:       time.Now,
		rand:      rand.Intn,
		botName:   defaultBotName,
	}

	b.passive = &passive.Responder{
		OpenDoorMessage: cfg.AutomatedMessage.OpenDoorMessage,
		BotName:         b.botName,
	}
	if cfg.GreetingsFile != "" {
		greetings, err := passive.LoadGreetings(cfg.GreetingsFile)
		if err != nil {
			log.Printf("greetings load error path=%s: %v", cfg.GreetingsFile, err)
		} else {
			b.passive.Greetings = greetings
			log.Printf("greetings loaded path=%s count=%d", cfg.GreetingsFile, len(greetings))
		}
	} else {
		log.Println("greetings file not configured")
	}

	reg, err := router.NewRegistry(b.commandList()...)
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	b.commands = reg
	return b, nil
}

// Run connects over Socket Mode and handles events until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.identify(ctx); err != nil {
		return err
	}
	client := socketmode.New(b.api)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				switch evt.Type {
				case socketmode.EventTypeConnecting:
					log.Println("Connecting to Slack with Socket Mode...")
				case socketmode.EventTypeConnectionError:
					log.Printf("socket mode connection error: %v", evt.Data)
				case socketmode.EventTypeEventsAPI:
					client.Ack(*evt.Request)
					eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
					if !ok {
						continue
					}
					go b.handleEventsAPI(ctx, eventsAPIEvent)
				}
			}
		}
	}()

	log.Printf("Slack bot connected via Socket Mode as %s (%s)", b.botName, b.botUserID)
	err := client.RunContext(ctx)
	b.prompts.StopAll()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bot) identify(ctx context.Context) error {
	resp, err := b.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	b.botUserID = resp.UserID
	if resp.User != "" {
		b.botName = resp.User
	}
	b.passive.BotName = b.botName
	return nil
}

func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, ev)
	case *slackevents.ReactionAddedEvent:
		b.handleReaction(ev)
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ctx, ev)
	}
}

func (b *Bot) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType != "" || ev.User == "" || ev.User == b.botUserID {
		return
	}
	if ev.ChannelType != "channel" && ev.ChannelType != "group" {
		return
	}
	b.dispatch(ctx, Request{
		ID:        uuid.NewString(),
		UserID:    ev.User,
		ChannelID: ev.Channel,
		Timestamp: ev.TimeStamp,
		Text:      strings.TrimSpace(ev.Text),
	})
}

func (b *Bot) handleMemberJoined(ctx context.Context, ev *slackevents.MemberJoinedChannelEvent) {
	if b.cfg.WelcomeChannelID == "" || ev.Channel != b.cfg.WelcomeChannelID {
		return
	}
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)

	if b.cfg.NewMemberUserGroupID != "" {
		if err := b.setGroupMembership(ctx, b.cfg.NewMemberUserGroupID, ev.User, true); err != nil {
			b.debug(ctx, fmt.Sprintf("Failed to add <@%s> to the new member group: %v", ev.User, err))
		}
	}
	if _, err := b.post(ctx, ev.Channel, slack.MsgOptionText(fmt.Sprintf("Welcome to the workspace, <@%s>! What's your name?", ev.User), false)); err != nil {
		b.debug(ctx, fmt.Sprintf("Failed to welcome member <@%s>: %v", ev.User, err))
	}
}

func (b *Bot) clock() time.Time {
	loc := b.cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return b.now().In(loc)
}

type channelCache struct {
	mu    sync.Mutex
	names map[string]string
}

func (b *Bot) channelName(ctx context.Context, channelID string) string {
	b.channels.mu.Lock()
	defer b.channels.mu.Unlock()

	if name, ok := b.channels.names[channelID]; ok {
		return name
	}
	info, err := b.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		log.Printf("conversation info error channel=%s: %v", channelID, err)
		return ""
	}
	b.channels.names[channelID] = info.Name
	return info.Name
}

func (b *Bot) isSpamChannel(ctx context.Context, channelID string) bool {
	if b.cfg.DebugChannelID != "" && channelID == b.cfg.DebugChannelID {
		return true
	}
	return b.channelName(ctx, channelID) == b.cfg.SpamChannelName
}

var markupPattern = regexp.MustCompile(`<([^<>]*)>`)

var entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// cleanText turns Slack markup into the text a person reads: mentions
// become @names, links become their label or URL.
func cleanText(text, botUserID, botName string) string {
	out := markupPattern.ReplaceAllStringFunc(text, func(m string) string {
		target, label, hasLabel := strings.Cut(m[1:len(m)-1], "|")
		switch {
		case strings.HasPrefix(target, "@"):
			if target[1:] == botUserID && botName != "" {
				return "@" + botName
			}
			if hasLabel {
				return "@" + label
			}
			return target
		case strings.HasPrefix(target, "#"):
			if hasLabel {
				return "#" + label
			}
			return target
		case strings.HasPrefix(target, "!"):
			if hasLabel {
				return label
			}
			return "@" + target[1:]
		case hasLabel:
			return label
		default:
			return target
		}
	})
	return entityReplacer.Replace(out)
}
