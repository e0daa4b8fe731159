package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"clubbot/internal/integrations/tba"
	"clubbot/internal/report"
	"clubbot/internal/router"
)

const (
	maxEmojis    = 20
	maxPurge     = 100
	surveyURL    = "https://spartabots.org/survey"
	timeLayout   = "Jan 2, 2006 3:04 PM"
	onlyAdminMsg = "Only admins can use this command."
)

var dystopianQuotes = []string{
	"It was a pleasure to burn.",
	"Memory is an illusion, nothing more. It is a fire that needs constant tending.",
	"It's a beautiful thing, the destruction of words.",
	"Ignorance is strength.",
	"We, the Party, control all records, and we control all memories. Then we control the past, do we not?",
	"The most effective way to destroy people is to deny and obliterate their own understanding of their history.",
	"History has stopped. Nothing exists except an endless present in which the Party is always right.",
}

// commandList is the registration order, which also breaks ties between
// equally close names.
func (b *Bot) commandList() []router.Command {
	return []router.Command{
		{Name: "info", Description: "Will give you info about the mentioned member or yourself.",
			Usage: "info <optional mentioned member>", Example: "info", Run: b.cmdInfo},
		{Name: "ping", Description: "Shows the bot's ping response time.",
			Usage: "ping", Example: "ping", Run: b.cmdPing},
		{Name: "when", Description: "Will tell you how much time there is until an event. Argument must be one of these: " + strings.Join(b.cfg.EventNames(), ", ") + ".",
			Usage: "when <optional event name>", Example: "when", Run: b.cmdWhen},
		{Name: "emoji", Description: "Sends an animated emoji. Only works with animated emoji.",
			Usage: fmt.Sprintf("emoji <animated emoji name> <optional number to repeat 1-%d>", maxEmojis), Example: "emoji yeet 5", Run: b.cmdEmoji},
		{Name: "repeat", Description: "Will repeat your message then delete it.",
			Usage: "repeat <text>", Example: "repeat I am a good bot", Hidden: true, Run: b.cmdRepeat},

		{Name: "togglerole", Description: "Will add you to or remove you from a user group. Only works in the #" + b.cfg.SpamChannelName + " channel. The argument must be one of these: " + strings.Join(b.cfg.RoleNames(), ", ") + ".",
			Usage: "togglerole <role name>", Example: "togglerole strategy", Run: b.cmdToggleRole},
		{Name: "tbateam", Description: "Will give you information about the specified FRC team.",
			Usage: fmt.Sprintf("tbateam <team number 1-%d>", tba.MaxTeamNumber), Example: "tbateam 2976", Run: b.cmdTBATeam},

		{Name: "stat", Description: "Shows some information about the bot's process, like memory usage.",
			Usage: "stat", Example: "stat", Run: b.cmdStat},
		{Name: "purge", Description: "Will delete the past _n_ messages. This command can only be used by admins.",
			Usage: fmt.Sprintf("purge <number of messages n where n ∈ ℤ ∩ [1,%d]>", maxPurge), Example: "purge 5", Run: b.cmdPurge},
		{Name: "kys", Description: "Shuts the bot down. Can only be used by the bot creator.",
			Usage: "kys", Example: "kys", Hidden: true, Run: b.cmdKys},

		{Name: "log", Description: "Will send the history of your sign-ins and outs.",
			Usage: "log <optional name of person>", Example: "log", Run: b.cmdLog},
		{Name: "tophours", Description: "Will send a list of the top ten people with the most hours. Use an option to filter for certain members.",
			Usage: "tophours <optional `include-board` argument>", Example: "tophours include-board", Run: b.cmdTopHours},
		{Name: "corrections", Description: "Will list all corrections or corrections from a specific person. Can only be used by admins.",
			Usage: "corrections <optional name of person>", Example: "corrections Firstname Lastname", Hidden: true, Run: b.cmdCorrections},
		{Name: "signedinon", Description: "Will send a list of people signed in the specified date. Only admins can use this command.",
			Usage: "signedinon <date in YYYY-MM-DD format>", Example: "signedinon " + b.clock().Format("2006-01-02"), Hidden: true, Run: b.cmdSignedInOn},
		{Name: "subtracthours", Description: "Will subtract specified time from the person chosen. Can only be used by admins. Subtract 0:00 hours to override the previous subtraction.",
			Usage: `subtracthours "<name of person>" "<time in h:mm format between 0:01 and 23:59>" "<optional date in M/D format>"`, Example: `subtracthours "Firstname Lastname" "3:30"`, Hidden: true, Run: b.cmdSubtractHours},
		{Name: "timestats", Description: "Will calculate some basic stats for everyone's hours.",
			Usage: "timestats", Example: "timestats", Run: b.cmdTimeStats},
		{Name: "attendancecsv", Description: "Will send a CSV of all the hours in the format `name,seconds`. If no argument, outputs as a message. Only admins can use this command.",
			Usage: "attendancecsv <optional argument yes>", Example: "attendancecsv yes", Hidden: true, Run: b.cmdAttendanceCSV},
		{Name: "preseasonreqs", Description: "Will tell you whether you met your preseason requirements.",
			Usage: "preseasonreqs <optional name of person>", Example: "preseasonreqs", Run: b.cmdPreseasonReqs},

		{Name: "help", Description: "That's this command!",
			Usage: "help <optional command>", Example: "help tbateam", Run: b.cmdHelp},
	}
}

func (b *Bot) cmdHelp(ctx context.Context, req Request) error {
	prefix := b.cfg.Prefix
	arg := strings.ToLower(strings.TrimSpace(req.Args))

	if arg == "" {
		title := fmt.Sprintf("%s's Command List", b.botName)
		intro := "I'm a Slack bot"
		if b.cfg.BotCreatorID != "" {
			intro += fmt.Sprintf(" made by <@%s>", b.cfg.BotCreatorID)
		}
		intro += "!"
		if repo := b.cfg.GitHubRepo; repo != "" {
			intro += fmt.Sprintf(" You can find my source code on my <https://github.com/%s|GitHub repo>.", repo)
		}
		intro += " Here's a list of my commands (there are a few hidden ones)."

		blocks := []slack.Block{headerBlock(title), textSection(intro), slack.NewDividerBlock()}
		for _, c := range b.commands.Visible() {
			blocks = append(blocks, textSection(fmt.Sprintf("*%s%s*\n%s\n_Example_: `%s%s`", prefix, c.Usage, c.Description, prefix, c.Example)))
		}
		blocks = append(blocks, contextBlock(fmt.Sprintf("%shelp requested by %s", prefix, b.nickname(ctx, req.UserID))))
		b.sendBlocks(ctx, req.ChannelID, title, blocks...)
		return nil
	}

	m := b.commands.Match(prefix, prefix+arg)
	if !m.Matched() || m.Confidence < router.HelpLookupMinimum {
		b.send(ctx, req.ChannelID, fmt.Sprintf("Command %s%s does not exist. Try `%shelp` for a list of commands.", prefix, arg, prefix))
		return nil
	}
	c := m.Command
	title := "Command: " + prefix + c.Name
	blocks := append([]slack.Block{headerBlock(title)}, fieldBlocks([]field{
		{Title: "Usage", Value: prefix + c.Usage},
		{Title: "Description", Value: c.Description},
		{Title: "Example", Value: prefix + c.Example},
	})...)
	b.sendBlocks(ctx, req.ChannelID, title, blocks...)
	return nil
}

func (b *Bot) cmdInfo(ctx context.Context, req Request) error {
	target := req.UserID
	if arg := strings.TrimSpace(req.Args); arg != "" {
		u, ok, err := b.resolveUser(ctx, arg)
		if err != nil {
			return fmt.Errorf("resolve user %q: %w", arg, err)
		}
		if !ok {
			b.send(ctx, req.ChannelID, fmt.Sprintf("I don't think \"%s\" is a mentioned user or a username. To mention someone, type @, then select their name. If you want your own info, do just `%sinfo`.", arg, b.cfg.Prefix))
			return nil
		}
		target = u.ID
	}

	user, err := b.api.GetUserInfoContext(ctx, target)
	if err != nil {
		return fmt.Errorf("get user info %s: %w", target, err)
	}
	status := "unknown"
	if p, err := b.api.GetUserPresenceContext(ctx, target); err != nil {
		log.Printf("user presence error user=%s: %v", target, err)
	} else {
		status = presenceLabel(p.Presence)
	}
	statusText := strings.TrimSpace(user.Profile.StatusEmoji + " " + user.Profile.StatusText)

	fields := []field{
		{Title: "Display name", Value: orNone(displayName(*user))},
		{Title: "ID", Value: user.ID},
		{Title: "Status", Value: status},
		{Title: "Status text", Value: orNone(statusText)},
		{Title: "Title", Value: orNone(user.Profile.Title)},
		{Title: "Time zone", Value: orNone(user.TZLabel)},
		{Title: "Account type", Value: accountType(*user)},
	}
	if member, ok := b.roster.FindBySlackID(user.ID); ok {
		fields = append(fields, field{Title: "Club member", Value: member.Name})
	}
	heading := fmt.Sprintf("*%s* (@%s)", orNone(user.RealName), user.Name)
	blocks := append([]slack.Block{textSection(heading)}, fieldBlocks(fields)...)
	b.sendBlocks(ctx, req.ChannelID, heading, blocks...)
	return nil
}

func presenceLabel(presence string) string {
	switch presence {
	case "active":
		return "Online"
	case "away":
		return "Away"
	default:
		return presence
	}
}

func accountType(u slack.User) string {
	switch {
	case u.IsBot:
		return "Bot"
	case u.IsOwner, u.IsPrimaryOwner:
		return "Owner"
	case u.IsAdmin:
		return "Admin"
	case u.IsRestricted, u.IsUltraRestricted:
		return "Guest"
	default:
		return "Member"
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_none_"
	}
	return s
}

func (b *Bot) cmdPing(ctx context.Context, req Request) error {
	start := time.Now()
	if _, err := b.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("auth test: %w", err)
	}
	ms := time.Since(start).Milliseconds()
	b.send(ctx, req.ChannelID, fmt.Sprintf("%s %d ms", latencyIndicator(ms), ms))
	return nil
}

func latencyIndicator(ms int64) string {
	switch {
	case ms < 50:
		return ":large_green_circle:"
	case ms < 100:
		return ":large_yellow_circle:"
	default:
		return ":red_circle:"
	}
}

func (b *Bot) cmdWhen(ctx context.Context, req Request) error {
	names := b.cfg.EventNames()
	if len(names) == 0 {
		b.send(ctx, req.ChannelID, "No events are configured.")
		return nil
	}
	list := italicList(names)

	arg := strings.ToLower(strings.TrimSpace(req.Args))
	if arg == "" {
		b.send(ctx, req.ChannelID, fmt.Sprintf("(By the way, you can specify a single event from this list: %s)", list))
		b.sendEvents(ctx, req.ChannelID, names)
		return nil
	}
	if _, ok := b.cfg.Events[arg]; !ok {
		b.send(ctx, req.ChannelID, fmt.Sprintf("Sorry, I don't know when that event is. Maybe you mean something in this list: %s.", list))
		return nil
	}
	b.sendEvents(ctx, req.ChannelID, []string{arg})
	return nil
}

func (b *Bot) sendEvents(ctx context.Context, channelID string, names []string) {
	now := b.clock()
	var blocks []slack.Block
	var fallback []string
	for _, name := range names {
		cd, err := report.TimeUntil(b.cfg.Events[name], now)
		if err != nil {
			log.Printf("event countdown error event=%s: %v", name, err)
			continue
		}
		blocks = append(blocks, textSection("*"+cd.Label+"*\n"+cd.String()))
		fallback = append(fallback, cd.Label)
	}
	if len(blocks) == 0 {
		return
	}
	b.sendBlocks(ctx, channelID, strings.Join(fallback, ", "), blocks...)
}

func (b *Bot) cmdEmoji(ctx context.Context, req Request) error {
	emojis, err := b.api.GetEmojiContext(ctx)
	if err != nil {
		return fmt.Errorf("list emoji: %w", err)
	}
	animated := animatedEmojis(emojis)

	words := strings.Fields(req.Args)
	if len(words) > 0 && slices.Contains(animated, words[0]) {
		b.deleteMessage(ctx, req.ChannelID, req.Timestamp)
		n := 1
		if len(words) > 1 {
			if v, err := strconv.Atoi(words[1]); err == nil && v >= 1 && v <= maxEmojis {
				n = v
			}
		}
		b.send(ctx, req.ChannelID, strings.Repeat(":"+words[0]+":", n))
		return nil
	}

	if len(animated) == 0 {
		b.send(ctx, req.ChannelID, "There are no animated emojis in this workspace.")
		return nil
	}
	shown := make([]string, len(animated))
	for i, name := range animated {
		shown[i] = ":" + name + ":"
	}
	pick := animated[b.rand(len(animated))]
	b.send(ctx, req.ChannelID, fmt.Sprintf("Animated emojis you can use are: %s. Try `%semoji %s`", strings.Join(shown, " "), b.cfg.Prefix, pick))
	return nil
}

// animatedEmojis returns the sorted names of custom emoji served as GIFs.
func animatedEmojis(emojis map[string]string) []string {
	var names []string
	for name, url := range emojis {
		if strings.HasSuffix(strings.ToLower(url), ".gif") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (b *Bot) cmdRepeat(ctx context.Context, req Request) error {
	if req.Args == "" {
		return nil
	}
	b.send(ctx, req.ChannelID, req.Args)
	b.deleteMessage(ctx, req.ChannelID, req.Timestamp)
	return nil
}

func (b *Bot) cmdToggleRole(ctx context.Context, req Request) error {
	list := italicList(b.cfg.RoleNames())

	if !b.isSpamChannel(ctx, req.ChannelID) {
		b.reply(ctx, req, fmt.Sprintf("Use #%s for bot commands.", b.cfg.SpamChannelName))
		return nil
	}
	if req.Args == "" {
		b.send(ctx, req.ChannelID, fmt.Sprintf("These are the roles you can toggle: %s.", list))
		return nil
	}

	role := strings.ToLower(strings.TrimSpace(req.Args))
	groupID, ok := b.cfg.ToggleableRoles[role]
	if !ok {
		b.send(ctx, req.ChannelID, fmt.Sprintf("\"%s\" isn't a toggleable role. You can toggle these roles: %s.", req.Args, list))
		return nil
	}

	if b.inGroup(ctx, groupID, req.UserID) {
		if err := b.setGroupMembership(ctx, groupID, req.UserID, false); err != nil {
			b.debug(ctx, fmt.Sprintf("Error: could not remove %s from the role %s. Error: %v", b.nickname(ctx, req.UserID), role, err))
			b.send(ctx, req.ChannelID, "Sorry, there was an error trying to remove you from the role.")
			return nil
		}
		b.send(ctx, req.ChannelID, fmt.Sprintf("Removed %s.", role))
		return nil
	}

	if b.isNewcomer(ctx, req.UserID) {
		b.send(ctx, req.ChannelID, fmt.Sprintf("You have to be a member of our club to use %stogglerole. Ask someone on the board to give you any roles.", b.cfg.Prefix))
		return nil
	}
	if err := b.setGroupMembership(ctx, groupID, req.UserID, true); err != nil {
		b.debug(ctx, fmt.Sprintf("Error: could not give %s the role %s. Error: %v", b.nickname(ctx, req.UserID), role, err))
		b.send(ctx, req.ChannelID, "Sorry, there was an error trying to give you the role.")
		return nil
	}
	b.send(ctx, req.ChannelID, fmt.Sprintf("Gave you %s.", role))
	return nil
}

func (b *Bot) cmdTBATeam(ctx context.Context, req Request) error {
	arg := strings.TrimSpace(req.Args)
	if arg == "" {
		b.send(ctx, req.ChannelID, fmt.Sprintf("You need to specify a team number (1-%d).", tba.MaxTeamNumber))
		return nil
	}
	number, err := tba.ParseTeamNumber(arg)
	if err != nil {
		b.send(ctx, req.ChannelID, err.Error()+".")
		return nil
	}

	profile, err := b.tba.Profile(ctx, number)
	if errors.Is(err, tba.ErrTeamNotFound) {
		b.send(ctx, req.ChannelID, fmt.Sprintf("Team %d doesn't exist. This is because FRC leaves some numbers unassigned.", number))
		return nil
	}
	if err != nil {
		b.debug(ctx, fmt.Sprintf("Something went wrong with using TBA's API.\nError: %v", err))
		b.send(ctx, req.ChannelID, "Sorry, I couldn't reach The Blue Alliance right now.")
		return nil
	}

	card := tba.FormatTeam(profile)
	blocks := []slack.Block{textSection(fmt.Sprintf("*<%s|%s>*", card.URL, card.Title))}
	var short []field
	var long []slack.Block
	for _, f := range card.Fields {
		if f.Short {
			short = append(short, field{Title: f.Title, Value: f.Value})
		} else {
			long = append(long, textSection("*"+f.Title+"*\n"+f.Value))
		}
	}
	blocks = append(blocks, fieldBlocks(short)...)
	blocks = append(blocks, long...)
	blocks = append(blocks, contextBlock(fmt.Sprintf("Requested by %s", b.nickname(ctx, req.UserID))))
	b.sendBlocks(ctx, req.ChannelID, card.Title, blocks...)
	return nil
}

func (b *Bot) cmdStat(ctx context.Context, req Request) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fields := []field{
		{Title: "Goroutines", Value: strconv.Itoa(runtime.NumGoroutine())},
		{Title: "Heap in use", Value: toMB(mem.HeapInuse)},
		{Title: "Heap allocated", Value: toMB(mem.HeapAlloc)},
		{Title: "Memory from OS", Value: toMB(mem.Sys)},
		{Title: "GC cycles", Value: strconv.FormatUint(uint64(mem.NumGC), 10)},
		{Title: "PID", Value: strconv.Itoa(os.Getpid())},
		{Title: "Go version", Value: runtime.Version()},
		{Title: "CPU arch", Value: runtime.GOARCH},
		{Title: "Platform", Value: runtime.GOOS},
		{Title: "Cores (logical)", Value: strconv.Itoa(runtime.NumCPU())},
		{Title: "Process uptime", Value: fmt.Sprintf("%d sec", int64(time.Since(b.startedAt).Seconds()))},
		{Title: "Open prompts", Value: strconv.Itoa(b.prompts.Len())},
		{Title: "Members loaded", Value: strconv.Itoa(len(b.roster.Members()))},
	}
	b.sendBlocks(ctx, req.ChannelID, "Process stats", fieldBlocks(fields)...)
	return nil
}

func toMB(bytes uint64) string {
	mb := math.Round(float64(bytes)*100/1024/1024) / 100
	return strconv.FormatFloat(mb, 'f', -1, 64) + " MB"
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

func (b *Bot) cmdPurge(ctx context.Context, req Request) error {
	b.debug(ctx, fmt.Sprintf("<@%s> attempted to delete messages in <#%s> with command: %s", req.UserID, req.ChannelID, req.Text))

	if !b.isAdmin(ctx, req.UserID) {
		b.send(ctx, req.ChannelID, "Sorry, but not everyone can be a dictator.")
		return nil
	}
	if b.cfg.Options.RestrictPurgeToBotCreator && !b.cfg.IsBotCreator(req.UserID) {
		b.send(ctx, req.ChannelID, "Sorry, but not everyone should be a dictator.")
		return nil
	}
	if req.Args == "" {
		b.send(ctx, req.ChannelID, "Number of messages to purge was not specified. No messages will be cleared.")
		return nil
	}

	n, err := strconv.Atoi(leadingInt.FindString(req.Args))
	if err != nil || n < 1 || n > maxPurge {
		b.send(ctx, req.ChannelID, fmt.Sprintf("%s is not an integer between 1-%d. No messages will be cleared.", req.Args, maxPurge))
		return nil
	}

	history, err := b.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{ChannelID: req.ChannelID, Limit: n})
	if err != nil {
		return fmt.Errorf("conversation history %s: %w", req.ChannelID, err)
	}
	for _, msg := range history.Messages {
		b.deleteMessage(ctx, req.ChannelID, msg.Timestamp)
	}

	b.send(ctx, req.ChannelID, fmt.Sprintf("*%s deleted %d messages.*", b.nickname(ctx, req.UserID), n))
	b.send(ctx, req.ChannelID, fmt.Sprintf("_\"%s\"_", dystopianQuotes[b.rand(len(dystopianQuotes))]))
	return nil
}

func (b *Bot) cmdKys(ctx context.Context, req Request) error {
	if !b.cfg.IsBotCreator(req.UserID) {
		b.send(ctx, req.ChannelID, ":angry: :regional_indicator_n: :o2: :rage:")
		return nil
	}
	b.send(ctx, req.ChannelID, ":scream: Shutting down :skull:")
	b.debug(ctx, fmt.Sprintf("Shutdown on %s by %s.", b.clock().Format(timeLayout), b.nickname(ctx, req.UserID)))
	b.shutdown()
	return nil
}
