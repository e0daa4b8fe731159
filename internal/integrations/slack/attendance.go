package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"clubbot/internal/domain"
	"clubbot/internal/httpx"
	"clubbot/internal/ledger"
	"clubbot/internal/report"
)

const hoursResetMsg = "Everyone's hours have been reset to 0."

var (
	fullNamePattern   = regexp.MustCompile(`^[A-zÀ-ÿ-]+ [A-zÀ-ÿ-]+.*$`)
	isoDatePattern    = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[012])-(0[1-9]|[12][0-9]|3[01])$`)
	subtractPattern   = regexp.MustCompile(`^"([A-Za-z]+ [A-Za-z]+(?: [A-Za-z]+)?)" "((?:0|1|2)?\d):([0-5]\d)"(?: "((?:0|1)?\d/(?:0|1|2|3)?\d)")?$`)
	smartQuotes       = strings.NewReplacer("“", `"`, "”", `"`)
	errSubtractFormat = errors.New("subtraction arguments do not match the expected format")
)

type tableMode int

const (
	tableNone tableMode = iota
	tableInChannel
	tableInDM
)

func (b *Bot) logEnabled(ctx context.Context, req Request) bool {
	if !b.cfg.Options.EnableLogCommand {
		b.send(ctx, req.ChannelID, hoursResetMsg)
		return false
	}
	return true
}

// memberGate nudges toward the spam channel and turns away people the club
// has not identified.
func (b *Bot) memberGate(ctx context.Context, req Request) bool {
	if !b.isSpamChannel(ctx, req.ChannelID) {
		b.reply(ctx, req, fmt.Sprintf("Please use #%s for bot commands next time.", b.cfg.SpamChannelName))
	}
	if b.inGroup(ctx, b.cfg.NewMemberUserGroupID, req.UserID) {
		b.reply(ctx, req, ":detective: You are in the new member group, which means we don't know your name. Set your display name and talk to a board member to be added to the sign in.")
		return false
	}
	if b.inGroup(ctx, b.cfg.OtherTeamUserGroupID, req.UserID) {
		b.reply(ctx, req, ":disguised_face: Only members of our team can use this command.")
		return false
	}
	return b.logEnabled(ctx, req)
}

func (b *Bot) requireAdmin(ctx context.Context, req Request) bool {
	if !b.isAdmin(ctx, req.UserID) {
		b.reply(ctx, req, onlyAdminMsg)
		return false
	}
	return true
}

// targetMember resolves who a log style command is about: the named member,
// or the author when no name is given (self is then true).
func (b *Bot) targetMember(ctx context.Context, req Request) (m Member, self, ok bool) {
	content := strings.TrimSpace(req.Args)
	if content == "" {
		m, ok = b.roster.FindBySlackID(req.UserID)
		if !ok {
			b.send(ctx, req.ChannelID, fmt.Sprintf(":confused: Sorry, I don't know your full name, %s. If you're in the club, talk to a board member and they'll add you to the sign in.", b.nickname(ctx, req.UserID)))
		}
		return m, true, ok
	}
	if !fullNamePattern.MatchString(content) {
		b.send(ctx, req.ChannelID, fmt.Sprintf("\"%s\" should be a full name properly spelled.", content))
		return Member{}, false, false
	}
	m, ok = b.roster.Find(content)
	if !ok {
		b.send(ctx, req.ChannelID, fmt.Sprintf(":confused: Sorry, I can't find \"*%s*\" in the database. If %s is a member, talk to a board member and they'll add it to the sign in.", content, content))
	}
	return m, false, ok
}

func (b *Bot) cmdLog(ctx context.Context, req Request) error {
	if !b.memberGate(ctx, req) {
		return nil
	}
	m, self, ok := b.targetMember(ctx, req)
	if !ok {
		return nil
	}
	mode := tableNone
	switch {
	case self:
		mode = tableInDM
	case b.isAdmin(ctx, req.UserID):
		mode = tableInChannel
	}
	return b.sendMemberLog(ctx, req, m, mode)
}

func (b *Bot) sendMemberLog(ctx context.Context, req Request, m Member, mode tableMode) error {
	memberLog, err := GetMemberLog(b.db, m.Name)
	if err != nil {
		return fmt.Errorf("load log for %s: %w", m.Name, err)
	}
	st := report.Status(m, memberLog, mode != tableNone, b.clock())
	if len(st.Result.Malformed) > 0 {
		log.Printf("log malformed entries member=%s entries=%s", m.Name, strings.Join(st.Result.Malformed, ","))
	}

	summary := st.Summary()
	if st.Result.TotalSeconds <= 0 {
		b.sendBlocks(ctx, req.ChannelID, summary, textSection(summary))
		return nil
	}

	board := "No"
	if m.IsBoard() {
		board = "Yes"
	}
	blocks := append([]slack.Block{textSection(summary)}, fieldBlocks([]field{
		{Title: "Board", Value: board},
		{Title: "Hours needed", Value: st.Remaining()},
		{Title: "Progress", Value: fmt.Sprintf("%d%%", st.Percent)},
	})...)
	b.sendBlocks(ctx, req.ChannelID, summary, blocks...)

	switch mode {
	case tableInChannel:
		b.send(ctx, req.ChannelID, "```"+st.Result.Table+"```")
	case tableInDM:
		if err := b.dm(ctx, req.UserID, "Your log:\n```"+st.Result.Table+"```"); err != nil {
			log.Printf("log dm error user=%s: %v", req.UserID, err)
			b.send(ctx, req.ChannelID, "I tried to send you a DM with your full time log, but there was an error. :unamused: It's possible that you don't allow DMs from me.")
			return nil
		}
		b.send(ctx, req.ChannelID, "Check your DMs. I sent you your full time log.")
	}
	return nil
}

func (b *Bot) cmdPreseasonReqs(ctx context.Context, req Request) error {
	if !b.memberGate(ctx, req) {
		return nil
	}
	m, self, ok := b.targetMember(ctx, req)
	if !ok {
		return nil
	}
	if !self {
		return b.sendRequirements(ctx, req.ChannelID, m, b.isAdmin(ctx, req.UserID))
	}

	dmID, err := b.openDM(ctx, req.UserID)
	if err != nil {
		return err
	}
	if err := b.sendRequirements(ctx, dmID, m, true); err != nil {
		return err
	}
	b.send(ctx, req.ChannelID, "Check your DMs. I sent you your requirements.")
	return nil
}

func (b *Bot) sendRequirements(ctx context.Context, channelID string, m Member, full bool) error {
	reqs, err := GetRequirements(b.db, m.Name)
	if err != nil {
		return fmt.Errorf("load requirements for %s: %w", m.Name, err)
	}
	if len(reqs) == 0 {
		b.send(ctx, channelID, fmt.Sprintf("%s has not done the survey. Find it at %s", m.Name, surveyURL))
		return nil
	}

	st := report.Requirements(reqs)
	if st.Done() {
		text := fmt.Sprintf(":white_check_mark: %s has met all the requirements!", m.Name)
		b.sendBlocks(ctx, channelID, text, textSection(text))
		return nil
	}

	text := fmt.Sprintf(":x: %s has not met %d/%d requirements.", m.Name, len(st.Missing), st.Total())
	blocks := []slack.Block{textSection(text)}
	if full {
		names := make([]string, 0, len(reqs))
		for name := range reqs {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]field, 0, len(names))
		for _, name := range names {
			state := "Unmet"
			if reqs[name] {
				state = "Met"
			}
			fields = append(fields, field{Title: name, Value: state})
		}
		blocks = append(blocks, fieldBlocks(fields)...)
	}
	b.sendBlocks(ctx, channelID, text, blocks...)
	return nil
}

func (b *Bot) cmdTopHours(ctx context.Context, req Request) error {
	if !b.logEnabled(ctx, req) {
		return nil
	}
	arg := strings.ToLower(strings.TrimSpace(req.Args))
	includeBoard := arg == "include-board"
	if !includeBoard && arg != "" {
		b.reply(ctx, req, fmt.Sprintf("Argument `%s` is invalid. Try `%stophours include-board` if you want to include board members", arg, b.cfg.Prefix))
	}

	logs, err := GetAllMemberLogs(b.db)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}
	entries := report.Leaderboard(b.roster.Members(), logs, includeBoard, b.clock())
	b.send(ctx, req.ChannelID, "```\n"+report.FormatLeaderboard(entries)+"```")
	return nil
}

func (b *Bot) cmdTimeStats(ctx context.Context, req Request) error {
	if !b.logEnabled(ctx, req) {
		return nil
	}
	logs, err := GetAllMemberLogs(b.db)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}
	now := b.clock()
	var totals []int64
	for _, m := range b.roster.Members() {
		l, ok := logs[m.Name]
		if !ok || len(l.Meetings) == 0 {
			continue
		}
		totals = append(totals, ledger.Aggregate(l.Meetings, l.Subtract, ledger.Options{Now: now}).TotalSeconds)
	}
	s := report.CohortStats(totals)

	title := "Hours statistics as of " + now.Format(timeLayout)
	blocks := []slack.Block{headerBlock(title)}
	blocks = append(blocks, fieldBlocks([]field{
		{Title: "N", Value: fmt.Sprintf("%d members", s.N)},
		{Title: "Total time", Value: report.FormatHours(s.Total) + " person-hours"},
		{Title: "Median time", Value: report.FormatHours(s.Median) + " hours"},
		{Title: "Mean time", Value: report.FormatHours(s.Mean) + " hours"},
		{Title: "Standard deviation", Value: report.FormatHours(s.StdDev) + " hours"},
	})...)
	blocks = append(blocks, contextBlock("Calculated for "+b.nickname(ctx, req.UserID)))
	b.sendBlocks(ctx, req.ChannelID, title, blocks...)
	return nil
}

func (b *Bot) cmdCorrections(ctx context.Context, req Request) error {
	if !b.requireAdmin(ctx, req) {
		return nil
	}

	var member *Member
	if name := strings.TrimSpace(req.Args); name != "" {
		m, ok := b.roster.Find(name)
		if !ok {
			b.reply(ctx, req, fmt.Sprintf("Sorry, I can't find \"*%s*\" in the database.", name))
			return nil
		}
		member = &m
	}

	all, err := GetCorrections(b.db)
	if err != nil {
		return fmt.Errorf("load corrections: %w", err)
	}
	if len(all) == 0 {
		b.send(ctx, req.ChannelID, "There are no corrections.")
		return nil
	}
	corrections := report.SortCorrections(all)
	if member != nil {
		corrections = report.FilterCorrections(corrections, member.Name)
		if len(corrections) == 0 {
			b.send(ctx, req.ChannelID, fmt.Sprintf("%s has no corrections.", member.Name))
			return nil
		}
	}

	loc := b.clock().Location()
	pages := report.PageCorrections(corrections, report.CorrectionsPerPage)
	for i, page := range pages {
		title := report.PageTitle(i, len(pages))
		blocks := []slack.Block{headerBlock(title)}
		for _, c := range page {
			heading, body := report.CorrectionField(c, loc)
			blocks = append(blocks, textSection(heading+"\n"+body))
		}
		b.sendBlocks(ctx, req.ChannelID, title, blocks...)
	}
	return nil
}

func (b *Bot) cmdSignedInOn(ctx context.Context, req Request) error {
	if !b.logEnabled(ctx, req) || !b.requireAdmin(ctx, req) {
		return nil
	}
	date := strings.TrimSpace(req.Args)
	if date == "" {
		b.reply(ctx, req, "This command requires a parameter date in YYYY-MM-DD format")
		return nil
	}
	if !isoDatePattern.MatchString(date) {
		b.reply(ctx, req, fmt.Sprintf("'%s' is not in YYYY-MM-DD format", date))
		return nil
	}

	present, err := SignedInOn(b.db, date)
	if err != nil {
		return fmt.Errorf("signed in on %s: %w", date, err)
	}
	if len(present) == 0 {
		b.send(ctx, req.ChannelID, fmt.Sprintf("No members signed in on %s.", date))
		return nil
	}
	b.send(ctx, req.ChannelID, strings.Join(present, "\n"))
	return nil
}

func (b *Bot) cmdAttendanceCSV(ctx context.Context, req Request) error {
	if !b.logEnabled(ctx, req) || !b.requireAdmin(ctx, req) {
		return nil
	}
	logs, err := GetAllMemberLogs(b.db)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}
	rows := report.AttendanceRows(b.roster.Members(), logs, b.clock())

	switch strings.ToLower(strings.TrimSpace(req.Args)) {
	case "yes", "true", "y", "file":
		if err := b.upload(ctx, req.ChannelID, "attendance.csv", report.FormatCSV(rows, true)); err != nil {
			b.debug(ctx, fmt.Sprintf("Error creating file attendance.csv: %v", err))
			b.send(ctx, req.ChannelID, "Sorry, there was an error creating the file.")
		}
	default:
		b.sendSplit(ctx, req.ChannelID, report.FormatCSV(rows, false), "", "\n")
	}
	return nil
}

// subtraction is a parsed subtracthours request.
type subtraction struct {
	Name    string
	Hours   int
	Minutes int
	DateArg string
}

func (s subtraction) totalMinutes() int {
	return s.Hours*60 + s.Minutes
}

// clock renders the deduction as stored, H:MM.
func (s subtraction) clock() string {
	return fmt.Sprintf("%d:%02d", s.Hours, s.Minutes)
}

func parseSubtraction(args string) (subtraction, error) {
	m := subtractPattern.FindStringSubmatch(strings.TrimSpace(smartQuotes.Replace(args)))
	if m == nil {
		return subtraction{}, errSubtractFormat
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	return subtraction{Name: m[1], Hours: hours, Minutes: minutes, DateArg: m[4]}, nil
}

// date resolves the optional M/D argument in now's year; without one it is
// today. The result must not be in the future.
func (s subtraction) date(now time.Time) (time.Time, error) {
	if s.DateArg == "" {
		return now, nil
	}
	d, err := time.ParseInLocation("1/2/2006", s.DateArg+"/"+strconv.Itoa(now.Year()), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a valid date in month/date format. %s is an example of a correct date.", s.DateArg, now.Format("1/2"))
	}
	if !now.After(d) {
		return time.Time{}, fmt.Errorf("%s must be in the past. Make sure the date is in M/D format.", s.DateArg)
	}
	return d, nil
}

func (b *Bot) cmdSubtractHours(ctx context.Context, req Request) error {
	if !b.requireAdmin(ctx, req) {
		return nil
	}

	sub, err := parseSubtraction(req.Args)
	if err != nil {
		cmd := b.cfg.Prefix + "subtracthours"
		b.reply(ctx, req, fmt.Sprintf("You need to specify the person's name and the hours to subtract from them, both in quotation marks. E.g.\n```%s \"Full Name\" \"2:55\"``` or if you specify the date to subtract from (in M/D format): ```%s \"Full Name\" \"4:10\" \"1/6\"```", cmd, cmd))
		return nil
	}

	m, ok := b.roster.Find(sub.Name)
	if !ok {
		b.reply(ctx, req, fmt.Sprintf("Sorry, I can't find \"*%s*\" in the database. If %s *is* a member, talk to <@%s> and they'll fix this.", sub.Name, sub.Name, b.cfg.BotCreatorID))
		return nil
	}
	if sub.totalMinutes() >= 24*60 {
		b.reply(ctx, req, fmt.Sprintf("The maximum you can subtract is 23:59 from a person per day. %s is not within the bounds.", sub.clock()))
		return nil
	}
	date, err := sub.date(b.clock())
	if err != nil {
		b.reply(ctx, req, err.Error())
		return nil
	}

	var value *string
	if sub.totalMinutes() > 0 {
		v := sub.clock()
		value = &v
	}
	key := date.Format(domain.DateLayout)
	if err := SetSubtraction(b.db, m.Name, key, value); err != nil {
		return fmt.Errorf("set subtraction %s %s: %w", m.Name, key, err)
	}
	log.Printf("subtraction set member=%s date=%s minutes=%d by=%s request_id=%s", m.Name, key, sub.totalMinutes(), req.UserID, req.ID)

	msg := fmt.Sprintf("*%s* removed %s (=%d minutes) from *%s* for the date %s.", b.nickname(ctx, req.UserID), sub.clock(), sub.totalMinutes(), m.Name, date.Format("Jan 2"))
	b.send(ctx, req.ChannelID, msg)
	b.postHoursLog(ctx, msg)
	return nil
}

// postHoursLog mirrors a subtraction to the hours log webhook.
func (b *Bot) postHoursLog(ctx context.Context, text string) {
	if b.cfg.HoursLogWebhookURL == "" {
		return
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, b.cfg.HoursLogWebhookURL, httpx.Client(), &slack.WebhookMessage{Text: text}); err != nil {
		b.debug(ctx, fmt.Sprintf("Error posting to the hours log webhook: %v", err))
	}
}
