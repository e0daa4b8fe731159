package slackbot

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"clubbot/internal/passive"
	"clubbot/internal/router"
)

// dispatch runs an exact command, proposes a near miss, or falls through to
// the passive responses.
func (b *Bot) dispatch(ctx context.Context, req Request) {
	m := b.commands.Match(b.cfg.Prefix, req.Text)
	switch m.Tier() {
	case router.TierExecute:
		b.execute(ctx, m.Command, req)
	case router.TierConfirm:
		log.Printf("command proposed name=%s confidence=%.2f user=%s request_id=%s", m.Command.Name, m.Confidence, req.UserID, req.ID)
		b.propose(ctx, m.Command, req)
	default:
		b.respondPassively(ctx, req)
	}
}

func (b *Bot) execute(ctx context.Context, cmd *router.Command, req Request) {
	req.Args = router.Args(req.Text)
	log.Printf("command name=%s user=%s channel=%s request_id=%s", cmd.Name, req.UserID, req.ChannelID, req.ID)
	if err := cmd.Run(ctx, req); err != nil {
		log.Printf("command error name=%s request_id=%s: %v", cmd.Name, req.ID, err)
		b.debug(ctx, fmt.Sprintf("Error running %s%s for <@%s>: %v", b.cfg.Prefix, cmd.Name, req.UserID, err))
		b.send(ctx, req.ChannelID, "Sorry, something went wrong running that command.")
	}
}

// propose asks the author to confirm the closest command with a reaction.
func (b *Bot) propose(ctx context.Context, cmd *router.Command, req Request) {
	name := b.cfg.Prefix + cmd.Name
	ts, err := b.post(ctx, req.ChannelID, slack.MsgOptionText(
		fmt.Sprintf(":question: Did you mean to use *%s*? React with :%s: if you did.", name, confirmReaction), false))
	if err != nil {
		return
	}
	item := slack.NewRefToMessage(req.ChannelID, ts)
	if err := b.api.AddReactionContext(ctx, confirmReaction, item); err != nil {
		log.Printf("add reaction error channel=%s ts=%s: %v", req.ChannelID, ts, err)
	}

	unreact := func() {
		if err := b.api.RemoveReactionContext(ctx, confirmReaction, item); err != nil {
			log.Printf("remove reaction error channel=%s ts=%s: %v", req.ChannelID, ts, err)
		}
	}
	prompt := router.NewPrompt(req.UserID, confirmReaction, b.cfg.ConfirmTimeout(),
		func() {
			unreact()
			b.edit(ctx, req.ChannelID, ts, fmt.Sprintf("Corrected to *%s*.", name))
			b.execute(ctx, cmd, req)
		},
		func() {
			unreact()
			b.edit(ctx, req.ChannelID, ts, fmt.Sprintf(":question: Did you mean to use *%s*?", name))
			log.Printf("command prompt expired name=%s request_id=%s", cmd.Name, req.ID)
		},
	)
	b.prompts.Add(router.PromptKey(req.ChannelID, ts), prompt)
}

func (b *Bot) handleReaction(ev *slackevents.ReactionAddedEvent) {
	if ev.Item.Type != "message" || ev.User == b.botUserID {
		return
	}
	if b.prompts.React(router.PromptKey(ev.Item.Channel, ev.Item.Timestamp), ev.User, ev.Reaction) {
		log.Printf("command prompt confirmed user=%s channel=%s", ev.User, ev.Item.Channel)
	}
}

func (b *Bot) respondPassively(ctx context.Context, req Request) {
	in := passive.Input{
		Text:        cleanText(req.Text, b.botUserID, b.botName),
		ChannelName: b.channelName(ctx, req.ChannelID),
		AuthorName:  b.nickname(ctx, req.UserID),
	}
	for _, resp := range b.passive.Respond(in) {
		if resp.Reply {
			b.reply(ctx, req, resp.Text)
		} else {
			b.send(ctx, req.ChannelID, resp.Text)
		}
	}
}
