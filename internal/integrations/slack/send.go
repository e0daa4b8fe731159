package slackbot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	maxMessageLength = 2000
	chunkSuffix      = "…"
	chunkSplitOn     = " \n"
	maxSectionFields = 10
)

// chunkText splits text into pieces of at most maxLen runes. Every piece but
// the last ends with suffix. A split lands on a rune from splitOn when one
// occurs in the last quarter of the window; that rune starts the next piece.
func chunkText(text string, maxLen int, suffix, splitOn string) []string {
	runes := []rune(text)
	if maxLen <= 0 {
		return []string{text}
	}
	suffixLen := utf8.RuneCountInString(suffix)
	var out []string
	for len(runes) > maxLen {
		end := chunkEnd(runes, maxLen, suffixLen, splitOn)
		out = append(out, string(runes[:end])+suffix)
		runes = runes[end:]
	}
	return append(out, string(runes))
}

func chunkEnd(runes []rune, maxLen, suffixLen int, splitOn string) int {
	end := maxLen - suffixLen
	if end <= 0 {
		return maxLen
	}
	for i := end; i > maxLen*3/4 && i > 0; i-- {
		if strings.ContainsRune(splitOn, runes[i]) {
			return i
		}
	}
	return end
}

// send posts text in as many messages as it takes and returns the
// timestamp of the last one.
func (b *Bot) send(ctx context.Context, channelID, text string) string {
	return b.sendSplit(ctx, channelID, text, chunkSuffix, chunkSplitOn)
}

// reply threads text under the request's message.
func (b *Bot) reply(ctx context.Context, req Request, text string) {
	b.sendSplit(ctx, req.ChannelID, text, chunkSuffix, chunkSplitOn, slack.MsgOptionTS(req.Timestamp))
}

func (b *Bot) sendSplit(ctx context.Context, channelID, text, suffix, splitOn string, opts ...slack.MsgOption) string {
	var ts string
	for _, chunk := range chunkText(text, maxMessageLength, suffix, splitOn) {
		if chunk == "" {
			continue
		}
		msgOpts := append([]slack.MsgOption{slack.MsgOptionText(chunk, false)}, opts...)
		sent, err := b.post(ctx, channelID, msgOpts...)
		if err != nil {
			return ts
		}
		ts = sent
	}
	return ts
}

func (b *Bot) post(ctx context.Context, channelID string, opts ...slack.MsgOption) (string, error) {
	_, ts, err := b.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		log.Printf("post message error channel=%s: %v", channelID, err)
		return "", err
	}
	return ts, nil
}

// sendBlocks posts a Block Kit message. fallback is shown in notifications.
func (b *Bot) sendBlocks(ctx context.Context, channelID, fallback string, blocks ...slack.Block) {
	_, _ = b.post(ctx, channelID, slack.MsgOptionText(fallback, false), slack.MsgOptionBlocks(blocks...))
}

func (b *Bot) edit(ctx context.Context, channelID, ts, text string) {
	if _, _, _, err := b.api.UpdateMessageContext(ctx, channelID, ts, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("update message error channel=%s ts=%s: %v", channelID, ts, err)
	}
}

func (b *Bot) deleteMessage(ctx context.Context, channelID, ts string) {
	if _, _, err := b.api.DeleteMessageContext(ctx, channelID, ts); err != nil {
		log.Printf("delete message error channel=%s ts=%s: %v", channelID, ts, err)
	}
}

func (b *Bot) openDM(ctx context.Context, userID string) (string, error) {
	ch, _, _, err := b.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return "", fmt.Errorf("open dm with %s: %w", userID, err)
	}
	return ch.ID, nil
}

func (b *Bot) dm(ctx context.Context, userID, text string) error {
	channelID, err := b.openDM(ctx, userID)
	if err != nil {
		return err
	}
	for _, chunk := range chunkText(text, maxMessageLength, chunkSuffix, chunkSplitOn) {
		if _, _, err := b.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(chunk, false)); err != nil {
			return fmt.Errorf("post dm to %s: %w", userID, err)
		}
	}
	return nil
}

func (b *Bot) upload(ctx context.Context, channelID, filename, content string) error {
	_, err := b.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:  channelID,
		Content:  content,
		FileSize: len(content),
		Filename: filename,
		Title:    filename,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", filename, err)
	}
	return nil
}

// debug logs text and echoes it to the debug channel when one is set.
func (b *Bot) debug(ctx context.Context, text string) {
	if text == "" {
		text = "<empty string ''>"
	}
	log.Printf("debug: %s", text)
	if b.cfg.DebugChannelID != "" {
		b.send(ctx, b.cfg.DebugChannelID, text)
	}
}

type field struct {
	Title string
	Value string
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func textSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(markdown(text), nil, nil)
}

func headerBlock(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, false, false))
}

func contextBlock(text string) *slack.ContextBlock {
	return slack.NewContextBlock("", markdown(text))
}

// fieldBlocks lays fields out two per row, ten per section.
func fieldBlocks(fields []field) []slack.Block {
	var blocks []slack.Block
	for start := 0; start < len(fields); start += maxSectionFields {
		end := min(start+maxSectionFields, len(fields))
		objs := make([]*slack.TextBlockObject, 0, end-start)
		for _, f := range fields[start:end] {
			objs = append(objs, markdown("*"+f.Title+"*\n"+f.Value))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, objs, nil))
	}
	return blocks
}

// italicList renders names as "_a_, _b_".
func italicList(names []string) string {
	if len(names) == 0 {
		return "_none_"
	}
	return "_" + strings.Join(names, "_, _") + "_"
}
