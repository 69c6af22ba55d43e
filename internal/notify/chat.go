package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

const maxRetries = 3

// slackPoster is the part of the Slack client the sink uses.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackSink posts events to a Slack channel as attachments.
type SlackSink struct {
	client    slackPoster
	channelID string
}

func NewSlackSink(token, channelID string) *SlackSink {
	return &SlackSink{client: slackapi.New(token), channelID: channelID}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, evt Event) error {
	att := slackapi.Attachment{
		Title:    evt.Title,
		Text:     evt.Body,
		Color:    evt.Color(),
		Fallback: evt.Title,
	}
	for _, k := range sortedKeys(evt.Fields) {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: k, Value: evt.Fields[k], Short: true})
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, err := s.client.PostMessageContext(ctx, s.channelID,
			slackapi.MsgOptionText(evt.Title, false),
			slackapi.MsgOptionAttachments(att))
		return err
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// discordSender is the part of the Discord session the sink uses.
type discordSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts events to a Discord channel as embeds over the REST API.
type DiscordSink struct {
	sess      discordSender
	channelID string
}

func NewDiscordSink(token, channelID string) (*DiscordSink, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &DiscordSink{sess: dg, channelID: channelID}, nil
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, evt Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       parseHexColor(evt.Color()),
		Timestamp:   evt.At.Format(time.RFC3339),
	}
	for _, k := range sortedKeys(evt.Fields) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: k, Value: evt.Fields[k], Inline: true})
	}
	if _, err := s.sess.ChannelMessageSendEmbed(s.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	return nil
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
