package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []Event
}

func (r *recordSink) Name() string { return r.name }

func (r *recordSink) Send(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, evt)
	return r.err
}

func TestDispatcher_FansOut(t *testing.T) {
	ok := &recordSink{name: "ok"}
	failing := &recordSink{name: "failing", err: errors.New("boom")}
	d := NewDispatcher(ok, failing)

	d.Notify(Event{Kind: KindPublished, PlanID: 3, Title: "Plan 3 published"})
	d.Wait()

	require.Len(t, ok.got, 1)
	require.Len(t, failing.got, 1)
	assert.Equal(t, SeverityInfo, ok.got[0].Severity)
	assert.False(t, ok.got[0].At.IsZero())
	require.NoError(t, d.Close())
}

func TestDispatcher_Nil(t *testing.T) {
	var d *Dispatcher
	d.Notify(Event{Kind: KindPublished})
	d.Wait()
	assert.NoError(t, d.Close())
}

func TestEvent_Color(t *testing.T) {
	assert.Equal(t, "#d9534f", Event{Severity: SeverityError}.Color())
	assert.Equal(t, "#f0ad4e", Event{Severity: SeverityWarning}.Color())
	assert.Equal(t, "#36a64f", Event{}.Color())
	assert.Equal(t, 0x36a64f, parseHexColor("#36a64f"))
	assert.Equal(t, 0, parseHexColor("zz"))
}

type fakeSlack struct {
	calls   int
	failFor int
	channel string
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	if f.calls <= f.failFor {
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	return channelID, "1.0", nil
}

func TestSlackSink_RetriesRateLimit(t *testing.T) {
	fake := &fakeSlack{failFor: 2}
	s := &SlackSink{client: fake, channelID: "C1"}

	err := s.Send(context.Background(), Event{Title: "scan", Fields: map[string]string{"errors": "2"}})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "C1", fake.channel)

	fake = &fakeSlack{failFor: 10}
	s.client = fake
	err = s.Send(context.Background(), Event{Title: "scan"})
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, fake.calls)
}

type fakeDiscord struct {
	channel string
	embed   *discordgo.MessageEmbed
}

func (f *fakeDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.embed = embed
	return &discordgo.Message{}, nil
}

func TestDiscordSink_Embed(t *testing.T) {
	fake := &fakeDiscord{}
	s := &DiscordSink{sess: fake, channelID: "D1"}

	err := s.Send(context.Background(), Event{
		Title:    "Plan 1 has errors",
		Severity: SeverityError,
		Fields:   map[string]string{"warnings": "1", "errors": "4"},
	})
	require.NoError(t, err)
	assert.Equal(t, "D1", fake.channel)
	assert.Equal(t, 0xd9534f, fake.embed.Color)
	require.Len(t, fake.embed.Fields, 2)
	assert.Equal(t, "errors", fake.embed.Fields[0].Name)
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return nil
}

func TestNATSSink_Publish(t *testing.T) {
	fake := &fakePublisher{}
	s := &NATSSink{conn: fake, subject: "drydock.events"}

	require.NoError(t, s.Send(context.Background(), Event{Kind: KindRestored, PlanID: 9, Title: "restored"}))
	assert.Equal(t, "drydock.events.plan.restored", fake.subject)

	var got Event
	require.NoError(t, json.Unmarshal(fake.data, &got))
	assert.Equal(t, uint(9), got.PlanID)
	assert.NoError(t, s.Close())
}
