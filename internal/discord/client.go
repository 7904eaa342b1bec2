package discord

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// Intents the relay needs: guild channel metadata, guild and private messages with content.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// NewSession builds a gateway session. The library state cache is disabled; the mirror
// is fed from the dispatcher instead.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = Intents
	session.StateEnabled = false
	session.SyncEvents = true
	return session, nil
}

// Client performs remote operations over the REST API.
type Client struct {
	session     *discordgo.Session
	lastLatency atomic.Int64
}

// NewClient wraps a session.
func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// CreateTicketChannel creates a text channel under parentID.
func (c *Client) CreateTicketChannel(ctx context.Context, guildID, parentID, name, topic string) (domain.Channel, error) {
	ch, err := c.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    topic,
		ParentID: parentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Channel{}, remoteError("create channel", err)
	}
	return domain.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Name:     ch.Name,
		Topic:    ch.Topic,
		Kind:     domain.ChannelKindGuildText,
	}, nil
}

// OpenPrivateChannel returns the private conversation with userID.
func (c *Client) OpenPrivateChannel(ctx context.Context, userID string) (string, error) {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", remoteError("open private channel", err)
	}
	return ch.ID, nil
}

// SendEnvelope posts envelope as an embed.
func (c *Client) SendEnvelope(ctx context.Context, channelID string, envelope domain.OutboundEnvelope) error {
	if _, err := c.session.ChannelMessageSendEmbed(channelID, ToEmbed(envelope), discordgo.WithContext(ctx)); err != nil {
		return remoteError("send message", err)
	}
	return nil
}

// DeleteChannel deletes a channel.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return remoteError("delete channel", err)
	}
	return nil
}

// RemoveMember kicks userID from guildID.
func (c *Client) RemoveMember(ctx context.Context, guildID, userID string) error {
	if err := c.session.GuildMemberDelete(guildID, userID, discordgo.WithContext(ctx)); err != nil {
		return remoteError("remove member", err)
	}
	return nil
}

// BanMember bans userID from guildID without deleting message history.
func (c *Client) BanMember(ctx context.Context, guildID, userID string) error {
	if err := c.session.GuildBanCreate(guildID, userID, 0, discordgo.WithContext(ctx)); err != nil {
		return remoteError("ban member", err)
	}
	return nil
}

// Respond sends the initial response to an invocation.
func (c *Client) Respond(ctx context.Context, inv domain.CommandInvocation, resp domain.InteractionResponse) error {
	err := c.session.InteractionRespond(interaction(inv), &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(resp),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return remoteError("respond", err)
	}
	return nil
}

// Defer acknowledges an invocation whose result follows later.
func (c *Client) Defer(ctx context.Context, inv domain.CommandInvocation) error {
	err := c.session.InteractionRespond(interaction(inv), &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return remoteError("defer", err)
	}
	return nil
}

// FollowUp sends a follow-up message to a deferred invocation.
func (c *Client) FollowUp(ctx context.Context, inv domain.CommandInvocation, resp domain.InteractionResponse) error {
	data := responseData(resp)
	_, err := c.session.FollowupMessageCreate(interaction(inv), true, &discordgo.WebhookParams{
		Content: data.Content,
		Embeds:  data.Embeds,
		Flags:   data.Flags,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return remoteError("follow up", err)
	}
	return nil
}

// Latency reports the last completed heartbeat round trip. While a heartbeat awaits its
// ack the session reports a negative value; the previous round trip is returned instead.
func (c *Client) Latency() time.Duration {
	if d := c.session.HeartbeatLatency(); d >= 0 {
		c.lastLatency.Store(int64(d))
		return d
	}
	return time.Duration(c.lastLatency.Load())
}

// RegisterCommands replaces the global command set of the application.
func (c *Client) RegisterCommands(ctx context.Context) ([]*discordgo.ApplicationCommand, error) {
	// Application takes no request options in discordgo v0.28
	app, err := c.session.Application("@me")
	if err != nil {
		return nil, remoteError("fetch application", err)
	}
	registered, err := c.session.ApplicationCommandBulkOverwrite(app.ID, "", CommandDefinitions(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteError("register commands", err)
	}
	return registered, nil
}

func interaction(inv domain.CommandInvocation) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:    inv.InteractionID,
		AppID: inv.AppID,
		Token: inv.Token,
	}
}

func responseData(resp domain.InteractionResponse) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{Content: resp.Content}
	if resp.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{ToEmbed(*resp.Embed)}
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// remoteError classifies a REST failure by HTTP status. Failures without a response
// are treated as unavailability.
func remoteError(op string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return apperrors.NewRemoteError(op, restErr.Response.StatusCode, err)
	}
	return apperrors.NewRemoteError(op, http.StatusServiceUnavailable, err)
}
