// Package discord adapts the discordgo gateway and REST client to the relay's domain types.
package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
)

// ToUser converts a platform user. The display name prefers the global name.
func ToUser(u *discordgo.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	var avatar string
	if u.Avatar != "" {
		avatar = discordgo.EndpointUserAvatar(u.ID, u.Avatar)
	}
	return domain.User{
		ID:        u.ID,
		Name:      name,
		AvatarURL: avatar,
		Bot:       u.Bot,
	}
}

// ToChannel converts guild and private channel metadata.
func ToChannel(ch *discordgo.Channel) domain.Channel {
	return domain.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Name:     ch.Name,
		Topic:    ch.Topic,
		Kind:     channelKind(ch.Type),
	}
}

func channelKind(t discordgo.ChannelType) domain.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return domain.ChannelKindGuildText
	case discordgo.ChannelTypeGuildCategory:
		return domain.ChannelKindGuildCategory
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		return domain.ChannelKindPrivate
	default:
		return domain.ChannelKindOther
	}
}

// ToInboundMessage converts a created message.
func ToInboundMessage(m *discordgo.Message) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    ToUser(m.Author),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
		})
	}
	return msg
}

// ToInvocation converts an application command interaction. Other interaction kinds
// report false.
func ToInvocation(i *discordgo.Interaction) (domain.CommandInvocation, bool) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return domain.CommandInvocation{}, false
	}
	data := i.ApplicationCommandData()
	inv := domain.CommandInvocation{
		InteractionID: i.ID,
		AppID:         i.AppID,
		Token:         i.Token,
		Name:          domain.CommandName(data.Name),
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		Locale:        string(i.Locale),
	}
	if i.Member != nil {
		inv.Member = &domain.Member{
			User:        ToUser(i.Member.User),
			Permissions: domain.Permissions(i.Member.Permissions),
		}
	}
	if i.User != nil {
		user := ToUser(i.User)
		inv.User = &user
	}
	for _, opt := range data.Options {
		if opt == nil || opt.Type != discordgo.ApplicationCommandOptionUser || opt.Name != userOption {
			continue
		}
		if id, ok := opt.Value.(string); ok {
			inv.TargetUserID = id
		}
	}
	return inv, true
}

// ToEmbed renders an envelope as a rich embed.
func ToEmbed(env domain.OutboundEnvelope) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       env.Title,
		Description: env.Body,
		Color:       env.Color,
	}
	if !env.Timestamp.IsZero() {
		embed.Timestamp = env.Timestamp.UTC().Format(time.RFC3339)
	}
	if env.AuthorName != "" || env.AuthorIconURL != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    env.AuthorName,
			IconURL: env.AuthorIconURL,
		}
	}
	if env.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: env.ImageURL}
	}
	return embed
}

// Translate maps a gateway event to a dispatcher event. ok is false for events the
// relay does not consume.
func Translate(raw interface{}) (event events.Event, ok bool) {
	switch e := raw.(type) {
	case *discordgo.Ready:
		return events.Event{Type: events.EventReady, Raw: e, Payload: events.ReadyPayload{
			BotUser:    ToUser(e.User),
			SessionID:  e.SessionID,
			GuildCount: len(e.Guilds),
		}}, true
	case *discordgo.MessageCreate:
		if e.Message == nil || e.Author == nil {
			return events.Event{}, false
		}
		return events.Event{Type: events.EventMessageCreated, Raw: e, Payload: ToInboundMessage(e.Message)}, true
	case *discordgo.InteractionCreate:
		inv, ok := ToInvocation(e.Interaction)
		if !ok {
			return events.Event{}, false
		}
		return events.Event{Type: events.EventInteractionCreated, Raw: e, Payload: inv}, true
	case *discordgo.ChannelCreate:
		return channelEvent(events.EventChannelCreated, e, e.Channel)
	case *discordgo.ChannelUpdate:
		return channelEvent(events.EventChannelUpdated, e, e.Channel)
	case *discordgo.ChannelDelete:
		return channelEvent(events.EventChannelDeleted, e, e.Channel)
	case *discordgo.GuildCreate:
		return events.Event{Type: events.EventGuildCreated, Raw: e}, true
	case *discordgo.GuildUpdate:
		return events.Event{Type: events.EventGuildUpdated, Raw: e}, true
	case *discordgo.GuildDelete:
		return events.Event{Type: events.EventGuildDeleted, Raw: e}, true
	default:
		return events.Event{}, false
	}
}

func channelEvent(eventType events.EventType, raw interface{}, ch *discordgo.Channel) (events.Event, bool) {
	if ch == nil {
		return events.Event{}, false
	}
	return events.Event{Type: eventType, Raw: raw, Payload: ToChannel(ch)}, true
}
