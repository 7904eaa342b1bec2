// Package mirror keeps a read-through copy of guild and channel metadata, replayed
// from feed events by the dispatcher. Handlers only read from it.
package mirror

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/discord"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
)

// Mirror wraps a discordgo.State that is only written through Apply.
type Mirror struct {
	state  *discordgo.State
	logger *zap.Logger
}

// New creates an empty mirror.
func New(logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	state := discordgo.NewState()
	state.TrackEmojis = false
	state.TrackMembers = false
	state.TrackRoles = false
	state.TrackVoice = false
	state.TrackPresences = false
	state.MaxMessageCount = 0
	return &Mirror{state: state, logger: logger}
}

// Apply replays one feed event. Events without guild or channel data are ignored.
func (m *Mirror) Apply(event events.Event) {
	var err error
	switch raw := event.Raw.(type) {
	case *discordgo.Ready:
		for _, guild := range raw.Guilds {
			if err = m.state.GuildAdd(guild); err != nil {
				break
			}
		}
	case *discordgo.GuildCreate:
		err = m.state.GuildAdd(raw.Guild)
	case *discordgo.GuildUpdate:
		err = m.state.GuildAdd(raw.Guild)
	case *discordgo.GuildDelete:
		err = m.state.GuildRemove(raw.Guild)
	case *discordgo.ChannelCreate:
		err = m.state.ChannelAdd(raw.Channel)
	case *discordgo.ChannelUpdate:
		err = m.state.ChannelAdd(raw.Channel)
	case *discordgo.ChannelDelete:
		err = m.state.ChannelRemove(raw.Channel)
	default:
		return
	}
	if err != nil && !errors.Is(err, discordgo.ErrStateNotFound) {
		m.logger.Warn("mirror update failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// Channels returns every known guild channel in iteration order (guild order, then
// channel order within the guild).
func (m *Mirror) Channels() []domain.Channel {
	m.state.RLock()
	defer m.state.RUnlock()

	var out []domain.Channel
	for _, guild := range m.state.Guilds {
		for _, ch := range guild.Channels {
			view := discord.ToChannel(ch)
			if view.GuildID == "" {
				view.GuildID = guild.ID
			}
			out = append(out, view)
		}
	}
	return out
}

// Channel looks up one channel by ID.
func (m *Mirror) Channel(channelID string) (domain.Channel, bool) {
	ch, err := m.state.Channel(channelID)
	if err != nil {
		return domain.Channel{}, false
	}
	m.state.RLock()
	defer m.state.RUnlock()
	return discord.ToChannel(ch), true
}

// GuildIconURL returns the guild's icon URL, or "" when the guild or its icon is unknown.
func (m *Mirror) GuildIconURL(guildID string) string {
	guild, err := m.state.Guild(guildID)
	if err != nil {
		return ""
	}
	m.state.RLock()
	defer m.state.RUnlock()
	if guild.Icon == "" {
		return ""
	}
	return discordgo.EndpointGuildIcon(guild.ID, guild.Icon)
}

// Ready reports whether any guild has been observed yet.
func (m *Mirror) Ready() bool {
	m.state.RLock()
	defer m.state.RUnlock()
	return len(m.state.Guilds) > 0
}
