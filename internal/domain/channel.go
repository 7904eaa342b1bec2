package domain

// ChannelKind distinguishes guild channels from private conversations.
type ChannelKind string

const (
	ChannelKindGuildText     ChannelKind = "GUILD_TEXT"
	ChannelKindGuildCategory ChannelKind = "GUILD_CATEGORY"
	ChannelKindPrivate       ChannelKind = "PRIVATE"
	ChannelKindOther         ChannelKind = "OTHER"
)

// Channel is the mirror's view of a platform channel.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Topic    string
	Kind     ChannelKind
}

// TicketChannel is a staff channel dedicated to one external user.
// OwnerID is stored in the channel topic.
type TicketChannel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	OwnerID  string
}
