package domain

// CommandName enumerates the registered slash commands.
type CommandName string

const (
	CommandPing  CommandName = "ping"
	CommandClose CommandName = "close"
	CommandKick  CommandName = "kick"
	CommandBan   CommandName = "ban"
)

// Permissions is the platform permission bitset of a guild member.
type Permissions int64

const (
	PermissionKickMembers   Permissions = 1 << 1
	PermissionBanMembers    Permissions = 1 << 2
	PermissionAdministrator Permissions = 1 << 3
)

// Has reports whether p grants perm. Administrator grants everything.
func (p Permissions) Has(perm Permissions) bool {
	if p&PermissionAdministrator != 0 {
		return true
	}
	return p&perm == perm
}

// Member is the guild member that invoked a command.
type Member struct {
	User        User
	Permissions Permissions
}

// CommandInvocation is a structured command request from the feed.
type CommandInvocation struct {
	InteractionID string
	AppID         string
	Token         string
	Name          CommandName
	GuildID       string
	ChannelID     string
	Member        *Member
	User          *User
	TargetUserID  string
	Locale        string
}

// Invoker returns the invoking user whether the command came from a guild or a private conversation.
func (c CommandInvocation) Invoker() User {
	if c.Member != nil {
		return c.Member.User
	}
	if c.User != nil {
		return *c.User
	}
	return User{}
}

// InteractionResponse is one reply to an invocation.
type InteractionResponse struct {
	Content   string
	Embed     *OutboundEnvelope
	Ephemeral bool
}
