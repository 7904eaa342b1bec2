package domain

import "time"

// User is an author or target identity on the platform.
type User struct {
	ID        string
	Name      string
	AvatarURL string
	Bot       bool
}

// Attachment references a file attached to a message.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// InboundMessage is a message received from the realtime feed.
type InboundMessage struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      User
	Content     string
	Attachments []Attachment
	Timestamp   time.Time
}

// FromGuild reports whether the message was posted inside a guild rather than a private conversation.
func (m InboundMessage) FromGuild() bool {
	return m.GuildID != ""
}

// FirstAttachmentURL returns the URL of the first attachment, or "".
func (m InboundMessage) FirstAttachmentURL() string {
	if len(m.Attachments) == 0 {
		return ""
	}
	return m.Attachments[0].URL
}
