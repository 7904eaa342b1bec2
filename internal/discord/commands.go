package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

const userOption = "user"

// CommandDefinitions returns the slash commands the relay answers.
func CommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        string(domain.CommandPing),
			Description: "Show the gateway latency",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name:        string(domain.CommandClose),
			Description: "Close this ticket",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name:        string(domain.CommandKick),
			Description: "Remove a member from the server",
			Type:        discordgo.ChatApplicationCommand,
			Options:     []*discordgo.ApplicationCommandOption{targetOption("Member to remove")},
		},
		{
			Name:        string(domain.CommandBan),
			Description: "Ban a member from the server",
			Type:        discordgo.ChatApplicationCommand,
			Options:     []*discordgo.ApplicationCommandOption{targetOption("Member to ban")},
		},
	}
}

func targetOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        userOption,
		Description: description,
		Required:    true,
	}
}
