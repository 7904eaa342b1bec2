package service

import (
	"context"
	"strings"

	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// TicketProvisioner creates ticket channels. It performs no existence check; callers
// must go through TicketService.Resolve.
type TicketProvisioner struct {
	creator   ChannelCreator
	workspace config.WorkspaceConfig
}

// NewTicketProvisioner constructs the provisioner.
func NewTicketProvisioner(creator ChannelCreator, workspace config.WorkspaceConfig) *TicketProvisioner {
	return &TicketProvisioner{creator: creator, workspace: workspace}
}

// Provision creates one channel under the ticket category named after the user, with
// the user's ID as topic. Remote failures are returned as-is; nothing is retried.
func (p *TicketProvisioner) Provision(ctx context.Context, user domain.User) (domain.TicketChannel, error) {
	ch, err := p.creator.CreateTicketChannel(ctx, p.workspace.GuildID, p.workspace.CategoryID, channelName(user), user.ID)
	if err != nil {
		return domain.TicketChannel{}, err
	}
	return domain.TicketChannel{
		ID:       ch.ID,
		GuildID:  p.workspace.GuildID,
		ParentID: p.workspace.CategoryID,
		Name:     ch.Name,
		OwnerID:  user.ID,
	}, nil
}

func channelName(user domain.User) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	return user.ID
}
