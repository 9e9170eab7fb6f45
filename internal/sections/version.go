package sections

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrSourceNotFound is returned when the source channel does not exist.
	ErrSourceNotFound = errors.New("sections: source channel not found")
	// ErrUnsupportedChannel is returned for channel types the versioner
	// cannot clone (categories, threads, announcements).
	ErrUnsupportedChannel = errors.New("sections: channel type not supported for versioning")
	// ErrNoVersionRole is returned when the source channel carries no role
	// overwrite to model the new version role on.
	ErrNoVersionRole = errors.New("sections: no version role found on source channel")
	// ErrAmbiguousVersionRole is returned when more than one candidate role
	// overwrite sits on the source channel.
	ErrAmbiguousVersionRole = errors.New("sections: multiple version roles on source channel")
	// ErrRoleExists is returned when the requested role name is taken.
	ErrRoleExists = errors.New("sections: role already exists")
)

// VersionAPI is SectionAPI plus the deletes needed to roll back a half-built
// version.
type VersionAPI interface {
	SectionAPI
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoleDelete(guildID, roleID string, options ...discordgo.RequestOption) error
}

// VersionResult summarizes one versioning run for the command reply.
type VersionResult struct {
	ChannelID   string
	ChannelName string
	RoleID      string
	RoleName    string
	SampleRole  string // the previous version's role, detected on the source channel
	Demoted     int    // legacy version roles set to read-only
}

// Versioner stamps out the next version of a gated channel: a fresh role, a
// clone of the source channel open to that role, and every older version role
// demoted to read-only on the new channel.
type Versioner struct {
	api VersionAPI
}

// NewVersioner creates a versioner.
func NewVersioner(api VersionAPI) *Versioner {
	return &Versioner{api: api}
}

// Legacy version roles keep reading the new channel but cannot post in it.
const legacyDeny = discordgo.PermissionSendMessages |
	discordgo.PermissionCreatePublicThreads |
	discordgo.PermissionCreatePrivateThreads |
	discordgo.PermissionSendMessagesInThreads

// NewVersion clones sourceChannelID into a new channel gated by a new role
// named roleName. The current version role is detected from the source
// channel's overwrites: exactly one non-admin role overwrite must exist, and
// its permissions are copied onto the new role. Every guild role sharing that
// role's name prefix (its first word) is demoted to read-only on the new
// channel. The @everyone overwrite is carried over untouched. channelName
// defaults to the source name with a "_temp" suffix.
func (v *Versioner) NewVersion(guildID, sourceChannelID, roleName, channelName string) (*VersionResult, error) {
	channels, err := v.api.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild channels: %w", err)
	}
	source := findChannel(channels, sourceChannelID)
	if source == nil {
		return nil, fmt.Errorf("%w: id %s", ErrSourceNotFound, sourceChannelID)
	}
	kind, ok := KindOf(source.Type)
	if !ok {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedChannel, source.Type)
	}

	guildRoles, err := v.api.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild roles: %w", err)
	}
	byID := make(map[string]*discordgo.Role, len(guildRoles))
	for _, r := range guildRoles {
		byID[r.ID] = r
	}
	for _, r := range guildRoles {
		if strings.EqualFold(r.Name, roleName) {
			return nil, fmt.Errorf("%w: %s", ErrRoleExists, r.Name)
		}
	}

	sample, sampleOverwrite, err := findSampleRole(source, byID, guildID)
	if err != nil {
		return nil, err
	}

	hoist := false
	mentionable := true
	role, err := v.api.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        roleName,
		Hoist:       &hoist,
		Mentionable: &mentionable,
	})
	if err != nil {
		return nil, fmt.Errorf("create version role: %w", err)
	}

	if channelName == "" {
		channelName = source.Name + "_temp"
	}
	overwrites, demoted := versionOverwrites(source, guildRoles, sample, sampleOverwrite, role.ID, guildID)

	data := cloneData(source, kind, source.ParentID, overwrites)
	data.Name = channelName
	created, err := v.api.GuildChannelCreateComplex(guildID, data)
	if err != nil {
		// Roll the role back so a retry starts clean.
		if derr := v.api.GuildRoleDelete(guildID, role.ID); derr != nil {
			slog.Warn("version role rollback failed", "role_id", role.ID, "error", derr)
		}
		return nil, fmt.Errorf("create version channel: %w", err)
	}
	slog.Info("version channel created",
		"channel_id", created.ID, "name", created.Name,
		"role_id", role.ID, "sample_role", sample.Name, "demoted", demoted)

	return &VersionResult{
		ChannelID:   created.ID,
		ChannelName: created.Name,
		RoleID:      role.ID,
		RoleName:    role.Name,
		SampleRole:  sample.Name,
		Demoted:     demoted,
	}, nil
}

func findChannel(channels []*discordgo.Channel, id string) *discordgo.Channel {
	for _, ch := range channels {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// findSampleRole picks the role the source channel is gated by: the single
// role overwrite that is neither @everyone nor an administrator role. Zero or
// several candidates mean the channel was not built by this factory, and
// guessing would gate the new version on the wrong role.
func findSampleRole(source *discordgo.Channel, byID map[string]*discordgo.Role, guildID string) (*discordgo.Role, *discordgo.PermissionOverwrite, error) {
	var role *discordgo.Role
	var overwrite *discordgo.PermissionOverwrite
	for _, ow := range source.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole || ow.ID == guildID {
			continue
		}
		r, ok := byID[ow.ID]
		if !ok || r.Permissions&discordgo.PermissionAdministrator != 0 {
			continue
		}
		if role != nil {
			return nil, nil, fmt.Errorf("%w: %s and %s", ErrAmbiguousVersionRole, role.Name, r.Name)
		}
		role, overwrite = r, ow
	}
	if role == nil {
		return nil, nil, ErrNoVersionRole
	}
	return role, overwrite, nil
}

// versionOverwrites builds the new channel's permission set: the source's
// overwrites minus the sample role, the new role granted the sample's exact
// permissions, and every legacy role sharing the sample's name prefix set to
// read-only. Legacy roles get the read-only overwrite whether or not they had
// one on the source. @everyone passes through unchanged.
func versionOverwrites(source *discordgo.Channel, guildRoles []*discordgo.Role, sample *discordgo.Role, sampleOverwrite *discordgo.PermissionOverwrite, newRoleID, guildID string) ([]*discordgo.PermissionOverwrite, int) {
	var out []*discordgo.PermissionOverwrite
	seen := make(map[string]int) // overwrite id -> index in out
	for _, ow := range source.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == sample.ID {
			continue
		}
		cp := *ow
		seen[cp.ID] = len(out)
		out = append(out, &cp)
	}

	prefix := sample.Name
	if fields := strings.Fields(sample.Name); len(fields) > 0 {
		prefix = fields[0]
	}
	demoted := 0
	for _, r := range guildRoles {
		if r.ID == guildID || r.ID == sample.ID || r.ID == newRoleID {
			continue
		}
		if r.Permissions&discordgo.PermissionAdministrator != 0 {
			continue
		}
		if prefix == "" || !strings.Contains(r.Name, prefix) {
			continue
		}
		ro := &discordgo.PermissionOverwrite{
			ID:    r.ID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel,
			Deny:  legacyDeny,
		}
		if idx, ok := seen[r.ID]; ok {
			out[idx] = ro
		} else {
			seen[r.ID] = len(out)
			out = append(out, ro)
		}
		demoted++
	}

	out = append(out, &discordgo.PermissionOverwrite{
		ID:    newRoleID,
		Type:  discordgo.PermissionOverwriteTypeRole,
		Allow: sampleOverwrite.Allow,
		Deny:  sampleOverwrite.Deny,
	})
	return out, demoted
}
