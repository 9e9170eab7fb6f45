package sections

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

var (
	// ErrTemplateNotFound is returned when the configured template category
	// does not exist in the guild.
	ErrTemplateNotFound = errors.New("sections: template category not found")
	// ErrNotACategory is returned when the configured template id points at
	// a non-category channel.
	ErrNotACategory = errors.New("sections: template id is not a category")
)

// SectionAPI is the slice of *discordgo.Session the duplicator needs.
type SectionAPI interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Result summarizes one duplication run for the command reply.
type Result struct {
	CategoryID   string
	CategoryName string
	RoleID       string
	RoleName     string
	RoleReused   bool
	Channels     int
	TagsCopied   int
}

// Duplicator clones the template category into new game sections.
type Duplicator struct {
	api          SectionAPI
	cfg          config.SectionsConfig
	adminRoleIDs []string
}

// NewDuplicator creates a duplicator. adminRoleIDs get management overrides
// on every created channel.
func NewDuplicator(api SectionAPI, cfg config.SectionsConfig, adminRoleIDs []string) *Duplicator {
	return &Duplicator{api: api, cfg: cfg, adminRoleIDs: adminRoleIDs}
}

// Duplicate builds a private section for game: a mentionable role (reused if
// one with the expected name exists), a category visible only to that role
// and the admins, and a copy of every clonable template channel in template
// order. Template permissions are deliberately not cloned; only settings are.
func (d *Duplicator) Duplicate(guildID, game string) (*Result, error) {
	channels, err := d.api.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild channels: %w", err)
	}

	template, err := d.findTemplate(channels)
	if err != nil {
		return nil, err
	}
	children := templateChildren(channels, template.ID)

	role, reused, err := d.ensureRole(guildID, d.cfg.RoleName(game))
	if err != nil {
		return nil, err
	}

	overwrites := privateOverwrites(guildID, role.ID, d.adminRoleIDs)

	category, err := d.api.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 d.cfg.CategoryName(game),
		Type:                 discordgo.ChannelTypeGuildCategory,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	slog.Info("section category created", "category_id", category.ID, "name", category.Name)

	res := &Result{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		RoleID:       role.ID,
		RoleName:     role.Name,
		RoleReused:   reused,
	}

	var createdForum *discordgo.Channel
	var templateForum *discordgo.Channel
	for _, child := range children {
		kind, _ := KindOf(child.Type)
		created, err := d.api.GuildChannelCreateComplex(guildID, cloneData(child, kind, category.ID, overwrites))
		if err != nil {
			// Keep going; a half-built section beats none at all.
			slog.Warn("section channel clone failed", "name", child.Name, "kind", kind.String(), "error", err)
			continue
		}
		res.Channels++
		if kind.Taggable() {
			if createdForum == nil {
				createdForum = created
			}
			if templateForum == nil {
				templateForum = child
			}
		}
	}

	if createdForum != nil && templateForum != nil {
		n, err := d.copyForumTags(templateForum, createdForum)
		if err != nil {
			slog.Warn("forum tag copy failed", "error", err)
		}
		res.TagsCopied = n
	}

	if err := d.createFallbacks(guildID, category.ID, overwrites, children, createdForum, res); err != nil {
		slog.Warn("fallback channel creation failed", "error", err)
	}

	return res, nil
}

func (d *Duplicator) findTemplate(channels []*discordgo.Channel) (*discordgo.Channel, error) {
	for _, ch := range channels {
		if ch.ID != d.cfg.TemplateCategoryID {
			continue
		}
		if ch.Type != discordgo.ChannelTypeGuildCategory {
			return nil, fmt.Errorf("%w: id %s has type %d", ErrNotACategory, ch.ID, ch.Type)
		}
		return ch, nil
	}
	return nil, fmt.Errorf("%w: id %s", ErrTemplateNotFound, d.cfg.TemplateCategoryID)
}

func templateChildren(channels []*discordgo.Channel, categoryID string) []*discordgo.Channel {
	var out []*discordgo.Channel
	for _, ch := range channels {
		if ch.ParentID != categoryID {
			continue
		}
		if _, ok := KindOf(ch.Type); !ok {
			continue
		}
		out = append(out, ch)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ensureRole finds or creates the game role. The bool result reports reuse.
func (d *Duplicator) ensureRole(guildID, name string) (*discordgo.Role, bool, error) {
	existing, err := d.api.GuildRoles(guildID)
	if err != nil {
		return nil, false, fmt.Errorf("fetch guild roles: %w", err)
	}
	for _, r := range existing {
		if strings.EqualFold(r.Name, name) {
			return r, true, nil
		}
	}

	hoist := false
	mentionable := true
	role, err := d.api.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Hoist:       &hoist,
		Mentionable: &mentionable,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create game role: %w", err)
	}
	slog.Info("game role created", "role_id", role.ID, "name", role.Name)
	return role, false, nil
}

// cloneData copies only the settings of a template channel; permissions come
// from the section's own private overwrites.
func cloneData(src *discordgo.Channel, kind Kind, parentID string, overwrites []*discordgo.PermissionOverwrite) discordgo.GuildChannelCreateData {
	data := discordgo.GuildChannelCreateData{
		Name:                 src.Name,
		Type:                 kind.channelType(),
		ParentID:             parentID,
		Position:             src.Position,
		PermissionOverwrites: overwrites,
	}
	switch {
	case kind.Audible():
		data.Bitrate = src.Bitrate
		data.UserLimit = src.UserLimit
		data.Topic = src.Topic
	default:
		data.Topic = src.Topic
		data.NSFW = src.NSFW
		data.RateLimitPerUser = src.RateLimitPerUser
	}
	return data
}

func (d *Duplicator) copyForumTags(src, dst *discordgo.Channel) (int, error) {
	if len(src.AvailableTags) == 0 {
		return 0, nil
	}
	tags := make([]discordgo.ForumTag, 0, len(src.AvailableTags))
	for _, t := range src.AvailableTags {
		tags = append(tags, discordgo.ForumTag{
			Name:      t.Name,
			Moderated: t.Moderated,
			EmojiID:   t.EmojiID,
			EmojiName: t.EmojiName,
		})
	}
	if _, err := d.api.ChannelEdit(dst.ID, &discordgo.ChannelEdit{AvailableTags: &tags}); err != nil {
		return 0, fmt.Errorf("edit forum tags: %w", err)
	}
	return len(tags), nil
}

// createFallbacks fills in configured channel names the template did not
// provide, so a stripped-down template still yields a usable section.
func (d *Duplicator) createFallbacks(guildID, categoryID string, overwrites []*discordgo.PermissionOverwrite, children []*discordgo.Channel, createdForum *discordgo.Channel, res *Result) error {
	existing := make(map[string]bool, len(children))
	for _, ch := range children {
		existing[ch.Name] = true
	}

	create := func(name string, kind Kind) error {
		_, err := d.api.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 name,
			Type:                 kind.channelType(),
			ParentID:             categoryID,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			return err
		}
		res.Channels++
		return nil
	}

	for _, name := range d.cfg.FallbackText {
		if !existing[name] {
			if err := create(name, KindText); err != nil {
				return err
			}
		}
	}
	for _, name := range d.cfg.FallbackVoice {
		if !existing[name] {
			if err := create(name, KindVoice); err != nil {
				return err
			}
		}
	}
	if createdForum == nil && d.cfg.FallbackForum != "" {
		if err := create(d.cfg.FallbackForum, KindForum); err != nil {
			return err
		}
	}
	return nil
}

const (
	memberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionCreatePublicThreads |
		discordgo.PermissionCreatePrivateThreads |
		discordgo.PermissionSendMessagesInThreads |
		discordgo.PermissionVoiceConnect |
		discordgo.PermissionVoiceSpeak

	adminAllow = memberAllow |
		discordgo.PermissionManageChannels |
		discordgo.PermissionManageMessages |
		discordgo.PermissionManageThreads |
		discordgo.PermissionVoiceMoveMembers |
		discordgo.PermissionVoiceMuteMembers
)

// privateOverwrites hides the section from @everyone and opens it to the
// game role, with management extras for the admin roles.
func privateOverwrites(guildID, gameRoleID string, adminRoleIDs []string) []*discordgo.PermissionOverwrite {
	out := []*discordgo.PermissionOverwrite{
		{
			ID:   guildID, // @everyone shares the guild id
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    gameRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAllow,
		},
	}
	for _, id := range adminRoleIDs {
		if id == gameRoleID {
			continue
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    id,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: adminAllow,
		})
	}
	return out
}
