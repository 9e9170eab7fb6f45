package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

type fakeRoleAPI struct {
	added   []string
	removed []string
	failFor map[string]error
}

func (f *fakeRoleAPI) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	if err := f.failFor[userID]; err != nil {
		return err
	}
	f.added = append(f.added, userID+":"+roleID)
	return nil
}

func (f *fakeRoleAPI) GuildMemberRoleRemove(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	if err := f.failFor[userID]; err != nil {
		return err
	}
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

func member(id string, bot bool, roleIDs ...string) *discordgo.Member {
	return &discordgo.Member{
		User:  &discordgo.User{ID: id, Bot: bot},
		Roles: roleIDs,
	}
}

func TestHierarchyCanManageRole(t *testing.T) {
	h := Hierarchy{GuildID: "g1", OwnerID: "owner", BotTopPosition: 10, ManageRoles: true}

	tests := []struct {
		name string
		h    Hierarchy
		role *discordgo.Role
		want bool
	}{
		{"below bot", h, &discordgo.Role{ID: "r1", Position: 5}, true},
		{"equal to bot", h, &discordgo.Role{ID: "r1", Position: 10}, false},
		{"above bot", h, &discordgo.Role{ID: "r1", Position: 15}, false},
		{"everyone role", h, &discordgo.Role{ID: "g1", Position: 0}, false},
		{"nil role", h, nil, false},
		{"no manage permission", Hierarchy{GuildID: "g1", BotTopPosition: 10}, &discordgo.Role{ID: "r1", Position: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.CanManageRole(tt.role); got != tt.want {
				t.Errorf("CanManageRole = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHierarchyCanEditMember(t *testing.T) {
	h := Hierarchy{GuildID: "g1", OwnerID: "owner", BotTopPosition: 10, ManageRoles: true}

	if h.CanEditMember("owner", 1) {
		t.Error("guild owner should never be editable")
	}
	if h.CanEditMember("u1", 10) {
		t.Error("member at bot's level should not be editable")
	}
	if !h.CanEditMember("u1", 3) {
		t.Error("member below bot should be editable")
	}
}

func TestFilterTargets(t *testing.T) {
	members := []*discordgo.Member{
		member("u1", false, "target"),
		member("u2", false, "other"),
		member("bot1", true, "target"),
		member("u3", false, "target", "other"),
	}

	got := FilterTargets(members, "target", false)
	if len(got) != 2 || got[0].User.ID != "u1" || got[1].User.ID != "u3" {
		t.Errorf("FilterTargets without bots = %v", ids(got))
	}

	got = FilterTargets(members, "target", true)
	if len(got) != 3 {
		t.Errorf("FilterTargets with bots = %v", ids(got))
	}
}

func ids(members []*discordgo.Member) []string {
	var out []string
	for _, m := range members {
		out = append(out, m.User.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	api := &fakeRoleAPI{}
	m := NewManager(api)

	if err := m.Apply("g1", "u1", "r1", ModeGrant); err != nil {
		t.Fatalf("Apply grant: %v", err)
	}
	if err := m.Apply("g1", "u2", "r1", ModeRevoke); err != nil {
		t.Fatalf("Apply revoke: %v", err)
	}
	if len(api.added) != 1 || api.added[0] != "u1:r1" {
		t.Errorf("added = %v", api.added)
	}
	if len(api.removed) != 1 || api.removed[0] != "u2:r1" {
		t.Errorf("removed = %v", api.removed)
	}
	if err := m.Apply("g1", "u1", "r1", Mode("sideways")); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestBulkApplySkipsAlreadyMatching(t *testing.T) {
	api := &fakeRoleAPI{}
	m := NewManager(api)

	members := []*discordgo.Member{
		member("u1", false, "target"),          // needs the grant
		member("u2", false, "target", "grant"), // already has it
		member("u3", false, "target"),          // needs the grant
	}

	n, err := m.BulkApply(context.Background(), "g1", members, "grant", ModeGrant)
	if err != nil {
		t.Fatalf("BulkApply: %v", err)
	}
	if n != 2 {
		t.Errorf("changed %d members, want 2", n)
	}
	if len(api.added) != 2 {
		t.Errorf("added = %v", api.added)
	}
}

func TestBulkApplyContinuesPastFailures(t *testing.T) {
	api := &fakeRoleAPI{failFor: map[string]error{"u2": errors.New("forbidden")}}
	m := NewManager(api)

	members := []*discordgo.Member{
		member("u1", false, "target"),
		member("u2", false, "target"),
		member("u3", false, "target"),
	}

	n, err := m.BulkApply(context.Background(), "g1", members, "grant", ModeGrant)
	if err != nil {
		t.Fatalf("BulkApply: %v", err)
	}
	if n != 2 {
		t.Errorf("changed %d members, want 2", n)
	}
}

func TestBulkApplyHonorsCancellation(t *testing.T) {
	api := &fakeRoleAPI{}
	m := NewManager(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	members := []*discordgo.Member{member("u1", false, "target"), member("u2", false, "target")}
	if _, err := m.BulkApply(ctx, "g1", members, "grant", ModeGrant); err == nil {
		t.Error("cancelled bulk run returned no error")
	}
}

func TestSortByPosition(t *testing.T) {
	rs := []*discordgo.Role{
		{ID: "low", Position: 1},
		{ID: "high", Position: 9},
		{ID: "mid", Position: 4},
	}
	SortByPosition(rs)
	if rs[0].ID != "high" || rs[2].ID != "low" {
		t.Errorf("order = %s,%s,%s", rs[0].ID, rs[1].ID, rs[2].ID)
	}
}
