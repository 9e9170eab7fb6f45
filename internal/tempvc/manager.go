// Package tempvc manages ephemeral voice rooms: created on demand, watched
// through voice-state transitions, and garbage-collected after sitting empty
// for a configurable idle period.
package tempvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrNotAuthorized is returned when a caller without the required role
	// attempts a privileged lifecycle operation.
	ErrNotAuthorized = errors.New("tempvc: not authorized")
	// ErrNotTracked is returned when an operation targets a channel this
	// manager did not create.
	ErrNotTracked = errors.New("tempvc: channel not tracked")
)

// ChannelAPI is the slice of *discordgo.Session the manager needs.
type ChannelAPI interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberMove(guildID, userID string, channelID *string, options ...discordgo.RequestOption) error
}

// OccupancyFunc reports the number of members currently in a voice channel.
// Backed by the gateway state cache in production.
type OccupancyFunc func(channelID string) int

type tracked struct {
	createdAt time.Time
	// cancel is non-nil exactly while a deletion timer is pending.
	cancel context.CancelFunc
}

// Manager owns the tracked-channel table and the pending deletion timers.
// All table mutation is mutex-guarded; timers run as goroutines that
// re-validate emptiness before deleting.
type Manager struct {
	api       ChannelAPI
	occupancy OccupancyFunc
	idle      time.Duration
	prefix    string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	channels map[string]*tracked
}

// New creates a manager. prefix is prepended to every room name, idle is how
// long an empty room survives before deletion.
func New(api ChannelAPI, occupancy OccupancyFunc, prefix string, idle time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		api:       api,
		occupancy: occupancy,
		idle:      idle,
		prefix:    prefix,
		ctx:       ctx,
		cancel:    cancel,
		channels:  make(map[string]*tracked),
	}
}

// Create makes a new voice channel under parentID and registers it as
// tracked. Names are not deduplicated; two rooms may share one.
func (m *Manager) Create(guildID, parentID, name string, userLimit int) (*discordgo.Channel, error) {
	ch, err := m.api.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:      m.prefix + name,
		Type:      discordgo.ChannelTypeGuildVoice,
		ParentID:  parentID,
		UserLimit: userLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create voice channel: %w", err)
	}

	// Rooms are born empty: the deletion timer starts at creation and is
	// cancelled by the first join.
	m.mu.Lock()
	tc := &tracked{createdAt: time.Now()}
	m.channels[ch.ID] = tc
	m.armLocked(ch.ID, tc)
	m.mu.Unlock()

	slog.Info("temp voice channel created", "channel_id", ch.ID, "name", ch.Name)
	return ch, nil
}

// Move places a member into the given voice channel.
func (m *Manager) Move(guildID, userID, channelID string) error {
	if err := m.api.GuildMemberMove(guildID, userID, &channelID); err != nil {
		return fmt.Errorf("move member: %w", err)
	}
	return nil
}

// Observe re-evaluates one channel after a voice-state transition: an empty
// tracked channel gets a deletion timer armed, a repopulated one gets its
// timer cancelled. Untracked channels are ignored.
func (m *Manager) Observe(channelID string) {
	if channelID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tc, ok := m.channels[channelID]
	if !ok {
		return
	}

	if m.occupancy(channelID) == 0 {
		if tc.cancel == nil {
			m.armLocked(channelID, tc)
		}
		return
	}
	if tc.cancel != nil {
		tc.cancel()
		tc.cancel = nil
		slog.Debug("temp voice channel repopulated, timer cancelled", "channel_id", channelID)
	}
}

// armLocked starts the deletion timer for an empty channel. Caller holds mu.
func (m *Manager) armLocked(channelID string, tc *tracked) {
	ctx, cancel := context.WithCancel(m.ctx)
	tc.cancel = cancel
	slog.Debug("temp voice channel empty, deletion scheduled", "channel_id", channelID, "after", m.idle)

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.idle):
		}
		m.expire(channelID)
	}()
}

// expire fires when an idle timer elapses. Emptiness is re-validated under
// the lock before anything is deleted.
func (m *Manager) expire(channelID string) {
	m.mu.Lock()
	tc, ok := m.channels[channelID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if m.occupancy(channelID) > 0 {
		// Someone slipped in between the timer firing and us running.
		tc.cancel = nil
		m.mu.Unlock()
		return
	}
	delete(m.channels, channelID)
	m.mu.Unlock()

	if err := m.deleteChannel(channelID); err != nil {
		slog.Warn("temp voice channel cleanup failed", "channel_id", channelID, "error", err)
		return
	}
	slog.Info("temp voice channel expired", "channel_id", channelID)
}

// Teardown deletes a tracked channel immediately. authorized reflects the
// caller's role check, performed by the command layer.
func (m *Manager) Teardown(channelID string, authorized bool) error {
	if !authorized {
		return ErrNotAuthorized
	}

	m.mu.Lock()
	tc, ok := m.channels[channelID]
	if !ok {
		m.mu.Unlock()
		return ErrNotTracked
	}
	if tc.cancel != nil {
		tc.cancel()
	}
	delete(m.channels, channelID)
	m.mu.Unlock()

	if err := m.deleteChannel(channelID); err != nil {
		return err
	}
	slog.Info("temp voice channel torn down", "channel_id", channelID)
	return nil
}

// deleteChannel removes the channel on the platform. A channel already
// deleted out-of-band counts as success.
func (m *Manager) deleteChannel(channelID string) error {
	_, err := m.api.ChannelDelete(channelID)
	if err == nil || isAlreadyGone(err) {
		return nil
	}
	return fmt.Errorf("delete channel %s: %w", channelID, err)
}

// Tracked reports whether the manager created and still tracks channelID.
func (m *Manager) Tracked(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelID]
	return ok
}

// Count returns the number of live tracked channels.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// Shutdown cancels every pending deletion timer. Tracked channels are left
// in place; they will be orphaned but harmless across restarts.
func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	for _, tc := range m.channels {
		if tc.cancel != nil {
			tc.cancel()
			tc.cancel = nil
		}
	}
	m.mu.Unlock()
}

func isAlreadyGone(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == 404
}
