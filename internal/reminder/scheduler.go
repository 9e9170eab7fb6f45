package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/bwmarrin/discordgo"
)

// Sender is the slice of *discordgo.Session the scheduler needs.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Scheduler wakes every minute and fires due reminders: one a lead interval
// ahead of each slot and one at the start minute. The sent cache keeps each
// firing at-most-once per day.
type Scheduler struct {
	store *Store
	send  Sender
	lead  time.Duration
	loc   *time.Location

	now func() time.Time
}

// NewScheduler creates a scheduler over store, announcing via send.
func NewScheduler(store *Store, send Sender, lead time.Duration, loc *time.Location) *Scheduler {
	return &Scheduler{
		store: store,
		send:  send,
		lead:  lead,
		loc:   loc,
		now:   time.Now,
	}
}

// Run ticks once per minute, aligned to the minute boundary, until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("reminder scheduler started", "lead", s.lead, "timezone", s.loc.String())
	for {
		now := s.now().In(s.loc)
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return
		case <-time.After(next.Sub(now) + time.Second):
		}
		s.Tick(s.now())
	}
}

// Tick evaluates all schedules against one wall-clock instant.
func (s *Scheduler) Tick(now time.Time) {
	nowMin := now.In(s.loc).Truncate(time.Minute)
	preMin := nowMin.Add(s.lead)

	if nowMin.Hour() == 0 && nowMin.Minute() == 0 {
		if err := s.store.PruneSent(nowMin); err != nil {
			slog.Warn("sent cache prune failed", "error", err)
		}
	}

	for _, act := range s.store.List() {
		for idx, sch := range act.Schedules {
			if matches(sch, nowMin) {
				s.fire(act, idx, nowMin, "start")
			}
			if matches(sch, preMin) {
				s.fire(act, idx, preMin, "pre")
			}
		}
	}
}

func matches(sch Schedule, t time.Time) bool {
	due, err := gronx.New().IsDue(sch.CronExpr(), t)
	if err != nil {
		slog.Warn("bad schedule expression", "expr", sch.CronExpr(), "error", err)
		return false
	}
	return due
}

// fire sends one reminder unless it already went out for this slot today.
func (s *Scheduler) fire(act *Activity, slot int, eventAt time.Time, kind string) {
	key := sentKey(act.ID, slot, eventAt, kind)
	if s.store.WasSent(key) {
		return
	}

	when := fmt.Sprintf("%s (%s)", eventAt.Format("15:04"), weekdayShort[(int(eventAt.Weekday())+6)%7])
	var content string
	if kind == "pre" {
		content = fmt.Sprintf("<@&%s>\nreminder: **%s** starts at **%s**, **%d minutes** to go.",
			act.PingRoleID, act.Name, when, int(s.lead.Minutes()))
	} else {
		content = fmt.Sprintf("<@&%s>\n**%s** is starting now, **%s**.",
			act.PingRoleID, act.Name, when)
	}

	if _, err := s.send.ChannelMessageSend(act.ChannelID, content); err != nil {
		// Not marked sent; the next tick of this minute has passed anyway,
		// so the reminder is simply lost.
		slog.Warn("reminder send failed", "activity", act.Name, "kind", kind, "error", err)
		return
	}
	if err := s.store.MarkSent(key, s.now()); err != nil {
		slog.Warn("sent cache update failed", "error", err)
	}
	slog.Info("reminder sent", "activity", act.Name, "kind", kind, "at", when)
}
