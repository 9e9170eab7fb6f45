package reminder

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, channelID+"|"+content)
	return &discordgo.Message{}, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *Store, *fakeSender) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "reminders.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sender := &fakeSender{}
	sch := NewScheduler(store, sender, 5*time.Minute, time.UTC)
	return sch, store, sender
}

// 2026-01-02 is a Friday.
func friday(hh, mm int) time.Time {
	return time.Date(2026, 1, 2, hh, mm, 0, 0, time.UTC)
}

func TestTickFiresLeadAndStart(t *testing.T) {
	sch, store, sender := newTestScheduler(t)
	store.Add("Raid Night", "chan1", "role1", Schedule{Weekdays: []int{4}, Time: "23:00"})

	sch.Tick(friday(22, 54))
	if len(sender.sent) != 0 {
		t.Fatalf("fired too early: %v", sender.sent)
	}

	sch.Tick(friday(22, 55))
	if len(sender.sent) != 1 {
		t.Fatalf("lead reminder not fired: %v", sender.sent)
	}
	if !strings.Contains(sender.sent[0], "<@&role1>") || !strings.Contains(sender.sent[0], "5 minutes") {
		t.Errorf("lead content = %q", sender.sent[0])
	}

	sch.Tick(friday(23, 0))
	if len(sender.sent) != 2 {
		t.Fatalf("start reminder not fired: %v", sender.sent)
	}
	if !strings.Contains(sender.sent[1], "starting now") {
		t.Errorf("start content = %q", sender.sent[1])
	}
}

func TestTickIsIdempotentPerDay(t *testing.T) {
	sch, store, sender := newTestScheduler(t)
	store.Add("Raid", "chan1", "role1", Schedule{Weekdays: []int{4}, Time: "23:00"})

	sch.Tick(friday(23, 0))
	sch.Tick(friday(23, 0))
	sch.Tick(friday(23, 0).Add(20 * time.Second))
	if len(sender.sent) != 1 {
		t.Fatalf("start reminder duplicated: %v", sender.sent)
	}

	// Same slot a week later fires again.
	sch.Tick(friday(23, 0).AddDate(0, 0, 7))
	if len(sender.sent) != 2 {
		t.Fatalf("next week's reminder suppressed: %v", sender.sent)
	}
}

func TestTickSkipsWrongDay(t *testing.T) {
	sch, store, sender := newTestScheduler(t)
	store.Add("Raid", "chan1", "role1", Schedule{Weekdays: []int{0}, Time: "23:00"}) // Mondays

	sch.Tick(friday(23, 0))
	sch.Tick(friday(22, 55))
	if len(sender.sent) != 0 {
		t.Fatalf("fired on wrong weekday: %v", sender.sent)
	}
}

func TestMultipleSchedulesFireIndependently(t *testing.T) {
	sch, store, sender := newTestScheduler(t)
	a, _ := store.Add("Raid", "chan1", "role1", Schedule{Weekdays: []int{4}, Time: "23:00"})
	store.AddSchedule(a.ID, Schedule{Weekdays: []int{4}, Time: "23:05"})

	// 22:55 is the lead for 23:00; 23:00 is both the start of slot 1 and the
	// lead for slot 2.
	sch.Tick(friday(22, 55))
	sch.Tick(friday(23, 0))
	if len(sender.sent) != 3 {
		t.Fatalf("sent %d reminders, want 3: %v", len(sender.sent), sender.sent)
	}
}

func TestSendFailureNotMarkedSent(t *testing.T) {
	sch, store, sender := newTestScheduler(t)
	a, _ := store.Add("Raid", "chan1", "role1", Schedule{Weekdays: []int{4}, Time: "23:00"})

	sender.err = errors.New("boom")
	sch.Tick(friday(23, 0))
	if store.WasSent(sentKey(a.ID, 0, friday(23, 0), "start")) {
		t.Error("failed send recorded in cache")
	}
}
