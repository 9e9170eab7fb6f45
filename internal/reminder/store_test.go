package reminder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reminders.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, path
}

func TestAddAndPersist(t *testing.T) {
	s, path := newTestStore(t)

	a, err := s.Add("Raid Night", "chan1", "role1", Schedule{Weekdays: []int{4}, Time: "23:00"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID == "" {
		t.Fatal("activity got no id")
	}

	// A fresh store over the same file sees the activity.
	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := s2.Get(a.ID)
	if got == nil {
		t.Fatal("activity lost across reload")
	}
	if got.Name != "Raid Night" || got.ChannelID != "chan1" || len(got.Schedules) != 1 {
		t.Errorf("reloaded activity = %+v", got)
	}
}

func TestScheduleMutation(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Add("Raid", "c", "r", Schedule{Weekdays: []int{0}, Time: "20:00"})

	if _, err := s.AddSchedule(a.ID, Schedule{Weekdays: []int{5}, Time: "21:00"}); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if got := s.Get(a.ID); len(got.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(got.Schedules))
	}

	removed, err := s.RemoveSchedule(a.ID, 1)
	if err != nil {
		t.Fatalf("RemoveSchedule: %v", err)
	}
	if removed.Time != "20:00" {
		t.Errorf("removed wrong slot: %+v", removed)
	}

	if _, err := s.RemoveSchedule(a.ID, 5); !errors.Is(err, ErrBadIndex) {
		t.Errorf("out-of-range removal: err = %v", err)
	}
	if _, err := s.AddSchedule("nope", Schedule{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown activity: err = %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Add("Old Name", "c1", "r1", Schedule{Weekdays: []int{0}, Time: "20:00"})

	if _, err := s.Update(a.ID, func(act *Activity) {
		act.Name = "New Name"
		act.ChannelID = "c2"
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.Get(a.ID); got.Name != "New Name" || got.ChannelID != "c2" {
		t.Errorf("after update: %+v", got)
	}

	day := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	key := sentKey(a.ID, 0, day, "start")
	if err := s.MarkSent(key, day); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	if _, err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Get(a.ID) != nil {
		t.Error("activity survived delete")
	}
	if s.WasSent(key) {
		t.Error("sent cache entries survived activity delete")
	}
}

func TestPruneSent(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	fresh := sentKey("a1", 0, now.AddDate(0, 0, -1), "start")
	stale := sentKey("a1", 0, now.AddDate(0, 0, -10), "start")
	s.MarkSent(fresh, now)
	s.MarkSent(stale, now)

	if err := s.PruneSent(now); err != nil {
		t.Fatalf("PruneSent: %v", err)
	}
	if !s.WasSent(fresh) {
		t.Error("fresh entry pruned")
	}
	if s.WasSent(stale) {
		t.Error("stale entry kept")
	}
}
