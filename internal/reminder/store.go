// Package reminder schedules recurring activity announcements: a ping a few
// minutes ahead of each time slot and another at the start minute. Activities
// live in a flat JSON file, matched minute by minute against cron expressions.
package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for operations on an unknown activity id.
	ErrNotFound = errors.New("reminder: activity not found")
	// ErrBadIndex is returned when a schedule slot index is out of range.
	ErrBadIndex = errors.New("reminder: schedule index out of range")
)

// Schedule is one recurring time slot. Weekdays use 0=Monday through
// 6=Sunday; Time is "HH:MM" in the configured timezone.
type Schedule struct {
	Weekdays []int  `json:"weekdays"`
	Time     string `json:"time"`
}

// CronExpr renders the slot as a standard five-field cron expression.
// Cron weekday numbering starts at 0=Sunday, so days shift by one.
func (s Schedule) CronExpr() string {
	hh, mm, _ := strings.Cut(s.Time, ":")
	days := make([]string, 0, len(s.Weekdays))
	for _, d := range s.Weekdays {
		days = append(days, strconv.Itoa((d+1)%7))
	}
	return fmt.Sprintf("%s %s * * %s", mm, hh, strings.Join(days, ","))
}

// Activity is a named event with one or more schedules, announced in a fixed
// channel with a role ping.
type Activity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ChannelID  string     `json:"channel_id"`
	PingRoleID string     `json:"ping_role_id"`
	Schedules  []Schedule `json:"schedules"`
}

type fileFormat struct {
	Activities []*Activity       `json:"activities"`
	SentCache  map[string]string `json:"sent_cache"`
}

// Store holds the activity table and the sent-reminder cache, persisted to a
// single JSON file after every mutation.
type Store struct {
	path string

	mu         sync.Mutex
	activities map[string]*Activity
	sent       map[string]string
}

// NewStore loads (or initializes) the store at path. Entries in the sent
// cache older than three days are pruned on load.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:       path,
		activities: make(map[string]*Activity),
		sent:       make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, s.save()
	}
	if err != nil {
		return nil, fmt.Errorf("read reminders file: %w", err)
	}

	var raw fileFormat
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse reminders file: %w", err)
	}
	for _, a := range raw.Activities {
		if a.ID == "" {
			continue
		}
		s.activities[a.ID] = a
	}
	if raw.SentCache != nil {
		s.sent = raw.SentCache
	}
	s.pruneSentLocked(time.Now())
	return s, s.save()
}

// save writes the current state. Caller may or may not hold mu; the file
// write itself is serialized by the callers all mutating under mu first.
func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create reminders directory: %w", err)
		}
	}

	raw := fileFormat{SentCache: s.sent}
	for _, a := range s.activities {
		raw.Activities = append(raw.Activities, a)
	}
	sort.Slice(raw.Activities, func(i, j int) bool { return raw.Activities[i].ID < raw.Activities[j].ID })

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reminders: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write reminders file: %w", err)
	}
	return nil
}

// Add registers a new activity with its first schedule.
func (s *Store) Add(name, channelID, pingRoleID string, first Schedule) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Activity{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		ChannelID:  channelID,
		PingRoleID: pingRoleID,
		Schedules:  []Schedule{first},
	}
	s.activities[a.ID] = a
	return a, s.save()
}

// Get returns the activity with the given id, or nil.
func (s *Store) Get(id string) *Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities[id]
}

// List returns all activities sorted by name.
func (s *Store) List() []*Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Activity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddSchedule appends one time slot to an existing activity.
func (s *Store) AddSchedule(id string, sch Schedule) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	a.Schedules = append(a.Schedules, sch)
	return a, s.save()
}

// RemoveSchedule deletes the 1-based slot index from an activity.
func (s *Store) RemoveSchedule(id string, index int) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return Schedule{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if index < 1 || index > len(a.Schedules) {
		return Schedule{}, fmt.Errorf("slot %d of %d: %w", index, len(a.Schedules), ErrBadIndex)
	}
	removed := a.Schedules[index-1]
	a.Schedules = append(a.Schedules[:index-1], a.Schedules[index:]...)
	return removed, s.save()
}

// Update applies fn to an activity under the lock and persists the result.
func (s *Store) Update(id string, fn func(*Activity)) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	fn(a)
	return a, s.save()
}

// Delete removes an activity and any of its sent-cache entries.
func (s *Store) Delete(id string) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	delete(s.activities, id)
	for k := range s.sent {
		if strings.HasPrefix(k, id+"|") {
			delete(s.sent, k)
		}
	}
	return a, s.save()
}

// sentKey identifies one reminder firing: activity, slot, date and kind.
func sentKey(activityID string, slot int, day time.Time, kind string) string {
	return fmt.Sprintf("%s|%d|%s|%s", activityID, slot, day.Format("2006-01-02"), kind)
}

// WasSent reports whether the reminder identified by key already fired.
func (s *Store) WasSent(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sent[key]
	return ok
}

// MarkSent records a fired reminder and persists.
func (s *Store) MarkSent(key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = at.Format(time.RFC3339)
	return s.save()
}

// PruneSent drops cache entries older than three days.
func (s *Store) PruneSent(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneSentLocked(now)
	return s.save()
}

func (s *Store) pruneSentLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -3)
	for k := range s.sent {
		parts := strings.Split(k, "|")
		if len(parts) != 4 {
			delete(s.sent, k)
			continue
		}
		day, err := time.Parse("2006-01-02", parts[2])
		if err != nil || day.Before(cutoff.Truncate(24*time.Hour)) {
			delete(s.sent, k)
		}
	}
}
