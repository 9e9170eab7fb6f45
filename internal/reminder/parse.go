package reminder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var timeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseTime validates and canonicalizes a 24-hour "HH:MM" string.
func ParseTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("time must be HH:MM in 24-hour form, e.g. 23:00")
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d:%02d", hh, mm), nil
}

var weekdayNames = map[string]int{
	"mon": 0, "monday": 0,
	"tue": 1, "tues": 1, "tuesday": 1,
	"wed": 2, "weds": 2, "wednesday": 2,
	"thu": 3, "thur": 3, "thurs": 3, "thursday": 3,
	"fri": 4, "friday": 4,
	"sat": 5, "saturday": 5,
	"sun": 6, "sunday": 6,
}

func weekdayToken(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("empty weekday token")
	}
	if n, err := strconv.Atoi(tok); err == nil {
		if n < 1 || n > 7 {
			return 0, fmt.Errorf("weekday numbers run 1-7 (1=Mon .. 7=Sun)")
		}
		return n - 1, nil
	}
	if d, ok := weekdayNames[tok]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unrecognized weekday %q", tok)
}

// ParseWeekdays accepts comma-separated weekday lists with optional ranges:
// "1,5,6", "mon,fri,sat", "1-5", "mon-fri", and wrap-around ranges like
// "fri-mon". Numbers use 1=Monday through 7=Sunday; the result uses
// 0=Monday through 6=Sunday, deduplicated and sorted.
func ParseWeekdays(s string) ([]int, error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if raw == "" {
		return nil, fmt.Errorf("weekdays required, e.g. 1,5,6 or mon,fri,sat")
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, err := weekdayToken(from)
			if err != nil {
				return nil, err
			}
			b, err := weekdayToken(to)
			if err != nil {
				return nil, err
			}
			if a <= b {
				for d := a; d <= b; d++ {
					seen[d] = true
				}
			} else {
				for d := a; d < 7; d++ {
					seen[d] = true
				}
				for d := 0; d <= b; d++ {
					seen[d] = true
				}
			}
			continue
		}
		d, err := weekdayToken(part)
		if err != nil {
			return nil, err
		}
		seen[d] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("weekdays required, e.g. 1,5,6 or mon,fri,sat")
	}

	out := make([]int, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

var weekdayShort = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// FormatSchedule renders a slot for user-facing replies, e.g. "Fri,Sat 23:00".
func FormatSchedule(s Schedule) string {
	days := make([]string, 0, len(s.Weekdays))
	for _, d := range s.Weekdays {
		if d >= 0 && d < 7 {
			days = append(days, weekdayShort[d])
		}
	}
	return strings.Join(days, ",") + " " + s.Time
}
