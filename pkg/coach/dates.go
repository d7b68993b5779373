package coach

import (
	"strings"
	"time"

	"github.com/go-go-golems/trai/pkg/inference/tools"
)

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 366
)

type dateArgs struct {
	Date      string `json:"date"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseDay(now time.Time, s string) (time.Time, bool) {
	today := startOfDay(now)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return today, true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// resolve turns the date arguments into a range. A single date covers that
// day; a range covers start through end inclusive; nothing given covers the
// last defaultDays days including today.
func (a dateArgs) resolve(now time.Time, defaultDays int) (DateRange, *tools.ArgumentError) {
	today := startOfDay(now)

	if a.Date != "" {
		if a.StartDate != "" || a.EndDate != "" {
			return DateRange{}, &tools.ArgumentError{Field: "date", Reason: "use either date or start_date/end_date"}
		}
		d, ok := parseDay(now, a.Date)
		if !ok {
			return DateRange{}, &tools.ArgumentError{Field: "date", Reason: "expected YYYY-MM-DD"}
		}
		return DateRange{Start: d, End: d.AddDate(0, 0, 1)}, nil
	}

	end := today
	if a.EndDate != "" {
		d, ok := parseDay(now, a.EndDate)
		if !ok {
			return DateRange{}, &tools.ArgumentError{Field: "end_date", Reason: "expected YYYY-MM-DD"}
		}
		end = d
	}
	start := end.AddDate(0, 0, -(defaultDays - 1))
	if a.StartDate != "" {
		d, ok := parseDay(now, a.StartDate)
		if !ok {
			return DateRange{}, &tools.ArgumentError{Field: "start_date", Reason: "expected YYYY-MM-DD"}
		}
		start = d
	}
	if end.Before(start) {
		return DateRange{}, &tools.ArgumentError{Field: "end_date", Reason: "before start_date"}
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return DateRange{}, &tools.ArgumentError{Field: "start_date", Reason: "range longer than 366 days"}
	}
	return DateRange{Start: start, End: end.AddDate(0, 0, 1)}, nil
}

func (r DateRange) payload() map[string]any {
	return map[string]any{
		"start": r.Start.Format(dateLayout),
		"end":   r.End.AddDate(0, 0, -1).Format(dateLayout),
	}
}
