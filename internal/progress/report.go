package progress

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"time"

	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// MovementKind classifies a weekday in the monthly report.
type MovementKind string

// Movement kinds.
const (
	MovementWork        MovementKind = "work"
	MovementScheduled   MovementKind = "scheduled"
	MovementSickLeave   MovementKind = "sick-leave"
	MovementNotInformed MovementKind = "not-informed"
)

// Movement is one weekday row of the monthly report.
type Movement struct {
	Date      calendar.Date
	Kind      MovementKind
	Points    int
	HasPoints bool
	Notes     string
	Pending   bool
}

// Trend compares the last seven entries with the seven before them.
type Trend string

// Trends.
const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Insights are the headline statistics of the report.
type Insights struct {
	HasData        bool
	BestWeekday    time.Weekday
	BestWeekdayAvg float64
	DailyAverage   float64
	Streak         int
	Trend          Trend
}

// RankedDay is one entry of the best-days ranking.
type RankedDay struct {
	Date   calendar.Date
	Points int
}

// Movements lists every weekday of today's month with how it was spent.
// Scheduled days take precedence over recorded points.
func Movements(rec *models.UserRecord, today calendar.Date) []Movement {
	excluded := ExcludedSet(rec.ExcludedDays)

	var out []Movement
	for _, d := range calendar.MonthDays(today) {
		if d.IsWeekend() {
			continue
		}

		notes := joinNoteLines(rec.DailyNotes[d.ISO()])
		m := Movement{Date: d, Notes: notes}

		if _, off := excluded[d]; off {
			m.Kind = MovementScheduled
			if isSickLeaveNote(notes) {
				m.Kind = MovementSickLeave
			}
			out = append(out, m)
			continue
		}

		if pts, ok := rec.DailyPoints[d.ISO()]; ok {
			m.Kind = MovementWork
			m.Points = pts
			m.HasPoints = true
			out = append(out, m)
			continue
		}

		m.Kind = MovementNotInformed
		m.Pending = !d.Before(today)
		out = append(out, m)
	}
	return out
}

func joinNoteLines(raw string) string {
	var lines []string
	for line := range strings.Lines(raw) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "; ")
}

func isSickLeaveNote(notes string) bool {
	lower := strings.ToLower(notes)
	return strings.Contains(notes, "🏥") ||
		strings.Contains(lower, "atestado") ||
		strings.Contains(lower, "afastamento")
}

// ComputeInsights derives best weekday, averages, streak and trend from the daily history.
func ComputeInsights(rec *models.UserRecord, today calendar.Date) Insights {
	if len(rec.DailyPoints) == 0 {
		return Insights{Trend: TrendFlat}
	}

	type acc struct{ total, count int }
	byWeekday := make(map[time.Weekday]*acc)
	dates := make(map[string]calendar.Date, len(rec.DailyPoints))
	for key, pts := range rec.DailyPoints {
		d, err := calendar.ParseISO(key)
		if err != nil {
			continue
		}
		dates[key] = d
		a := byWeekday[d.Weekday()]
		if a == nil {
			a = &acc{}
			byWeekday[d.Weekday()] = a
		}
		a.total += pts
		a.count++
	}

	ins := Insights{HasData: true}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		a := byWeekday[wd]
		if a == nil {
			continue
		}
		if avg := float64(a.total) / float64(a.count); avg > ins.BestWeekdayAvg {
			ins.BestWeekday = wd
			ins.BestWeekdayAvg = avg
		}
	}

	ins.DailyAverage = float64(rec.TotalPoints) / float64(len(rec.DailyPoints))

	keys := slices.Sorted(maps.Keys(rec.DailyPoints))
	for i := len(keys) - 1; i >= 0; i-- {
		d, ok := dates[keys[i]]
		if !ok || d.DaysUntil(today) != ins.Streak {
			break
		}
		ins.Streak++
	}

	last := sumWindow(rec.DailyPoints, keys, max(0, len(keys)-7), len(keys))
	prev := sumWindow(rec.DailyPoints, keys, max(0, len(keys)-14), max(0, len(keys)-7))
	switch {
	case last > prev:
		ins.Trend = TrendUp
	case last < prev:
		ins.Trend = TrendDown
	default:
		ins.Trend = TrendFlat
	}

	return ins
}

func sumWindow(daily map[string]int, keys []string, from, to int) int {
	sum := 0
	for _, k := range keys[from:to] {
		sum += daily[k]
	}
	return sum
}

// Ranking returns the n best days by points, ties ordered by date.
func Ranking(daily map[string]int, n int) []RankedDay {
	days := make([]RankedDay, 0, len(daily))
	for key, pts := range daily {
		d, err := calendar.ParseISO(key)
		if err != nil {
			continue
		}
		days = append(days, RankedDay{Date: d, Points: pts})
	}

	slices.SortFunc(days, func(a, b RankedDay) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.Date.ISO(), b.Date.ISO())
	})

	if len(days) > n {
		days = days[:n]
	}
	return days
}
