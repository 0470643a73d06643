// Package progress computes the goal dashboard for a worker's month.
//
// Every function here is pure: the same inputs always produce the same
// result, so the calculator serves both the persisted record and throwaway
// simulation inputs.
package progress

import (
	"maps"
	"math"
	"slices"
	"sort"

	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// BusinessDays is the business-day breakdown of one month.
type BusinessDays struct {
	Total     int
	Past      int
	Remaining int
}

// Input is the slice of a user record the calculator needs.
type Input struct {
	MonthlyGoal  int
	TotalPoints  int
	DailyPoints  map[string]int
	ExcludedDays []string
}

// Dashboard holds the figures rendered for a month.
type Dashboard struct {
	TotalBusinessDays     int
	BusinessDaysPast      int
	BusinessDaysRemaining int
	Shortfall             int
	Surplus               int
	RequiredDailyQuota    float64
	PercentComplete       float64
	GoalMet               bool
	WeeklyAverage         float64
}

// Color is the progress ring color class.
type Color string

// Ring colors.
const (
	ColorComplete Color = "complete"
	ColorStrained Color = "strained"
	ColorNormal   Color = "normal"
)

// Status summarizes how the month is going.
type Status string

// Progress statuses.
const (
	StatusGoalMet  Status = "goal-met"
	StatusNearGoal Status = "near-goal"
	StatusOnTrack  Status = "on-track"
	StatusCritical Status = "critical"
)

// InputFromRecord extracts calculator input from a user record.
func InputFromRecord(rec *models.UserRecord) Input {
	return Input{
		MonthlyGoal:  rec.MonthlyGoal,
		TotalPoints:  rec.TotalPoints,
		DailyPoints:  rec.DailyPoints,
		ExcludedDays: rec.ExcludedDays,
	}
}

// ExcludedSet parses DD/MM/YYYY entries into a lookup set. Malformed entries are skipped.
func ExcludedSet(excluded []string) map[calendar.Date]struct{} {
	set := make(map[calendar.Date]struct{}, len(excluded))
	for _, s := range excluded {
		d, err := calendar.ParseBR(s)
		if err != nil {
			continue
		}
		set[d] = struct{}{}
	}
	return set
}

// IsBusinessDay reports whether d is a weekday outside the excluded set.
func IsBusinessDay(d calendar.Date, excluded map[calendar.Date]struct{}) bool {
	if d.IsWeekend() {
		return false
	}
	_, off := excluded[d]
	return !off
}

// CountBusinessDays scans the month containing today. Today itself counts as
// remaining when it is a business day.
func CountBusinessDays(excluded []string, today calendar.Date) BusinessDays {
	set := ExcludedSet(excluded)

	var bd BusinessDays
	for _, d := range calendar.MonthDays(today) {
		if !IsBusinessDay(d, set) {
			continue
		}
		bd.Total++
		if d.Day < today.Day {
			bd.Past++
		} else {
			bd.Remaining++
		}
	}
	return bd
}

// ComputeDashboard derives the dashboard figures for in as of today.
func ComputeDashboard(in Input, today calendar.Date) Dashboard {
	bd := CountBusinessDays(in.ExcludedDays, today)

	diff := in.MonthlyGoal - in.TotalPoints
	shortfall := max(0, diff)

	var quota float64
	switch {
	case bd.Remaining > 0:
		quota = float64(shortfall) / float64(bd.Remaining)
	case shortfall > 0:
		quota = float64(shortfall)
	}

	var percent float64
	if in.MonthlyGoal > 0 {
		percent = float64(in.TotalPoints) / float64(in.MonthlyGoal) * 100
	}

	return Dashboard{
		TotalBusinessDays:     bd.Total,
		BusinessDaysPast:      bd.Past,
		BusinessDaysRemaining: bd.Remaining,
		Shortfall:             shortfall,
		Surplus:               max(0, -diff),
		RequiredDailyQuota:    math.Max(0, quota),
		PercentComplete:       math.Min(100, math.Max(0, percent)),
		GoalMet:               in.TotalPoints >= in.MonthlyGoal,
		WeeklyAverage:         WeeklyAverage(in.DailyPoints),
	}
}

// WeeklyAverage is the mean of the entries with the five greatest date keys.
func WeeklyAverage(daily map[string]int) float64 {
	if len(daily) == 0 {
		return 0
	}

	keys := slices.Collect(maps.Keys(daily))
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > models.WeeklyAverageWindow {
		keys = keys[:models.WeeklyAverageWindow]
	}

	sum := 0
	for _, k := range keys {
		sum += daily[k]
	}
	return float64(sum) / float64(len(keys))
}

// RingColor picks the progress ring color.
func RingColor(d Dashboard) Color {
	switch {
	case d.PercentComplete >= 100:
		return ColorComplete
	case d.RequiredDailyQuota > models.StrainedQuotaPoints:
		return ColorStrained
	default:
		return ColorNormal
	}
}

// StatusOf classifies the dashboard against the near-goal and critical thresholds.
func StatusOf(d Dashboard) Status {
	switch {
	case d.GoalMet:
		return StatusGoalMet
	case d.PercentComplete >= models.NearGoalPercent:
		return StatusNearGoal
	case d.PercentComplete < models.CriticalPercent && d.BusinessDaysPast > d.BusinessDaysRemaining:
		return StatusCritical
	default:
		return StatusOnTrack
	}
}
