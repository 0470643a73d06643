// Package tracker applies registrations, corrections and note commands to a
// user record.
package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
)

// MaxSickLeaveDays bounds a single sick-leave request.
const MaxSickLeaveDays = 60

var thousandsRe = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// ValidateName checks a worker name: 3 to 10 Latin-1 letters with no letter
// repeated three times in a row.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < models.MinNameLength || n > models.MaxNameLength {
		return ErrInvalidName
	}

	var prev rune
	run := 0
	for _, r := range name {
		if r > unicode.MaxLatin1 || !unicode.IsLetter(r) {
			return ErrInvalidName
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= 3 {
			return ErrInvalidName
		}
	}
	return nil
}

// ValidateTier checks that key names a known goal tier.
func ValidateTier(key models.TierKey) error {
	if !models.IsTier(key) {
		return ErrInvalidTier
	}
	return nil
}

// NewRecord creates the record of a first login.
func NewRecord(name string, tier models.TierKey, today calendar.Date) (*models.UserRecord, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateTier(tier); err != nil {
		return nil, err
	}

	rec := &models.UserRecord{
		Name:                name,
		GoalTable:           models.DefaultGoalTable(),
		SelectedGoalKey:     tier,
		LastCalculationDate: today.ISO(),
	}
	rec.EnsureMaps()
	rec.MonthlyGoal, _ = rec.TierValue(tier)
	return rec, nil
}

// SelectTier switches the active tier and recomputes the monthly goal.
func SelectTier(rec *models.UserRecord, key models.TierKey) error {
	if err := ValidateTier(key); err != nil {
		return err
	}
	rec.SelectedGoalKey = key
	rec.MonthlyGoal, _ = rec.TierValue(key)
	return nil
}

// ParsePoints reads a point amount typed by a user. Dot thousands separators
// ("1.500") are accepted.
func ParsePoints(s string) (int, error) {
	s = strings.TrimSpace(s)
	if thousandsRe.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidPoints
	}
	return n, nil
}

// Register records today's points.
func Register(rec *models.UserRecord, points int, today calendar.Date) error {
	if today.IsWeekend() {
		return ErrWeekend
	}
	switch {
	case points <= 0:
		return ErrInvalidPoints
	case points < models.MinDailyPoints:
		return ErrBelowMinimum
	case points > models.MaxDailyPoints:
		return ErrAboveMaximum
	}
	if isExcluded(rec, today) {
		return ErrExcludedDay
	}

	key := today.ISO()
	if _, exists := rec.DailyPoints[key]; exists {
		return ErrAlreadyRegistered
	}

	rec.EnsureMaps()
	rec.DailyPoints[key] = points
	rec.TotalPoints += points
	rec.LastCalculationDate = key
	return nil
}

// Correct overwrites the entry for dateKey and returns the applied delta.
// Only the latest entry can be corrected, and only on the day it was made.
func Correct(rec *models.UserRecord, dateKey string, value int, today calendar.Date) (int, error) {
	latest, ok := rec.LatestEntryKey()
	if !ok {
		return 0, ErrNoEntry
	}
	if dateKey != latest {
		return 0, ErrNotLatestEntry
	}
	if today.IsWeekend() {
		return 0, ErrWeekend
	}
	if latest != today.ISO() {
		return 0, ErrCorrectionExpired
	}
	if value < models.MinCorrectionPoints || value > models.MaxCorrectionPoints {
		return 0, ErrCorrectionRange
	}

	old := rec.DailyPoints[latest]
	if value == old {
		return 0, ErrSameValue
	}

	delta := value - old
	rec.DailyPoints[latest] = value
	rec.TotalPoints += delta
	return delta, nil
}

// CorrectLatest corrects the most recent entry.
func CorrectLatest(rec *models.UserRecord, value int, today calendar.Date) (int, error) {
	latest, ok := rec.LatestEntryKey()
	if !ok {
		return 0, ErrNoEntry
	}
	return Correct(rec, latest, value, today)
}

// ValidateGoalTable range-checks the four tier values of an override.
func ValidateGoalTable(values [4]int) error {
	for i, v := range values {
		if v < models.MinGoalValue || v > models.MaxGoalValue {
			return fmt.Errorf("%w: tier %s value %d", ErrGoalOutOfRange, models.TierKeys()[i], v)
		}
	}
	return nil
}

// ApplyGoalTable replaces the user's tier table and recomputes the goal of
// the selected tier.
func ApplyGoalTable(rec *models.UserRecord, values [4]int) error {
	if err := ValidateGoalTable(values); err != nil {
		return err
	}
	table := make(map[models.TierKey]int, len(values))
	for i, key := range models.TierKeys() {
		table[key] = values[i]
	}
	rec.GoalTable = table
	rec.MonthlyGoal, _ = rec.TierValue(rec.SelectedGoalKey)
	return nil
}

// RollOverMonth clears the month's points when today is in a different month
// than the last calculation, then stamps today. It reports whether a reset
// happened.
func RollOverMonth(rec *models.UserRecord, today calendar.Date) bool {
	reset := false
	if last, err := calendar.ParseISO(rec.LastCalculationDate); err == nil && !last.SameMonth(today) {
		rec.DailyPoints = make(map[string]int)
		rec.TotalPoints = 0
		reset = true
	}
	rec.LastCalculationDate = today.ISO()
	return reset
}

// Simulate computes the dashboard the user would see with a hypothetical
// total. rec is not modified.
func Simulate(rec *models.UserRecord, total int, today calendar.Date) progress.Dashboard {
	return progress.ComputeDashboard(progress.Input{
		MonthlyGoal: rec.MonthlyGoal,
		TotalPoints: total,
		DailyPoints: map[string]int{},
	}, today)
}

// Dashboard computes the live dashboard of rec.
func Dashboard(rec *models.UserRecord, today calendar.Date) progress.Dashboard {
	return progress.ComputeDashboard(progress.InputFromRecord(rec), today)
}

// Earnings converts the month's points into currency when a point value is set.
func Earnings(rec *models.UserRecord) (decimal.Decimal, bool) {
	if rec.PointValue == nil {
		return decimal.Zero, false
	}
	return rec.PointValue.Mul(decimal.NewFromInt(int64(rec.TotalPoints))), true
}

func isExcluded(rec *models.UserRecord, d calendar.Date) bool {
	return indexOfExcluded(rec, d) >= 0
}

func indexOfExcluded(rec *models.UserRecord, d calendar.Date) int {
	for i, s := range rec.ExcludedDays {
		if e, err := calendar.ParseBR(s); err == nil && e == d {
			return i
		}
	}
	return -1
}
