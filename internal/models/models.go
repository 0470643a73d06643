// Package models defines the domain entities for the productivity tracker.
package models

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// TierKey identifies a daily target bucket in the goal table.
type TierKey string

// Goal tiers, named after the daily currency target they represent.
const (
	Tier300 TierKey = "300"
	Tier400 TierKey = "400"
	Tier500 TierKey = "500"
	Tier600 TierKey = "600"

	DefaultTier = Tier300
)

var tierOrder = []TierKey{Tier300, Tier400, Tier500, Tier600}

var defaultGoalTable = map[TierKey]int{
	Tier300: 45000,
	Tier400: 55000,
	Tier500: 65000,
	Tier600: 90000,
}

// Point limits.
const (
	MinDailyPoints      = 100
	MaxDailyPoints      = 100000
	MinCorrectionPoints = 100
	MaxCorrectionPoints = 10000
)

// Goal table limits applied to overrides.
const (
	MinGoalValue = 10000
	MaxGoalValue = 300000
)

// Text limits.
const (
	MinNameLength        = 3
	MaxNameLength        = 10
	MaxStoredNameLength  = 100
	MaxObservationLength = 500
)

// ReceivingHelpBonus is awarded per "helped with receiving" mention.
const ReceivingHelpBonus = 100

// TopPerformerMaxErrorRate is the error percentage ceiling for the badge.
const TopPerformerMaxErrorRate = 1.8

// Dashboard thresholds.
const (
	WeeklyAverageWindow  = 5
	NearGoalPercent      = 90
	CriticalPercent      = 50
	StrainedQuotaPoints  = 2500
	RankingSize          = 10
	SimulationRevertTime = 15 * time.Second
)

// SickLeaveMarker prefixes the note written on each sick-leave day.
const SickLeaveMarker = "🏥 Atestado"

// BonusCategory classifies a bonus grant.
type BonusCategory string

// Bonus categories.
const (
	BonusReceivingHelp BonusCategory = "receiving-help"
	BonusOtherSector   BonusCategory = "other-sector"
	BonusOther         BonusCategory = "other"
)

// Theme is the two-valued display preference.
type Theme string

// Themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// User represents a Telegram user.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BonusEntry is one row of the bonus audit log.
type BonusEntry struct {
	Date        string        `json:"date"`
	Category    BonusCategory `json:"category"`
	Amount      int           `json:"amount"`
	Description string        `json:"description"`
}

// UserRecord is the persisted state of one worker.
type UserRecord struct {
	Name                string            `json:"name"`
	MonthlyGoal         int               `json:"monthlyGoal"`
	GoalTable           map[TierKey]int   `json:"goalTable"`
	SelectedGoalKey     TierKey           `json:"selectedGoalKey"`
	DailyPoints         map[string]int    `json:"dailyPoints"`
	TotalPoints         int               `json:"totalPoints"`
	LastCalculationDate string            `json:"lastCalculationDate"`
	DailyNotes          map[string]string `json:"dailyNotes"`
	ExcludedDays        []string          `json:"excludedDays"`
	BonusHistory        []BonusEntry      `json:"bonusHistory"`
	TotalBoxesHandled   int               `json:"totalBoxesHandled"`
	TotalErrors         int               `json:"totalErrors"`
	PointValue          *decimal.Decimal  `json:"pointValueInCurrency,omitempty"`
}

// TierKeys returns the tier identifiers in goal-table order.
func TierKeys() []TierKey {
	return slices.Clone(tierOrder)
}

// IsTier reports whether key names a known tier.
func IsTier(key TierKey) bool {
	return slices.Contains(tierOrder, key)
}

// DefaultGoalTable returns a fresh copy of the default tier table.
func DefaultGoalTable() map[TierKey]int {
	return maps.Clone(defaultGoalTable)
}

// TierValue returns the monthly goal for a tier, falling back to the default table.
func (r *UserRecord) TierValue(key TierKey) (int, bool) {
	if v, ok := r.GoalTable[key]; ok {
		return v, true
	}
	v, ok := defaultGoalTable[key]
	return v, ok
}

// EnsureMaps initializes nil collections, e.g. after decoding an older payload.
func (r *UserRecord) EnsureMaps() {
	if r.GoalTable == nil {
		r.GoalTable = DefaultGoalTable()
	}
	if r.DailyPoints == nil {
		r.DailyPoints = make(map[string]int)
	}
	if r.DailyNotes == nil {
		r.DailyNotes = make(map[string]string)
	}
	if r.ExcludedDays == nil {
		r.ExcludedDays = []string{}
	}
	if r.BonusHistory == nil {
		r.BonusHistory = []BonusEntry{}
	}
	if r.SelectedGoalKey == "" {
		r.SelectedGoalKey = DefaultTier
	}
}

// Clone returns a deep copy of the record.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.GoalTable = maps.Clone(r.GoalTable)
	c.DailyPoints = maps.Clone(r.DailyPoints)
	c.DailyNotes = maps.Clone(r.DailyNotes)
	c.ExcludedDays = slices.Clone(r.ExcludedDays)
	c.BonusHistory = slices.Clone(r.BonusHistory)
	if r.PointValue != nil {
		v := *r.PointValue
		c.PointValue = &v
	}
	return &c
}

// Sanitize trims free-text fields to their stored limits.
func (r *UserRecord) Sanitize() {
	r.Name = TruncateRunes(strings.TrimSpace(r.Name), MaxStoredNameLength)
	for i := range r.BonusHistory {
		r.BonusHistory[i].Description = TruncateRunes(r.BonusHistory[i].Description, MaxObservationLength)
	}
}

// SumDailyPoints adds up every daily entry.
func (r *UserRecord) SumDailyPoints() int {
	total := 0
	for _, v := range r.DailyPoints {
		total += v
	}
	return total
}

// LatestEntryKey returns the greatest date key present in DailyPoints.
func (r *UserRecord) LatestEntryKey() (string, bool) {
	if len(r.DailyPoints) == 0 {
		return "", false
	}
	keys := slices.Collect(maps.Keys(r.DailyPoints))
	return slices.Max(keys), true
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
