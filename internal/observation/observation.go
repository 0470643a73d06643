// Package observation interprets the commands embedded in a free-text note.
//
// A note is matched against an ordered table of independent rules. Every
// rule runs regardless of earlier matches. Rules that write a single-valued
// field keep the last match; bonus amounts and counters are summed over all
// matches.
package observation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// Bonus is a single matched bonus grant.
type Bonus struct {
	Category models.BonusCategory
	Amount   int
}

// SickLeave is a requested sick-leave range. Start and End are nil when the
// note does not name them.
type SickLeave struct {
	Days  int
	Start *calendar.Date
	End   *calendar.Date
}

// Result is the structured command set extracted from a note.
type Result struct {
	BonusTotal          int
	Bonuses             []Bonus
	ScheduleOffDate     *calendar.Date
	ScheduleRemovalDate *calendar.Date
	ClearAllData        bool
	BoxesHandled        int
	ErrorsCount         int
	PointValueOverride  *decimal.Decimal
	SickLeave           *SickLeave
	GoalTableOverride   *[4]int
}

// Empty reports whether the note carried no command at all.
func (r *Result) Empty() bool {
	return r.BonusTotal == 0 &&
		r.ScheduleOffDate == nil &&
		r.ScheduleRemovalDate == nil &&
		!r.ClearAllData &&
		r.BoxesHandled == 0 &&
		r.ErrorsCount == 0 &&
		r.PointValueOverride == nil &&
		r.SickLeave == nil &&
		r.GoalTableOverride == nil
}

// BonusCategory classifies the note's bonus for the audit log. Mixed
// categories are recorded as models.BonusOther.
func (r *Result) BonusCategory() models.BonusCategory {
	if len(r.Bonuses) == 0 {
		return models.BonusOther
	}
	first := r.Bonuses[0].Category
	for _, b := range r.Bonuses[1:] {
		if b.Category != first {
			return models.BonusOther
		}
	}
	return first
}

const datePattern = `(\d{1,2}/\d{1,2}/\d{4})`

// maxCount bounds a single counter mention.
const maxCount = 100000

const shortDatePattern = `(\d{1,2}/\d{1,2}(?:/\d{4})?)`

var (
	receivingHelpRe = regexp.MustCompile(`(?i)(?:ajud[ao]r?(?:\s*no)?\s*recebimento|recebimento|help(?:ed)?\s*(?:with\s*)?receiving)`)
	otherSectorRe   = regexp.MustCompile(`(?i)(?:outr[oa]s?\s*(?:sector|setor|atividades?)|other\s*sector)\s*#?(\d+)`)
	scheduleAddRe   = regexp.MustCompile(`(?i)(?:feriado|anivers[áa]rio|folga|holiday|birthday)\s*` + datePattern)
	scheduleDelRe   = regexp.MustCompile(`(?i)(?:remover|cancelar|excluir|remove|cancel|delete)\s*(?:feriado|anivers[áa]rio|agendamento|atestado|folga|holiday|birthday|schedule|sick\s*leave)?\s*` + datePattern)
	clearDataRe     = regexp.MustCompile(`(?i)limpar\s*dados|clear\s*data`)
	boxesRe         = regexp.MustCompile(`(?i)(?:caixas|caixa\s+fechada|atividades|boxes)\s*\((\d{1,4})\)`)
	errorsRe        = regexp.MustCompile(`(?i)(?:erros?|errors?)\s*\((\d+)\)`)
	pointValueRe    = regexp.MustCompile(`(?i)(?:valor\s*(?:do\s*)?ponto|ponto\s*vale|point\s*value)\s*[:\s]*R?\$?\s*(\d+[.,]\d{2})`)
	sickLeaveRe     = regexp.MustCompile(`(?i)(?:atestado|afastamento|sick\s*leave)` +
		`(?:\s+(?:m[ée]dico|de\s+sa[úu]de|sa[úu]de|medical))?` +
		`\s*(?:(\d+)\s*(?:dias?|days?|d)\b)?` +
		`\s*(?:(?:de|em|from)\s*` + shortDatePattern + `)?` +
		`(?:\s*(?:a|at[ée]|ao|to|until)\s*` + shortDatePattern + `)?`)
	goalTableRe = regexp.MustCompile(`(?i)(?:meta\s*alterada|goal\s*changed)\s*\(\s*(\d{3,6})\s*,\s*(\d{3,6})\s*,\s*(\d{3,6})\s*,\s*(\d{3,6})\s*\)`)

	reportRe = regexp.MustCompile(`(?i)relat[óo]rio|\breport\b`)

	// A removal phrase also contains the keywords of the add rules; those
	// matches belong to the removal rule only.
	removalTailRe = regexp.MustCompile(`(?i)(?:remover|cancelar|excluir|remove|cancel|delete)\s*$`)
)

// match is one regexp hit: the full text, its submatches and byte offset.
type match struct {
	groups []string
	start  int
}

type state struct {
	text  string
	today calendar.Date
	res   *Result
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(s *state, m match)
}

var rules = []rule{
	{name: "receiving-help", pattern: receivingHelpRe, apply: applyReceivingHelp},
	{name: "other-sector", pattern: otherSectorRe, apply: applyOtherSector},
	{name: "schedule-add", pattern: scheduleAddRe, apply: applyScheduleAdd},
	{name: "schedule-remove", pattern: scheduleDelRe, apply: applyScheduleRemove},
	{name: "clear-data", pattern: clearDataRe, apply: applyClearData},
	{name: "boxes", pattern: boxesRe, apply: applyBoxes},
	{name: "errors", pattern: errorsRe, apply: applyErrors},
	{name: "point-value", pattern: pointValueRe, apply: applyPointValue},
	{name: "sick-leave", pattern: sickLeaveRe, apply: applySickLeave},
	{name: "goal-table", pattern: goalTableRe, apply: applyGoalTable},
}

// Parse extracts every command in text. Dates written without a year use
// today's year. Parse never fails: text with no command yields an empty Result.
func Parse(text string, today calendar.Date) Result {
	var res Result
	s := &state{text: text, today: today, res: &res}

	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			r.apply(s, newMatch(text, loc))
		}
	}
	return res
}

// IsReportRequest reports whether the note asks for the report view.
func IsReportRequest(text string) bool {
	return reportRe.MatchString(text)
}

// RuleNames lists the rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

func newMatch(text string, loc []int) match {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return match{groups: groups, start: loc[0]}
}

func (s *state) precededByRemoval(m match) bool {
	return removalTailRe.MatchString(s.text[:m.start])
}

func (s *state) addBonus(category models.BonusCategory, amount int) {
	if amount <= 0 || amount > models.MaxDailyPoints {
		return
	}
	s.res.BonusTotal += amount
	s.res.Bonuses = append(s.res.Bonuses, Bonus{Category: category, Amount: amount})
}

func applyReceivingHelp(s *state, _ match) {
	s.addBonus(models.BonusReceivingHelp, models.ReceivingHelpBonus)
}

func applyOtherSector(s *state, m match) {
	s.addBonus(models.BonusOtherSector, atoi(m.groups[1]))
}

func applyScheduleAdd(s *state, m match) {
	if s.precededByRemoval(m) {
		return
	}
	if d, err := calendar.ParseBR(m.groups[1]); err == nil {
		s.res.ScheduleOffDate = &d
	}
}

func applyScheduleRemove(s *state, m match) {
	if d, err := calendar.ParseBR(m.groups[1]); err == nil {
		s.res.ScheduleRemovalDate = &d
	}
}

func applyClearData(s *state, _ match) {
	s.res.ClearAllData = true
}

func applyBoxes(s *state, m match) {
	s.res.BoxesHandled += atoi(m.groups[1])
}

func applyErrors(s *state, m match) {
	if n := atoi(m.groups[1]); n <= maxCount {
		s.res.ErrorsCount += n
	}
}

func applyPointValue(s *state, m match) {
	v, err := decimal.NewFromString(strings.Replace(m.groups[1], ",", ".", 1))
	if err != nil {
		return
	}
	s.res.PointValueOverride = &v
}

func applySickLeave(s *state, m match) {
	if s.precededByRemoval(m) {
		return
	}

	sl := &SickLeave{Days: 1}
	if n := atoi(m.groups[1]); n > 0 {
		sl.Days = n
	}
	if m.groups[2] != "" {
		if d, err := calendar.ParseBRDefaultYear(m.groups[2], s.today.Year); err == nil {
			sl.Start = &d
		}
	}
	if m.groups[3] != "" {
		from := s.today
		if sl.Start != nil {
			from = *sl.Start
		}
		if d, err := parseRangeEnd(m.groups[3], from); err == nil {
			sl.End = &d
		}
	}
	s.res.SickLeave = sl
}

// parseRangeEnd parses the end of a range starting at from. An end without
// a year that would fall before from belongs to the following year.
func parseRangeEnd(raw string, from calendar.Date) (calendar.Date, error) {
	d, err := calendar.ParseBRDefaultYear(raw, from.Year)
	if err != nil || strings.Count(raw, "/") == 2 || !d.Before(from) {
		return d, err
	}
	if next, err := calendar.ParseBRDefaultYear(raw, from.Year+1); err == nil {
		return next, nil
	}
	return d, nil
}

func applyGoalTable(s *state, m match) {
	var values [4]int
	for i := range values {
		values[i] = atoi(m.groups[i+1])
	}
	s.res.GoalTableOverride = &values
}

// atoi returns 0 for anything that is not a non-negative integer.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
