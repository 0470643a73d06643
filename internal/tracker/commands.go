package tracker

import (
	"fmt"
	"slices"
	"strings"

	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/observation"
)

// Level grades a Signal.
type Level string

// Signal levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Signal is one user-facing line produced while applying a note.
type Signal struct {
	Level Level
	Text  string
}

// Outcome reports what ApplyCommands did to a record.
type Outcome struct {
	Signals         []Signal
	Mutated         bool
	BonusApplied    int
	ExcludedAdded   []calendar.Date
	ExcludedRemoved []calendar.Date

	// ClearRequested means the note asked to wipe all data. Nothing else in
	// the note was applied; the caller must confirm before wiping.
	ClearRequested bool

	// PendingGoalTable holds a validated override awaiting confirmation.
	PendingGoalTable *[4]int
}

func (o *Outcome) signal(level Level, format string, args ...any) {
	o.Signals = append(o.Signals, Signal{Level: level, Text: fmt.Sprintf(format, args...)})
}

// NoCommandText is the signal text for a note with no recognized command.
const NoCommandText = "Nenhum comando válido encontrado na observação."

// ApplyCommands applies a parsed note to rec. text is the original note and
// is used for the daily note and the bonus audit entry.
func ApplyCommands(rec *models.UserRecord, text string, res observation.Result, today calendar.Date) Outcome {
	var out Outcome

	if res.Empty() {
		out.signal(LevelInfo, NoCommandText)
		return out
	}
	if res.ClearAllData {
		out.ClearRequested = true
		out.signal(LevelWarning, "⚠️ Pedido para apagar todos os dados. Confirme para continuar.")
		return out
	}

	rec.EnsureMaps()
	note := models.TruncateRunes(strings.TrimSpace(text), models.MaxObservationLength)

	if res.GoalTableOverride != nil {
		values := *res.GoalTableOverride
		if err := ValidateGoalTable(values); err != nil {
			out.signal(LevelError, "%s", Message(err))
		} else {
			out.PendingGoalTable = &values
			out.signal(LevelInfo, "🎯 Nova tabela de metas (%d, %d, %d, %d) aguardando confirmação.",
				values[0], values[1], values[2], values[3])
		}
	}

	if res.BonusTotal > 0 {
		applyBonus(rec, &out, note, res, today)
	}
	if res.ScheduleOffDate != nil {
		applyScheduleAdd(rec, &out, *res.ScheduleOffDate)
	}
	if res.ScheduleRemovalDate != nil {
		applyScheduleRemove(rec, &out, *res.ScheduleRemovalDate)
	}
	if res.SickLeave != nil {
		applySickLeave(rec, &out, *res.SickLeave, today)
	}

	if res.BoxesHandled > 0 || res.ErrorsCount > 0 {
		rec.TotalBoxesHandled += res.BoxesHandled
		rec.TotalErrors += res.ErrorsCount
		out.Mutated = true
		out.signal(LevelSuccess, "📦 Caixas: +%d | Erros: +%d", res.BoxesHandled, res.ErrorsCount)
	}

	if res.PointValueOverride != nil {
		if !res.PointValueOverride.IsPositive() {
			out.signal(LevelError, "%s", Message(ErrInvalidPointsValue))
		} else {
			v := *res.PointValueOverride
			rec.PointValue = &v
			out.Mutated = true
			out.signal(LevelSuccess, "💰 Valor do ponto atualizado para R$ %s", v.StringFixed(2))
		}
	}

	return out
}

func applyBonus(rec *models.UserRecord, out *Outcome, note string, res observation.Result, today calendar.Date) {
	key := today.ISO()
	rec.DailyPoints[key] += res.BonusTotal
	rec.TotalPoints += res.BonusTotal
	appendNote(rec, key, note)
	rec.BonusHistory = append(rec.BonusHistory, models.BonusEntry{
		Date:        key,
		Category:    res.BonusCategory(),
		Amount:      res.BonusTotal,
		Description: note,
	})
	out.BonusApplied = res.BonusTotal
	out.Mutated = true
	out.signal(LevelSuccess, "🎁 Bônus de %d pontos adicionado.", res.BonusTotal)
}

func applyScheduleAdd(rec *models.UserRecord, out *Outcome, d calendar.Date) {
	if !addExcluded(rec, d) {
		out.signal(LevelInfo, "ℹ️ %s já está agendado.", d.BR())
		return
	}
	out.ExcludedAdded = append(out.ExcludedAdded, d)
	out.Mutated = true
	out.signal(LevelSuccess, "📅 %s agendado como folga.", d.BR())
}

func applyScheduleRemove(rec *models.UserRecord, out *Outcome, d calendar.Date) {
	i := indexOfExcluded(rec, d)
	if i < 0 {
		out.signal(LevelInfo, "ℹ️ %s não estava agendado.", d.BR())
		return
	}
	rec.ExcludedDays = slices.Delete(rec.ExcludedDays, i, i+1)
	out.ExcludedRemoved = append(out.ExcludedRemoved, d)
	out.Mutated = true
	out.signal(LevelSuccess, "🗑️ Agendamento de %s removido.", d.BR())
}

func applySickLeave(rec *models.UserRecord, out *Outcome, sl observation.SickLeave, today calendar.Date) {
	start := today
	if sl.Start != nil {
		start = *sl.Start
	}
	if sl.Days > MaxSickLeaveDays {
		out.signal(LevelError, "%s", Message(ErrSickLeaveTooLong))
		return
	}
	end := start.AddDays(sl.Days - 1)
	if sl.End != nil {
		if sl.End.Before(start) {
			out.signal(LevelError, "%s", Message(ErrSickLeaveRange))
			return
		}
		end = *sl.End
	}

	if start.DaysUntil(end)+1 > MaxSickLeaveDays {
		out.signal(LevelError, "%s", Message(ErrSickLeaveTooLong))
		return
	}

	days := calendar.Range(start, end)
	for _, d := range days {
		if addExcluded(rec, d) {
			out.ExcludedAdded = append(out.ExcludedAdded, d)
		}
		key := d.ISO()
		if !strings.Contains(rec.DailyNotes[key], models.SickLeaveMarker) {
			appendNote(rec, key, models.SickLeaveMarker)
		}
	}
	out.Mutated = true
	if len(days) == 1 {
		out.signal(LevelSuccess, "🏥 Atestado registrado para %s.", start.BR())
		return
	}
	out.signal(LevelSuccess, "🏥 Atestado registrado de %s a %s (%d dias).", start.BR(), end.BR(), len(days))
}

// addExcluded adds d to the excluded days and reports whether it was new.
func addExcluded(rec *models.UserRecord, d calendar.Date) bool {
	if isExcluded(rec, d) {
		return false
	}
	rec.ExcludedDays = append(rec.ExcludedDays, d.BR())
	return true
}

func appendNote(rec *models.UserRecord, key, note string) {
	if note == "" {
		return
	}
	if existing := rec.DailyNotes[key]; existing != "" {
		rec.DailyNotes[key] = existing + "\n" + note
		return
	}
	rec.DailyNotes[key] = note
}
