package bot

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

const (
	progressBarWidth = 10
	historySize      = 5
)

var weekdayShort = [...]string{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"}

var weekdayLong = [...]string{"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"}

// formatInt renders n with dot thousands separators, e.g. 45.000.
func formatInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// formatFloat renders f with one decimal and a comma separator.
func formatFloat(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', 1, 64), ".", ",", 1)
}

// formatCurrency renders d as R$ 1.234,56.
func formatCurrency(d decimal.Decimal) string {
	fixed := d.Round(2).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.Atoi(intPart)
	if err != nil {
		return "R$ " + strings.Replace(fixed, ".", ",", 1)
	}
	return "R$ " + formatInt(n) + "," + frac
}

func progressBar(percent float64, theme models.Theme) string {
	filled, empty := "🟩", "⬜"
	if theme == models.ThemeDark {
		filled, empty = "▰", "▱"
	}
	n := int(math.Floor(math.Min(percent, 100) / 100 * progressBarWidth))
	n = max(0, min(progressBarWidth, n))
	return strings.Repeat(filled, n) + strings.Repeat(empty, progressBarWidth-n)
}

func colorEmoji(c progress.Color) string {
	switch c {
	case progress.ColorComplete:
		return "🟢"
	case progress.ColorStrained:
		return "🔴"
	default:
		return "🔵"
	}
}

func statusLine(s progress.Status) string {
	switch s {
	case progress.StatusGoalMet:
		return "🎉 Meta batida! Parabéns!"
	case progress.StatusNearGoal:
		return "🔥 Quase lá! Falta pouco para a meta."
	case progress.StatusCritical:
		return "⚠️ Atenção: o ritmo atual não alcança a meta."
	default:
		return "👍 No caminho certo."
	}
}

// formatDashboard renders the dashboard card. A simulated card omits the
// parts that depend on stored history.
func formatDashboard(rec *models.UserRecord, d progress.Dashboard, total int, theme models.Theme, simulated bool) string {
	var sb strings.Builder

	if simulated {
		sb.WriteString("🧪 <b>Simulação</b> (não é salva)\n")
	}
	fmt.Fprintf(&sb, "📊 <b>Painel de %s</b>\n\n", escapeHTML(rec.Name))
	fmt.Fprintf(&sb, "🎯 Meta mensal: <b>%s</b> pts (faixa %s)\n", formatInt(rec.MonthlyGoal), rec.SelectedGoalKey)
	fmt.Fprintf(&sb, "✅ Pontos no mês: <b>%s</b>\n", formatInt(total))
	fmt.Fprintf(&sb, "%s %s %s%%\n\n", colorEmoji(progress.RingColor(d)), progressBar(d.PercentComplete, theme), formatFloat(d.PercentComplete))

	fmt.Fprintf(&sb, "📅 Dias úteis: %d no mês, %d restantes\n", d.TotalBusinessDays, d.BusinessDaysRemaining)
	if d.GoalMet {
		fmt.Fprintf(&sb, "🎉 Excedente: <b>%s</b> pts\n", formatInt(d.Surplus))
	} else {
		fmt.Fprintf(&sb, "📉 Faltam: <b>%s</b> pts\n", formatInt(d.Shortfall))
		fmt.Fprintf(&sb, "⚡ Meta diária necessária: <b>%s</b> pts\n", formatInt(int(math.Ceil(d.RequiredDailyQuota))))
	}
	if !simulated {
		fmt.Fprintf(&sb, "📈 Média dos últimos dias: %s pts\n", formatInt(int(math.Round(d.WeeklyAverage))))
	}
	sb.WriteString("\n")
	sb.WriteString(statusLine(progress.StatusOf(d)))

	if simulated {
		return sb.String()
	}

	sb.WriteString("\n")
	sb.WriteString(formatPerformer(progress.TopPerformer(rec)))
	if earnings, ok := tracker.Earnings(rec); ok {
		fmt.Fprintf(&sb, "\n💰 Estimativa do mês: <b>%s</b> (ponto a %s)", formatCurrency(earnings), formatCurrency(*rec.PointValue))
	}
	return sb.String()
}

func formatPerformer(p progress.Performer) string {
	if p.Eligible {
		return fmt.Sprintf("🏆 <b>Top performer!</b> Taxa de erro %s%%", formatFloat(p.ErrorRate))
	}
	var missing []string
	if !p.PointsOK {
		missing = append(missing, fmt.Sprintf("faltam %s pts", formatInt(p.PointsMissing)))
	}
	if !p.ErrorsOK {
		missing = append(missing, fmt.Sprintf("taxa de erro %s%% acima de %s%%",
			formatFloat(p.ErrorRate), formatFloat(models.TopPerformerMaxErrorRate)))
	}
	return "🏅 Top performer: " + strings.Join(missing, "; ")
}

// formatHistory lists the most recent entries with their notes.
func formatHistory(rec *models.UserRecord) string {
	keys := make([]string, 0, len(rec.DailyPoints))
	for k := range rec.DailyPoints {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "📭 Nenhum registro neste mês."
	}
	slices.Sort(keys)
	slices.Reverse(keys)
	if len(keys) > historySize {
		keys = keys[:historySize]
	}

	var sb strings.Builder
	sb.WriteString("🗓️ <b>Últimos registros</b>\n")
	for _, k := range keys {
		d, err := calendar.ParseISO(k)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n• %s (%s): <b>%s</b> pts", d.BR()[:5], weekdayShort[d.Weekday()], formatInt(rec.DailyPoints[k]))
		if note := strings.TrimSpace(rec.DailyNotes[k]); note != "" {
			fmt.Fprintf(&sb, "\n  📝 %s", escapeHTML(strings.ReplaceAll(note, "\n", " / ")))
		}
	}
	return sb.String()
}

func formatInsights(ins progress.Insights) string {
	if !ins.HasData {
		return "💡 Ainda não há registros suficientes para análises."
	}

	trend := map[progress.Trend]string{
		progress.TrendUp:   "📈 em alta",
		progress.TrendDown: "📉 em queda",
		progress.TrendFlat: "➡️ estável",
	}[ins.Trend]

	var sb strings.Builder
	sb.WriteString("💡 <b>Análises</b>\n")
	fmt.Fprintf(&sb, "• Melhor dia: %s (média %s pts)\n", weekdayLong[ins.BestWeekday], formatInt(int(math.Round(ins.BestWeekdayAvg))))
	fmt.Fprintf(&sb, "• Média por dia registrado: %s pts\n", formatInt(int(math.Round(ins.DailyAverage))))
	fmt.Fprintf(&sb, "• Sequência atual: %d dia(s)\n", ins.Streak)
	fmt.Fprintf(&sb, "• Tendência: %s", trend)
	return sb.String()
}

func formatRanking(days []progress.RankedDay) string {
	if len(days) == 0 {
		return ""
	}
	medals := []string{"🥇", "🥈", "🥉"}

	var sb strings.Builder
	sb.WriteString("🏅 <b>Melhores dias</b>\n")
	for i, d := range days {
		prefix := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		fmt.Fprintf(&sb, "%s %s: %s pts\n", prefix, d.Date.BR(), formatInt(d.Points))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSignals(signals []tracker.Signal) string {
	icons := map[tracker.Level]string{
		tracker.LevelInfo:    "ℹ️",
		tracker.LevelSuccess: "✅",
		tracker.LevelWarning: "⚠️",
		tracker.LevelError:   "❌",
	}
	lines := make([]string, len(signals))
	for i, s := range signals {
		lines[i] = icons[s.Level] + " " + escapeHTML(s.Text)
	}
	return strings.Join(lines, "\n")
}

func monthLabel(d calendar.Date) string {
	return d.Time(time.UTC).Format("2006-01")
}
