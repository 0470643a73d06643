package bot

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
	"pgregory.net/rapid"
)

func TestFormatInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{45000, "45.000"},
		{1234567, "1.234.567"},
		{-2500, "-2.500"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, formatInt(tt.in))
		})
	}
}

func TestFormatInt_RoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(-1_000_000_000, 1_000_000_000).Draw(t, "n")
		s := formatInt(n)

		back, err := strconv.Atoi(strings.ReplaceAll(s, ".", ""))
		if err != nil || back != n {
			t.Fatalf("formatInt(%d) = %q does not round-trip", n, s)
		}
		for _, group := range strings.Split(strings.TrimPrefix(s, "-"), ".")[1:] {
			if len(group) != 3 {
				t.Fatalf("formatInt(%d) = %q has a short group", n, s)
			}
		}
	})
}

func TestFormatCurrency(t *testing.T) {
	t.Parallel()

	require.Equal(t, "R$ 0,05", formatCurrency(decimal.RequireFromString("0.05")))
	require.Equal(t, "R$ 1.234,56", formatCurrency(decimal.RequireFromString("1234.561")))
	require.Equal(t, "R$ 3.250,00", formatCurrency(decimal.NewFromInt(3250)))
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	require.Equal(t, "66,7", formatFloat(66.666))
	require.Equal(t, "0,0", formatFloat(0))
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	t.Run("light theme", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, strings.Repeat("🟩", 5)+strings.Repeat("⬜", 5), progressBar(55, models.ThemeLight))
	})

	t.Run("dark theme", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, strings.Repeat("▰", 3)+strings.Repeat("▱", 7), progressBar(30, models.ThemeDark))
	})

	t.Run("clamped", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, strings.Repeat("▰", 10), progressBar(250, models.ThemeDark))
		require.Equal(t, strings.Repeat("▱", 10), progressBar(-5, models.ThemeDark))
	})

	t.Run("always ten segments", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			p := rapid.Float64Range(-100, 1000).Draw(t, "percent")
			if n := utf8.RuneCountInString(progressBar(p, models.ThemeDark)); n != progressBarWidth {
				t.Fatalf("progressBar(%v) has %d segments", p, n)
			}
		})
	})
}

func testRecord() *models.UserRecord {
	return &models.UserRecord{
		Name:            "Maria",
		MonthlyGoal:     45000,
		GoalTable:       models.DefaultGoalTable(),
		SelectedGoalKey: models.Tier300,
		DailyPoints: map[string]int{
			"2026-03-16": 2500,
			"2026-03-17": 3100,
			"2026-03-18": 2800,
		},
		TotalPoints: 8400,
		DailyNotes: map[string]string{
			"2026-03-17": "ajudei no recebimento",
		},
	}
}

func TestFormatDashboard(t *testing.T) {
	t.Parallel()

	today := calendar.New(2026, 3, 18)

	t.Run("live", func(t *testing.T) {
		t.Parallel()
		rec := testRecord()
		v := decimal.RequireFromString("0.05")
		rec.PointValue = &v

		text := formatDashboard(rec, tracker.Dashboard(rec, today), rec.TotalPoints, models.ThemeLight, false)
		require.Contains(t, text, "Painel de Maria")
		require.Contains(t, text, "45.000")
		require.Contains(t, text, "8.400")
		require.Contains(t, text, "Média dos últimos dias")
		require.Contains(t, text, "Top performer")
		require.Contains(t, text, "R$ 420,00")
		require.NotContains(t, text, "Simulação")
	})

	t.Run("simulated", func(t *testing.T) {
		t.Parallel()
		rec := testRecord()
		text := formatDashboard(rec, tracker.Simulate(rec, 46000, today), 46000, models.ThemeDark, true)
		require.Contains(t, text, "Simulação")
		require.Contains(t, text, "Meta batida")
		require.Contains(t, text, "Excedente: <b>1.000</b>")
		require.NotContains(t, text, "Média dos últimos dias")
		require.NotContains(t, text, "Top performer")
	})

	t.Run("escapes name", func(t *testing.T) {
		t.Parallel()
		rec := testRecord()
		rec.Name = "<b>x</b>"
		text := formatDashboard(rec, tracker.Dashboard(rec, today), rec.TotalPoints, models.ThemeLight, false)
		require.Contains(t, text, "&lt;b&gt;x&lt;/b&gt;")
	})
}

func TestFormatHistory(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, formatHistory(&models.UserRecord{}), "Nenhum registro")
	})

	t.Run("newest first with notes", func(t *testing.T) {
		t.Parallel()
		text := formatHistory(testRecord())
		require.Less(t, strings.Index(text, "18/03"), strings.Index(text, "16/03"))
		require.Contains(t, text, "18/03 (qua)")
		require.Contains(t, text, "📝 ajudei no recebimento")
	})

	t.Run("limited", func(t *testing.T) {
		t.Parallel()
		rec := &models.UserRecord{DailyPoints: map[string]int{}}
		for day := 2; day <= 13; day++ {
			rec.DailyPoints[calendar.New(2026, 3, day).ISO()] = 1000
		}
		require.Equal(t, historySize, strings.Count(formatHistory(rec), "• "))
	})
}

func TestFormatRanking(t *testing.T) {
	t.Parallel()

	require.Empty(t, formatRanking(nil))

	text := formatRanking(progress.Ranking(testRecord().DailyPoints, models.RankingSize))
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[1], "🥇 17/03/2026")
	require.Contains(t, lines[3], "🥉 16/03/2026")
}

func TestFormatSignals(t *testing.T) {
	t.Parallel()

	text := formatSignals([]tracker.Signal{
		{Level: tracker.LevelSuccess, Text: "ok"},
		{Level: tracker.LevelError, Text: "a < b"},
	})
	require.Equal(t, "✅ ok\n❌ a &lt; b", text)
}

func TestFormatPerformer(t *testing.T) {
	t.Parallel()

	require.Contains(t, formatPerformer(progress.Performer{Eligible: true, ErrorRate: 1.2}), "1,2%")

	text := formatPerformer(progress.Performer{PointsMissing: 500, ErrorsOK: false, ErrorRate: 2.5})
	require.Contains(t, text, "faltam 500 pts")
	require.Contains(t, text, "2,5%")
}
