package observation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"pgregory.net/rapid"
)

var today = calendar.New(2026, time.March, 18)

func datePtr(y int, m time.Month, d int) *calendar.Date {
	date := calendar.New(y, m, d)
	return &date
}

func TestParse_Bonuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		total    int
		category models.BonusCategory
	}{
		{name: "receiving help", text: "Hoje fui ajudar no recebimento", total: 100, category: models.BonusReceivingHelp},
		{name: "receiving help twice", text: "ajudar no recebimento e depois ajudar no recebimento de novo", total: 200, category: models.BonusReceivingHelp},
		{name: "wording variant", text: "ajuda recebimento", total: 100, category: models.BonusReceivingHelp},
		{name: "bare keyword", text: "RECEBIMENTO", total: 100, category: models.BonusReceivingHelp},
		{name: "english", text: "helped with receiving", total: 100, category: models.BonusReceivingHelp},
		{name: "other sector", text: "outro setor #250", total: 250, category: models.BonusOtherSector},
		{name: "other sector without hash", text: "Outra atividade 75", total: 75, category: models.BonusOtherSector},
		{name: "other sector legacy spelling", text: "outro sector #40", total: 40, category: models.BonusOtherSector},
		{name: "other sector repeated", text: "outro setor #10 outro setor #20", total: 30, category: models.BonusOtherSector},
		{name: "mixed categories", text: "ajudar no recebimento, outro setor #300", total: 400, category: models.BonusOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Parse(tt.text, today)
			require.Equal(t, tt.total, res.BonusTotal)
			require.Equal(t, tt.category, res.BonusCategory())
			require.False(t, res.Empty())
		})
	}
}

func TestParse_BonusSummation(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		text := ""
		for range n {
			text += "ajudar no recebimento. "
		}
		res := Parse(text, today)
		if res.BonusTotal != n*models.ReceivingHelpBonus {
			t.Fatalf("bonus %d, want %d", res.BonusTotal, n*models.ReceivingHelpBonus)
		}
	})
}

func TestParse_Schedule(t *testing.T) {
	t.Parallel()

	t.Run("holiday adds an off date", func(t *testing.T) {
		t.Parallel()
		res := Parse("feriado 21/04/2026", today)
		require.Equal(t, datePtr(2026, time.April, 21), res.ScheduleOffDate)
		require.Nil(t, res.ScheduleRemovalDate)
	})

	t.Run("birthday with accent", func(t *testing.T) {
		t.Parallel()
		res := Parse("Aniversário 03/05/2026", today)
		require.Equal(t, datePtr(2026, time.May, 3), res.ScheduleOffDate)
	})

	t.Run("last match wins", func(t *testing.T) {
		t.Parallel()
		res := Parse("feriado 21/04/2026 e folga 01/05/2026", today)
		require.Equal(t, datePtr(2026, time.May, 1), res.ScheduleOffDate)
	})

	t.Run("invalid calendar date is ignored", func(t *testing.T) {
		t.Parallel()
		res := Parse("feriado 31/02/2026", today)
		require.Nil(t, res.ScheduleOffDate)
		require.True(t, res.Empty())
	})

	t.Run("removal does not schedule", func(t *testing.T) {
		t.Parallel()
		res := Parse("remover feriado 21/04/2026", today)
		require.Equal(t, datePtr(2026, time.April, 21), res.ScheduleRemovalDate)
		require.Nil(t, res.ScheduleOffDate)
	})

	t.Run("removal without qualifier", func(t *testing.T) {
		t.Parallel()
		res := Parse("cancelar 21/04/2026", today)
		require.Equal(t, datePtr(2026, time.April, 21), res.ScheduleRemovalDate)
	})

	t.Run("removal of sick leave does not start a new one", func(t *testing.T) {
		t.Parallel()
		res := Parse("excluir atestado 19/03/2026", today)
		require.Equal(t, datePtr(2026, time.March, 19), res.ScheduleRemovalDate)
		require.Nil(t, res.SickLeave)
	})
}

func TestParse_ClearData(t *testing.T) {
	t.Parallel()

	require.True(t, Parse("quero limpar dados", today).ClearAllData)
	require.True(t, Parse("LIMPAR DADOS", today).ClearAllData)
	require.True(t, Parse("clear data", today).ClearAllData)
	require.False(t, Parse("limpar a mesa", today).ClearAllData)
}

func TestParse_Counters(t *testing.T) {
	t.Parallel()

	res := Parse("caixas(120) erros(2)", today)
	require.Equal(t, 120, res.BoxesHandled)
	require.Equal(t, 2, res.ErrorsCount)

	res = Parse("caixa fechada (30) atividades(5) errors(1) erro(3)", today)
	require.Equal(t, 35, res.BoxesHandled)
	require.Equal(t, 4, res.ErrorsCount)

	res = Parse("caixas(12345)", today)
	require.Zero(t, res.BoxesHandled)
}

func TestParse_PointValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"valor do ponto R$ 0,35", "0.35"},
		{"valor ponto: 1.20", "1.2"},
		{"ponto vale R$0,05", "0.05"},
		{"point value $ 0.40", "0.4"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			res := Parse(tt.text, today)
			require.NotNil(t, res.PointValueOverride)
			require.Equal(t, tt.want, res.PointValueOverride.String())
		})
	}

	require.Nil(t, Parse("valor do ponto 3", today).PointValueOverride)
}

func TestParse_SickLeave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want SickLeave
	}{
		{name: "days only", text: "atestado 3 dias", want: SickLeave{Days: 3}},
		{name: "defaults to one day", text: "Atestado médico", want: SickLeave{Days: 1}},
		{name: "singular day", text: "afastamento 1 dia", want: SickLeave{Days: 1}},
		{name: "short unit", text: "atestado 2d", want: SickLeave{Days: 2}},
		{
			name: "start date without year",
			text: "atestado 2 dias de 20/03",
			want: SickLeave{Days: 2, Start: datePtr(2026, time.March, 20)},
		},
		{
			name: "start and end",
			text: "afastamento de saúde de 20/03/2026 até 24/03/2026",
			want: SickLeave{Days: 1, Start: datePtr(2026, time.March, 20), End: datePtr(2026, time.March, 24)},
		},
		{
			name: "end without year rolls into next year",
			text: "atestado de 20/12 a 05/01",
			want: SickLeave{Days: 1, Start: datePtr(2026, time.December, 20), End: datePtr(2027, time.January, 5)},
		},
		{
			name: "end without year before today",
			text: "atestado até 10/01",
			want: SickLeave{Days: 1, End: datePtr(2027, time.January, 10)},
		},
		{
			name: "explicit end before start is kept",
			text: "atestado de 20/12/2026 a 05/01/2026",
			want: SickLeave{Days: 1, Start: datePtr(2026, time.December, 20), End: datePtr(2026, time.January, 5)},
		},
		{
			name: "english",
			text: "sick leave 4 days from 23/3",
			want: SickLeave{Days: 4, Start: datePtr(2026, time.March, 23)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Parse(tt.text, today)
			require.NotNil(t, res.SickLeave)
			require.Equal(t, tt.want, *res.SickLeave)
		})
	}
}

func TestParse_GoalTable(t *testing.T) {
	t.Parallel()

	res := Parse("meta alterada (50000, 60000, 70000, 95000)", today)
	require.Equal(t, &[4]int{50000, 60000, 70000, 95000}, res.GoalTableOverride)

	res = Parse("meta alterada (5000,55000,65000,90000)", today)
	require.Equal(t, &[4]int{5000, 55000, 65000, 90000}, res.GoalTableOverride)

	res = Parse("meta alterada (50,55000,65000,90000)", today)
	require.Nil(t, res.GoalTableOverride)

	res = Parse("meta alterada (50000,55000,65000)", today)
	require.Nil(t, res.GoalTableOverride)
}

func TestParse_Independence(t *testing.T) {
	t.Parallel()

	res := Parse("ajudar no recebimento; feriado 21/04/2026; caixas(40) erros(1); atestado 2 dias", today)
	require.Equal(t, 100, res.BonusTotal)
	require.Equal(t, datePtr(2026, time.April, 21), res.ScheduleOffDate)
	require.Equal(t, 40, res.BoxesHandled)
	require.Equal(t, 1, res.ErrorsCount)
	require.NotNil(t, res.SickLeave)
	require.Equal(t, 2, res.SickLeave.Days)
}

func TestParse_NothingMatched(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "dia tranquilo", "   ", "caixas", "outro setor #"} {
		res := Parse(text, today)
		require.True(t, res.Empty(), text)
		require.Zero(t, res.BonusTotal)
	}
}

func TestIsReportRequest(t *testing.T) {
	t.Parallel()

	require.True(t, IsReportRequest("quero o relatório"))
	require.True(t, IsReportRequest("RELATORIO"))
	require.True(t, IsReportRequest("send report please"))
	require.False(t, IsReportRequest("reporter"))
	require.False(t, IsReportRequest("ajudar no recebimento"))
}

func TestRuleNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"receiving-help", "other-sector", "schedule-add", "schedule-remove", "clear-data",
		"boxes", "errors", "point-value", "sick-leave", "goal-table",
	}, RuleNames())
}
