package bot

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

func TestGenerateMovementsCSV(t *testing.T) {
	t.Parallel()

	movements := []progress.Movement{
		{Date: calendar.New(2026, 3, 16), Kind: progress.MovementWork, Points: 2500, HasPoints: true},
		{Date: calendar.New(2026, 3, 17), Kind: progress.MovementSickLeave, Notes: "🏥 Atestado"},
		{Date: calendar.New(2026, 3, 18), Kind: progress.MovementScheduled, Notes: "folga, dentista"},
		{Date: calendar.New(2026, 3, 19), Kind: progress.MovementNotInformed, Pending: true},
		{Date: calendar.New(2026, 3, 13), Kind: progress.MovementNotInformed},
	}

	data, err := GenerateMovementsCSV(movements)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, []string{"Data", "Dia", "Tipo", "Pontos", "Observações"}, rows[0])
	require.Equal(t, []string{"16/03/2026", "segunda", "Trabalho", "2500", ""}, rows[1])
	require.Equal(t, "Atestado", rows[2][2])
	require.Equal(t, []string{"18/03/2026", "quarta", "Folga", "", "folga, dentista"}, rows[3])
	require.Equal(t, "Pendente", rows[4][2])
	require.Equal(t, "Não informado", rows[5][2])
}

func TestGenerateMovementsCSV_Empty(t *testing.T) {
	t.Parallel()

	data, err := GenerateMovementsCSV(nil)
	require.NoError(t, err)
	require.Equal(t, "Data,Dia,Tipo,Pontos,Observações\n", string(data))
}

func TestGenerateProgressChart(t *testing.T) {
	t.Parallel()

	today := calendar.New(2026, 3, 18)
	pngMagic := []byte{0x89, 'P', 'N', 'G'}

	t.Run("in progress", func(t *testing.T) {
		t.Parallel()
		rec := testRecord()
		data, err := GenerateProgressChart(rec, tracker.Dashboard(rec, today))
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(data, pngMagic))
	})

	t.Run("goal met", func(t *testing.T) {
		t.Parallel()
		rec := testRecord()
		rec.TotalPoints = 50000
		data, err := GenerateProgressChart(rec, tracker.Dashboard(rec, today))
		require.NoError(t, err)
		require.NotEmpty(t, data)
	})

	t.Run("nothing to chart", func(t *testing.T) {
		t.Parallel()
		rec := &models.UserRecord{Name: "Maria"}
		_, err := GenerateProgressChart(rec, tracker.Dashboard(rec, today))
		require.ErrorIs(t, err, ErrNothingToChart)
	})
}

func TestReportFilenames(t *testing.T) {
	t.Parallel()

	today := calendar.New(2026, 3, 18)
	require.Equal(t, "relatorio_2026-03.csv", reportFilename(today))
	require.Equal(t, "progresso_2026-03.png", chartFilename(today))
}
