package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
)

var movementLabels = map[progress.MovementKind]string{
	progress.MovementWork:        "Trabalho",
	progress.MovementScheduled:   "Folga",
	progress.MovementSickLeave:   "Atestado",
	progress.MovementNotInformed: "Não informado",
}

// GenerateMovementsCSV renders the monthly movements as a CSV file.
func GenerateMovementsCSV(movements []progress.Movement) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"Data", "Dia", "Tipo", "Pontos", "Observações"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, m := range movements {
		points := ""
		if m.HasPoints {
			points = strconv.Itoa(m.Points)
		}
		kind := movementLabels[m.Kind]
		if m.Pending {
			kind = "Pendente"
		}

		row := []string{
			m.Date.BR(),
			weekdayLong[m.Date.Weekday()],
			kind,
			points,
			m.Notes,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func reportFilename(today calendar.Date) string {
	return fmt.Sprintf("relatorio_%s.csv", monthLabel(today))
}

func chartFilename(today calendar.Date) string {
	return fmt.Sprintf("progresso_%s.png", monthLabel(today))
}
