package bot

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
)

// ErrNothingToChart is returned for a record without goal or points.
var ErrNothingToChart = errors.New("nothing to chart")

// GenerateProgressChart draws the month's done and remaining points as a
// pie chart. Returns PNG image as bytes.
func GenerateProgressChart(rec *models.UserRecord, d progress.Dashboard) ([]byte, error) {
	var values []float64
	var labels []string

	if rec.TotalPoints > 0 {
		values = append(values, float64(rec.TotalPoints))
		labels = append(labels, "Realizado")
	}
	if d.Shortfall > 0 {
		values = append(values, float64(d.Shortfall))
		labels = append(labels, "Faltante")
	}
	if len(values) == 0 {
		return nil, ErrNothingToChart
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("%s: %s%% da meta", rec.Name, formatFloat(d.PercentComplete)),
		}),
		charts.LegendLabelsOptionFunc(labels),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}
