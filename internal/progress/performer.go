package progress

import (
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// Performer is the top-performer badge status.
type Performer struct {
	Eligible        bool
	PointsOK        bool
	ErrorsOK        bool
	ErrorRate       float64
	PointsThreshold int
	PointsMissing   int
}

// TopPerformer evaluates the badge: the first tier's goal reached with an
// error rate at or below models.TopPerformerMaxErrorRate percent. A worker
// with no boxes recorded has a zero error rate.
func TopPerformer(rec *models.UserRecord) Performer {
	threshold, _ := rec.TierValue(models.Tier300)

	var rate float64
	if rec.TotalBoxesHandled > 0 {
		rate = float64(rec.TotalErrors*100) / float64(rec.TotalBoxesHandled)
	}

	p := Performer{
		PointsOK:        rec.TotalPoints >= threshold,
		ErrorsOK:        rate <= models.TopPerformerMaxErrorRate,
		ErrorRate:       rate,
		PointsThreshold: threshold,
		PointsMissing:   max(0, threshold-rec.TotalPoints),
	}
	p.Eligible = p.PointsOK && p.ErrorsOK
	return p
}
