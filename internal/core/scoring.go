package core

import (
	"math"

	"github.com/JonMunkholm/robodata/internal/config"
)

// QualityScorer turns a valid ValidationResult into a 0-100 score.
//
// Diversity is a two-level step on episode count, not a measure of actual
// trajectory variance. Its threshold and fractions come from config.
type QualityScorer struct {
	cfg config.ScoringConfig
}

// NewQualityScorer creates a scorer with the given constants.
func NewQualityScorer(cfg config.ScoringConfig) *QualityScorer {
	return &QualityScorer{cfg: cfg}
}

// Score computes the breakdown. The same input always yields the same output.
func (q *QualityScorer) Score(r *ValidationResult) QualityBreakdown {
	c := q.cfg
	var b QualityBreakdown

	b.Demonstrations = c.DemonstrationMax * ramp(float64(r.EpisodeCount), float64(c.EpisodeCeiling))
	b.Duration = c.DurationMax * ramp(r.TotalDuration, c.DurationCeiling)

	if r.EpisodeCount > c.DiversityThreshold {
		b.Diversity = c.DiversityMax * c.DiversityHigh
	} else {
		b.Diversity = c.DiversityMax * c.DiversityLow
	}

	if r.Valid && len(r.Manifest) > 0 {
		b.FormatCompliance += c.ManifestCredit
	}
	if len(r.Stats) > 0 {
		b.FormatCompliance += c.StatsCredit
	}
	if r.Valid {
		b.FormatCompliance += c.ValidityCredit
	}

	total := math.Round(b.Demonstrations + b.Duration + b.Diversity + b.FormatCompliance)
	b.Total = int(math.Max(0, math.Min(100, total)))
	return b
}

// ramp is a linear 0..1 ramp from 0 to ceiling, capped at 1.
func ramp(value, ceiling float64) float64 {
	if ceiling <= 0 || value <= 0 {
		return 0
	}
	return math.Min(value/ceiling, 1)
}
