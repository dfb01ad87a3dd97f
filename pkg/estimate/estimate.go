// Package estimate learns per-bucket time estimates from finished sessions.
package estimate

import (
	"math"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

const (
	// DefaultAlpha is the smoothing factor applied to each new observation.
	DefaultAlpha = 0.3
	// MinimumMinutes is the floor applied to blended efforts before planning.
	MinimumMinutes = 15

	nominalShare = 0.6
	learnedShare = 0.4
)

// Update folds observations into a copy of current using exponential
// smoothing. current is never modified. Observations for the same key are
// applied in order, so later ones weigh more.
func Update(current map[model.EstimateKey]float64, observations []model.Observation, alpha float64) map[model.EstimateKey]float64 {
	updated := make(map[model.EstimateKey]float64, len(current)+len(observations))
	for k, v := range current {
		updated[k] = v
	}
	for _, obs := range observations {
		d := float64(obs.Minutes)
		prev, ok := updated[obs.Key]
		if !ok {
			prev = d
		}
		updated[obs.Key] = alpha*d + (1-alpha)*prev
	}
	return updated
}

// Blend combines a nominal estimate with a learned one. A nil learned value
// returns nominal unchanged.
func Blend(nominal int, learned *float64) int {
	if learned == nil {
		return nominal
	}
	return int(math.Round(nominalShare*float64(nominal) + learnedShare*(*learned)))
}

// EffortFor blends and applies the MinimumMinutes floor, producing the
// effort fed to the planner.
func EffortFor(nominal int, learned map[model.EstimateKey]float64, key model.EstimateKey) int {
	var l *float64
	if v, ok := learned[key]; ok {
		l = &v
	}
	m := Blend(nominal, l)
	if m < MinimumMinutes {
		return MinimumMinutes
	}
	return m
}
