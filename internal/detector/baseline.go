package detector

import (
	"math"

	"trip-integrity-service/internal/model"
)

// minBaselineTrips is the minimum history size before z-score detectors fire;
// below it a vehicle has no meaningful distribution.
const minBaselineTrips = 5

// baseline holds the per-vehicle rolling statistics the detectors score
// against. Zero standard deviation disables the corresponding detector.
type baseline struct {
	tripCount      int
	distanceMean   float64
	distanceStd    float64
	efficiencyMean float64
	efficiencyStd  float64
	expenseKMMean  float64
	expenseKMStd   float64
}

func computeBaseline(trips []model.Trip) baseline {
	var distances, efficiencies, expenses []float64
	for _, trip := range trips {
		dist, ok := trip.Distance()
		if !ok || dist <= 0 {
			continue
		}
		distances = append(distances, dist)
		if eff, ok := trip.FuelEfficiency(); ok {
			efficiencies = append(efficiencies, eff)
		}
		if total := trip.TotalExpenses(); total > 0 {
			expenses = append(expenses, total/dist)
		}
	}

	b := baseline{tripCount: len(distances)}
	b.distanceMean, b.distanceStd = meanStd(distances)
	b.efficiencyMean, b.efficiencyStd = meanStd(efficiencies)
	b.expenseKMMean, b.expenseKMStd = meanStd(expenses)
	return b
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func zScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return math.Abs(value-mean) / std
}
